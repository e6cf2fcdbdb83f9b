package memory

import (
	"io"
	"sync/atomic"
)

// entry is the index's view of a committed file: the block holding its
// bytes, the payload's actual size (which may be smaller than the block's
// length when minFreeBlockSize absorption rounded the allocation up), and a
// reference count.
//
// refs starts at 1 for the index's own reference. Each open read stream
// adds one more. The block is only returned to its page's free list once
// refs reaches zero, which is what lets a reader opened against an older
// version keep observing its bytes after the index has been swapped to a
// newer one.
type entry struct {
	b    block
	size uint64
	refs int32
}

// acquire adds a reference for a new read stream. Safe to call concurrently
// with other acquire/release calls.
func (e *entry) acquire() {
	atomic.AddInt32(&e.refs, 1)
}

// release drops a reference, returning true if this was the last one.
func (e *entry) release() bool {
	return atomic.AddInt32(&e.refs, -1) == 0
}

// reader streams an entry's bytes directly out of its page, without
// copying, for the lifetime of the read. Close must be called exactly once
// to drop the entry's reference.
type reader struct {
	store *Store
	e     *entry
	off   uint64
	done  bool
}

var _ io.ReadCloser = (*reader)(nil)

func (r *reader) Read(p []byte) (int, error) {
	if r.off >= r.e.size {
		return 0, io.EOF
	}
	page := r.store.pageAt(r.e.b.pageIndex)
	start := r.e.b.offset + r.off
	end := r.e.b.offset + r.e.size
	n := copy(p, page.data[start:end])
	r.off += uint64(n)
	return n, nil
}

func (r *reader) Close() error {
	if r.done {
		return nil
	}
	r.done = true
	r.store.releaseEntry(r.e)
	return nil
}
