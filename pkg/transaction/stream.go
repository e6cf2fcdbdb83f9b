package transaction

import (
	"fmt"
	"sync"
)

// WriteStream is the writable handle returned by GetWriteStream. It counts
// bytes written against the pending write's declared size and buffers them
// in the transaction's staging sink; the write is "complete" only once
// Close has been called with bytesWritten == declaredSize.
type WriteStream struct {
	mu     sync.Mutex
	pw     *pendingWrite
	closed bool
}

// Write buffers p, counting it against the declared size. It never errors on
// an over-long write; the mismatch is caught at Finalize so a single stray
// write cannot silently truncate data the caller believes it already sent.
func (w *WriteStream) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, fmt.Errorf("write: %w", ErrStreamClosed)
	}

	n, err := w.pw.buf.Write(p)
	w.pw.written += uint64(n)
	return n, err
}

// Close marks the stream closed. Declared-size validation happens at
// Finalize, not here, so a caller may Close after a short write and still
// observe ErrIncompleteWrite from Finalize rather than from Close.
func (w *WriteStream) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	w.pw.closed = true
	return nil
}

// BytesWritten returns the number of bytes written so far.
func (w *WriteStream) BytesWritten() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pw.written
}

// DeclaredSize returns the size declared at GetWriteStream time.
func (w *WriteStream) DeclaredSize() uint64 {
	return w.pw.declaredSize
}
