package memory

// block is an allocated, contiguous byte range within a specific page.
type block struct {
	pageIndex int
	offset    uint64
	length    uint64
}

// allocate finds the first free block across pages (in page order) able to
// hold size bytes. If the residual after carving out size bytes would be
// smaller than minFreeBlockSize, the whole free block is allocated instead
// of being split; otherwise the residual stays in the free list. If no
// existing page fits, a new page of max(pageSize, size) is appended.
//
// Callers must hold s.mu.
func (s *Store) allocate(size uint64) block {
	for pageIdx, p := range s.pages {
		for i, fb := range p.free {
			if fb.length < size {
				continue
			}
			residual := fb.length - size
			if residual < s.minFreeBlockSize {
				p.free = append(p.free[:i], p.free[i+1:]...)
				return block{pageIndex: pageIdx, offset: fb.offset, length: fb.length}
			}
			p.free[i] = freeBlock{offset: fb.offset + size, length: residual}
			return block{pageIndex: pageIdx, offset: fb.offset, length: size}
		}
	}

	newSize := s.pageSize
	if size > newSize {
		newSize = size
	}
	p := newPage(newSize)
	pageIdx := len(s.pages)
	s.pages = append(s.pages, p)

	residual := newSize - size
	if residual < s.minFreeBlockSize {
		p.free = nil
		return block{pageIndex: pageIdx, offset: 0, length: newSize}
	}
	p.free[0] = freeBlock{offset: size, length: residual}
	return block{pageIndex: pageIdx, offset: 0, length: size}
}

// release returns b to its page's free list, merging with adjacent free
// blocks. Callers must hold s.mu.
func (s *Store) release(b block) {
	s.pages[b.pageIndex].insertFree(freeBlock{offset: b.offset, length: b.length})
}
