package memory

import (
	"encoding/json"
	"fmt"

	"github.com/cachegrid/assetcache/pkg/key"
)

// snapshotFormat is the JSON-encoded shape persisted through the adapter.
// It restores the allocator and index *metadata* only. Per the non-goal on
// in-memory durability, the page byte content is never persisted: a
// restored entry's offsets are meaningful, but its bytes are zero until the
// key is written again. This is a best-effort warm-restart optimization for
// the index structure, not a durability guarantee.
type snapshotFormat struct {
	PageSize         uint64            `json:"pageSize"`
	MinFreeBlockSize uint64            `json:"minFreeBlockSize"`
	PageSizes        []uint64          `json:"pageSizes"`
	Entries          []snapshotEntry   `json:"entries"`
}

type snapshotEntry struct {
	Kind      string `json:"kind"`
	GUID      string `json:"guid"`
	Hash      string `json:"hash"`
	PageIndex int    `json:"pageIndex"`
	Offset    uint64 `json:"offset"`
	Length    uint64 `json:"length"`
	Size      uint64 `json:"size"`
}

// snapshot encodes the current page layout and index for persistence.
// Callers must hold s.mu.
func (s *Store) snapshot() ([]byte, error) {
	sf := snapshotFormat{
		PageSize:         s.pageSize,
		MinFreeBlockSize: s.minFreeBlockSize,
	}
	for _, p := range s.pages {
		sf.PageSizes = append(sf.PageSizes, uint64(len(p.data)))
	}
	for fk, e := range s.index {
		sf.Entries = append(sf.Entries, snapshotEntry{
			Kind:      fk.Kind.String(),
			GUID:      fk.GUID.String(),
			Hash:      fk.Hash.String(),
			PageIndex: e.b.pageIndex,
			Offset:    e.b.offset,
			Length:    e.b.length,
			Size:      e.size,
		})
	}
	return json.Marshal(sf)
}

// restore rebuilds the page array and index from a persisted snapshot.
// Pages are recreated at their previous sizes but with zeroed content;
// restored entries point at valid offsets but carry no recovered bytes.
// Callers must hold s.mu.
func (s *Store) restore(blob []byte) error {
	var sf snapshotFormat
	if err := json.Unmarshal(blob, &sf); err != nil {
		return fmt.Errorf("restore: decode snapshot: %w", err)
	}

	pages := make([]*page, len(sf.PageSizes))
	for i, size := range sf.PageSizes {
		pages[i] = &page{data: make([]byte, size)}
	}

	index := make(map[key.FileKey]*entry, len(sf.Entries))
	occupied := make([]freeBlock, len(sf.Entries))
	byPage := make(map[int][]freeBlock)

	for i, se := range sf.Entries {
		kind, err := key.ParseKind(se.Kind)
		if err != nil {
			return fmt.Errorf("restore entry %d: %w", i, err)
		}
		guid, err := key.ParseGUID(se.GUID)
		if err != nil {
			return fmt.Errorf("restore entry %d: %w", i, err)
		}
		hash, err := key.ParseHash(se.Hash)
		if err != nil {
			return fmt.Errorf("restore entry %d: %w", i, err)
		}
		fk, err := key.New(kind, guid, hash)
		if err != nil {
			return fmt.Errorf("restore entry %d: %w", i, err)
		}
		if se.PageIndex < 0 || se.PageIndex >= len(pages) {
			return fmt.Errorf("restore entry %d: page index %d out of range", i, se.PageIndex)
		}

		index[fk] = &entry{
			b:    block{pageIndex: se.PageIndex, offset: se.Offset, length: se.Length},
			size: se.Size,
			refs: 1,
		}
		occupied[i] = freeBlock{offset: se.Offset, length: se.Length}
		byPage[se.PageIndex] = append(byPage[se.PageIndex], occupied[i])
	}

	// Rebuild each page's free list as everything not covered by a restored
	// entry, so the allocator's invariant (live ∪ free == page) holds
	// immediately after restore.
	for pageIdx, p := range pages {
		occ := byPage[pageIdx]
		sortFreeList(occ)
		var cursor uint64
		for _, b := range occ {
			if b.offset > cursor {
				p.free = append(p.free, freeBlock{offset: cursor, length: b.offset - cursor})
			}
			cursor = b.offset + b.length
		}
		if cursor < uint64(len(p.data)) {
			p.free = append(p.free, freeBlock{offset: cursor, length: uint64(len(p.data)) - cursor})
		}
	}

	s.pages = pages
	s.index = index
	return nil
}
