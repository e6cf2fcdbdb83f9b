// Package memory implements the paged in-memory cache engine backend: a
// fixed-size page pool with free-list allocation and an index mapping keys
// to (page, offset, length).
package memory

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/cachegrid/assetcache/internal/logger"
	"github.com/cachegrid/assetcache/pkg/engine"
	"github.com/cachegrid/assetcache/pkg/key"
	"github.com/cachegrid/assetcache/pkg/transaction"
)

// Store is the paged in-memory implementation of engine.Engine.
type Store struct {
	mu sync.RWMutex

	initialized bool
	adapter     engine.Adapter
	pageSize    uint64
	minFreeBlockSize uint64

	pages []*page
	index map[key.FileKey]*entry
}

// New constructs an uninitialized memory store. Callers must call Init
// before using it.
func New() *Store {
	return &Store{index: make(map[key.FileKey]*entry)}
}

var _ engine.Engine = (*Store)(nil)

// Init prepares the store: it adopts the configured page size and minimum
// free block size, and attempts to restore a persisted index snapshot via
// the configured adapter. A second call with the same options is a no-op
// soft reconfiguration that preserves the existing index, per the source's
// re-init contract.
func (s *Store) Init(ctx context.Context, opts engine.Options) error {
	opts = opts.WithDefaults()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pageSize = opts.PageSize
	s.minFreeBlockSize = opts.MinFreeBlockSize
	s.adapter = opts.PersistenceOptions.Adapter

	if s.initialized {
		return nil
	}

	if s.adapter != nil {
		blob, err := s.adapter.LoadDatabase(ctx)
		if err != nil && err != engine.ErrNoSnapshot {
			return fmt.Errorf("init: load snapshot: %w", err)
		}
		if err == nil {
			if err := s.restore(blob); err != nil {
				logger.WarnCtx(ctx, "memory store: failed to restore snapshot", "error", err)
			}
		}
	}

	s.initialized = true
	return nil
}

// Shutdown persists the index metadata (if an adapter is configured) and
// marks the store uninitialized. Persistence-adapter failures are logged
// but do not block shutdown.
func (s *Store) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.adapter != nil {
		blob, err := s.snapshot()
		if err != nil {
			logger.WarnCtx(ctx, "memory store: failed to encode snapshot", "error", err)
		} else if err := s.adapter.SaveDatabase(ctx, blob); err != nil {
			logger.WarnCtx(ctx, "memory store: failed to persist snapshot", "error", err)
		}
	}

	s.initialized = false
	return nil
}

// Clustering is always false: the memory backend's state is process-local.
func (s *Store) Clustering() bool { return false }

// CreatePutTransaction allocates a new transaction. The store holds no
// reference to it: ownership lives entirely with the caller until
// EndPutTransaction is called.
func (s *Store) CreatePutTransaction(ctx context.Context, guid key.GUID, hash key.Hash) (*transaction.PutTransaction, error) {
	s.mu.RLock()
	initialized := s.initialized
	s.mu.RUnlock()
	if !initialized {
		return nil, engine.ErrNotInitialized
	}
	return transaction.New(guid, hash), nil
}

// EndPutTransaction finalizes trx and, if valid, commits every completed
// kind directly into storage.
func (s *Store) EndPutTransaction(ctx context.Context, trx *transaction.PutTransaction) error {
	s.mu.RLock()
	initialized := s.initialized
	s.mu.RUnlock()
	if !initialized {
		return engine.ErrNotInitialized
	}

	if err := trx.Finalize(ctx); err != nil {
		return err
	}

	version := trx.Version()
	for _, f := range trx.Files() {
		fk, err := key.New(f.Kind, version.GUID, version.Hash)
		if err != nil {
			return err
		}
		s.commit(fk, f.Data)
	}
	return nil
}

// commit allocates storage for data, copies it in, and atomically swaps the
// index entry for fk. The previous entry's block is released only once the
// last reader referencing it closes.
func (s *Store) commit(fk key.FileKey, data []byte) {
	s.mu.Lock()
	blk := s.allocate(uint64(len(data)))
	copy(s.pages[blk.pageIndex].data[blk.offset:blk.offset+uint64(len(data))], data)

	newEntry := &entry{b: blk, size: uint64(len(data)), refs: 1}
	old := s.index[fk]
	s.index[fk] = newEntry
	s.mu.Unlock()

	if old != nil {
		s.releaseEntry(old)
	}
}

// releaseEntry drops the index's (or a reader's) reference to e, freeing
// its block once no references remain.
func (s *Store) releaseEntry(e *entry) {
	if !e.release() {
		return
	}
	s.mu.Lock()
	s.release(e.b)
	s.mu.Unlock()
}

func (s *Store) pageAt(idx int) *page {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pages[idx]
}

// GetFileInfo reports the size of the currently published version of k.
func (s *Store) GetFileInfo(ctx context.Context, k key.FileKey) (engine.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return engine.FileInfo{}, engine.ErrNotInitialized
	}
	e, ok := s.index[k]
	if !ok {
		return engine.FileInfo{}, engine.ErrNotFound
	}
	return engine.FileInfo{Size: e.size}, nil
}

// GetFileStream returns a stream over the bytes published for k at call
// time; the stream keeps observing those bytes even if a newer version is
// published before Close.
func (s *Store) GetFileStream(ctx context.Context, k key.FileKey) (io.ReadCloser, error) {
	s.mu.Lock()
	if !s.initialized {
		s.mu.Unlock()
		return nil, engine.ErrNotInitialized
	}
	e, ok := s.index[k]
	if ok {
		e.acquire()
	}
	s.mu.Unlock()

	if !ok {
		return nil, engine.ErrNotFound
	}
	return &reader{store: s, e: e}, nil
}

// Evict removes a committed version ahead of any natural overwrite.
func (s *Store) Evict(ctx context.Context, guid key.GUID, hash key.Hash) error {
	s.mu.Lock()
	if !s.initialized {
		s.mu.Unlock()
		return engine.ErrNotInitialized
	}

	var toRelease []*entry
	for _, kind := range []key.Kind{key.KindInfo, key.KindAsset, key.KindResource} {
		fk, _ := key.New(kind, guid, hash)
		if e, ok := s.index[fk]; ok {
			delete(s.index, fk)
			toRelease = append(toRelease, e)
		}
	}
	s.mu.Unlock()

	for _, e := range toRelease {
		s.releaseEntry(e)
	}
	return nil
}

// Stats returns a point-in-time snapshot of allocator occupancy.
func (s *Store) Stats(ctx context.Context) (engine.EngineStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return engine.EngineStats{}, engine.ErrNotInitialized
	}
	var used uint64
	for _, e := range s.index {
		used += e.size
	}
	return engine.EngineStats{
		Entries:   uint64(len(s.index)),
		BytesUsed: used,
		PageCount: uint64(len(s.pages)),
	}, nil
}
