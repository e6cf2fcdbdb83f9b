// Package fs implements the filesystem-backed cache engine backend: blobs
// are stored as files under a directory tree whose path is derived from the
// key, with atomic rename used to publish a commit.
package fs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/cachegrid/assetcache/internal/logger"
	"github.com/cachegrid/assetcache/pkg/engine"
	"github.com/cachegrid/assetcache/pkg/key"
	"github.com/cachegrid/assetcache/pkg/transaction"
)

const stagingDirName = ".staging"

// Config holds configuration for the filesystem backend.
type Config struct {
	// BasePath is the root directory for blob storage.
	BasePath string

	// DirMode is the permission mode for created directories. Default 0755.
	DirMode os.FileMode

	// FileMode is the permission mode for committed files. Default 0644.
	FileMode os.FileMode
}

// Store is the filesystem-backed implementation of engine.Engine.
type Store struct {
	mu sync.RWMutex

	initialized bool
	basePath    string
	dirMode     os.FileMode
	fileMode    os.FileMode
}

// New constructs an uninitialized filesystem store. Callers must call Init
// before using it.
func New() *Store {
	return &Store{}
}

var _ engine.Engine = (*Store)(nil)

// Init creates cachePath (and its staging subdirectory) if absent, and
// clears any staging directories left behind by a prior crashed process,
// since those were never rename'd into place and can never become visible
// commits, so discarding them is safe.
func (s *Store) Init(ctx context.Context, opts engine.Options) error {
	if opts.CachePath == "" {
		return fmt.Errorf("fs init: %w: cachePath is required", engine.ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized && opts.CachePath != s.basePath {
		return fmt.Errorf("fs init: %w: cachePath cannot change while initialized", engine.ErrInvalidArgument)
	}
	s.basePath = opts.CachePath
	s.dirMode = 0o755
	s.fileMode = 0o644

	if err := os.MkdirAll(s.basePath, s.dirMode); err != nil {
		return fmt.Errorf("fs init: %w", err)
	}

	staging := filepath.Join(s.basePath, stagingDirName)
	if s.initialized {
		return nil
	}

	if err := os.RemoveAll(staging); err != nil {
		logger.WarnCtx(ctx, "fs store: failed to clear stale staging directory", "error", err)
	}
	if err := os.MkdirAll(staging, s.dirMode); err != nil {
		return fmt.Errorf("fs init: %w", err)
	}

	s.initialized = true
	return nil
}

// Shutdown marks the store uninitialized. The filesystem backend has no
// in-process metadata to flush: every commit is already durable via rename.
func (s *Store) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = false
	return nil
}

// Clustering is always false: nothing here provides cross-process
// exclusion beyond what the host filesystem offers incidentally.
func (s *Store) Clustering() bool { return false }

// CreatePutTransaction allocates a new transaction.
func (s *Store) CreatePutTransaction(ctx context.Context, guid key.GUID, hash key.Hash) (*transaction.PutTransaction, error) {
	if !s.ready() {
		return nil, engine.ErrNotInitialized
	}
	return transaction.New(guid, hash), nil
}

// EndPutTransaction finalizes trx and, if valid, stages each completed file
// under .staging/<id>/<kind> and atomically renames it into its final path.
func (s *Store) EndPutTransaction(ctx context.Context, trx *transaction.PutTransaction) error {
	if !s.ready() {
		return engine.ErrNotInitialized
	}

	if err := trx.Finalize(ctx); err != nil {
		return err
	}

	version := trx.Version()
	stagingDir := filepath.Join(s.basePath, stagingDirName, uuid.NewString())
	defer os.RemoveAll(stagingDir)

	if err := os.MkdirAll(stagingDir, s.dirMode); err != nil {
		return fmt.Errorf("endPutTransaction: %w", err)
	}

	for _, f := range trx.Files() {
		fk, err := key.New(f.Kind, version.GUID, version.Hash)
		if err != nil {
			return err
		}
		if err := s.commit(stagingDir, fk, f.Data); err != nil {
			return fmt.Errorf("endPutTransaction %s: %w", fk, err)
		}
	}
	return nil
}

// commit stages data under stagingDir and atomically renames it to fk's
// final path, overwriting any previous version in one filesystem step. A
// reader that opened the previous path before the rename keeps observing
// its bytes to completion, per the host filesystem's open-file semantics.
func (s *Store) commit(stagingDir string, fk key.FileKey, data []byte) error {
	stagePath := filepath.Join(stagingDir, fk.Kind.String())
	if err := os.WriteFile(stagePath, data, s.fileMode); err != nil {
		return err
	}

	finalDir, finalName := s.pathFor(fk)
	if err := os.MkdirAll(finalDir, s.dirMode); err != nil {
		return err
	}

	return os.Rename(stagePath, filepath.Join(finalDir, finalName))
}

// pathFor derives the committed directory and filename for fk.
func (s *Store) pathFor(fk key.FileKey) (dir, file string) {
	prefix, name := fk.FSPath()
	return filepath.Join(s.basePath, prefix), name
}

// fullPath is the convenience combination of pathFor's two halves.
func (s *Store) fullPath(fk key.FileKey) string {
	dir, name := s.pathFor(fk)
	return filepath.Join(dir, name)
}

// GetFileInfo reports the size of the currently published version of k.
func (s *Store) GetFileInfo(ctx context.Context, k key.FileKey) (engine.FileInfo, error) {
	if !s.ready() {
		return engine.FileInfo{}, engine.ErrNotInitialized
	}

	info, err := os.Stat(s.fullPath(k))
	if os.IsNotExist(err) {
		return engine.FileInfo{}, engine.ErrNotFound
	}
	if err != nil {
		return engine.FileInfo{}, fmt.Errorf("getFileInfo: %w", err)
	}
	return engine.FileInfo{Size: uint64(info.Size())}, nil
}

// GetFileStream opens the final path directly. A concurrent rename over
// that path (from a commit racing this open) does not affect an
// already-open file descriptor: the reader drains the pre-rename inode's
// bytes to completion.
func (s *Store) GetFileStream(ctx context.Context, k key.FileKey) (io.ReadCloser, error) {
	if !s.ready() {
		return nil, engine.ErrNotInitialized
	}

	f, err := os.Open(s.fullPath(k))
	if os.IsNotExist(err) {
		return nil, engine.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getFileStream: %w", err)
	}
	return f, nil
}

// Evict removes a committed version ahead of any natural overwrite.
func (s *Store) Evict(ctx context.Context, guid key.GUID, hash key.Hash) error {
	if !s.ready() {
		return engine.ErrNotInitialized
	}

	for _, kind := range []key.Kind{key.KindInfo, key.KindAsset, key.KindResource} {
		fk, _ := key.New(kind, guid, hash)
		if err := os.Remove(s.fullPath(fk)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("evict %s: %w", fk, err)
		}
	}
	return nil
}

// Stats walks the directory tree to report occupied bytes and entry count.
// It is O(n) in the number of committed files; acceptable for the
// filesystem backend's operational-visibility use case, which is not on
// any hot path.
func (s *Store) Stats(ctx context.Context) (engine.EngineStats, error) {
	if !s.ready() {
		return engine.EngineStats{}, engine.ErrNotInitialized
	}

	var stats engine.EngineStats
	staging := filepath.Join(s.basePath, stagingDirName)
	err := filepath.WalkDir(s.basePath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == staging {
				return filepath.SkipDir
			}
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		stats.Entries++
		stats.BytesUsed += uint64(info.Size())
		return nil
	})
	if err != nil {
		return engine.EngineStats{}, fmt.Errorf("stats: %w", err)
	}
	return stats, nil
}

func (s *Store) ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}
