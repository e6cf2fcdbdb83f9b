// Package engine defines the cache engine contract shared by the memory and
// filesystem backends: create transactions, commit finalized transactions,
// serve read streams, and answer existence/size queries.
package engine

import (
	"context"
	"io"

	"github.com/cachegrid/assetcache/pkg/key"
	"github.com/cachegrid/assetcache/pkg/transaction"
)

// FileInfo describes a committed file.
type FileInfo struct {
	Size uint64
}

// EngineStats is a point-in-time snapshot of operational counters, served
// by the transport's stats route. Nothing copies it into the memory gauges
// registered in pkg/metrics.
type EngineStats struct {
	Entries    uint64
	BytesUsed  uint64
	PageCount  uint64 // memory backend only; zero for the filesystem backend
}

// Engine is the capability set both backends implement. A statically typed
// target expresses the source's dynamic dispatch as this single interface
// rather than as runtime type identity.
type Engine interface {
	// Init prepares the backing store. It is idempotent when called again
	// with the same options and aborts no in-flight transactions. It does
	// not read the HighReliability settings, so a second call that changes
	// only those settings reconfigures nothing.
	Init(ctx context.Context, opts Options) error

	// Shutdown persists metadata (memory backend) and releases resources.
	// Every operation other than Init fails after Shutdown until the engine
	// is reinitialized.
	Shutdown(ctx context.Context) error

	// CreatePutTransaction allocates a new transaction for the given
	// version.
	CreatePutTransaction(ctx context.Context, guid key.GUID, hash key.Hash) (*transaction.PutTransaction, error)

	// EndPutTransaction finalizes trx and, if it is valid, commits it
	// (directly, or via the reliability filter if configured).
	EndPutTransaction(ctx context.Context, trx *transaction.PutTransaction) error

	// GetFileInfo reports the size of the currently published version of a
	// key. It fails with ErrNotFound if no committed (and, under high
	// reliability, locked) version exists.
	GetFileInfo(ctx context.Context, k key.FileKey) (FileInfo, error)

	// GetFileStream returns a stream over the bytes published for k at the
	// time of the call. The stream continues to observe that snapshot even
	// if a newer version is published before the stream is fully read.
	GetFileStream(ctx context.Context, k key.FileKey) (io.ReadCloser, error)

	// Evict removes a committed version ahead of any natural overwrite. It
	// fails with ErrLocked if the reliability filter has locked the version.
	Evict(ctx context.Context, guid key.GUID, hash key.Hash) error

	// Stats returns a point-in-time snapshot of operational counters.
	Stats(ctx context.Context) (EngineStats, error)

	// Clustering reports whether multiple engine instances may safely share
	// the same cachePath. Both backends answer false.
	Clustering() bool
}
