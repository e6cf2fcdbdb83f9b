// Package badger implements engine.Adapter on top of an embedded BadgerDB
// database: the memory backend's index snapshot is stored as a single JSON
// blob under a fixed key, which is the natural fit for a single-process
// warm-restart optimization.
package badger

import (
	"context"
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/cachegrid/assetcache/pkg/engine"
)

// snapshotKey is the fixed key the index snapshot is stored under.
var snapshotKey = []byte("assetcache:memory:snapshot")

// Adapter persists the memory backend's index snapshot to an embedded
// BadgerDB database.
type Adapter struct {
	db *badgerdb.DB
}

// Open opens (creating if absent) a BadgerDB database at path.
func Open(path string) (*Adapter, error) {
	opts := badgerdb.DefaultOptions(path).WithLogger(nil)
	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger adapter: open %s: %w", path, err)
	}
	return &Adapter{db: db}, nil
}

var _ engine.Adapter = (*Adapter)(nil)

// SaveDatabase writes blob under the fixed snapshot key in a single
// transaction.
func (a *Adapter) SaveDatabase(ctx context.Context, blob []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(snapshotKey, blob)
	})
}

// LoadDatabase reads the snapshot written by the most recent SaveDatabase,
// or engine.ErrNoSnapshot if none exists.
func (a *Adapter) LoadDatabase(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var blob []byte
	err := a.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(snapshotKey)
		if err == badgerdb.ErrKeyNotFound {
			return engine.ErrNoSnapshot
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			blob = append([]byte(nil), val...)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return blob, nil
}

// Close releases the underlying BadgerDB database.
func (a *Adapter) Close() error {
	return a.db.Close()
}
