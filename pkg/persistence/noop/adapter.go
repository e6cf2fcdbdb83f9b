// Package noop implements engine.Adapter as a discard-on-save, empty-on-load
// collaborator. It is the default for tests and for single-process use where
// warm-restart index recovery is not needed.
package noop

import (
	"context"

	"github.com/cachegrid/assetcache/pkg/engine"
)

// Adapter discards every save and reports no snapshot on load.
type Adapter struct{}

// New constructs a no-op adapter.
func New() *Adapter { return &Adapter{} }

var _ engine.Adapter = (*Adapter)(nil)

// SaveDatabase discards blob.
func (a *Adapter) SaveDatabase(ctx context.Context, blob []byte) error {
	return nil
}

// LoadDatabase always reports no snapshot.
func (a *Adapter) LoadDatabase(ctx context.Context) ([]byte, error) {
	return nil, engine.ErrNoSnapshot
}
