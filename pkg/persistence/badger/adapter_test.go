package badger_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/cachegrid/assetcache/pkg/engine"
	"github.com/cachegrid/assetcache/pkg/persistence/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadgerAdapterRoundTrip(t *testing.T) {
	dir := t.TempDir()
	a, err := badger.Open(filepath.Join(dir, "snapshot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	ctx := context.Background()

	_, err = a.LoadDatabase(ctx)
	assert.ErrorIs(t, err, engine.ErrNoSnapshot)

	require.NoError(t, a.SaveDatabase(ctx, []byte(`{"entries":[]}`)))

	blob, err := a.LoadDatabase(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"entries":[]}`, string(blob))
}

func TestBadgerAdapterOverwrite(t *testing.T) {
	dir := t.TempDir()
	a, err := badger.Open(filepath.Join(dir, "snapshot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	ctx := context.Background()
	require.NoError(t, a.SaveDatabase(ctx, []byte("v1")))
	require.NoError(t, a.SaveDatabase(ctx, []byte("v2")))

	blob, err := a.LoadDatabase(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(blob))
}
