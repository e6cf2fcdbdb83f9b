// Package enginetest provides a shared conformance suite exercised against
// every engine.Engine backend, so a new backend only needs a factory and
// this suite to prove it honors the same contract as the others.
package enginetest

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/cachegrid/assetcache/pkg/engine"
	"github.com/cachegrid/assetcache/pkg/key"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory creates a freshly initialized engine for each test, using t for
// temp-dir and cleanup hooks as needed by the backend under test.
type Factory func(t *testing.T) engine.Engine

// RunConformanceSuite runs the full backend-agnostic conformance suite
// against the engine produced by factory. Each sub-test gets a fresh
// instance to keep tests isolated.
func RunConformanceSuite(t *testing.T, factory Factory) {
	t.Helper()

	t.Run("RoundTrip", func(t *testing.T) { testRoundTrip(t, factory) })
	t.Run("PartialWriteNeverObservable", func(t *testing.T) { testPartialWriteNeverObservable(t, factory) })
	t.Run("SnapshotIsolationUnderReplace", func(t *testing.T) { testSnapshotIsolation(t, factory) })
	t.Run("MultiKindManifest", func(t *testing.T) { testMultiKindManifest(t, factory) })
	t.Run("Evict", func(t *testing.T) { testEvict(t, factory) })
	t.Run("NotFoundForUnknownKey", func(t *testing.T) { testNotFound(t, factory) })
	t.Run("Stats", func(t *testing.T) { testStats(t, factory) })
}

func put(t *testing.T, e engine.Engine, guid key.GUID, hash key.Hash, kind key.Kind, data []byte) {
	t.Helper()
	ctx := context.Background()
	trx, err := e.CreatePutTransaction(ctx, guid, hash)
	require.NoError(t, err)
	ws, err := trx.GetWriteStream(kind, uint64(len(data)))
	require.NoError(t, err)
	_, err = ws.Write(data)
	require.NoError(t, err)
	require.NoError(t, ws.Close())
	require.NoError(t, e.EndPutTransaction(ctx, trx))
}

func testRoundTrip(t *testing.T, factory Factory) {
	e := factory(t)
	ctx := context.Background()
	guid := key.NewGUID()
	var hash key.Hash

	payload := bytes.Repeat([]byte{0xAA}, 4096)
	put(t, e, guid, hash, key.KindAsset, payload)

	fk, err := key.New(key.KindAsset, guid, hash)
	require.NoError(t, err)

	info, err := e.GetFileInfo(ctx, fk)
	require.NoError(t, err)
	assert.EqualValues(t, len(payload), info.Size)

	rc, err := e.GetFileStream(ctx, fk)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, payload, got)
}

func testPartialWriteNeverObservable(t *testing.T, factory Factory) {
	e := factory(t)
	ctx := context.Background()
	guid := key.NewGUID()
	var hash key.Hash

	trx, err := e.CreatePutTransaction(ctx, guid, hash)
	require.NoError(t, err)
	ws, err := trx.GetWriteStream(key.KindInfo, 100)
	require.NoError(t, err)
	_, err = ws.Write([]byte("short"))
	require.NoError(t, err)
	require.NoError(t, ws.Close())

	err = e.EndPutTransaction(ctx, trx)
	assert.Error(t, err)

	fk, err := key.New(key.KindInfo, guid, hash)
	require.NoError(t, err)
	_, err = e.GetFileInfo(ctx, fk)
	assert.ErrorIs(t, err, engine.ErrNotFound)
}

func testSnapshotIsolation(t *testing.T, factory Factory) {
	e := factory(t)
	ctx := context.Background()
	guid := key.NewGUID()
	var hash key.Hash

	v1 := bytes.Repeat([]byte{0x11}, 64*1024)
	put(t, e, guid, hash, key.KindInfo, v1)

	fk, err := key.New(key.KindInfo, guid, hash)
	require.NoError(t, err)

	r, err := e.GetFileStream(ctx, fk)
	require.NoError(t, err)

	first := make([]byte, 32*1024)
	_, err = io.ReadFull(r, first)
	require.NoError(t, err)

	v2 := bytes.Repeat([]byte{0x22}, 64*1024)
	put(t, e, guid, hash, key.KindInfo, v2)

	rest, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, v1, append(first, rest...))

	r2, err := e.GetFileStream(ctx, fk)
	require.NoError(t, err)
	got2, err := io.ReadAll(r2)
	require.NoError(t, err)
	require.NoError(t, r2.Close())
	assert.Equal(t, v2, got2)
}

func testMultiKindManifest(t *testing.T, factory Factory) {
	e := factory(t)
	ctx := context.Background()
	guid := key.NewGUID()
	var hash key.Hash

	trx, err := e.CreatePutTransaction(ctx, guid, hash)
	require.NoError(t, err)
	for _, kind := range []key.Kind{key.KindInfo, key.KindAsset, key.KindResource} {
		ws, err := trx.GetWriteStream(kind, 4)
		require.NoError(t, err)
		_, err = ws.Write([]byte("data"))
		require.NoError(t, err)
		require.NoError(t, ws.Close())
	}
	require.NoError(t, e.EndPutTransaction(ctx, trx))
	assert.Equal(t, []key.Kind{key.KindInfo, key.KindAsset, key.KindResource}, trx.Manifest())

	for _, kind := range []key.Kind{key.KindInfo, key.KindAsset, key.KindResource} {
		fk, err := key.New(kind, guid, hash)
		require.NoError(t, err)
		info, err := e.GetFileInfo(ctx, fk)
		require.NoError(t, err)
		assert.EqualValues(t, 4, info.Size)
	}
}

func testEvict(t *testing.T, factory Factory) {
	e := factory(t)
	ctx := context.Background()
	guid := key.NewGUID()
	var hash key.Hash

	put(t, e, guid, hash, key.KindInfo, []byte("x"))
	require.NoError(t, e.Evict(ctx, guid, hash))

	fk, err := key.New(key.KindInfo, guid, hash)
	require.NoError(t, err)
	_, err = e.GetFileInfo(ctx, fk)
	assert.ErrorIs(t, err, engine.ErrNotFound)
}

func testNotFound(t *testing.T, factory Factory) {
	e := factory(t)
	ctx := context.Background()
	fk, err := key.New(key.KindInfo, key.NewGUID(), key.Hash{})
	require.NoError(t, err)

	_, err = e.GetFileInfo(ctx, fk)
	assert.ErrorIs(t, err, engine.ErrNotFound)

	_, err = e.GetFileStream(ctx, fk)
	assert.ErrorIs(t, err, engine.ErrNotFound)
}

func testStats(t *testing.T, factory Factory) {
	e := factory(t)
	ctx := context.Background()
	guid := key.NewGUID()
	var hash key.Hash

	put(t, e, guid, hash, key.KindInfo, bytes.Repeat([]byte{7}, 256))
	stats, err := e.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Entries)
	assert.EqualValues(t, 256, stats.BytesUsed)
}
