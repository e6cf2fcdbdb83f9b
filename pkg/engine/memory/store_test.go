package memory_test

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/cachegrid/assetcache/pkg/engine"
	"github.com/cachegrid/assetcache/pkg/engine/memory"
	"github.com/cachegrid/assetcache/pkg/key"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *memory.Store {
	t.Helper()
	s := memory.New()
	require.NoError(t, s.Init(context.Background(), engine.Options{}))
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func writeAndCommit(t *testing.T, s *memory.Store, guid key.GUID, hash key.Hash, kind key.Kind, data []byte) {
	t.Helper()
	ctx := context.Background()
	trx, err := s.CreatePutTransaction(ctx, guid, hash)
	require.NoError(t, err)

	ws, err := trx.GetWriteStream(kind, uint64(len(data)))
	require.NoError(t, err)
	_, err = ws.Write(data)
	require.NoError(t, err)
	require.NoError(t, ws.Close())

	require.NoError(t, s.EndPutTransaction(ctx, trx))
}

func TestRoundTripIntegrity(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	guid := key.NewGUID()
	var hash key.Hash

	payload := bytes.Repeat([]byte{0xAA}, 1024)
	writeAndCommit(t, s, guid, hash, key.KindInfo, payload)

	fk, err := key.New(key.KindInfo, guid, hash)
	require.NoError(t, err)

	info, err := s.GetFileInfo(ctx, fk)
	require.NoError(t, err)
	assert.EqualValues(t, 1024, info.Size)

	rc, err := s.GetFileStream(ctx, fk)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, payload, got)
}

func TestPartialWriteNeverObservable(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	guid := key.NewGUID()
	var hash key.Hash

	trx, err := s.CreatePutTransaction(ctx, guid, hash)
	require.NoError(t, err)
	ws, err := trx.GetWriteStream(key.KindInfo, 1024)
	require.NoError(t, err)
	_, err = ws.Write([]byte{0x01})
	require.NoError(t, err)
	require.NoError(t, ws.Close())

	err = s.EndPutTransaction(ctx, trx)
	assert.Error(t, err)

	fk, err := key.New(key.KindInfo, guid, hash)
	require.NoError(t, err)
	_, err = s.GetFileInfo(ctx, fk)
	assert.ErrorIs(t, err, engine.ErrNotFound)
}

func TestSnapshotIsolationUnderReplace(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	guid := key.NewGUID()
	var hash key.Hash

	v1 := bytes.Repeat([]byte{0x11}, 128*1024)
	writeAndCommit(t, s, guid, hash, key.KindInfo, v1)

	fk, err := key.New(key.KindInfo, guid, hash)
	require.NoError(t, err)

	r, err := s.GetFileStream(ctx, fk)
	require.NoError(t, err)

	first := make([]byte, 64*1024)
	_, err = io.ReadFull(r, first)
	require.NoError(t, err)

	v2 := bytes.Repeat([]byte{0x22}, 128*1024)
	writeAndCommit(t, s, guid, hash, key.KindInfo, v2)

	rest, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())

	assert.Equal(t, v1, append(first, rest...))

	r2, err := s.GetFileStream(ctx, fk)
	require.NoError(t, err)
	got2, err := io.ReadAll(r2)
	require.NoError(t, err)
	require.NoError(t, r2.Close())
	assert.Equal(t, v2, got2)
}

func TestManifestOrderAfterMultiKindCommit(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	guid := key.NewGUID()
	var hash key.Hash

	trx, err := s.CreatePutTransaction(ctx, guid, hash)
	require.NoError(t, err)
	for _, kind := range []key.Kind{key.KindInfo, key.KindAsset, key.KindResource} {
		ws, err := trx.GetWriteStream(kind, 4)
		require.NoError(t, err)
		_, err = ws.Write([]byte("data"))
		require.NoError(t, err)
		require.NoError(t, ws.Close())
	}
	require.NoError(t, s.EndPutTransaction(ctx, trx))
	assert.Equal(t, []key.Kind{key.KindInfo, key.KindAsset, key.KindResource}, trx.Manifest())

	for _, kind := range []key.Kind{key.KindInfo, key.KindAsset, key.KindResource} {
		fk, err := key.New(kind, guid, hash)
		require.NoError(t, err)
		info, err := s.GetFileInfo(ctx, fk)
		require.NoError(t, err)
		assert.EqualValues(t, 4, info.Size)
	}
}

func TestEvictRemovesVersion(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	guid := key.NewGUID()
	var hash key.Hash

	writeAndCommit(t, s, guid, hash, key.KindInfo, []byte("x"))
	require.NoError(t, s.Evict(ctx, guid, hash))

	fk, err := key.New(key.KindInfo, guid, hash)
	require.NoError(t, err)
	_, err = s.GetFileInfo(ctx, fk)
	assert.ErrorIs(t, err, engine.ErrNotFound)
}

func TestAllocatorReusesFreedSpaceAfterReplace(t *testing.T) {
	s := memory.New()
	require.NoError(t, s.Init(context.Background(), engine.Options{PageSize: 4096, MinFreeBlockSize: 64}))
	ctx := context.Background()
	guid := key.NewGUID()
	var hash key.Hash

	writeAndCommit(t, s, guid, hash, key.KindInfo, bytes.Repeat([]byte{1}, 1000))
	writeAndCommit(t, s, guid, hash, key.KindInfo, bytes.Repeat([]byte{2}, 1000))
	writeAndCommit(t, s, guid, hash, key.KindInfo, bytes.Repeat([]byte{3}, 1000))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	// Three 1000-byte commits into a 4096-byte page should not each force a
	// new page if the allocator is reclaiming freed blocks from the
	// superseded versions of the same key.
	assert.EqualValues(t, 1, stats.PageCount)
}

func TestStatsReflectsBytesUsed(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	guid := key.NewGUID()
	var hash key.Hash

	writeAndCommit(t, s, guid, hash, key.KindInfo, bytes.Repeat([]byte{1}, 500))
	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 500, stats.BytesUsed)
	assert.EqualValues(t, 1, stats.Entries)
}
