package transaction_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cachegrid/assetcache/pkg/key"
	"github.com/cachegrid/assetcache/pkg/transaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	trx := transaction.New(key.NewGUID(), key.Hash{})

	ws, err := trx.GetWriteStream(key.KindInfo, 5)
	require.NoError(t, err)
	n, err := ws.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	require.NoError(t, ws.Close())

	require.NoError(t, trx.Finalize(context.Background()))
	assert.True(t, trx.IsValid())
	assert.Equal(t, []key.Kind{key.KindInfo}, trx.Manifest())
	require.Len(t, trx.Files(), 1)
	assert.Equal(t, []byte("hello"), trx.Files()[0].Data)
}

func TestManifestOrderIsCanonical(t *testing.T) {
	trx := transaction.New(key.NewGUID(), key.Hash{})

	for _, kind := range []key.Kind{key.KindResource, key.KindInfo, key.KindAsset} {
		ws, err := trx.GetWriteStream(kind, 1)
		require.NoError(t, err)
		_, err = ws.Write([]byte("x"))
		require.NoError(t, err)
		require.NoError(t, ws.Close())
	}

	require.NoError(t, trx.Finalize(context.Background()))
	assert.Equal(t, []key.Kind{key.KindInfo, key.KindAsset, key.KindResource}, trx.Manifest())
}

func TestPartialWriteAtomicity(t *testing.T) {
	trx := transaction.New(key.NewGUID(), key.Hash{})

	ws, err := trx.GetWriteStream(key.KindInfo, 1024)
	require.NoError(t, err)
	_, err = ws.Write([]byte{0x01})
	require.NoError(t, err)
	require.NoError(t, ws.Close())

	err = trx.Finalize(context.Background())
	assert.ErrorIs(t, err, transaction.ErrIncompleteWrite)
	assert.False(t, trx.IsValid())
	assert.Empty(t, trx.Files())
}

func TestInvalidateAfterFinalize(t *testing.T) {
	trx := transaction.New(key.NewGUID(), key.Hash{})

	ws, err := trx.GetWriteStream(key.KindInfo, 1)
	require.NoError(t, err)
	_, err = ws.Write([]byte{0x01})
	require.NoError(t, err)
	require.NoError(t, ws.Close())
	require.NoError(t, trx.Finalize(context.Background()))

	trx.Invalidate()
	assert.False(t, trx.IsValid())
	assert.Empty(t, trx.Files())
	assert.Empty(t, trx.Manifest())
}

func TestGetWriteStreamValidation(t *testing.T) {
	trx := transaction.New(key.NewGUID(), key.Hash{})

	_, err := trx.GetWriteStream(key.Kind('z'), 10)
	assert.ErrorIs(t, err, transaction.ErrInvalidArgument)

	_, err = trx.GetWriteStream(key.KindInfo, 0)
	assert.ErrorIs(t, err, transaction.ErrInvalidArgument)
}

func TestGetWriteStreamAfterFinalizeFails(t *testing.T) {
	trx := transaction.New(key.NewGUID(), key.Hash{})
	ws, err := trx.GetWriteStream(key.KindInfo, 1)
	require.NoError(t, err)
	_, err = ws.Write([]byte{0x01})
	require.NoError(t, err)
	require.NoError(t, ws.Close())
	require.NoError(t, trx.Finalize(context.Background()))

	_, err = trx.GetWriteStream(key.KindAsset, 1)
	assert.ErrorIs(t, err, transaction.ErrAlreadyFinalized)
}

func TestDoneChannelClosesOnFinalize(t *testing.T) {
	trx := transaction.New(key.NewGUID(), key.Hash{})
	ws, err := trx.GetWriteStream(key.KindInfo, 1)
	require.NoError(t, err)
	_, err = ws.Write([]byte{0x01})
	require.NoError(t, err)
	require.NoError(t, ws.Close())

	select {
	case <-trx.Done():
		t.Fatal("done channel closed before finalize")
	default:
	}

	require.NoError(t, trx.Finalize(context.Background()))

	select {
	case <-trx.Done():
	default:
		t.Fatal("done channel not closed after finalize")
	}
}

func TestWriteFilesToPath(t *testing.T) {
	trx := transaction.New(key.NewGUID(), key.Hash{})
	ws, err := trx.GetWriteStream(key.KindInfo, 3)
	require.NoError(t, err)
	_, err = ws.Write([]byte("abc"))
	require.NoError(t, err)
	require.NoError(t, ws.Close())
	require.NoError(t, trx.Finalize(context.Background()))

	dir := t.TempDir()
	paths, err := trx.WriteFilesToPath(dir)
	require.NoError(t, err)
	require.Len(t, paths, 1)

	data, err := os.ReadFile(filepath.Join(dir, "i"))
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), data)
}

func TestWriteFilesToPathBeforeFinalizeFails(t *testing.T) {
	trx := transaction.New(key.NewGUID(), key.Hash{})
	_, err := trx.WriteFilesToPath(t.TempDir())
	assert.ErrorIs(t, err, transaction.ErrNotFinalized)
}
