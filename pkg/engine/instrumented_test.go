package engine_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cachegrid/assetcache/pkg/engine"
	"github.com/cachegrid/assetcache/pkg/engine/memory"
	"github.com/cachegrid/assetcache/pkg/key"
	"github.com/cachegrid/assetcache/pkg/metrics"
)

func TestInstrumentedEngineReportsCommittedTransaction(t *testing.T) {
	inner := memory.New()
	require.NoError(t, inner.Init(context.Background(), engine.Options{}))
	t.Cleanup(func() { _ = inner.Shutdown(context.Background()) })

	reg := metrics.New()
	e := engine.WithMetrics(inner, reg)

	ctx := context.Background()
	guid := key.NewGUID()
	var hash key.Hash

	trx, err := e.CreatePutTransaction(ctx, guid, hash)
	require.NoError(t, err)
	ws, err := trx.GetWriteStream(key.KindInfo, 4)
	require.NoError(t, err)
	_, err = ws.Write([]byte("data"))
	require.NoError(t, err)
	require.NoError(t, ws.Close())
	require.NoError(t, e.EndPutTransaction(ctx, trx))

	fk, err := key.New(key.KindInfo, guid, hash)
	require.NoError(t, err)
	rc, err := e.GetFileStream(ctx, fk)
	require.NoError(t, err)
	require.NoError(t, rc.Close())

	assert.Equal(t, float64(1), testutil.ToFloat64(reg.TransactionsTotal.WithLabelValues("committed")))
	assert.Equal(t, float64(4), testutil.ToFloat64(reg.BytesWritten.WithLabelValues("i")))
	assert.Equal(t, float64(1), testutil.ToFloat64(reg.ReadStreamsOpened))
}
