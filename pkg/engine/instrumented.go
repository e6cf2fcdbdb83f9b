package engine

import (
	"context"
	"errors"
	"io"

	"github.com/cachegrid/assetcache/pkg/key"
	"github.com/cachegrid/assetcache/pkg/metrics"
	"github.com/cachegrid/assetcache/pkg/transaction"
)

// instrumentedEngine wraps an Engine with Prometheus observations. It never
// changes behavior, only reports it, so it composes freely with
// WithReliability in either order.
type instrumentedEngine struct {
	Engine
	metrics *metrics.Registry
}

// WithMetrics wraps inner so every transaction outcome, byte written, and
// stream opened is reported to reg.
func WithMetrics(inner Engine, reg *metrics.Registry) Engine {
	return &instrumentedEngine{Engine: inner, metrics: reg}
}

func (i *instrumentedEngine) EndPutTransaction(ctx context.Context, trx *transaction.PutTransaction) error {
	err := i.Engine.EndPutTransaction(ctx, trx)

	switch {
	case err == nil:
		i.metrics.TransactionsTotal.WithLabelValues("committed").Inc()
		for _, f := range trx.Files() {
			i.metrics.BytesWritten.WithLabelValues(f.Kind.String()).Add(float64(len(f.Data)))
		}
	case errors.Is(err, transaction.ErrIncompleteWrite):
		i.metrics.TransactionsTotal.WithLabelValues("failed").Inc()
	default:
		i.metrics.TransactionsTotal.WithLabelValues("error").Inc()
	}
	return err
}

// GetFileStream reports a stream-opened event for every successful open.
func (i *instrumentedEngine) GetFileStream(ctx context.Context, k key.FileKey) (io.ReadCloser, error) {
	rc, err := i.Engine.GetFileStream(ctx, k)
	if err == nil {
		i.metrics.ReadStreamsOpened.Inc()
	}
	return rc, err
}

var _ Engine = (*instrumentedEngine)(nil)
