package engine

import (
	"context"

	"github.com/cachegrid/assetcache/internal/logger"
	"github.com/cachegrid/assetcache/pkg/key"
	"github.com/cachegrid/assetcache/pkg/metrics"
	"github.com/cachegrid/assetcache/pkg/reliability"
	"github.com/cachegrid/assetcache/pkg/transaction"
)

// reliableEngine wraps an Engine with the high-reliability admission
// filter, so neither backend needs any reliability-specific code: the
// decorator intercepts EndPutTransaction and Evict and otherwise delegates
// straight through.
type reliableEngine struct {
	Engine
	filter  *reliability.Filter
	metrics *metrics.Registry
}

// WithReliability wraps inner so that a version is only committed once
// threshold+1 consecutive finalized transactions present the same manifest
// and byte-identical payloads per kind. threshold == 0 admits on the first
// finalized transaction, matching reliability.New's contract. reg may be
// nil, in which case admission events are not reported.
func WithReliability(inner Engine, threshold int, reg *metrics.Registry) Engine {
	return &reliableEngine{Engine: inner, filter: reliability.New(threshold), metrics: reg}
}

// EndPutTransaction finalizes trx itself (so the caller observes a
// successful finalize regardless of admission) and presents the result to
// the filter. Only an admitted observation is forwarded to the underlying
// engine; Finalize is idempotent, so the underlying EndPutTransaction's own
// call to it is a no-op confirmation.
func (r *reliableEngine) EndPutTransaction(ctx context.Context, trx *transaction.PutTransaction) error {
	if err := trx.Finalize(ctx); err != nil {
		return err
	}

	before := r.filter.Locked(trx.Version())
	if before {
		logger.Debug("reliable engine: write to locked version absorbed",
			"version", trx.Version().String(), "error", ErrLocked)
	}
	admit, _ := r.filter.Observe(trx.Version(), trx.Manifest(), trx.Files())
	if r.metrics != nil {
		if admit && !before {
			r.metrics.ReliabilityEvents.WithLabelValues("admission").Inc()
		} else if !admit {
			r.metrics.ReliabilityEvents.WithLabelValues("observed").Inc()
		}
	}
	if !admit {
		return nil
	}
	return r.Engine.EndPutTransaction(ctx, trx)
}

// Evict refuses to remove a version the filter has already locked: once
// admitted, a version is neither evicted nor replaced through this engine.
func (r *reliableEngine) Evict(ctx context.Context, guid key.GUID, hash key.Hash) error {
	v := key.VersionKey{GUID: guid, Hash: hash}
	if r.filter.Locked(v) {
		return ErrLocked
	}
	return r.Engine.Evict(ctx, guid, hash)
}

var _ Engine = (*reliableEngine)(nil)
