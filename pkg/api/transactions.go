package api

import (
	"context"
	"sync"

	"github.com/cachegrid/assetcache/pkg/engine"
	"github.com/cachegrid/assetcache/pkg/key"
	"github.com/cachegrid/assetcache/pkg/transaction"
)

// transactionRegistry holds put-transactions opened implicitly by the first
// write for a (guid, hash) pair, until a commit request finalizes and
// removes them. This is the only state the transport layer itself owns; the
// engine owns everything else.
type transactionRegistry struct {
	mu  sync.Mutex
	trx map[key.VersionKey]*transaction.PutTransaction
}

func newTransactionRegistry() *transactionRegistry {
	return &transactionRegistry{trx: make(map[key.VersionKey]*transaction.PutTransaction)}
}

// getOrCreate returns the pending transaction for v, creating one via
// eng.CreatePutTransaction on first use.
func (r *transactionRegistry) getOrCreate(ctx context.Context, eng engine.Engine, v key.VersionKey) (*transaction.PutTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if trx, ok := r.trx[v]; ok {
		return trx, nil
	}
	trx, err := eng.CreatePutTransaction(ctx, v.GUID, v.Hash)
	if err != nil {
		return nil, err
	}
	r.trx[v] = trx
	return trx, nil
}

// take removes and returns the pending transaction for v, if any.
func (r *transactionRegistry) take(v key.VersionKey) (*transaction.PutTransaction, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	trx, ok := r.trx[v]
	if ok {
		delete(r.trx, v)
	}
	return trx, ok
}
