// Package mempool implements the pending-pool janitor: a fixed-point
// sweep that evicts transactions which no longer verify, duplicate an
// already-committed transaction, or collide on a spent input with
// another pending entry.
package mempool

import (
	"context"

	"go.uber.org/zap"

	"github.com/chainforge/nodecore/internal/chaintypes"
	"github.com/chainforge/nodecore/internal/metrics"
)

// fetchLimit is the maximum number of pending entries considered per
// sweep pass.
const fetchLimit = 1000

// Codec decodes a pending entry's hex payload into a verifiable
// Transaction, mirroring the codec collaborator boltstore.Store uses.
type Codec interface {
	Decode(hexPayload string) (chaintypes.Transaction, error)
}

// Store is the narrow pending-pool and committed-transaction surface
// the Janitor needs.
type Store interface {
	GetPendingTransactionsLimit(ctx context.Context, n int) ([]chaintypes.PendingEntry, error)
	RemovePendingTransaction(ctx context.Context, hash string) error
	GetTransactions(ctx context.Context, hashes []string) (map[string]chaintypes.Transaction, error)
}

// Janitor sweeps the pending pool clean.
type Janitor struct {
	store  Store
	codec  Codec
	logger *zap.Logger
}

// New builds a Janitor.
func New(store Store, codec Codec, logger *zap.Logger) *Janitor {
	return &Janitor{store: store, codec: codec, logger: logger}
}

// Sweep runs passes until one completes with zero evictions. Each
// restart strictly shrinks the pending pool, so the loop terminates.
func (j *Janitor) Sweep(ctx context.Context) error {
	for {
		evicted, err := j.pass(ctx)
		if err != nil {
			return err
		}
		if !evicted {
			return nil
		}
	}
}

// pass runs a single sweep and reports whether it evicted anything.
func (j *Janitor) pass(ctx context.Context) (bool, error) {
	entries, err := j.store.GetPendingTransactionsLimit(ctx, fetchLimit)
	if err != nil {
		return false, err
	}
	if len(entries) == 0 {
		return false, nil
	}

	hashes := make([]string, len(entries))
	for i, e := range entries {
		hashes[i] = e.TxHash
	}
	committed, err := j.store.GetTransactions(ctx, hashes)
	if err != nil {
		return false, err
	}

	usedInputs := make(map[chaintypes.TxInput]struct{})
	for _, entry := range entries {
		if _, alreadyCommitted := committed[entry.TxHash]; alreadyCommitted {
			return true, j.evict(ctx, entry.TxHash, "already committed")
		}

		tx, err := j.codec.Decode(entry.TxHex)
		if err != nil {
			return true, j.evict(ctx, entry.TxHash, "undecodable")
		}
		ok, _ := tx.Verify(false)
		if !ok {
			return true, j.evict(ctx, entry.TxHash, "failed verification")
		}

		for _, in := range tx.Inputs() {
			if _, collided := usedInputs[in]; collided {
				return true, j.evict(ctx, entry.TxHash, "input collision with another pending entry")
			}
			usedInputs[in] = struct{}{}
		}
	}

	return false, nil
}

func (j *Janitor) evict(ctx context.Context, hash, reason string) error {
	if err := j.store.RemovePendingTransaction(ctx, hash); err != nil {
		j.logger.Warn("janitor eviction failed", zap.String("tx_hash", hash), zap.Error(err))
		return err
	}
	metrics.MempoolEvictions.WithLabelValues(reason).Inc()
	j.logger.Info("janitor evicted pending transaction", zap.String("tx_hash", hash), zap.String("reason", reason))
	return nil
}
