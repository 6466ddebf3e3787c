package txcache

import (
	"context"

	"go.uber.org/zap"

	"github.com/chainforge/nodecore/internal/chaintypes"
)

// Codec decodes a transaction's hex payload, mirroring the codec
// collaborator the canonical store uses.
type Codec interface {
	Decode(hexPayload string) (chaintypes.Transaction, error)
}

// Store is the narrow parent-transaction lookup ReadThrough falls back
// to on a cache miss.
type Store interface {
	GetTransactions(ctx context.Context, hashes []string) (map[string]chaintypes.Transaction, error)
}

// ReadThrough is a TransactionFetcher that consults Cache before
// falling back to next, populating the cache on every miss. Block
// validation's fill_inputs step (step 9) calls GetTransactions once
// per candidate block to resolve every input's parent, so a miner
// resubmitting inputs from a recent block benefits from the cache
// instead of round-tripping the canonical bbolt tables each time.
type ReadThrough struct {
	cache  *Cache
	next   Store
	codec  Codec
	logger *zap.Logger
}

// NewReadThrough builds a ReadThrough in front of next.
func NewReadThrough(cache *Cache, next Store, codec Codec, logger *zap.Logger) *ReadThrough {
	return &ReadThrough{cache: cache, next: next, codec: codec, logger: logger}
}

// GetTransactions resolves hashes from the cache where possible and
// fetches the remainder from next, populating the cache for next time.
func (r *ReadThrough) GetTransactions(ctx context.Context, hashes []string) (map[string]chaintypes.Transaction, error) {
	result := make(map[string]chaintypes.Transaction, len(hashes))
	miss := make([]string, 0, len(hashes))

	for _, h := range hashes {
		hexPayload, ok := r.cache.Get(h)
		if !ok {
			miss = append(miss, h)
			continue
		}
		tx, err := r.codec.Decode(hexPayload)
		if err != nil {
			r.logger.Warn("txcache held undecodable payload, falling back", zap.String("tx_hash", h), zap.Error(err))
			miss = append(miss, h)
			continue
		}
		result[h] = tx
	}

	if len(miss) == 0 {
		return result, nil
	}

	fetched, err := r.next.GetTransactions(ctx, miss)
	if err != nil {
		return nil, err
	}
	for h, tx := range fetched {
		result[h] = tx
		if err := r.cache.Put(h, tx.Hex()); err != nil {
			r.logger.Warn("txcache populate failed", zap.String("tx_hash", h), zap.Error(err))
		}
	}
	return result, nil
}
