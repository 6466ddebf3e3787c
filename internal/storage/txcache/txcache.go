// Package txcache is a secondary, goleveldb-backed lookup cache for
// parent transactions the Block Validator resolves via fill_inputs
// (spec §4.5 step 9). It is deliberately a separate storage engine
// from the canonical bbolt tables: a cache miss here simply means
// "go ask the canonical Store," never a correctness failure.
package txcache

import (
	"github.com/syndtr/goleveldb/leveldb"
	"go.uber.org/zap"

	"github.com/chainforge/nodecore/internal/chainerrors"
)

// Cache wraps a goleveldb handle storing tx_hash -> tx_hex.
type Cache struct {
	db     *leveldb.DB
	logger *zap.Logger
}

// Open opens (creating if necessary) a leveldb cache at path.
func Open(path string, logger *zap.Logger) (*Cache, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, chainerrors.Wrap(chainerrors.CodeStorageFailure, "open txcache", err)
	}
	return &Cache{db: db, logger: logger}, nil
}

// Close releases the underlying database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns the cached hex payload for txHash, if present.
func (c *Cache) Get(txHash string) (string, bool) {
	data, err := c.db.Get([]byte(txHash), nil)
	if err != nil {
		return "", false
	}
	return string(data), true
}

// Put caches the hex payload for txHash, overwriting any prior value.
func (c *Cache) Put(txHash, txHex string) error {
	if err := c.db.Put([]byte(txHash), []byte(txHex), nil); err != nil {
		c.logger.Warn("txcache put failed", zap.String("tx_hash", txHash), zap.Error(err))
		return chainerrors.Wrap(chainerrors.CodeStorageFailure, "txcache put", err)
	}
	return nil
}

// Delete evicts txHash from the cache. ReadThrough never calls it;
// entries stay cached until deleted explicitly.
func (c *Cache) Delete(txHash string) error {
	if err := c.db.Delete([]byte(txHash), nil); err != nil {
		return chainerrors.Wrap(chainerrors.CodeStorageFailure, "txcache delete", err)
	}
	return nil
}
