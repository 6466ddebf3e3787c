package difficulty

import (
	"context"
	"sync"

	"github.com/chainforge/nodecore/internal/chaintypes"
	"github.com/chainforge/nodecore/pkg/fixedpoint"
)

// Cache holds the process-wide (difficulty, last_block) tuple as a
// single-writer cached value with explicit invalidation, never ambient
// mutable package state. The Chain Writer invalidates it
// immediately before attempting a commit (forcing a fresh retarget
// evaluation against whatever the store currently holds) and again
// after a successful commit.
type Cache struct {
	mu    sync.Mutex
	value *cachedValue
}

type cachedValue struct {
	difficulty fixedpoint.Difficulty
	lastBlock  chaintypes.BlockRecord
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{}
}

// Get returns the cached (difficulty, last_block) tuple, computing and
// caching it via Retarget on a miss.
func (c *Cache) Get(ctx context.Context, reader ChainReader) (fixedpoint.Difficulty, chaintypes.BlockRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.value != nil {
		return c.value.difficulty, c.value.lastBlock, nil
	}

	d, last, err := Retarget(ctx, reader)
	if err != nil {
		return 0, chaintypes.BlockRecord{}, err
	}
	c.value = &cachedValue{difficulty: d, lastBlock: last}
	return d, last, nil
}

// Invalidate drops the cached value, forcing the next Get to recompute.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.value = nil
	c.mu.Unlock()
}
