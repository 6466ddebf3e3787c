// Package memstore is an in-memory storage.Store implementation used
// by tests and local development; it has no persistence across
// process restarts.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/chainforge/nodecore/internal/chainerrors"
	"github.com/chainforge/nodecore/internal/chaintypes"
)

// Store is a mutex-protected in-memory Store.
type Store struct {
	mu sync.RWMutex

	blocksByID   map[uint64]chaintypes.BlockRecord
	lastBlockID  uint64
	transactions map[string]chaintypes.Transaction
	pending      map[string]chaintypes.PendingEntry
	utxo         map[chaintypes.UTXOEntry]struct{}
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		blocksByID:   make(map[uint64]chaintypes.BlockRecord),
		transactions: make(map[string]chaintypes.Transaction),
		pending:      make(map[string]chaintypes.PendingEntry),
		utxo:         make(map[chaintypes.UTXOEntry]struct{}),
	}
}

func (s *Store) GetLastBlock(ctx context.Context) (chaintypes.BlockRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastBlockID == 0 {
		return chaintypes.BlockRecord{}, false, nil
	}
	b, ok := s.blocksByID[s.lastBlockID]
	return b, ok, nil
}

func (s *Store) GetBlockByID(ctx context.Context, id uint64) (chaintypes.BlockRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blocksByID[id]
	return b, ok, nil
}

func (s *Store) AddBlock(ctx context.Context, block chaintypes.BlockRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.blocksByID[block.ID]; exists {
		return chainerrors.New(chainerrors.CodeStorageFailure, "block id already exists")
	}
	s.blocksByID[block.ID] = block
	if block.ID > s.lastBlockID {
		s.lastBlockID = block.ID
	}
	return nil
}

func (s *Store) DeleteBlock(ctx context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blocksByID, id)
	if s.lastBlockID == id {
		s.lastBlockID = 0
		for bid := range s.blocksByID {
			if bid > s.lastBlockID {
				s.lastBlockID = bid
			}
		}
	}
	return nil
}

func (s *Store) AddTransaction(ctx context.Context, tx chaintypes.Transaction, blockHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions[tx.Hash()] = tx
	return nil
}

func (s *Store) AddTransactions(ctx context.Context, txs []chaintypes.Transaction, blockHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range txs {
		s.transactions[tx.Hash()] = tx
	}
	return nil
}

func (s *Store) GetTransactions(ctx context.Context, hashes []string) (map[string]chaintypes.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]chaintypes.Transaction, len(hashes))
	for _, h := range hashes {
		if tx, ok := s.transactions[h]; ok {
			out[h] = tx
		}
	}
	return out, nil
}

func (s *Store) GetPendingTransactionsLimit(ctx context.Context, n int) ([]chaintypes.PendingEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]chaintypes.PendingEntry, 0, len(s.pending))
	for _, e := range s.pending {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Fees > entries[j].Fees })
	if n >= 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries, nil
}

func (s *Store) RemovePendingTransactionsByHash(ctx context.Context, hashes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range hashes {
		delete(s.pending, h)
	}
	return nil
}

func (s *Store) RemovePendingTransaction(ctx context.Context, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, hash)
	return nil
}

func (s *Store) AddPendingTransaction(ctx context.Context, entry chaintypes.PendingEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[entry.TxHash] = entry
	return nil
}

func (s *Store) GetUnspentOutputs(ctx context.Context, pairs []chaintypes.UTXOEntry) ([]chaintypes.UTXOEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]chaintypes.UTXOEntry, 0, len(pairs))
	for _, p := range pairs {
		if _, ok := s.utxo[p]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) AddUnspentOutputs(ctx context.Context, entries []chaintypes.UTXOEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		s.utxo[e] = struct{}{}
	}
	return nil
}

func (s *Store) RemoveUnspentOutputs(ctx context.Context, entries []chaintypes.UTXOEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		delete(s.utxo, e)
	}
	return nil
}
