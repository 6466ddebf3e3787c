// Package storage defines the persistence port the chain core reads
// and writes through. Any backend that honors the interface is
// acceptable; internal/storage/memstore and internal/storage/boltstore
// are the two adapters this repository ships.
package storage

import (
	"context"

	"github.com/chainforge/nodecore/internal/chaintypes"
)

// Store is the full persistence port required by the Block Validator,
// Chain Writer and Mempool Janitor.
type Store interface {
	ChainReader
	ChainWriter
	TransactionStore
	PendingPoolStore
	UTXOStore
}

// ChainReader is the read-only subset difficulty.Retarget needs.
type ChainReader interface {
	GetLastBlock(ctx context.Context) (chaintypes.BlockRecord, bool, error)
	GetBlockByID(ctx context.Context, id uint64) (chaintypes.BlockRecord, bool, error)
}

// ChainWriter is the block-row mutation surface the Chain Writer drives.
type ChainWriter interface {
	AddBlock(ctx context.Context, block chaintypes.BlockRecord) error
	DeleteBlock(ctx context.Context, id uint64) error
}

// TransactionStore persists committed transactions, keyed by hash.
type TransactionStore interface {
	AddTransaction(ctx context.Context, tx chaintypes.Transaction, blockHash string) error
	AddTransactions(ctx context.Context, txs []chaintypes.Transaction, blockHash string) error
	GetTransactions(ctx context.Context, hashes []string) (map[string]chaintypes.Transaction, error)
}

// PendingPoolStore is the mempool surface.
type PendingPoolStore interface {
	GetPendingTransactionsLimit(ctx context.Context, n int) ([]chaintypes.PendingEntry, error)
	RemovePendingTransactionsByHash(ctx context.Context, hashes []string) error
	RemovePendingTransaction(ctx context.Context, hash string) error
	AddPendingTransaction(ctx context.Context, entry chaintypes.PendingEntry) error
}

// UTXOStore is the spendable-output index.
type UTXOStore interface {
	GetUnspentOutputs(ctx context.Context, pairs []chaintypes.UTXOEntry) ([]chaintypes.UTXOEntry, error)
	AddUnspentOutputs(ctx context.Context, entries []chaintypes.UTXOEntry) error
	RemoveUnspentOutputs(ctx context.Context, entries []chaintypes.UTXOEntry) error
}
