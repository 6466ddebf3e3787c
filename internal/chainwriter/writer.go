// Package chainwriter implements the Chain Writer: the atomic commit
// sequence that turns a validated candidate block into a persisted
// block row, coinbase and transaction set, UTXO delta and pruned
// mempool, all under a single critical section.
package chainwriter

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/chainforge/nodecore/internal/chainerrors"
	"github.com/chainforge/nodecore/internal/chaintypes"
	"github.com/chainforge/nodecore/internal/difficulty"
	"github.com/chainforge/nodecore/internal/gossip"
	"github.com/chainforge/nodecore/internal/metrics"
	"github.com/chainforge/nodecore/internal/reward"
	"github.com/chainforge/nodecore/pkg/fixedpoint"
	"github.com/chainforge/nodecore/pkg/hashutil"
)

// Store is the storage surface the Writer drives through steps c–h.
type Store interface {
	GetLastBlock(ctx context.Context) (chaintypes.BlockRecord, bool, error)
	AddBlock(ctx context.Context, block chaintypes.BlockRecord) error
	DeleteBlock(ctx context.Context, id uint64) error
	AddTransaction(ctx context.Context, tx chaintypes.Transaction, blockHash string) error
	AddTransactions(ctx context.Context, txs []chaintypes.Transaction, blockHash string) error
	AddUnspentOutputs(ctx context.Context, entries []chaintypes.UTXOEntry) error
	RemoveUnspentOutputs(ctx context.Context, entries []chaintypes.UTXOEntry) error
	RemovePendingTransactionsByHash(ctx context.Context, hashes []string) error
}

// CoinbaseFactory synthesizes the per-block coinbase transaction, a
// collaborator outside the core per the data model (spec §3).
type CoinbaseFactory interface {
	NewCoinbase(blockHash, minerAddress string, amount fixedpoint.Amount) (chaintypes.Transaction, error)
}

// AddressCodec turns a header's raw miner address bytes into its
// normalized string form (surrounding spaces stripped).
type AddressCodec interface {
	Decode(raw []byte) (string, error)
}

// Writer commits validated blocks.
type Writer struct {
	mu sync.Mutex

	store     Store
	cache     *difficulty.Cache
	coinbase  CoinbaseFactory
	addresses AddressCodec
	broadcast gossip.Broadcaster
	logger    *zap.Logger
}

// New builds a Writer. broadcast may be nil, in which case committed
// blocks are not announced anywhere.
func New(store Store, cache *difficulty.Cache, coinbase CoinbaseFactory, addresses AddressCodec, broadcast gossip.Broadcaster, logger *zap.Logger) *Writer {
	return &Writer{
		store:     store,
		cache:     cache,
		coinbase:  coinbase,
		addresses: addresses,
		broadcast: broadcast,
		logger:    logger,
	}
}

// Commit persists a validated header and its kept transactions,
// following steps a–i in order. header must already have passed the
// Block Validator.
func (w *Writer) Commit(ctx context.Context, headerBytes []byte, header *chaintypes.Header, txs []chaintypes.Transaction) (chaintypes.BlockRecord, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	start := time.Now()
	defer func() { metrics.CommitLatencySeconds.Observe(time.Since(start).Seconds()) }()

	// The difficulty cache is invalidated before the attempt to force a
	// fresh retarget evaluation against whatever the store currently holds.
	w.cache.Invalidate()

	last, ok, err := w.store.GetLastBlock(ctx)
	if err != nil {
		return chaintypes.BlockRecord{}, chainerrors.Wrap(chainerrors.CodeStorageFailure, "read last block", err)
	}

	// a. block hash and new id.
	blockHash := hashutil.SHA256Hex(headerBytes)
	newID := uint64(1)
	if ok {
		newID = last.ID + 1
	}

	// b. reward and coinbase.
	var totalFees fixedpoint.Amount
	for _, tx := range txs {
		totalFees = totalFees.Add(tx.Fees())
	}
	blockReward := reward.ForHeight(newID)
	coinbaseAmount := blockReward.Add(totalFees)

	minerAddress, err := w.addresses.Decode(header.MinerAddress)
	if err != nil {
		return chaintypes.BlockRecord{}, chainerrors.Wrap(chainerrors.CodeStorageFailure, "decode miner address", err)
	}
	coinbaseTx, err := w.coinbase.NewCoinbase(blockHash, minerAddress, coinbaseAmount)
	if err != nil {
		return chaintypes.BlockRecord{}, chainerrors.Wrap(chainerrors.CodeStorageFailure, "synthesize coinbase", err)
	}

	block := chaintypes.BlockRecord{
		ID:         newID,
		Hash:       blockHash,
		Address:    minerAddress,
		Random:     header.Nonce,
		Difficulty: header.Difficulty(),
		Reward:     coinbaseAmount,
		Timestamp:  header.Timestamp,
	}

	// c. persist the block row.
	if err := w.store.AddBlock(ctx, block); err != nil {
		return chaintypes.BlockRecord{}, chainerrors.Wrap(chainerrors.CodeStorageFailure, "add block", err)
	}

	// d. persist the coinbase transaction.
	if err := w.store.AddTransaction(ctx, coinbaseTx, blockHash); err != nil {
		w.compensate(ctx, newID)
		return chaintypes.BlockRecord{}, chainerrors.Wrap(chainerrors.CodeStorageFailure, "add coinbase transaction", err)
	}

	// e. persist non-coinbase transactions, undoing step c on failure.
	if len(txs) > 0 {
		if err := w.store.AddTransactions(ctx, txs, blockHash); err != nil {
			w.compensate(ctx, newID)
			return chaintypes.BlockRecord{}, chainerrors.Wrap(chainerrors.CodeStorageFailure, "add transactions", err)
		}
	}

	// f. insert UTXO entries for every output of coinbase + transactions.
	var newOutputs []chaintypes.UTXOEntry
	for i := range coinbaseTx.Outputs() {
		newOutputs = append(newOutputs, chaintypes.UTXOEntry{TxHash: coinbaseTx.Hash(), Index: uint32(i)})
	}
	for _, tx := range txs {
		for i := range tx.Outputs() {
			newOutputs = append(newOutputs, chaintypes.UTXOEntry{TxHash: tx.Hash(), Index: uint32(i)})
		}
	}
	if len(newOutputs) > 0 {
		if err := w.store.AddUnspentOutputs(ctx, newOutputs); err != nil {
			w.compensate(ctx, newID)
			return chaintypes.BlockRecord{}, chainerrors.Wrap(chainerrors.CodeStorageFailure, "add unspent outputs", err)
		}
	}

	// g. prune the pending pool of committed non-coinbase transactions.
	if len(txs) > 0 {
		hashes := make([]string, len(txs))
		for i, tx := range txs {
			hashes[i] = tx.Hash()
		}
		if err := w.store.RemovePendingTransactionsByHash(ctx, hashes); err != nil {
			w.logger.Warn("failed to prune pending pool after commit", zap.Error(err))
		}
	}

	// h. remove consumed UTXO entries.
	var consumed []chaintypes.UTXOEntry
	for _, tx := range txs {
		for _, in := range tx.Inputs() {
			consumed = append(consumed, chaintypes.UTXOEntry{TxHash: in.TxHash, Index: in.Index})
		}
	}
	if len(consumed) > 0 {
		if err := w.store.RemoveUnspentOutputs(ctx, consumed); err != nil {
			w.logger.Warn("failed to remove consumed UTXO entries after commit", zap.Error(err))
		}
	}

	// i. invalidate the difficulty cache again.
	w.cache.Invalidate()

	metrics.BlocksCommitted.Inc()
	metrics.ChainHeight.Set(float64(newID))

	w.logger.Info("block committed",
		zap.Uint64("block_id", newID),
		zap.String("block_hash", blockHash),
		zap.Int("tx_count", len(txs)))

	if w.broadcast != nil {
		announce := gossip.BlockAnnounce{Type: gossip.MsgTypeBlockAnnounce, BlockID: newID, BlockHash: blockHash, HeaderBytes: headerBytes}
		if err := w.broadcast.Announce(announce); err != nil {
			w.logger.Warn("failed to announce committed block", zap.Error(err))
		}
	}

	return block, nil
}

// compensate undoes step c, the only step the Writer must be able to
// unwind without a backend transaction.
func (w *Writer) compensate(ctx context.Context, blockID uint64) {
	if err := w.store.DeleteBlock(ctx, blockID); err != nil {
		w.logger.Error("compensating delete_block failed, store may be inconsistent",
			zap.Uint64("block_id", blockID), zap.Error(err))
	}
}
