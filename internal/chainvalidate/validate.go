// Package chainvalidate implements the Block Validator: the
// orchestration that decodes a candidate header and runs it through
// proof-of-work, chain-linkage, timestamp, size, UTXO and transaction
// checks before a block may be committed.
package chainvalidate

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chainforge/nodecore/internal/chainerrors"
	"github.com/chainforge/nodecore/internal/chaintypes"
	"github.com/chainforge/nodecore/internal/codec"
	"github.com/chainforge/nodecore/internal/merkle"
	"github.com/chainforge/nodecore/internal/metrics"
	"github.com/chainforge/nodecore/internal/pow"
	"github.com/chainforge/nodecore/pkg/fixedpoint"
)

// UTXOReader is the narrow UTXO-index read port the validator needs.
type UTXOReader interface {
	GetUnspentOutputs(ctx context.Context, pairs []chaintypes.UTXOEntry) ([]chaintypes.UTXOEntry, error)
}

// TransactionFetcher resolves parent transactions by hash.
type TransactionFetcher interface {
	GetTransactions(ctx context.Context, hashes []string) (map[string]chaintypes.Transaction, error)
}

// PendingEvictor lets the validator evict an intra-block double-spend
// offender from the pending pool as a side effect of rejection.
type PendingEvictor interface {
	RemovePendingTransaction(ctx context.Context, hash string) error
}

// Validator orchestrates block validation.
type Validator struct {
	utxo            UTXOReader
	txs             TransactionFetcher
	evictor         PendingEvictor
	maxBlockSizeHex int
	logger          *zap.Logger
	now             func() time.Time
}

// NewValidator builds a Validator. maxBlockSizeHex bounds the sum of
// kept transactions' hex length, per the externally-defined
// MAX_BLOCK_SIZE_HEX constant.
func NewValidator(utxo UTXOReader, txs TransactionFetcher, evictor PendingEvictor, maxBlockSizeHex int, logger *zap.Logger) *Validator {
	return &Validator{
		utxo:            utxo,
		txs:             txs,
		evictor:         evictor,
		maxBlockSizeHex: maxBlockSizeHex,
		logger:          logger,
		now:             time.Now,
	}
}

// Validate runs the full orchestration contract against a candidate
// header and its accompanying entries (which may include non-
// Transaction values that must be dropped before size/merkle/verify
// checks). difficulty and lastBlock are the tuple the Difficulty
// Engine currently holds.
func (v *Validator) Validate(ctx context.Context, headerBytes []byte, rawEntries []interface{}, difficulty fixedpoint.Difficulty, lastBlock chaintypes.BlockRecord) (bool, error) {
	ok, err := v.validate(ctx, headerBytes, rawEntries, difficulty, lastBlock)
	if err != nil {
		reason := "decode_error"
		if cerr, match := err.(*chainerrors.ChainError); match {
			reason = string(cerr.Code)
		}
		metrics.BlocksRejected.WithLabelValues(reason).Inc()
	}
	return ok, err
}

func (v *Validator) validate(ctx context.Context, headerBytes []byte, rawEntries []interface{}, difficulty fixedpoint.Difficulty, lastBlock chaintypes.BlockRecord) (bool, error) {
	corrID := uuid.New().String()
	log := v.logger.With(zap.String("correlation_id", corrID))

	// 1. Decode header.
	header, err := codec.DeserializeHeader(headerBytes)
	if err != nil {
		log.Warn("block rejected", zap.Error(err))
		return false, err
	}

	// 2. PoW.
	if !pow.MeetsDifficultyAgainst(headerBytes, lastBlock, difficulty) {
		cerr := chainerrors.New(chainerrors.CodePowInsufficient, "header hash does not meet required difficulty")
		log.Warn("block rejected", zap.Error(cerr))
		return false, cerr
	}

	newBlockID := uint64(1)
	if !lastBlock.IsZero() {
		newBlockID = lastBlock.ID + 1

		// 3. Chain linkage.
		if hex.EncodeToString(header.PreviousHash[:]) != lastBlock.Hash {
			cerr := chainerrors.New(chainerrors.CodePreviousHashMismatch, "header.previous_hash does not match last committed block")
			log.Warn("block rejected", zap.Error(cerr))
			return false, cerr
		}
	}

	// 4. Difficulty match.
	if header.DifficultyRaw != difficulty.Scaled() {
		cerr := chainerrors.New(chainerrors.CodeDifficultyMismatch, "header.difficulty_scaled does not match the expected retarget value")
		log.Warn("block rejected", zap.Error(cerr))
		return false, cerr
	}

	// 5. Timestamp bounds.
	if header.Timestamp < lastBlock.Timestamp {
		cerr := chainerrors.New(chainerrors.CodeTimestampRegression, "header.timestamp precedes last committed block")
		log.Warn("block rejected", zap.Error(cerr))
		return false, cerr
	}
	if int64(header.Timestamp) > v.now().Unix() {
		cerr := chainerrors.New(chainerrors.CodeTimestampFuture, "header.timestamp is in the future")
		log.Warn("block rejected", zap.Error(cerr))
		return false, cerr
	}

	// 6. Drop non-Transaction entries.
	kept := make([]chaintypes.Transaction, 0, len(rawEntries))
	for _, entry := range rawEntries {
		if tx, ok := entry.(chaintypes.Transaction); ok {
			kept = append(kept, tx)
		}
	}

	// 7. Block size.
	totalHexLen := 0
	for _, tx := range kept {
		totalHexLen += len(tx.Hex())
	}
	if totalHexLen > v.maxBlockSizeHex {
		cerr := chainerrors.New(chainerrors.CodeBlockTooLarge, "sum of transaction hex lengths exceeds MAX_BLOCK_SIZE_HEX")
		log.Warn("block rejected", zap.Error(cerr))
		return false, cerr
	}

	if len(kept) > 0 {
		// 8. UTXO availability.
		queried := collectInputEntries(kept)
		found, err := v.utxo.GetUnspentOutputs(ctx, queried)
		if err != nil {
			cerr := chainerrors.Wrap(chainerrors.CodeStorageFailure, "query UTXO index", err)
			log.Error("block rejected", zap.Error(cerr))
			return false, cerr
		}
		if !sameEntrySet(queried, found) {
			cerr := chainerrors.New(chainerrors.CodeUTXOMissingOrSpent, "one or more inputs are missing from or already spent in the UTXO set")
			log.Warn("block rejected", zap.Error(cerr))
			return false, cerr
		}

		// 9. Fetch parents and fill inputs.
		parentHashes := uniqueParentHashes(kept)
		parents, err := v.txs.GetTransactions(ctx, parentHashes)
		if err != nil {
			cerr := chainerrors.Wrap(chainerrors.CodeStorageFailure, "fetch parent transactions", err)
			log.Error("block rejected", zap.Error(cerr))
			return false, cerr
		}
		for _, tx := range kept {
			if err := tx.FillInputs(parents); err != nil {
				cerr := chainerrors.Wrap(chainerrors.CodeTransactionVerifyFail, "fill_inputs failed", err)
				log.Warn("block rejected", zap.Error(cerr))
				return false, cerr
			}
		}

		// 10. Per-transaction verification and in-block double-spend tracking.
		usedInputs := make(map[chaintypes.TxInput]struct{})
		for _, tx := range kept {
			ok, verr := tx.Verify(false)
			if !ok {
				cerr := chainerrors.Wrap(chainerrors.CodeTransactionVerifyFail, "transaction failed verification", verr)
				log.Warn("block rejected", zap.Error(cerr))
				return false, cerr
			}
			for _, in := range tx.Inputs() {
				if _, collided := usedInputs[in]; collided {
					if evErr := v.evictor.RemovePendingTransaction(ctx, tx.Hash()); evErr != nil {
						log.Warn("failed to evict double-spend offender", zap.String("tx_hash", tx.Hash()), zap.Error(evErr))
					}
					cerr := chainerrors.New(chainerrors.CodeIntraBlockDoubleSpend, "transaction spends an input already used earlier in this block")
					log.Warn("block rejected", zap.Error(cerr), zap.String("evicted_tx_hash", tx.Hash()))
					return false, cerr
				}
				usedInputs[in] = struct{}{}
			}
		}
	}

	// 11. Merkle root.
	root, err := merkle.RootForHeight(newBlockID, kept)
	if err != nil {
		log.Warn("block rejected", zap.Error(err))
		return false, err
	}
	if root != hex.EncodeToString(header.MerkleRoot[:]) {
		cerr := chainerrors.New(chainerrors.CodeMerkleMismatch, "recomputed merkle root does not match header")
		log.Warn("block rejected", zap.Error(cerr))
		return false, cerr
	}

	log.Info("block accepted", zap.Uint64("block_id", newBlockID))
	return true, nil
}

func collectInputEntries(txs []chaintypes.Transaction) []chaintypes.UTXOEntry {
	var out []chaintypes.UTXOEntry
	for _, tx := range txs {
		for _, in := range tx.Inputs() {
			out = append(out, chaintypes.UTXOEntry{TxHash: in.TxHash, Index: in.Index})
		}
	}
	return out
}

func uniqueParentHashes(txs []chaintypes.Transaction) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, tx := range txs {
		for _, in := range tx.Inputs() {
			if _, ok := seen[in.TxHash]; ok {
				continue
			}
			seen[in.TxHash] = struct{}{}
			out = append(out, in.TxHash)
		}
	}
	return out
}

func sameEntrySet(a, b []chaintypes.UTXOEntry) bool {
	if len(a) != len(b) {
		return false
	}
	count := make(map[chaintypes.UTXOEntry]int, len(a))
	for _, e := range a {
		count[e]++
	}
	for _, e := range b {
		count[e]--
		if count[e] < 0 {
			return false
		}
	}
	return true
}
