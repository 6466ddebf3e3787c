// Package boltstore is the persistent storage.Store adapter backed by
// go.etcd.io/bbolt: four top-level buckets mirror the four logical
// tables the persisted-state layout calls for (blocks, transactions,
// unspent_outputs, pending_transactions).
package boltstore

import (
	"context"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"
	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/chainforge/nodecore/internal/chainerrors"
	"github.com/chainforge/nodecore/internal/chaintypes"
)

var (
	bucketBlocks   = []byte("blocks")
	bucketBlockIdx = []byte("blocks_by_hash")
	bucketTxs      = []byte("transactions")
	bucketUTXO     = []byte("unspent_outputs")
	bucketPending  = []byte("pending_transactions")
	bucketMeta     = []byte("meta")

	keyLastBlockID = []byte("last_block_id")
)

// Store is a bbolt-backed storage.Store. It does not implement
// TransactionStore's decode-to-chaintypes.Transaction path on its own
// (transactions are an opaque capability, per the data model); callers
// that need typed Transaction values back out of GetTransactions
// supply a Codec.
type Store struct {
	db     *bbolt.DB
	logger *zap.Logger
	codec  Codec
}

// Codec decodes the opaque hex payload persisted alongside a
// transaction back into a chaintypes.Transaction, so GetTransactions
// can return usable values instead of raw bytes.
type Codec interface {
	Decode(hexPayload string) (chaintypes.Transaction, error)
}

// storedTx is the on-disk representation of a committed transaction.
type storedTx struct {
	TxHash     string
	TxHex      string
	BlockHash  string
	InputAddrs []string
	Fees       int64
}

// NewBoltStore opens (creating if necessary) a bbolt database at path
// and ensures every required bucket exists.
func NewBoltStore(path string, codec Codec, logger *zap.Logger) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, chainerrors.Wrap(chainerrors.CodeStorageFailure, "open bolt database", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketBlocks, bucketBlockIdx, bucketTxs, bucketUTXO, bucketPending, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, chainerrors.Wrap(chainerrors.CodeStorageFailure, "initialize buckets", err)
	}

	return &Store{db: db, logger: logger, codec: codec}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func idKey(id uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, id)
	return b
}

func (s *Store) GetLastBlock(ctx context.Context) (chaintypes.BlockRecord, bool, error) {
	var record chaintypes.BlockRecord
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		raw := meta.Get(keyLastBlockID)
		if raw == nil {
			return nil
		}
		id := binary.BigEndian.Uint64(raw)
		blocks := tx.Bucket(bucketBlocks)
		data := blocks.Get(idKey(id))
		if data == nil {
			return nil
		}
		found = true
		return cbor.Unmarshal(data, &record)
	})
	if err != nil {
		return chaintypes.BlockRecord{}, false, chainerrors.Wrap(chainerrors.CodeStorageFailure, "get last block", err)
	}
	return record, found, nil
}

func (s *Store) GetBlockByID(ctx context.Context, id uint64) (chaintypes.BlockRecord, bool, error) {
	var record chaintypes.BlockRecord
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketBlocks).Get(idKey(id))
		if data == nil {
			return nil
		}
		found = true
		return cbor.Unmarshal(data, &record)
	})
	if err != nil {
		return chaintypes.BlockRecord{}, false, chainerrors.Wrap(chainerrors.CodeStorageFailure, "get block by id", err)
	}
	return record, found, nil
}

func (s *Store) AddBlock(ctx context.Context, block chaintypes.BlockRecord) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		blocks := tx.Bucket(bucketBlocks)
		if blocks.Get(idKey(block.ID)) != nil {
			return fmt.Errorf("block id %d already exists", block.ID)
		}
		byHash := tx.Bucket(bucketBlockIdx)
		if byHash.Get([]byte(block.Hash)) != nil {
			return fmt.Errorf("block hash %s already exists", block.Hash)
		}

		data, err := cbor.Marshal(block)
		if err != nil {
			return err
		}
		if err := blocks.Put(idKey(block.ID), data); err != nil {
			return err
		}
		if err := byHash.Put([]byte(block.Hash), idKey(block.ID)); err != nil {
			return err
		}

		meta := tx.Bucket(bucketMeta)
		raw := meta.Get(keyLastBlockID)
		if raw == nil || binary.BigEndian.Uint64(raw) < block.ID {
			return meta.Put(keyLastBlockID, idKey(block.ID))
		}
		return nil
	})
	if err != nil {
		return chainerrors.Wrap(chainerrors.CodeStorageFailure, "add block", err)
	}
	return nil
}

func (s *Store) DeleteBlock(ctx context.Context, id uint64) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		blocks := tx.Bucket(bucketBlocks)
		data := blocks.Get(idKey(id))
		if data == nil {
			return nil
		}
		var record chaintypes.BlockRecord
		if err := cbor.Unmarshal(data, &record); err != nil {
			return err
		}
		if err := blocks.Delete(idKey(id)); err != nil {
			return err
		}
		if err := tx.Bucket(bucketBlockIdx).Delete([]byte(record.Hash)); err != nil {
			return err
		}

		meta := tx.Bucket(bucketMeta)
		raw := meta.Get(keyLastBlockID)
		if raw != nil && binary.BigEndian.Uint64(raw) == id {
			newLast := s.maxBlockIDLocked(tx, id)
			if newLast == 0 {
				return meta.Delete(keyLastBlockID)
			}
			return meta.Put(keyLastBlockID, idKey(newLast))
		}
		return nil
	})
	if err != nil {
		return chainerrors.Wrap(chainerrors.CodeStorageFailure, "delete block", err)
	}
	return nil
}

// maxBlockIDLocked scans the blocks bucket for the highest remaining
// id other than excludeID, called from within an in-flight Update.
func (s *Store) maxBlockIDLocked(tx *bbolt.Tx, excludeID uint64) uint64 {
	var max uint64
	c := tx.Bucket(bucketBlocks).Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		id := binary.BigEndian.Uint64(k)
		if id != excludeID && id > max {
			max = id
		}
	}
	return max
}

func (s *Store) AddTransaction(ctx context.Context, t chaintypes.Transaction, blockHash string) error {
	return s.AddTransactions(ctx, []chaintypes.Transaction{t}, blockHash)
}

func (s *Store) AddTransactions(ctx context.Context, txs []chaintypes.Transaction, blockHash string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketTxs)
		for _, t := range txs {
			// Inputs only carry (hash, index); resolving the spending
			// address needs the parent output, which isn't available here.
			inputAddrs := make([]string, 0)
			stored := storedTx{
				TxHash:     t.Hash(),
				TxHex:      t.Hex(),
				BlockHash:  blockHash,
				InputAddrs: inputAddrs,
				Fees:       int64(t.Fees()),
			}
			data, err := cbor.Marshal(stored)
			if err != nil {
				return err
			}
			if err := bucket.Put([]byte(stored.TxHash), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return chainerrors.Wrap(chainerrors.CodeStorageFailure, "add transactions", err)
	}
	return nil
}

// GetTransactions looks transactions up by tx_hash, not tx_hex.
func (s *Store) GetTransactions(ctx context.Context, hashes []string) (map[string]chaintypes.Transaction, error) {
	out := make(map[string]chaintypes.Transaction, len(hashes))
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketTxs)
		for _, h := range hashes {
			data := bucket.Get([]byte(h))
			if data == nil {
				continue
			}
			var stored storedTx
			if err := cbor.Unmarshal(data, &stored); err != nil {
				return err
			}
			decoded, err := s.codec.Decode(stored.TxHex)
			if err != nil {
				return err
			}
			out[h] = decoded
		}
		return nil
	})
	if err != nil {
		return nil, chainerrors.Wrap(chainerrors.CodeStorageFailure, "get transactions", err)
	}
	return out, nil
}

func (s *Store) GetPendingTransactionsLimit(ctx context.Context, n int) ([]chaintypes.PendingEntry, error) {
	var entries []chaintypes.PendingEntry
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketPending).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var e chaintypes.PendingEntry
			if err := cbor.Unmarshal(v, &e); err != nil {
				return err
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, chainerrors.Wrap(chainerrors.CodeStorageFailure, "get pending transactions", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Fees > entries[j].Fees })
	if n >= 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries, nil
}

func (s *Store) AddPendingTransaction(ctx context.Context, entry chaintypes.PendingEntry) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		data, err := cbor.Marshal(entry)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketPending).Put([]byte(entry.TxHash), data)
	})
	if err != nil {
		return chainerrors.Wrap(chainerrors.CodeStorageFailure, "add pending transaction", err)
	}
	return nil
}

func (s *Store) RemovePendingTransaction(ctx context.Context, hash string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketPending).Delete([]byte(hash))
	})
	if err != nil {
		return chainerrors.Wrap(chainerrors.CodeStorageFailure, "remove pending transaction", err)
	}
	return nil
}

func (s *Store) RemovePendingTransactionsByHash(ctx context.Context, hashes []string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketPending)
		for _, h := range hashes {
			if err := bucket.Delete([]byte(h)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return chainerrors.Wrap(chainerrors.CodeStorageFailure, "remove pending transactions", err)
	}
	return nil
}

func utxoKey(e chaintypes.UTXOEntry) []byte {
	b := make([]byte, len(e.TxHash)+4)
	copy(b, e.TxHash)
	binary.BigEndian.PutUint32(b[len(e.TxHash):], e.Index)
	return b
}

func (s *Store) GetUnspentOutputs(ctx context.Context, pairs []chaintypes.UTXOEntry) ([]chaintypes.UTXOEntry, error) {
	var out []chaintypes.UTXOEntry
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketUTXO)
		for _, p := range pairs {
			if bucket.Get(utxoKey(p)) != nil {
				out = append(out, p)
			}
		}
		return nil
	})
	if err != nil {
		return nil, chainerrors.Wrap(chainerrors.CodeStorageFailure, "get unspent outputs", err)
	}
	return out, nil
}

func (s *Store) AddUnspentOutputs(ctx context.Context, entries []chaintypes.UTXOEntry) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketUTXO)
		for _, e := range entries {
			if err := bucket.Put(utxoKey(e), []byte{1}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return chainerrors.Wrap(chainerrors.CodeStorageFailure, "add unspent outputs", err)
	}
	return nil
}

func (s *Store) RemoveUnspentOutputs(ctx context.Context, entries []chaintypes.UTXOEntry) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketUTXO)
		for _, e := range entries {
			if err := bucket.Delete(utxoKey(e)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return chainerrors.Wrap(chainerrors.CodeStorageFailure, "remove unspent outputs", err)
	}
	return nil
}
