package chainwriter

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/chainforge/nodecore/internal/chaintypes"
	"github.com/chainforge/nodecore/internal/difficulty"
	"github.com/chainforge/nodecore/internal/storage/memstore"
	"github.com/chainforge/nodecore/pkg/fixedpoint"
	"github.com/chainforge/nodecore/testutil"
)

type fakeCoinbaseFactory struct{}

func (fakeCoinbaseFactory) NewCoinbase(blockHash, minerAddress string, amount fixedpoint.Amount) (chaintypes.Transaction, error) {
	return testutil.NewFakeTx("coinbase:"+blockHash, nil, []chaintypes.TxOutput{{Address: minerAddress, Amount: amount}}, 0), nil
}

type fakeAddressCodec struct{}

func (fakeAddressCodec) Decode(raw []byte) (string, error) {
	return strings.TrimSpace(string(raw)), nil
}

func newTestWriter(t *testing.T) (*Writer, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	cache := difficulty.NewCache()
	w := New(store, cache, fakeCoinbaseFactory{}, fakeAddressCodec{}, nil, zap.NewNop())
	return w, store
}

func TestCommit_FirstBlockAssignsID1(t *testing.T) {
	ctx := context.Background()
	w, store := newTestWriter(t)

	header := &chaintypes.Header{MinerAddress: []byte(" miner1 "), Timestamp: 100}
	block, err := w.Commit(ctx, []byte("header-bytes"), header, nil)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if block.ID != 1 {
		t.Errorf("block.ID = %d, want 1", block.ID)
	}
	if block.Address != "miner1" {
		t.Errorf("block.Address = %q, want trimmed miner1", block.Address)
	}

	last, ok, err := store.GetLastBlock(ctx)
	if err != nil || !ok || last.ID != 1 {
		t.Fatalf("store last block = %+v, ok=%v, err=%v", last, ok, err)
	}
}

func TestCommit_InsertsCoinbaseUTXO(t *testing.T) {
	ctx := context.Background()
	w, store := newTestWriter(t)

	header := &chaintypes.Header{MinerAddress: []byte("miner1"), Timestamp: 100}
	block, err := w.Commit(ctx, []byte("header-bytes"), header, nil)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	coinbaseHash := testutil.NewFakeTx("coinbase:"+block.Hash, nil, nil, 0).Hash()
	got, err := store.GetUnspentOutputs(ctx, []chaintypes.UTXOEntry{{TxHash: coinbaseHash, Index: 0}})
	if err != nil {
		t.Fatalf("GetUnspentOutputs: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("coinbase output not present in UTXO set: %+v", got)
	}
}

func TestCommit_SecondBlockIncrementsID(t *testing.T) {
	ctx := context.Background()
	w, _ := newTestWriter(t)

	header1 := &chaintypes.Header{MinerAddress: []byte("miner1"), Timestamp: 100}
	block1, err := w.Commit(ctx, []byte("header-1"), header1, nil)
	if err != nil {
		t.Fatalf("Commit 1: %v", err)
	}

	header2 := &chaintypes.Header{MinerAddress: []byte("miner1"), Timestamp: 200}
	block2, err := w.Commit(ctx, []byte("header-2"), header2, nil)
	if err != nil {
		t.Fatalf("Commit 2: %v", err)
	}
	if block2.ID != block1.ID+1 {
		t.Errorf("block2.ID = %d, want %d", block2.ID, block1.ID+1)
	}
}

func TestCommit_ConsumesInputsAndPrunesPending(t *testing.T) {
	ctx := context.Background()
	w, store := newTestWriter(t)

	parentEntry := chaintypes.UTXOEntry{TxHash: "parent", Index: 0}
	_ = store.AddUnspentOutputs(ctx, []chaintypes.UTXOEntry{parentEntry})

	tx := testutil.NewFakeTx("spendhex", []chaintypes.TxInput{{TxHash: "parent", Index: 0}}, []chaintypes.TxOutput{{Address: "recipient", Amount: fixedpoint.NewAmount(1, 0)}}, 0)
	_ = store.AddPendingTransaction(ctx, chaintypes.PendingEntry{TxHash: tx.Hash(), Fees: 0})
	header := &chaintypes.Header{MinerAddress: []byte("miner1"), Timestamp: 100}

	if _, err := w.Commit(ctx, []byte("header-bytes"), header, []chaintypes.Transaction{tx}); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	remaining, err := store.GetUnspentOutputs(ctx, []chaintypes.UTXOEntry{parentEntry})
	if err != nil {
		t.Fatalf("GetUnspentOutputs: %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("consumed input still present in UTXO set: %+v", remaining)
	}

	pending, err := store.GetPendingTransactionsLimit(ctx, 10)
	if err != nil {
		t.Fatalf("GetPendingTransactionsLimit: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("committed transaction should have been pruned from pending pool: %+v", pending)
	}
}

var errBoom = errors.New("boom")

func TestCommit_CompensatesOnCoinbaseFailure(t *testing.T) {
	ctx := context.Background()
	cache := difficulty.NewCache()
	inner := memstore.New()
	store := &failingCoinbaseStore{Store: inner}
	w := New(store, cache, fakeCoinbaseFactory{}, fakeAddressCodec{}, nil, zap.NewNop())

	header := &chaintypes.Header{MinerAddress: []byte("miner1"), Timestamp: 100}
	_, err := w.Commit(ctx, []byte("header-bytes"), header, nil)
	if err == nil {
		t.Fatal("expected error from failing coinbase persistence")
	}

	_, ok, _ := inner.GetLastBlock(ctx)
	if ok {
		t.Error("block row should have been compensated away after coinbase failure")
	}
}

type failingCoinbaseStore struct {
	*memstore.Store
}

func (f *failingCoinbaseStore) AddTransaction(ctx context.Context, tx chaintypes.Transaction, blockHash string) error {
	return errBoom
}
