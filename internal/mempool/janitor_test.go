package mempool

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/chainforge/nodecore/internal/chaintypes"
	"github.com/chainforge/nodecore/pkg/fixedpoint"
	"github.com/chainforge/nodecore/testutil"
)

type fakeStore struct {
	pending   map[string]chaintypes.PendingEntry
	committed map[string]chaintypes.Transaction
	removed   []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		pending:   make(map[string]chaintypes.PendingEntry),
		committed: make(map[string]chaintypes.Transaction),
	}
}

func (s *fakeStore) GetPendingTransactionsLimit(ctx context.Context, n int) ([]chaintypes.PendingEntry, error) {
	var out []chaintypes.PendingEntry
	for _, e := range s.pending {
		out = append(out, e)
	}
	return out, nil
}

func (s *fakeStore) RemovePendingTransaction(ctx context.Context, hash string) error {
	delete(s.pending, hash)
	s.removed = append(s.removed, hash)
	return nil
}

func (s *fakeStore) GetTransactions(ctx context.Context, hashes []string) (map[string]chaintypes.Transaction, error) {
	out := make(map[string]chaintypes.Transaction)
	for _, h := range hashes {
		if tx, ok := s.committed[h]; ok {
			out[h] = tx
		}
	}
	return out, nil
}

type fakeCodec struct {
	byHex map[string]*testutil.FakeTransaction
}

func (c fakeCodec) Decode(hexPayload string) (chaintypes.Transaction, error) {
	return c.byHex[hexPayload], nil
}

func TestSweep_EvictsFailedVerification(t *testing.T) {
	store := newFakeStore()
	tx := testutil.NewFakeTx("aa", nil, nil, 0)
	tx.VerifyOK = false
	store.pending[tx.Hash()] = chaintypes.PendingEntry{TxHash: tx.Hash(), TxHex: "aa"}

	j := New(store, fakeCodec{byHex: map[string]*testutil.FakeTransaction{"aa": tx}}, zap.NewNop())
	if err := j.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(store.pending) != 0 {
		t.Errorf("pending = %+v, want empty", store.pending)
	}
}

func TestSweep_EvictsAlreadyCommitted(t *testing.T) {
	store := newFakeStore()
	tx := testutil.NewFakeTx("bb", nil, nil, 0)
	store.pending[tx.Hash()] = chaintypes.PendingEntry{TxHash: tx.Hash(), TxHex: "bb"}
	store.committed[tx.Hash()] = tx

	j := New(store, fakeCodec{byHex: map[string]*testutil.FakeTransaction{"bb": tx}}, zap.NewNop())
	if err := j.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(store.pending) != 0 {
		t.Errorf("pending = %+v, want empty", store.pending)
	}
}

func TestSweep_EvictsInputCollisionAndRestarts(t *testing.T) {
	store := newFakeStore()
	sharedInput := chaintypes.TxInput{TxHash: "parent", Index: 0}

	tx1 := testutil.NewFakeTx("cc", []chaintypes.TxInput{sharedInput}, nil, fixedpoint.NewAmount(2, 0))
	tx2 := testutil.NewFakeTx("dd", []chaintypes.TxInput{sharedInput}, nil, fixedpoint.NewAmount(1, 0))
	store.pending[tx1.Hash()] = chaintypes.PendingEntry{TxHash: tx1.Hash(), TxHex: "cc", Fees: tx1.FeeAmount}
	store.pending[tx2.Hash()] = chaintypes.PendingEntry{TxHash: tx2.Hash(), TxHex: "dd", Fees: tx2.FeeAmount}

	j := New(store, fakeCodec{byHex: map[string]*testutil.FakeTransaction{"cc": tx1, "dd": tx2}}, zap.NewNop())
	if err := j.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(store.pending) != 1 {
		t.Fatalf("pending = %+v, want exactly one survivor", store.pending)
	}
}

func TestSweep_CleanPoolTerminatesImmediately(t *testing.T) {
	store := newFakeStore()
	tx := testutil.NewFakeTx("ee", nil, nil, 0)
	store.pending[tx.Hash()] = chaintypes.PendingEntry{TxHash: tx.Hash(), TxHex: "ee"}

	j := New(store, fakeCodec{byHex: map[string]*testutil.FakeTransaction{"ee": tx}}, zap.NewNop())
	if err := j.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(store.pending) != 1 {
		t.Errorf("valid pending entry should survive sweep, got %+v", store.pending)
	}
	if len(store.removed) != 0 {
		t.Errorf("removed = %v, want none", store.removed)
	}
}
