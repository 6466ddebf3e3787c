package chainvalidate

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/chainforge/nodecore/internal/chainerrors"
	"github.com/chainforge/nodecore/internal/chaintypes"
	"github.com/chainforge/nodecore/internal/codec"
	"github.com/chainforge/nodecore/pkg/fixedpoint"
	"github.com/chainforge/nodecore/pkg/hashutil"
)

type fakeUTXO struct {
	present map[chaintypes.UTXOEntry]struct{}
}

func (f *fakeUTXO) GetUnspentOutputs(ctx context.Context, pairs []chaintypes.UTXOEntry) ([]chaintypes.UTXOEntry, error) {
	var out []chaintypes.UTXOEntry
	for _, p := range pairs {
		if _, ok := f.present[p]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeFetcher struct {
	parents map[string]chaintypes.Transaction
}

func (f *fakeFetcher) GetTransactions(ctx context.Context, hashes []string) (map[string]chaintypes.Transaction, error) {
	out := make(map[string]chaintypes.Transaction)
	for _, h := range hashes {
		if tx, ok := f.parents[h]; ok {
			out[h] = tx
		}
	}
	return out, nil
}

type fakeEvictor struct {
	evicted []string
}

func (f *fakeEvictor) RemovePendingTransaction(ctx context.Context, hash string) error {
	f.evicted = append(f.evicted, hash)
	return nil
}

func buildGenesisHeader(t *testing.T, merkleRoot [32]byte, difficultyScaled uint16, timestamp uint32) []byte {
	t.Helper()
	addr := make([]byte, 33)
	addr[0] = 2
	h := &chaintypes.Header{
		Version:       chaintypes.HeaderVersion2,
		MinerAddress:  addr,
		MerkleRoot:    merkleRoot,
		Timestamp:     timestamp,
		DifficultyRaw: difficultyScaled,
	}
	data, err := codec.SerializeHeader(h)
	if err != nil {
		t.Fatalf("SerializeHeader: %v", err)
	}
	return data
}

func newValidator() *Validator {
	return NewValidator(&fakeUTXO{present: map[chaintypes.UTXOEntry]struct{}{}}, &fakeFetcher{}, &fakeEvictor{}, 1<<20, zap.NewNop())
}

func TestValidate_AcceptsEmptyGenesisBlock(t *testing.T) {
	emptyRoot := hashutil.SHA256Raw(nil)
	difficulty := fixedpoint.DifficultyFromFloat(6.0)
	headerBytes := buildGenesisHeader(t, emptyRoot, difficulty.Scaled(), uint32(time.Now().Unix()))

	v := newValidator()
	ok, err := v.Validate(context.Background(), headerBytes, nil, difficulty, chaintypes.BlockRecord{})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !ok {
		t.Fatal("expected acceptance")
	}
}

func TestValidate_RejectsMerkleMismatch(t *testing.T) {
	difficulty := fixedpoint.DifficultyFromFloat(6.0)
	var wrongRoot [32]byte
	wrongRoot[0] = 0xFF
	headerBytes := buildGenesisHeader(t, wrongRoot, difficulty.Scaled(), uint32(time.Now().Unix()))

	v := newValidator()
	ok, err := v.Validate(context.Background(), headerBytes, nil, difficulty, chaintypes.BlockRecord{})
	if ok {
		t.Fatal("expected rejection")
	}
	if !chainerrors.Is(err, chainerrors.CodeMerkleMismatch) {
		t.Fatalf("err = %v, want MerkleMismatch", err)
	}
}

func TestValidate_RejectsDifficultyMismatch(t *testing.T) {
	emptyRoot := hashutil.SHA256Raw(nil)
	headerBytes := buildGenesisHeader(t, emptyRoot, 999, uint32(time.Now().Unix()))

	v := newValidator()
	ok, err := v.Validate(context.Background(), headerBytes, nil, fixedpoint.DifficultyFromFloat(6.0), chaintypes.BlockRecord{})
	if ok {
		t.Fatal("expected rejection")
	}
	if !chainerrors.Is(err, chainerrors.CodeDifficultyMismatch) {
		t.Fatalf("err = %v, want DifficultyMismatch", err)
	}
}

func TestValidate_RejectsPreviousHashMismatch(t *testing.T) {
	emptyRoot := hashutil.SHA256Raw(nil)
	// Difficulty 0 makes the PoW check (step 2) pass for any header, so
	// the linkage check (step 3) is the one that rejects.
	difficulty := fixedpoint.DifficultyFromFloat(0)
	headerBytes := buildGenesisHeader(t, emptyRoot, difficulty.Scaled(), uint32(time.Now().Unix()))

	last := chaintypes.BlockRecord{ID: 5, Hash: "deadbeef", Timestamp: 1}
	v := newValidator()
	ok, err := v.Validate(context.Background(), headerBytes, nil, difficulty, last)
	if ok {
		t.Fatal("expected rejection")
	}
	if !chainerrors.Is(err, chainerrors.CodePreviousHashMismatch) {
		t.Fatalf("err = %v, want PreviousHashMismatch", err)
	}
}

func TestValidate_RejectsFutureTimestamp(t *testing.T) {
	emptyRoot := hashutil.SHA256Raw(nil)
	difficulty := fixedpoint.DifficultyFromFloat(6.0)
	future := uint32(time.Now().Add(24 * time.Hour).Unix())
	headerBytes := buildGenesisHeader(t, emptyRoot, difficulty.Scaled(), future)

	v := newValidator()
	ok, err := v.Validate(context.Background(), headerBytes, nil, difficulty, chaintypes.BlockRecord{})
	if ok {
		t.Fatal("expected rejection")
	}
	if !chainerrors.Is(err, chainerrors.CodeTimestampFuture) {
		t.Fatalf("err = %v, want TimestampFuture", err)
	}
}

func TestValidate_DropsNonTransactionEntries(t *testing.T) {
	emptyRoot := hashutil.SHA256Raw(nil)
	difficulty := fixedpoint.DifficultyFromFloat(6.0)
	headerBytes := buildGenesisHeader(t, emptyRoot, difficulty.Scaled(), uint32(time.Now().Unix()))

	v := newValidator()
	ok, err := v.Validate(context.Background(), headerBytes, []interface{}{"not a transaction", 42}, difficulty, chaintypes.BlockRecord{})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !ok {
		t.Fatal("expected acceptance: non-Transaction entries must be dropped, not fail validation")
	}
}
