package difficulty

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/chainforge/nodecore/internal/chaintypes"
	"github.com/chainforge/nodecore/pkg/fixedpoint"
)

func TestHashrateRoundTripCurrent(t *testing.T) {
	for scaled := 60; scaled <= 70; scaled++ {
		d := fixedpoint.Difficulty(scaled)
		hashrate := HashrateCurrent(d)
		got := DifficultyFromHashrateCurrent(hashrate)
		if got != d {
			t.Errorf("difficulty %v: round trip = %v, want %v", d.Float64(), got.Float64(), d.Float64())
		}
	}
}

func TestHashrateRoundTripLegacy(t *testing.T) {
	for scaled := 60; scaled <= 70; scaled++ {
		d := fixedpoint.Difficulty(scaled)
		hashrate := HashrateLegacy(d)
		got := DifficultyFromHashrateLegacy(hashrate)
		if got != d {
			t.Errorf("difficulty %v: round trip = %v, want %v", d.Float64(), got.Float64(), d.Float64())
		}
	}
}

func TestHashrateExactPowerShortcut(t *testing.T) {
	got := DifficultyFromHashrateCurrent(math.Pow(16, 5))
	if got.Float64() != 5 {
		t.Errorf("difficulty = %v, want 5", got.Float64())
	}
}

type fakeReader struct {
	blocks map[uint64]chaintypes.BlockRecord
	lastID uint64
}

func (f *fakeReader) GetLastBlock(ctx context.Context) (chaintypes.BlockRecord, bool, error) {
	if f.lastID == 0 {
		return chaintypes.BlockRecord{}, false, nil
	}
	b, ok := f.blocks[f.lastID]
	return b, ok, nil
}

func (f *fakeReader) GetBlockByID(ctx context.Context, id uint64) (chaintypes.BlockRecord, bool, error) {
	b, ok := f.blocks[id]
	return b, ok, nil
}

func TestRetarget_NoPriorBlock(t *testing.T) {
	r := &fakeReader{blocks: map[uint64]chaintypes.BlockRecord{}}
	d, last, err := Retarget(context.Background(), r)
	if err != nil {
		t.Fatalf("Retarget: %v", err)
	}
	if d != StartDifficulty {
		t.Errorf("difficulty = %v, want start difficulty", d.Float64())
	}
	if !last.IsZero() {
		t.Errorf("last block should be zero value")
	}
}

func TestRetarget_BelowWindow(t *testing.T) {
	r := &fakeReader{
		lastID: 10,
		blocks: map[uint64]chaintypes.BlockRecord{
			10: {ID: 10, Difficulty: fixedpoint.DifficultyFromFloat(7.0), Timestamp: 100},
		},
	}
	d, last, err := Retarget(context.Background(), r)
	if err != nil {
		t.Fatalf("Retarget: %v", err)
	}
	if d != StartDifficulty {
		t.Errorf("difficulty = %v, want start difficulty", d.Float64())
	}
	if last.ID != 10 {
		t.Errorf("last.ID = %d, want 10", last.ID)
	}
}

func TestRetarget_NonBoundaryRetainsDifficulty(t *testing.T) {
	diff := fixedpoint.DifficultyFromFloat(7.3)
	r := &fakeReader{
		lastID: 501,
		blocks: map[uint64]chaintypes.BlockRecord{
			501: {ID: 501, Difficulty: diff, Timestamp: 100000},
		},
	}
	d, _, err := Retarget(context.Background(), r)
	if err != nil {
		t.Fatalf("Retarget: %v", err)
	}
	if d != diff {
		t.Errorf("difficulty = %v, want retained %v", d.Float64(), diff.Float64())
	}
}

func TestRetarget_HalvesAvgTime(t *testing.T) {
	// 500 blocks in half the expected time -> hashrate doubles.
	anchorTS := uint32(1_000_000)
	lastTS := anchorTS + uint32(Window*BlockTime/2)
	startDiff := fixedpoint.DifficultyFromFloat(6.0)
	r := &fakeReader{
		lastID: 500,
		blocks: map[uint64]chaintypes.BlockRecord{
			1:   {ID: 1, Timestamp: anchorTS},
			500: {ID: 500, Difficulty: startDiff, Timestamp: lastTS},
		},
	}
	d, last, err := Retarget(context.Background(), r)
	if err != nil {
		t.Fatalf("Retarget: %v", err)
	}
	if last.ID != 500 {
		t.Fatalf("last.ID = %d, want 500", last.ID)
	}
	// id == 500 <= 17500 so the legacy form converts both ways.
	wantHashrate := HashrateLegacy(startDiff) * 2
	want := fixedpoint.DifficultyFloor(hashrateToDifficultyLegacyFloat(wantHashrate))
	if d != want {
		t.Errorf("difficulty = %v, want %v", d.Float64(), want.Float64())
	}
}

func TestCache_InvalidateForcesRecompute(t *testing.T) {
	r := &fakeReader{blocks: map[uint64]chaintypes.BlockRecord{}}
	c := NewCache()
	d1, _, err := c.Get(context.Background(), r)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	r.lastID = 501
	r.blocks[501] = chaintypes.BlockRecord{ID: 501, Difficulty: fixedpoint.DifficultyFromFloat(9.0), Timestamp: 1}
	d2, _, err := c.Get(context.Background(), r)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if d1 != d2 {
		t.Error("Get should return the cached value until Invalidate is called")
	}
	c.Invalidate()
	d3, _, err := c.Get(context.Background(), r)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if d3 == d1 {
		t.Error("Get after Invalidate should recompute against the new state")
	}
}

var errReaderFailure = errors.New("boom")

type failingReader struct{}

func (failingReader) GetLastBlock(ctx context.Context) (chaintypes.BlockRecord, bool, error) {
	return chaintypes.BlockRecord{}, false, errReaderFailure
}

func (failingReader) GetBlockByID(ctx context.Context, id uint64) (chaintypes.BlockRecord, bool, error) {
	return chaintypes.BlockRecord{}, false, errReaderFailure
}

func TestRetarget_PropagatesStorageError(t *testing.T) {
	_, _, err := Retarget(context.Background(), failingReader{})
	if !errors.Is(err, errReaderFailure) {
		t.Fatalf("err = %v, want %v", err, errReaderFailure)
	}
}
