package difficulty

import (
	"context"

	"github.com/chainforge/nodecore/internal/chaintypes"
	"github.com/chainforge/nodecore/pkg/fixedpoint"
)

// BlockTime is the target seconds between blocks.
const BlockTime = 180

// Window is the retarget interval, in blocks.
const Window = 500

// StartDifficulty is the difficulty assigned before any retarget has
// enough history to run.
var StartDifficulty = fixedpoint.DifficultyFromFloat(6.0)

// ChainReader is the narrow read port Retarget needs from storage.
type ChainReader interface {
	GetLastBlock(ctx context.Context) (chaintypes.BlockRecord, bool, error)
	GetBlockByID(ctx context.Context, id uint64) (chaintypes.BlockRecord, bool, error)
}

// Retarget computes the difficulty the next candidate block must meet,
// along with the last committed block (the empty BlockRecord if none
// exists yet).
func Retarget(ctx context.Context, reader ChainReader) (fixedpoint.Difficulty, chaintypes.BlockRecord, error) {
	last, ok, err := reader.GetLastBlock(ctx)
	if err != nil {
		return 0, chaintypes.BlockRecord{}, err
	}
	if !ok {
		return StartDifficulty, chaintypes.BlockRecord{}, nil
	}
	if last.ID < Window {
		return StartDifficulty, last, nil
	}
	if last.ID%Window != 0 {
		return last.Difficulty, last, nil
	}

	anchorID := last.ID - Window + 1
	anchor, ok, err := reader.GetBlockByID(ctx, anchorID)
	if err != nil {
		return 0, chaintypes.BlockRecord{}, err
	}
	if !ok {
		return last.Difficulty, last, nil
	}

	elapsed := float64(last.Timestamp) - float64(anchor.Timestamp)
	if elapsed <= 0 {
		elapsed = 1
	}
	avg := elapsed / Window
	ratio := float64(BlockTime) / avg

	var hashrate float64
	if last.ID <= LegacyCutoverHeight {
		hashrate = HashrateLegacy(last.Difficulty)
	} else {
		hashrate = HashrateCurrent(last.Difficulty)
	}
	hashrate *= ratio

	var newDifficultyFloat float64
	if last.ID < LegacyCutoverHeight {
		newDifficultyFloat = hashrateToDifficultyLegacyFloat(hashrate)
	} else {
		newDifficultyFloat = hashrateToDifficultyCurrentFloat(hashrate)
	}

	return fixedpoint.DifficultyFloor(newDifficultyFloat), last, nil
}
