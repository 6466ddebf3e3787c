// Package config loads the chain core's runtime parameters from its
// environment. It is the one component in this repository built
// directly on the standard library rather than a third-party config
// framework: the process environment is the whole configuration
// surface here, and nothing in the example pack reaches for a
// structured config loader (viper, envconfig, koanf) for a knob count
// this small, so os.Getenv stays the honest choice.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds every constant a deployment may need to override: the
// block cadence, the retarget window, the genesis difficulty, the
// maximum circulating supply and the storage/listen paths.
// BlockTimeSeconds, BlocksCount and MaxSupply are parsed but not applied:
// the retarget and reward code use their own package constants
// (difficulty.BlockTime, difficulty.Window, reward.MaxSupply).
type Config struct {
	BlockTimeSeconds int
	BlocksCount      int
	StartDifficulty  float64
	MaxSupply        int64
	MaxBlockSizeHex  int

	DataDir          string
	MetricsListen    string
	MinerAPIListen   string
	SubmissionsPerSec float64
}

// Default returns the parameter set the reference deployment ("Denaro
// mainnet" in the upstream terms) uses.
func Default() Config {
	return Config{
		BlockTimeSeconds:  180,
		BlocksCount:       500,
		StartDifficulty:   6.0,
		MaxSupply:         30_062_005,
		MaxBlockSizeHex:   1 << 21,
		DataDir:           "./data",
		MetricsListen:     ":9090",
		MinerAPIListen:    ":3006",
		SubmissionsPerSec: 5,
	}
}

// FromEnv overlays environment variables onto Default, returning an
// error if a set variable fails to parse.
func FromEnv() (Config, error) {
	cfg := Default()

	if err := overlayInt(&cfg.BlockTimeSeconds, "BLOCK_TIME"); err != nil {
		return Config{}, err
	}
	if err := overlayInt(&cfg.BlocksCount, "BLOCKS_COUNT"); err != nil {
		return Config{}, err
	}
	if err := overlayFloat(&cfg.StartDifficulty, "START_DIFFICULTY"); err != nil {
		return Config{}, err
	}
	if err := overlayInt64(&cfg.MaxSupply, "MAX_SUPPLY"); err != nil {
		return Config{}, err
	}
	if err := overlayInt(&cfg.MaxBlockSizeHex, "MAX_BLOCK_SIZE_HEX"); err != nil {
		return Config{}, err
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("METRICS_LISTEN"); v != "" {
		cfg.MetricsListen = v
	}
	if v := os.Getenv("MINER_API_LISTEN"); v != "" {
		cfg.MinerAPIListen = v
	}
	if err := overlayFloat(&cfg.SubmissionsPerSec, "SUBMISSIONS_PER_SEC"); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func overlayInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = n
	return nil
}

func overlayInt64(dst *int64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = n
	return nil
}

func overlayFloat(dst *float64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = f
	return nil
}
