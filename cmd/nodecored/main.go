// Command nodecored runs the chain core: storage, block validation,
// chain writing, mempool janitoring, miner submission and metrics, all
// wired against a single boltstore-backed store.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/chainforge/nodecore/internal/address"
	"github.com/chainforge/nodecore/internal/chaintypes"
	"github.com/chainforge/nodecore/internal/chainvalidate"
	"github.com/chainforge/nodecore/internal/chainwriter"
	"github.com/chainforge/nodecore/internal/config"
	"github.com/chainforge/nodecore/internal/difficulty"
	"github.com/chainforge/nodecore/internal/mempool"
	"github.com/chainforge/nodecore/internal/metrics"
	"github.com/chainforge/nodecore/internal/minerapi"
	"github.com/chainforge/nodecore/internal/storage/boltstore"
	"github.com/chainforge/nodecore/internal/storage/txcache"
	"github.com/chainforge/nodecore/internal/txn"
	"github.com/chainforge/nodecore/pkg/fixedpoint"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := run(logger); err != nil {
		logger.Fatal("nodecored exited with error", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	difficulty.StartDifficulty = fixedpoint.DifficultyFromFloat(cfg.StartDifficulty)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return err
	}

	codec := txn.Codec{}
	store, err := boltstore.NewBoltStore(filepath.Join(cfg.DataDir, "nodecore.db"), codec, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	txCache, err := txcache.Open(filepath.Join(cfg.DataDir, "txcache"), logger)
	if err != nil {
		return err
	}
	defer txCache.Close()
	parentFetcher := txcache.NewReadThrough(txCache, store, codec, logger)

	cache := difficulty.NewCache()
	validator := chainvalidate.NewValidator(store, parentFetcher, store, cfg.MaxBlockSizeHex, logger)
	writer := chainwriter.New(store, cache, txnCoinbaseFactory{}, txnAddressCodec{}, nil, logger)
	janitor := mempool.New(store, codec, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go runMetricsServer(ctx, cfg.MetricsListen, logger)
	go runJanitorLoop(ctx, janitor, logger)

	server, err := minerapi.NewServer(cfg.MinerAPIListen, validator, writer, cache, store, store, codec, cfg.SubmissionsPerSec, logger)
	if err != nil {
		return err
	}
	logger.Info("nodecored listening", zap.String("miner_api", cfg.MinerAPIListen), zap.String("metrics", cfg.MetricsListen))
	return server.Serve(ctx)
}

func runMetricsServer(ctx context.Context, addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics server stopped", zap.Error(err))
	}
}

type txnCoinbaseFactory struct{}

func (txnCoinbaseFactory) NewCoinbase(blockHash, minerAddress string, amount fixedpoint.Amount) (chaintypes.Transaction, error) {
	return txn.NewCoinbase(blockHash, minerAddress, amount)
}

type txnAddressCodec struct{}

func (txnAddressCodec) Decode(raw []byte) (string, error) {
	return address.Decode(raw)
}

func runJanitorLoop(ctx context.Context, j *mempool.Janitor, logger *zap.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.Sweep(ctx); err != nil {
				logger.Warn("mempool sweep failed", zap.Error(err))
			}
		}
	}
}
