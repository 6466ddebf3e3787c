// Package metrics exposes the chain core's Prometheus gauges and
// counters: chain height, current difficulty, mempool size, UTXO set
// size and commit latency.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ChainHeight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "nodecore",
		Name:      "chain_height",
		Help:      "ID of the last committed block.",
	})

	CurrentDifficulty = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "nodecore",
		Name:      "current_difficulty",
		Help:      "Current retargeted difficulty.",
	})

	MempoolSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "nodecore",
		Name:      "mempool_size",
		Help:      "Number of pending transactions.",
	})

	UTXOSetSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "nodecore",
		Name:      "utxo_set_size",
		Help:      "Number of unspent outputs tracked.",
	})

	BlocksCommitted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "nodecore",
		Name:      "blocks_committed_total",
		Help:      "Total blocks committed by the chain writer.",
	})

	BlocksRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nodecore",
		Name:      "blocks_rejected_total",
		Help:      "Total candidate blocks rejected, by reason code.",
	}, []string{"reason"})

	CommitLatencySeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "nodecore",
		Name:      "commit_latency_seconds",
		Help:      "Wall-clock time spent in the chain writer's commit sequence.",
		Buckets:   prometheus.DefBuckets,
	})

	MempoolEvictions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nodecore",
		Name:      "mempool_evictions_total",
		Help:      "Pending transactions evicted by the janitor, by reason.",
	}, []string{"reason"})
)

func init() {
	prometheus.MustRegister(
		ChainHeight,
		CurrentDifficulty,
		MempoolSize,
		UTXOSetSize,
		BlocksCommitted,
		BlocksRejected,
		CommitLatencySeconds,
		MempoolEvictions,
	)
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
