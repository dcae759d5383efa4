// Package metrics exposes satindex's prometheus gauges and histograms,
// following the promauto registration style of the example pack's own
// metrics packages.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// IndexedHeight is the last height successfully applied to the store.
	IndexedHeight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "satindex_indexed_height",
		Help: "Height of the most recently indexed block",
	})

	// NodeTipHeight is the upstream node's best height, as last observed.
	NodeTipHeight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "satindex_node_tip_height",
		Help: "Best height last reported by the upstream node",
	})

	// BatchDuration times one coordinator write transaction (§4.F step 3-4).
	BatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "satindex_batch_duration_seconds",
		Help:    "Duration of one coordinator batch-apply transaction",
		Buckets: prometheus.DefBuckets,
	})

	// ReorgDepth records how many blocks were rolled back per detected
	// reorganization (§4.E).
	ReorgDepth = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "satindex_reorg_depth_blocks",
		Help:    "Number of blocks disconnected per reorg rollback",
		Buckets: []float64{1, 2, 3, 6, 12, 24, 50, 100},
	})

	// OutputsIndexed mirrors the STATISTICS.OutputsIndexed counter (§3).
	OutputsIndexed = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "satindex_outputs_indexed_total",
		Help: "Cumulative output rows written, including ones later spent or displaced",
	})

	// DestroyedTotal mirrors the STATISTICS.DestroyedTotal counter (§3).
	DestroyedTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "satindex_destroyed_total",
		Help: "Cumulative base units destroyed by subsidy underpayment or duplicate-txid displacement",
	})
)

// Serve starts a blocking HTTP server exposing /metrics on addr.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
