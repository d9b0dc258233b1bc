package monitor

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	searchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modl_search_total",
		Help: "Total partition searches by cost model and result",
	}, []string{"model", "result"})

	searchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "modl_search_duration_seconds",
		Help:    "Partition search duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10), // 10us to ~2.6s
	}, []string{"model"})

	cutEvaluations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "modl_cut_evaluations_total",
		Help: "Total cut points evaluated by the hierarchical bisection",
	})

	partsTotal = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "modl_partition_parts",
		Help:    "Number of parts in returned partitions",
		Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 1000},
	})

	importRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "modl_cost_import_rejected_total",
		Help: "Imported cost batches rejected by validation",
	})
)

// SearchStats keeps per-engine counters next to the process-wide prometheus metrics.
type SearchStats struct {
	SearchCount   uint64
	FailureCount  uint64
	EvalCount     uint64
	RejectedCount uint64
}

func NewSearchStats() *SearchStats {
	return &SearchStats{}
}

func (ss *SearchStats) RecordSearch(model string, parts int, elapsed time.Duration) {
	atomic.AddUint64(&ss.SearchCount, 1)
	searchTotal.WithLabelValues(model, "ok").Inc()
	searchDuration.WithLabelValues(model).Observe(elapsed.Seconds())
	partsTotal.Observe(float64(parts))
}

func (ss *SearchStats) RecordFailure(model string) {
	atomic.AddUint64(&ss.FailureCount, 1)
	searchTotal.WithLabelValues(model, "error").Inc()
}

func (ss *SearchStats) RecordEvaluations(n int) {
	atomic.AddUint64(&ss.EvalCount, uint64(n))
	cutEvaluations.Add(float64(n))
}

func (ss *SearchStats) RecordRejectedImport() {
	atomic.AddUint64(&ss.RejectedCount, 1)
	importRejected.Inc()
}

func (ss *SearchStats) GetFailureRatio() float64 {
	searches := atomic.LoadUint64(&ss.SearchCount)
	failures := atomic.LoadUint64(&ss.FailureCount)

	total := searches + failures
	if total == 0 {
		return 0.0
	}
	return float64(failures) / float64(total)
}

// Snapshot returns the counters as plain values.
func (ss *SearchStats) Snapshot() map[string]interface{} {
	return map[string]interface{}{
		"searches":         atomic.LoadUint64(&ss.SearchCount),
		"failures":         atomic.LoadUint64(&ss.FailureCount),
		"cut_evaluations":  atomic.LoadUint64(&ss.EvalCount),
		"rejected_imports": atomic.LoadUint64(&ss.RejectedCount),
		"failure_ratio":    ss.GetFailureRatio(),
	}
}
