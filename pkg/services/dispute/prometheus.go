package dispute

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics for monitoring service.
var (
	claimsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Help:      "Number of processed claim files by outcome",
			Name:      "claims_processed_total",
			Namespace: "hextrie",
		},
		[]string{"outcome"},
	)
	claimSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Help:      "Size of verified claim files in bytes",
			Name:      "claim_size_bytes",
			Namespace: "hextrie",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 10),
		},
	)
	replayDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Help:      "Claim replay duration in seconds",
			Name:      "replay_duration_seconds",
			Namespace: "hextrie",
			Buckets:   prometheus.DefBuckets,
		},
	)
	spoolBacklog = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Help:      "Number of claim files waiting in the spool directory",
			Name:      "spool_backlog",
			Namespace: "hextrie",
		},
	)
)

func init() {
	prometheus.MustRegister(
		claimsProcessed,
		claimSize,
		replayDuration,
		spoolBacklog,
	)
}

func updateVerifiedClaimMetrics(outcome string, size int, took time.Duration) {
	claimsProcessed.WithLabelValues(outcome).Inc()
	claimSize.Observe(float64(size))
	replayDuration.Observe(took.Seconds())
}

func updateUnreadableClaimMetric() {
	claimsProcessed.WithLabelValues("unreadable").Inc()
}

func updateSpoolBacklogMetric(n int) {
	spoolBacklog.Set(float64(n))
}
