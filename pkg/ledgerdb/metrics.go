package ledgerdb

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ledger database metrics
var (
	mDbOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "oniontoken",
		Subsystem: "ledgerdb",
		Name:      "db_open",
		Help:      "Number of open ledger databases",
	})
	mOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "oniontoken",
		Subsystem: "ledgerdb",
		Name:      "operations_total",
		Help:      "Number of operations submitted to the journal by kind and result",
	}, []string{"kind", "result"})
	mReplayDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "oniontoken",
		Subsystem: "ledgerdb",
		Name:      "replay_duration_seconds",
		Help:      "Time taken to rebuild a ledger from the journal",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
	})
)
