package aggregator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	aggregationCycles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsdeck_aggregation_cycles_total",
		Help: "The total number of completed aggregation cycles",
	})

	sourceFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsdeck_source_fetches_total",
		Help: "Per-source fetch outcomes",
	}, []string{"outcome"})

	sourceFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "newsdeck_source_fetch_duration_seconds",
		Help:    "Duration of individual source fetches, including timeouts",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms .. ~25s
	})

	aggregatedArticles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "newsdeck_aggregation_articles",
		Help: "Number of articles in the most recent aggregation report",
	})
)
