package pgsql

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	promQueryDurationMilliseconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "aitestagent_pgsql_query_duration_milliseconds",
		Help:    "Time it takes to execute the database query.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	}, []string{"query", "subquery"})
)

func init() {
	prometheus.MustRegister(promQueryDurationMilliseconds)
}

// observeQueryTime computes the time elapsed since `start` to represent the
// query time.
// 1. Use `defer observeQueryTime` to record compound query time
// 2. Use `observeQueryTime` with `start` to record part of a compound query
func observeQueryTime(query, subquery string, start time.Time) {
	promQueryDurationMilliseconds.
		WithLabelValues(query, subquery).
		Observe(float64(time.Since(start).Nanoseconds()) / float64(time.Millisecond))
}
