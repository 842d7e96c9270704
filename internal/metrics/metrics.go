package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	MetricAuthDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ipgate", Name: "auth_decisions_total", Help: "Auth gate decisions by flow and outcome"},
		[]string{"flow", "outcome"},
	)
	MetricBlacklistOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ipgate", Name: "blacklist_ops_total", Help: "Blacklist operations by type and outcome"},
		[]string{"op", "outcome"},
	)
	MetricLogWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ipgate", Name: "log_writes_total", Help: "Operation log writes by outcome"},
		[]string{"outcome"},
	)
	MetricHttpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ipgate",
			Name:      "http_duration_seconds",
			Help:      "Latency of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)
	MetricRedisDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ipgate",
			Name:      "redis_op_duration_seconds",
			Help:      "Latency of Redis operations in seconds",
			Buckets:   []float64{.001, .002, .005, .01, .02, .05, .1},
		},
		[]string{"operation"},
	)
)

func init() {
	prometheus.MustRegister(MetricAuthDecisions)
	prometheus.MustRegister(MetricBlacklistOps)
	prometheus.MustRegister(MetricLogWrites)
	prometheus.MustRegister(MetricHttpDuration)
	prometheus.MustRegister(MetricRedisDuration)
}
