package poller

import "github.com/prometheus/client_golang/prometheus"

// Prometheus poller metrics.
var (
	pollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delfin_poller_polls_total",
			Help: "Total number of array polls by result.",
		},
		[]string{"result"},
	)
	alertsReported = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "delfin_poller_alerts_total",
			Help: "Total number of alerts reported by polling.",
		},
	)
	pollDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "delfin_poller_poll_duration_seconds",
			Help:    "Duration of one array poll in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(pollsTotal)
	prometheus.MustRegister(alertsReported)
	prometheus.MustRegister(pollDuration)
}
