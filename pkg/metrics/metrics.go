// Package metrics provides Prometheus instrumentation for bucketboss limiters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all metric instances for bucketboss components.
type Registry struct {
	RateLimitRequests *prometheus.CounterVec
	RateLimitAllowed  *prometheus.CounterVec
	RateLimitDenied   *prometheus.CounterVec
	RateLimitErrors   *prometheus.CounterVec
	RateLimitWaitTime *prometheus.HistogramVec
	RateLimitTokens   *prometheus.GaugeVec

	ConcurrencyActive  *prometheus.GaugeVec
	ConcurrencyWaiting *prometheus.GaugeVec
}

// DefaultRegistry is the default metrics registry used by bucketboss components.
var DefaultRegistry *Registry

func init() {
	DefaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)

	return &Registry{
		RateLimitRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bucketboss",
				Subsystem: "ratelimit",
				Name:      "requests_total",
				Help:      "Total number of rate limit requests",
			},
			[]string{"limiter_type", "limiter_name"},
		),

		RateLimitAllowed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bucketboss",
				Subsystem: "ratelimit",
				Name:      "allowed_total",
				Help:      "Total number of allowed requests",
			},
			[]string{"limiter_type", "limiter_name"},
		),

		RateLimitDenied: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bucketboss",
				Subsystem: "ratelimit",
				Name:      "denied_total",
				Help:      "Total number of denied requests",
			},
			[]string{"limiter_type", "limiter_name"},
		),

		RateLimitErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bucketboss",
				Subsystem: "ratelimit",
				Name:      "errors_total",
				Help:      "Total number of requests that failed without an admission decision",
			},
			[]string{"limiter_type", "limiter_name"},
		),

		RateLimitWaitTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "bucketboss",
				Subsystem: "ratelimit",
				Name:      "wait_duration_seconds",
				Help:      "Time spent waiting for rate limit approval",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"limiter_type", "limiter_name"},
		),

		RateLimitTokens: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "bucketboss",
				Subsystem: "ratelimit",
				Name:      "tokens_available",
				Help:      "Number of budget units currently available",
			},
			[]string{"limiter_type", "limiter_name"},
		),

		ConcurrencyActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "bucketboss",
				Subsystem: "concurrency",
				Name:      "active",
				Help:      "Number of permits currently held",
			},
			[]string{"limiter_name"},
		),

		ConcurrencyWaiting: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "bucketboss",
				Subsystem: "concurrency",
				Name:      "waiting",
				Help:      "Number of goroutines waiting for permits",
			},
			[]string{"limiter_name"},
		),
	}
}
