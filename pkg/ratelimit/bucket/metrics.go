package bucket

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/zuub-don/bucketboss/pkg/metrics"
	"github.com/zuub-don/bucketboss/pkg/ratelimit/core"
)

// MetricsLimiter wraps a Limiter with Prometheus metrics collection.
type MetricsLimiter struct {
	limiter  Limiter
	name     string
	registry *metrics.Registry
	enabled  bool
}

// NewWithMetrics creates a token bucket limiter with metrics enabled.
func NewWithMetrics(capacity uint64, rate Limit, name string) (Limiter, error) {
	// Use a separate registry for each metrics-enabled component to avoid conflicts
	registry := prometheus.NewRegistry()
	config := metrics.Config{
		Enabled:  true,
		Registry: registry,
	}

	return NewWithConfigAndMetrics(Config{
		Capacity:      capacity,
		Rate:          rate,
		InitialTokens: -1,
	}, name, config)
}

// NewWithConfigAndMetrics creates a token bucket limiter with custom config and metrics.
func NewWithConfigAndMetrics(config Config, name string, metricsConfig metrics.Config) (Limiter, error) {
	baseLimiter, err := NewWithConfig(config)
	if err != nil {
		return nil, err
	}

	if !metricsConfig.Enabled {
		return baseLimiter, nil
	}

	registry := metrics.DefaultRegistry
	if metricsConfig.Registry != nil {
		registry = metrics.NewRegistry(metricsConfig.Registry)
	}

	return &MetricsLimiter{
		limiter:  baseLimiter,
		name:     name,
		registry: registry,
		enabled:  true,
	}, nil
}

// Allow reports whether one unit may be consumed now.
func (ml *MetricsLimiter) Allow() bool {
	return ml.AllowN(1)
}

// AllowN reports whether n units may be consumed now.
func (ml *MetricsLimiter) AllowN(n uint64) bool {
	return ml.TryAcquire(context.Background(), n) == nil
}

// TryAcquire attempts to consume n units now.
func (ml *MetricsLimiter) TryAcquire(ctx context.Context, n uint64) error {
	if ml.enabled {
		ml.registry.RateLimitRequests.WithLabelValues("token_bucket", ml.name).Add(float64(n))
	}

	err := ml.limiter.TryAcquire(ctx, n)

	if ml.enabled {
		ml.record(err, n)
		ml.registry.RateLimitTokens.WithLabelValues("token_bucket", ml.name).Set(ml.limiter.Tokens())
	}

	return err
}

// record classifies an acquisition outcome: admitted, denied by the
// budget, or failed for reasons unrelated to the budget.
func (ml *MetricsLimiter) record(err error, n uint64) {
	switch {
	case err == nil:
		ml.registry.RateLimitAllowed.WithLabelValues("token_bucket", ml.name).Add(float64(n))
	case isRejection(err):
		ml.registry.RateLimitDenied.WithLabelValues("token_bucket", ml.name).Add(float64(n))
	default:
		ml.registry.RateLimitErrors.WithLabelValues("token_bucket", ml.name).Inc()
	}
}

func isRejection(err error) bool {
	var ins *core.InsufficientError
	var capErr *core.CapacityError
	return errors.As(err, &ins) || errors.As(err, &capErr)
}

// Wait blocks until one unit can be consumed.
func (ml *MetricsLimiter) Wait(ctx context.Context) error {
	return ml.WaitN(ctx, 1)
}

// WaitN blocks until n units can be consumed.
func (ml *MetricsLimiter) WaitN(ctx context.Context, n uint64) error {
	start := time.Now()

	if ml.enabled {
		ml.registry.RateLimitRequests.WithLabelValues("token_bucket", ml.name).Add(float64(n))
	}

	err := ml.limiter.WaitN(ctx, n)

	if ml.enabled {
		duration := time.Since(start)
		ml.registry.RateLimitWaitTime.WithLabelValues("token_bucket", ml.name).Observe(duration.Seconds())
		ml.record(err, n)
		ml.registry.RateLimitTokens.WithLabelValues("token_bucket", ml.name).Set(ml.limiter.Tokens())
	}

	return err
}

// Tokens returns the number of units currently available.
func (ml *MetricsLimiter) Tokens() float64 {
	tokens := ml.limiter.Tokens()

	if ml.enabled {
		ml.registry.RateLimitTokens.WithLabelValues("token_bucket", ml.name).Set(tokens)
	}

	return tokens
}

// Capacity returns the maximum number of units the bucket can hold.
func (ml *MetricsLimiter) Capacity() uint64 {
	return ml.limiter.Capacity()
}

// Rate returns the replenish rate.
func (ml *MetricsLimiter) Rate() Limit {
	return ml.limiter.Rate()
}

// EnableMetrics enables metrics collection.
func (ml *MetricsLimiter) EnableMetrics(config metrics.Config) error {
	ml.enabled = config.Enabled

	if config.Registry != nil {
		ml.registry = metrics.NewRegistry(config.Registry)
	}

	return nil
}

// DisableMetrics disables metrics collection.
func (ml *MetricsLimiter) DisableMetrics() {
	ml.enabled = false
}

// MetricsEnabled returns true if metrics are currently enabled.
func (ml *MetricsLimiter) MetricsEnabled() bool {
	return ml.enabled
}
