package distributed

import (
	"time"

	"github.com/redis/go-redis/v9"

	errs "github.com/zuub-don/bucketboss/pkg/common/errors"
	"github.com/zuub-don/bucketboss/pkg/common/validation"
	"github.com/zuub-don/bucketboss/pkg/ratelimit/bucket"
	"github.com/zuub-don/bucketboss/pkg/ratelimit/core"
	"github.com/zuub-don/bucketboss/pkg/ratelimit/leakybucket"
)

// Config holds configuration for Redis-backed limiters.
type Config struct {
	// Redis client used for coordination.
	Redis redis.UniversalClient

	// Key is the Redis key identifying this bucket. Instances sharing the
	// key share the budget.
	Key string

	// Capacity is the maximum number of units the bucket can hold.
	Capacity uint64

	// Rate is the replenish (token bucket) or drain (leaky bucket) rate
	// in units per second, shared across all instances.
	Rate bucket.Limit

	// Clock provides the current time. If nil, core.SystemClock is used.
	// All instances should run clocks that agree to within the tolerance
	// the budget can absorb.
	Clock core.Clock

	// RedisTimeout bounds each store round trip (default 500ms).
	RedisTimeout time.Duration

	// KeyTTL is how long the bucket key lives without traffic (default 1h).
	KeyTTL time.Duration

	// MaxTxRetries bounds the optimistic-transaction retry loop before an
	// update surfaces errs.ErrContention (default 16).
	MaxTxRetries int
}

// validateConfig validates the limiter configuration.
func validateConfig(config Config) error {
	if config.Redis == nil {
		return errs.NewValidationError("distributed", "redis", nil, "client is required")
	}
	if err := validation.ValidateNotEmpty("distributed", "key", config.Key); err != nil {
		return err
	}
	if err := validation.ValidateNonNegative("distributed", "rate", float64(config.Rate)); err != nil {
		return err
	}
	if config.Capacity == 0 {
		return errs.NewValidationError("distributed", "capacity", config.Capacity, "must be positive")
	}
	return nil
}

// applyConfigDefaults sets default values for unspecified config fields.
func applyConfigDefaults(config Config) Config {
	if config.Clock == nil {
		config.Clock = core.SystemClock{}
	}
	if config.RedisTimeout == 0 {
		config.RedisTimeout = 500 * time.Millisecond
	}
	if config.KeyTTL == 0 {
		config.KeyTTL = time.Hour
	}
	if config.MaxTxRetries == 0 {
		config.MaxTxRetries = 16
	}
	return config
}

// NewTokenBucket creates a token bucket limiter whose state lives in Redis,
// so every instance constructed with the same key draws from one budget.
// The shared bucket starts full.
func NewTokenBucket(config Config) (bucket.Limiter, error) {
	st, err := NewState(config, core.UnitsToLevel(config.Capacity))
	if err != nil {
		return nil, err
	}
	config = applyConfigDefaults(config)
	return bucket.NewWithConfig(bucket.Config{
		Capacity: config.Capacity,
		Rate:     config.Rate,
		Clock:    config.Clock,
		State:    st,
	})
}

// NewLeakyBucket creates a leaky bucket limiter whose state lives in Redis.
// The shared bucket starts empty.
func NewLeakyBucket(config Config) (leakybucket.Limiter, error) {
	st, err := NewState(config, 0)
	if err != nil {
		return nil, err
	}
	config = applyConfigDefaults(config)
	return leakybucket.NewWithConfig(leakybucket.Config{
		Capacity: config.Capacity,
		Rate:     config.Rate,
		Clock:    config.Clock,
		State:    st,
	})
}
