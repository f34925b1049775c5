package bucket

import (
	"context"
	"math"
	"time"

	errs "github.com/zuub-don/bucketboss/pkg/common/errors"
	"github.com/zuub-don/bucketboss/pkg/common/validation"
	"github.com/zuub-don/bucketboss/pkg/ratelimit/core"
)

// Limit represents a replenish rate in budget units per second.
// A zero Limit never replenishes. Use Inf for unlimited rates.
type Limit float64

// Inf is the infinite rate limit; the bucket is always full.
var Inf = Limit(math.Inf(1))

// Every converts a minimum time interval between events to a Limit.
func Every(interval time.Duration) Limit {
	if interval <= 0 {
		return Inf
	}
	return Limit(time.Second) / Limit(interval)
}

// Limiter controls how frequently events are allowed to happen using a
// token bucket algorithm. The budget refills continuously up to capacity
// and acquiring consumes it, so bursts up to capacity are admitted
// immediately and sustained traffic converges to the configured rate.
type Limiter interface {
	// Allow reports whether one unit may be consumed now. It does not block.
	Allow() bool

	// AllowN reports whether n units may be consumed now. It does not block.
	AllowN(n uint64) bool

	// TryAcquire attempts to consume n units now. On rejection it returns
	// *core.CapacityError for requests no wait can ever admit,
	// *core.InsufficientError carrying the minimum retry wait, or
	// errs.ErrContention when the update retry budget was exhausted.
	TryAcquire(ctx context.Context, n uint64) error

	// Wait blocks until one unit can be consumed. It returns an error
	// if the context is canceled or the deadline is exceeded.
	Wait(ctx context.Context) error

	// WaitN blocks until n units can be consumed. It returns an error
	// if the context is canceled or the deadline is exceeded.
	WaitN(ctx context.Context, n uint64) error

	// Tokens returns the number of units currently available.
	Tokens() float64

	// Capacity returns the maximum number of units the bucket can hold.
	Capacity() uint64

	// Rate returns the replenish rate.
	Rate() Limit
}

// Config holds configuration options for creating a new Limiter.
type Config struct {
	// Capacity is the maximum number of units the bucket can hold.
	Capacity uint64

	// Rate is the number of units replenished per second.
	Rate Limit

	// Clock provides the current time. If nil, core.SystemClock is used.
	Clock core.Clock

	// State overrides the backing bucket state. If nil, an in-process
	// atomic state is created; pkg/ratelimit/distributed supplies a
	// Redis-backed one for cross-instance limits.
	State core.State

	// InitialTokens is the number of units to start with.
	// If negative, starts with full capacity.
	InitialTokens int64
}

// tokenBucket implements Limiter on top of the core.State capability.
type tokenBucket struct {
	capacity  uint64
	capScaled uint64
	rate      Limit
	clock     core.Clock
	state     core.State
}

// New creates a token bucket limiter holding capacity units that refill at
// rate units per second, starting full, using the system clock.
func New(capacity uint64, rate Limit) (Limiter, error) {
	return NewWithConfig(Config{
		Capacity:      capacity,
		Rate:          rate,
		InitialTokens: -1,
	})
}

// NewWithClock is New with a caller-supplied clock, for deterministic
// testing and environments where the system clock is off limits.
func NewWithClock(capacity uint64, rate Limit, clock core.Clock) (Limiter, error) {
	return NewWithConfig(Config{
		Capacity:      capacity,
		Rate:          rate,
		Clock:         clock,
		InitialTokens: -1,
	})
}

// NewWithConfig creates a new token bucket limiter from the full set of
// configuration options.
func NewWithConfig(config Config) (Limiter, error) {
	if err := validation.ValidateNonNegative("bucket", "rate", float64(config.Rate)); err != nil {
		return nil, err
	}
	if config.Capacity == 0 {
		return nil, errs.NewValidationError("bucket", "capacity", config.Capacity, "must be positive").
			WithHint("capacity determines how many units can be consumed in one burst")
	}
	if config.Clock == nil {
		config.Clock = core.SystemClock{}
	}

	tb := &tokenBucket{
		capacity:  config.Capacity,
		capScaled: core.UnitsToLevel(config.Capacity),
		rate:      config.Rate,
		clock:     config.Clock,
		state:     config.State,
	}

	if tb.state == nil {
		initial := config.Capacity
		if config.InitialTokens >= 0 {
			initial = uint64(config.InitialTokens)
			if initial > config.Capacity {
				initial = config.Capacity
			}
		}
		tb.state = core.NewAtomicState(config.Clock, core.Snapshot{
			Level:      core.UnitsToLevel(initial),
			LastUpdate: config.Clock.Now(),
		})
	}

	return tb, nil
}
