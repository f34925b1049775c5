package leakybucket

import (
	"context"

	errs "github.com/zuub-don/bucketboss/pkg/common/errors"
	"github.com/zuub-don/bucketboss/pkg/common/validation"
	"github.com/zuub-don/bucketboss/pkg/ratelimit/bucket"
	"github.com/zuub-don/bucketboss/pkg/ratelimit/core"
)

// Limiter controls the rate at which events are allowed to happen using a
// leaky bucket algorithm. It enforces a smooth output rate by draining the
// fill level at a fixed interval instead of banking idle time as burst.
type Limiter interface {
	// Allow reports whether one unit may be added now. It does not block.
	Allow() bool

	// AllowN reports whether n units may be added now. It does not block.
	AllowN(n uint64) bool

	// TryAcquire attempts to add n units now. On rejection it returns
	// *core.CapacityError for requests no wait can ever admit,
	// *core.InsufficientError carrying the minimum retry wait, or
	// errs.ErrContention when the update retry budget was exhausted.
	TryAcquire(ctx context.Context, n uint64) error

	// Wait blocks until one unit can be added. It returns an error
	// if the context is canceled or the deadline is exceeded.
	Wait(ctx context.Context) error

	// WaitN blocks until n units can be added. It returns an error
	// if the context is canceled or the deadline is exceeded.
	WaitN(ctx context.Context, n uint64) error

	// Level returns the current fill level of the bucket.
	Level() float64

	// Available returns the remaining space in the bucket.
	Available() float64

	// Capacity returns the maximum fill the bucket can hold.
	Capacity() uint64

	// Rate returns the drain rate.
	Rate() bucket.Limit
}

// Config holds configuration options for creating a new Limiter.
type Config struct {
	// Capacity is the maximum fill the bucket can hold.
	Capacity uint64

	// Rate is the number of units drained per second.
	Rate bucket.Limit

	// Clock provides the current time. If nil, core.SystemClock is used.
	Clock core.Clock

	// State overrides the backing bucket state. If nil, an in-process
	// atomic state is created.
	State core.State

	// InitialLevel is the fill to start with. If negative, starts empty.
	InitialLevel int64
}

// leakyBucket implements Limiter on top of the core.State capability.
type leakyBucket struct {
	capacity  uint64
	capScaled uint64
	rate      bucket.Limit
	clock     core.Clock
	state     core.State
}

// New creates a leaky bucket limiter holding at most capacity units that
// drain at rate units per second, starting empty, using the system clock.
func New(capacity uint64, rate bucket.Limit) (Limiter, error) {
	return NewWithConfig(Config{
		Capacity:     capacity,
		Rate:         rate,
		InitialLevel: -1,
	})
}

// NewWithClock is New with a caller-supplied clock.
func NewWithClock(capacity uint64, rate bucket.Limit, clock core.Clock) (Limiter, error) {
	return NewWithConfig(Config{
		Capacity:     capacity,
		Rate:         rate,
		Clock:        clock,
		InitialLevel: -1,
	})
}

// NewWithConfig creates a new leaky bucket limiter from the full set of
// configuration options.
func NewWithConfig(config Config) (Limiter, error) {
	if err := validation.ValidateNonNegative("leakybucket", "rate", float64(config.Rate)); err != nil {
		return nil, err
	}
	if config.Capacity == 0 {
		return nil, errs.NewValidationError("leakybucket", "capacity", config.Capacity, "must be positive").
			WithHint("capacity bounds how much unprocessed fill the bucket buffers")
	}
	if config.Clock == nil {
		config.Clock = core.SystemClock{}
	}

	lb := &leakyBucket{
		capacity:  config.Capacity,
		capScaled: core.UnitsToLevel(config.Capacity),
		rate:      config.Rate,
		clock:     config.Clock,
		state:     config.State,
	}

	if lb.state == nil {
		var initial uint64
		if config.InitialLevel > 0 {
			initial = uint64(config.InitialLevel)
			if initial > config.Capacity {
				initial = config.Capacity
			}
		}
		lb.state = core.NewAtomicState(config.Clock, core.Snapshot{
			Level:      core.UnitsToLevel(initial),
			LastUpdate: config.Clock.Now(),
		})
	}

	return lb, nil
}
