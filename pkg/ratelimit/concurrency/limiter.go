package concurrency

import (
	"context"
	"sync"

	errs "github.com/zuub-don/bucketboss/pkg/common/errors"
)

// Limiter bounds the number of operations in flight. It acts as a
// counting semaphore with context support and state inspection.
type Limiter interface {
	// Acquire attempts to take one permit. It does not block.
	Acquire() bool

	// AcquireN attempts to take n permits as a unit. It does not block.
	AcquireN(n int) bool

	// Wait blocks until one permit is available. It returns an error if
	// the context is canceled or the deadline is exceeded.
	Wait(ctx context.Context) error

	// WaitN blocks until n permits are available. Requests beyond capacity
	// fail immediately with *core.CapacityError; no wait ever admits them.
	WaitN(ctx context.Context, n int) error

	// Release returns one permit. It panics if more permits are released
	// than were acquired.
	Release()

	// ReleaseN returns n permits. It panics if more permits are released
	// than were acquired.
	ReleaseN(n int)

	// SetCapacity changes the permit ceiling. A reduction below current
	// usage takes effect as operations complete.
	SetCapacity(capacity int)

	// Capacity returns the permit ceiling.
	Capacity() int

	// Available returns the number of permits currently free.
	Available() int

	// InUse returns the number of permits currently held.
	InUse() int
}

// Config holds configuration options for creating a new Limiter.
type Config struct {
	// Capacity is the maximum number of permits held at once.
	Capacity int

	// InitialAvailable is the initial number of free permits.
	// If negative or greater than Capacity, defaults to Capacity.
	InitialAvailable int
}

type permitLimiter struct {
	mu        sync.Mutex
	capacity  int
	available int
	inUse     int
	waiters   []waiter
}

// waiter is a goroutine parked in WaitN until its permits free up.
type waiter struct {
	n      int
	ready  chan struct{}
	cancel <-chan struct{}
}

// New creates a concurrency limiter allowing capacity simultaneous
// operations, all permits initially free.
func New(capacity int) (Limiter, error) {
	return NewWithConfig(Config{
		Capacity:         capacity,
		InitialAvailable: -1,
	})
}

// NewWithConfig creates a new concurrency limiter from the full set of
// configuration options.
func NewWithConfig(config Config) (Limiter, error) {
	if config.Capacity <= 0 {
		return nil, errs.NewValidationError("concurrency", "capacity", config.Capacity, "must be positive").
			WithHint("capacity bounds how many operations run at once")
	}

	available := config.InitialAvailable
	if available < 0 || available > config.Capacity {
		available = config.Capacity
	}

	return &permitLimiter{
		capacity:  config.Capacity,
		available: available,
		inUse:     config.Capacity - available,
	}, nil
}
