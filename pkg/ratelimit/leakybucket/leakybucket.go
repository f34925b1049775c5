package leakybucket

import (
	"context"
	"math"
	"time"

	"github.com/zuub-don/bucketboss/pkg/ratelimit/bucket"
	"github.com/zuub-don/bucketboss/pkg/ratelimit/core"
)

// Allow reports whether one unit may be added now.
func (lb *leakyBucket) Allow() bool {
	return lb.AllowN(1)
}

// AllowN reports whether n units may be added now.
func (lb *leakyBucket) AllowN(n uint64) bool {
	return lb.TryAcquire(context.Background(), n) == nil
}

// TryAcquire attempts to add n units, committing either the full amount
// or nothing.
func (lb *leakyBucket) TryAcquire(ctx context.Context, n uint64) error {
	if n == 0 {
		return nil
	}
	if n > lb.capacity {
		return &core.CapacityError{Requested: n, Capacity: lb.capacity}
	}
	_, err := lb.state.Update(ctx, lb.advance(n))
	return err
}

// Wait blocks until one unit can be added.
func (lb *leakyBucket) Wait(ctx context.Context) error {
	return lb.WaitN(ctx, 1)
}

// WaitN blocks until n units can be added. Requests beyond capacity fail
// immediately; no wait ever admits them.
func (lb *leakyBucket) WaitN(ctx context.Context, n uint64) error {
	if n > lb.capacity {
		return &core.CapacityError{Requested: n, Capacity: lb.capacity}
	}
	return core.Wait(ctx, lb.clock, func(ctx context.Context) error {
		return lb.TryAcquire(ctx, n)
	})
}

// Level returns the current fill level, reconciled against elapsed time
// without consuming.
func (lb *leakyBucket) Level() float64 {
	snap, err := lb.state.Snapshot(context.Background())
	if err != nil {
		return 0
	}
	now := lb.clock.Now()
	if now.Before(snap.LastUpdate) {
		now = snap.LastUpdate
	}
	return core.LevelToUnits(drain(snap.Level, now.Sub(snap.LastUpdate), lb.rate))
}

// Available returns the remaining space in the bucket.
func (lb *leakyBucket) Available() float64 {
	return float64(lb.capacity) - lb.Level()
}

// Capacity returns the maximum fill the bucket can hold.
func (lb *leakyBucket) Capacity() uint64 {
	return lb.capacity
}

// Rate returns the drain rate.
func (lb *leakyBucket) Rate() bucket.Limit {
	return lb.rate
}

// advance builds the admission rule run through the state capability:
// drain from elapsed time, then either add n units or reject with the wait
// until enough fill has leaked out.
func (lb *leakyBucket) advance(n uint64) core.AdvanceFunc {
	need := core.UnitsToLevel(n)
	return func(prev core.Snapshot, now time.Time) (core.Snapshot, error) {
		if now.Before(prev.LastUpdate) {
			now = prev.LastUpdate
		}
		elapsed := now.Sub(prev.LastUpdate)
		level := drain(prev.Level, elapsed, lb.rate)
		if level+need <= lb.capScaled {
			return core.Snapshot{Level: level + need, LastUpdate: now}, nil
		}
		return prev, &core.InsufficientError{
			Requested:  n,
			Available:  core.LevelToUnits(lb.capScaled - level),
			RetryAfter: lb.retryAfter(level, need),
		}
	}
}

// retryAfter computes the minimum wait until the overflow beyond capacity
// has drained.
func (lb *leakyBucket) retryAfter(level, need uint64) time.Duration {
	if lb.rate <= 0 {
		return core.RetryUnbounded
	}
	overflow := float64(level + need - lb.capScaled)
	return time.Duration(math.Ceil(overflow * float64(time.Second) / (float64(lb.rate) * core.LevelScale)))
}

// drain reconciles a fill level against elapsed time, flooring at zero.
func drain(level uint64, elapsed time.Duration, rate bucket.Limit) uint64 {
	if rate == bucket.Inf {
		return 0
	}
	if rate <= 0 || elapsed <= 0 {
		return level
	}
	leaked := uint64(elapsed.Seconds() * float64(rate) * core.LevelScale)
	if leaked >= level {
		return 0
	}
	return level - leaked
}
