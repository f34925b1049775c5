package bucket

import (
	"context"
	"math"
	"time"

	"github.com/zuub-don/bucketboss/pkg/ratelimit/core"
)

// Allow reports whether one unit may be consumed now.
func (tb *tokenBucket) Allow() bool {
	return tb.AllowN(1)
}

// AllowN reports whether n units may be consumed now.
func (tb *tokenBucket) AllowN(n uint64) bool {
	return tb.TryAcquire(context.Background(), n) == nil
}

// TryAcquire attempts to consume n units, committing either the full amount
// or nothing.
func (tb *tokenBucket) TryAcquire(ctx context.Context, n uint64) error {
	if n == 0 {
		return nil
	}
	if n > tb.capacity {
		return &core.CapacityError{Requested: n, Capacity: tb.capacity}
	}
	_, err := tb.state.Update(ctx, tb.advance(n))
	return err
}

// Wait blocks until one unit can be consumed.
func (tb *tokenBucket) Wait(ctx context.Context) error {
	return tb.WaitN(ctx, 1)
}

// WaitN blocks until n units can be consumed. Requests beyond capacity
// fail immediately; no wait ever admits them.
func (tb *tokenBucket) WaitN(ctx context.Context, n uint64) error {
	if n > tb.capacity {
		return &core.CapacityError{Requested: n, Capacity: tb.capacity}
	}
	return core.Wait(ctx, tb.clock, func(ctx context.Context) error {
		return tb.TryAcquire(ctx, n)
	})
}

// Tokens returns the number of units currently available. It reconciles
// the last committed snapshot against elapsed time without consuming.
func (tb *tokenBucket) Tokens() float64 {
	snap, err := tb.state.Snapshot(context.Background())
	if err != nil {
		return 0
	}
	now := tb.clock.Now()
	if now.Before(snap.LastUpdate) {
		now = snap.LastUpdate
	}
	return core.LevelToUnits(refill(snap.Level, now.Sub(snap.LastUpdate), tb.rate, tb.capScaled))
}

// Capacity returns the maximum number of units the bucket can hold.
func (tb *tokenBucket) Capacity() uint64 {
	return tb.capacity
}

// Rate returns the replenish rate.
func (tb *tokenBucket) Rate() Limit {
	return tb.rate
}

// advance builds the admission rule run through the state capability:
// refill from elapsed time, then either consume n units or reject with the
// wait derived from the pre-refill pair actually read.
func (tb *tokenBucket) advance(n uint64) core.AdvanceFunc {
	need := core.UnitsToLevel(n)
	return func(prev core.Snapshot, now time.Time) (core.Snapshot, error) {
		if now.Before(prev.LastUpdate) {
			now = prev.LastUpdate
		}
		elapsed := now.Sub(prev.LastUpdate)
		level := refill(prev.Level, elapsed, tb.rate, tb.capScaled)
		if level >= need {
			return core.Snapshot{Level: level - need, LastUpdate: now}, nil
		}
		return prev, &core.InsufficientError{
			Requested:  n,
			Available:  core.LevelToUnits(level),
			RetryAfter: tb.retryAfter(prev.Level, elapsed, need),
		}
	}
}

// retryAfter computes the minimum wait until need units are covered,
// from the snapshot values read before refill so concurrent commits
// cannot skew the reported wait.
func (tb *tokenBucket) retryAfter(prevLevel uint64, elapsed time.Duration, need uint64) time.Duration {
	if tb.rate <= 0 {
		return core.RetryUnbounded
	}
	deficit := float64(need - prevLevel)
	total := time.Duration(math.Ceil(deficit * float64(time.Second) / (float64(tb.rate) * core.LevelScale)))
	if total <= elapsed {
		return 0
	}
	return total - elapsed
}

// refill reconciles a level against elapsed time, capping at capacity.
func refill(level uint64, elapsed time.Duration, rate Limit, capScaled uint64) uint64 {
	if rate == Inf {
		return capScaled
	}
	if rate <= 0 || elapsed <= 0 {
		return level
	}
	next := level + uint64(elapsed.Seconds()*float64(rate)*core.LevelScale)
	if next < level || next > capScaled {
		return capScaled
	}
	return next
}
