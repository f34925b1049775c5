package concurrency

import (
	"context"

	"github.com/zuub-don/bucketboss/pkg/ratelimit/core"
)

// Acquire attempts to take one permit without blocking.
func (pl *permitLimiter) Acquire() bool {
	return pl.AcquireN(1)
}

// AcquireN attempts to take n permits as a unit without blocking.
func (pl *permitLimiter) AcquireN(n int) bool {
	if n <= 0 {
		return true
	}

	pl.mu.Lock()
	defer pl.mu.Unlock()

	if pl.available >= n {
		pl.available -= n
		pl.inUse += n
		return true
	}
	return false
}

// Wait blocks until one permit is available.
func (pl *permitLimiter) Wait(ctx context.Context) error {
	return pl.WaitN(ctx, 1)
}

// WaitN blocks until n permits are available.
func (pl *permitLimiter) WaitN(ctx context.Context, n int) error {
	if n <= 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	pl.mu.Lock()

	// More permits than could ever exist at once is a permanent rejection,
	// symmetric with the bucket limiters.
	if n > pl.capacity {
		capacity := pl.capacity
		pl.mu.Unlock()
		return &core.CapacityError{Requested: uint64(n), Capacity: uint64(capacity)}
	}

	if pl.available >= n {
		pl.available -= n
		pl.inUse += n
		pl.mu.Unlock()
		return nil
	}

	ready := make(chan struct{})
	pl.waiters = append(pl.waiters, waiter{
		n:      n,
		ready:  ready,
		cancel: ctx.Done(),
	})
	pl.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		pl.removeWaiter(ready)
		select {
		case <-ready:
			// Permits were granted before the waiter could be removed;
			// hand them back so they are not leaked.
			pl.ReleaseN(n)
		default:
		}
		return ctx.Err()
	}
}

// Release returns one permit.
func (pl *permitLimiter) Release() {
	pl.ReleaseN(1)
}

// ReleaseN returns n permits and wakes any waiters they satisfy.
func (pl *permitLimiter) ReleaseN(n int) {
	if n <= 0 {
		return
	}

	pl.mu.Lock()
	defer pl.mu.Unlock()

	if pl.inUse < n {
		panic("concurrency: released more permits than acquired")
	}

	pl.available += n
	pl.inUse -= n
	// A capacity shrink while permits were out leaves a surplus; absorb it
	// here so available+inUse never exceeds capacity.
	if pl.available > pl.capacity-pl.inUse {
		pl.available = pl.capacity - pl.inUse
	}
	pl.notifyWaiters()
}

// SetCapacity changes the permit ceiling.
func (pl *permitLimiter) SetCapacity(capacity int) {
	if capacity <= 0 {
		panic("concurrency: capacity must be positive")
	}

	pl.mu.Lock()
	defer pl.mu.Unlock()

	delta := capacity - pl.capacity
	pl.capacity = capacity

	if delta > 0 {
		pl.available += delta
		pl.notifyWaiters()
	} else if delta < 0 {
		// Available cannot go negative; outstanding permits drain the
		// surplus as they are released.
		pl.available += delta
		if pl.available < 0 {
			pl.available = 0
		}
	}
}

// Capacity returns the permit ceiling.
func (pl *permitLimiter) Capacity() int {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return pl.capacity
}

// Available returns the number of permits currently free.
func (pl *permitLimiter) Available() int {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return pl.available
}

// InUse returns the number of permits currently held.
func (pl *permitLimiter) InUse() int {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return pl.inUse
}

// notifyWaiters hands freed permits to waiters in arrival order, skipping
// canceled ones. Must be called with pl.mu held.
func (pl *permitLimiter) notifyWaiters() {
	var remaining []waiter
	for _, w := range pl.waiters {
		select {
		case <-w.cancel:
			continue
		default:
		}

		if pl.available >= w.n {
			pl.available -= w.n
			pl.inUse += w.n
			close(w.ready)
		} else {
			remaining = append(remaining, w)
		}
	}
	pl.waiters = remaining
}

// removeWaiter drops a canceled waiter so its slot cannot absorb permits.
func (pl *permitLimiter) removeWaiter(ready chan struct{}) {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	var remaining []waiter
	for _, w := range pl.waiters {
		if w.ready != ready {
			remaining = append(remaining, w)
		}
	}
	pl.waiters = remaining
}
