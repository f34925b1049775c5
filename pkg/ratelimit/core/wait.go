package core

import (
	"context"
	"errors"
	"time"

	errs "github.com/zuub-don/bucketboss/pkg/common/errors"
)

// contentionBackoff is the pause before re-attempting an acquisition that
// failed with errs.ErrContention rather than an exhausted budget.
const contentionBackoff = 500 * time.Microsecond

// Wait drives the asynchronous acquisition loop shared by the limiters:
// attempt, and on a transient rejection sleep out the reported RetryAfter
// before attempting again. Permanent rejections and backend failures
// return immediately, as does a context deadline that would elapse before
// the next attempt could possibly succeed. Cancellation aborts between
// attempts with ctx.Err() and mutates nothing.
func Wait(ctx context.Context, clock Clock, acquire func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	for {
		err := acquire(ctx)
		if err == nil {
			return nil
		}

		var delay time.Duration
		var ins *InsufficientError
		switch {
		case errors.As(err, &ins):
			if ins.RetryAfter == RetryUnbounded {
				// No replenishment; waiting can never admit this request.
				return context.DeadlineExceeded
			}
			delay = ins.RetryAfter
		case errors.Is(err, errs.ErrContention):
			delay = contentionBackoff
		default:
			// CapacityError, BackendError: waiting does not help.
			return err
		}

		if deadline, ok := ctx.Deadline(); ok && clock.Now().Add(delay).After(deadline) {
			return context.DeadlineExceeded
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
		timer.Stop()
	}
}
