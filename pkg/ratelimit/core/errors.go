package core

import (
	"fmt"
	"math"
	"time"

	errs "github.com/zuub-don/bucketboss/pkg/common/errors"
)

// RetryUnbounded is the RetryAfter reported when elapsed time alone can
// never admit the request, e.g. a bucket with a zero replenish rate.
const RetryUnbounded = time.Duration(math.MaxInt64)

// CapacityError is a permanent rejection: the request asks for more units
// than the bucket can ever hold. It is never retried internally and
// matches errs.ErrCapacityExceeded via errors.Is.
type CapacityError struct {
	Requested uint64
	Capacity  uint64
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("request of %d units exceeds bucket capacity of %d", e.Requested, e.Capacity)
}

// Is makes errors.Is(err, errs.ErrCapacityExceeded) match.
func (e *CapacityError) Is(target error) bool {
	return target == errs.ErrCapacityExceeded
}

// InsufficientError is a transient rejection: the budget cannot cover the
// request right now. RetryAfter is the minimum wait until the request is
// expected to become admissible. Matches errs.ErrRateLimited via errors.Is.
type InsufficientError struct {
	Requested  uint64
	Available  float64
	RetryAfter time.Duration
}

func (e *InsufficientError) Error() string {
	if e.RetryAfter == RetryUnbounded {
		return fmt.Sprintf("rate limited: requested %d units with %.2f available (no replenishment)", e.Requested, e.Available)
	}
	return fmt.Sprintf("rate limited: requested %d units with %.2f available (retry after %s)", e.Requested, e.Available, e.RetryAfter)
}

// Is makes errors.Is(err, errs.ErrRateLimited) match.
func (e *InsufficientError) Is(target error) bool {
	return target == errs.ErrRateLimited
}

// BackendError reports that a shared backing store could not complete an
// atomic state operation. It is neither an allow nor a deny; the caller's
// fail-open/fail-closed policy decides what to do with it. Matches
// errs.ErrBackendUnavailable via errors.Is.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend %s failed: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, errs.ErrBackendUnavailable) match.
func (e *BackendError) Is(target error) bool {
	return target == errs.ErrBackendUnavailable
}
