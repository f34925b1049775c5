// Package concurrency provides a permit-based limiter that bounds how many
// operations run at the same time.
//
// Where the bucket limiters in this module meter admissions per unit of
// time, the concurrency limiter meters admissions in flight: a caller
// acquires permits before starting work and releases them when done. It is
// the right tool when the scarce resource is simultaneous work rather than
// throughput, such as connection pools or bounded fan-out.
//
// Basic usage:
//
//	limiter, err := concurrency.New(10)
//	if err != nil {
//		// handle configuration error
//	}
//
//	if limiter.Acquire() {
//		defer limiter.Release()
//		// do bounded work
//	}
//
// Wait and WaitN block until permits free up, honoring context
// cancellation. Requests for more permits than the configured capacity
// fail immediately with *core.CapacityError, mirroring the bucket
// limiters.
package concurrency
