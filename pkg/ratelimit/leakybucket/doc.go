/*
Package leakybucket provides leaky bucket rate limiting for Go applications.

A leaky bucket tracks a fill level that drains continuously at a fixed rate.
Acquiring adds to the level and is rejected if the bucket would overflow,
which smooths bursty input into a steady output rate, unlike the token
bucket which admits bursts up front.

Basic usage:

	limiter, _ := leakybucket.New(10, 5) // capacity 10, drains 5 units/sec
	if limiter.Allow() {
		// Process request
	}

The bucket starts empty, so a fresh limiter admits up to capacity
immediately and then throttles to the drain rate. Rejections carry the
minimum wait until enough fill has drained:

	err := limiter.TryAcquire(ctx, 3)
	var ins *core.InsufficientError
	if errors.As(err, &ins) {
		retryTimer.Reset(ins.RetryAfter)
	}

Use token bucket (pkg/ratelimit/bucket) when clients should be able to
spend idle time as burst; use leaky bucket when downstream systems need a
bounded steady intake, such as write paths, outbound API calls, or
traffic shaping.
*/
package leakybucket
