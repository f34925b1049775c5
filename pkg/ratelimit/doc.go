/*
Package ratelimit provides rate limiting primitives for Go applications.

This package offers two interchangeable admission algorithms plus the
machinery they share:

  - bucket: Token bucket rate limiter allowing burst traffic
  - leakybucket: Leaky bucket rate limiter for smooth traffic flow
  - core: Clock capability, bucket state, and the lock-free update protocol
  - distributed: Redis-backed state for multi-instance rate limiting
  - concurrency: Permit-based limit on operations in flight

Token Bucket vs Leaky Bucket:

Token bucket allows controlled bursts and is ideal for interactive applications:

	tokenLimiter, _ := bucket.New(5, 10) // capacity 5, 10 tokens/sec
	if tokenLimiter.Allow() {
		// Process request (allows immediate burst)
	}

Leaky bucket enforces smooth flow and is ideal for traffic shaping:

	leakyLimiter, _ := leakybucket.New(5, 10) // capacity 5, drains 10/sec
	if leakyLimiter.Allow() {
		// Process request (smooth flow, no bursts)
	}

Both limiters support:
  - Synchronous admission with structured rejections (TryAcquire)
  - Context-aware blocking operations (Wait/WaitN)
  - Pluggable clocks for deterministic testing
  - Local atomic state or a shared Redis backend, chosen at construction

Admission decisions complete in bounded time on the caller's goroutine with
no locks held on the hot path. Concurrent callers race for scarce budget;
there is no FIFO fairness. All limiters are safe for concurrent use and
integrate with the context package for cancellation and timeouts.
*/
package ratelimit
