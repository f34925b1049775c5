/*
Package bucketboss provides lock-free admission control for Go services:
bounded-time admit/reject decisions against a time-replenished budget.

Rate Limiting (pkg/ratelimit):
  - bucket: Token bucket rate limiter with burst capacity
  - leakybucket: Smooth rate limiting without bursts
  - core: Clock capability, bucket state, and the lock-free update protocol
  - distributed: Multi-instance rate limiting with Redis
  - concurrency: Permit-based limit on operations in flight

Example usage:

	import (
		"context"

		"github.com/zuub-don/bucketboss/pkg/ratelimit/bucket"
	)

	limiter, _ := bucket.New(20, 10) // capacity 20, 10 tokens/sec

	if limiter.Allow() {
		serve(req)
	}

	// Or block until admitted, bounded by the caller's context.
	if err := limiter.WaitN(ctx, 3); err == nil {
		serveBatch(reqs)
	}
*/
package bucketboss
