/*
Package distributed provides a Redis-backed bucket state so multiple
application instances enforce one shared rate limit instead of per-instance
limits.

It implements the same core.State capability the in-process limiters use:
the algorithm's AdvanceFunc runs inside a Redis optimistic transaction
(WATCH/MULTI/EXEC), so the compare-and-commit that keeps concurrent
admissions linearizable is pushed into the store's own atomicity guarantee.
Algorithm code in pkg/ratelimit/bucket and pkg/ratelimit/leakybucket is
reused unchanged.

Basic usage:

	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})

	limiter, err := distributed.NewTokenBucket(distributed.Config{
		Redis:    rdb,
		Key:      "api_limiter",
		Capacity: 200,
		Rate:     100, // 100 units per second, shared across instances
	})
	if err != nil {
		log.Fatal(err)
	}

	if err := limiter.TryAcquire(ctx, 1); err == nil {
		// Process request
	}

Failure semantics: a Redis that cannot be reached surfaces as
*core.BackendError (errors.Is(err, errs.ErrBackendUnavailable)), which is
neither an allow nor a deny. Whether to fail open or fail closed on that
ambiguity is the caller's policy:

	err := limiter.TryAcquire(ctx, 1)
	switch {
	case err == nil:
		serve(req)
	case errors.Is(err, errs.ErrBackendUnavailable):
		serve(req) // fail open; or reject(req) to fail closed
	default:
		reject(req)
	}

A transaction that keeps losing to concurrent writers surfaces as
errs.ErrContention after the bounded retry budget, distinct from both
rejection and backend failure.
*/
package distributed
