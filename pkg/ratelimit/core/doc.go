/*
Package core holds the shared machinery of the bucket rate limiters: the
Clock capability, the bucket state snapshot, the lock-free update protocol,
and the error taxonomy returned to callers.

Both the token bucket (pkg/ratelimit/bucket) and the leaky bucket
(pkg/ratelimit/leakybucket) express their admission rule as an AdvanceFunc
and run it through a State implementation. The local implementation keeps
the (level, lastUpdate) pair behind a single atomic pointer and commits
candidate snapshots with a bounded compare-and-swap loop; the Redis-backed
implementation in pkg/ratelimit/distributed runs the same AdvanceFunc inside
the store's own atomic transaction. Algorithm code is written once against
the capability and never cares which backing it got.

Level values are fixed-point integers with LevelScale sub-unit resolution,
so a whole snapshot stays word-sized-comparable and refill arithmetic never
depends on float equality under concurrent commits.
*/
package core
