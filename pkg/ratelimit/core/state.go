package core

import (
	"context"
	"sync/atomic"
	"time"

	errs "github.com/zuub-don/bucketboss/pkg/common/errors"
)

// maxCASRetries bounds the compare-and-swap loop so pathological contention
// surfaces as errs.ErrContention instead of live-locking the caller.
const maxCASRetries = 64

// AdvanceFunc computes a candidate successor state from a consistent prior
// snapshot and a freshly sampled now. Returning an error rejects the
// request and commits nothing; the returned snapshot is then ignored.
type AdvanceFunc func(prev Snapshot, now time.Time) (Snapshot, error)

// State is the capability through which the admission algorithms read and
// commit bucket state. Implementations guarantee that concurrent Update
// calls are linearizable: every successful commit observed the previously
// committed snapshot, never a torn or stale pair.
//
// The local implementation ignores ctx since it never blocks; store-backed
// implementations use it to bound the network round trip.
type State interface {
	// Update runs fn against the current snapshot and atomically commits
	// its result. On contention it retries with a fresh snapshot and a
	// fresh now; exhausting the retry budget returns errs.ErrContention.
	// Errors returned by fn pass through unchanged with nothing committed.
	Update(ctx context.Context, fn AdvanceFunc) (Snapshot, error)

	// Snapshot returns the current state pair without modifying it.
	Snapshot(ctx context.Context) (Snapshot, error)
}

// atomicState keeps the (level, lastUpdate) pair behind a single atomic
// pointer. Loading the pointer yields both fields of one committed pair,
// and a pointer CAS publishes a successor only if no other caller won in
// between, which is what makes concurrent admissions linearizable.
type atomicState struct {
	clock Clock
	cur   atomic.Pointer[Snapshot]
}

// NewAtomicState creates the in-process State implementation seeded with
// the given initial snapshot.
func NewAtomicState(clock Clock, initial Snapshot) State {
	s := &atomicState{clock: clock}
	s.cur.Store(&initial)
	return s
}

func (s *atomicState) Update(_ context.Context, fn AdvanceFunc) (Snapshot, error) {
	for i := 0; i < maxCASRetries; i++ {
		old := s.cur.Load()
		next, err := fn(*old, s.clock.Now())
		if err != nil {
			return Snapshot{}, err
		}
		if s.cur.CompareAndSwap(old, &next) {
			return next, nil
		}
		// Lost the race; the winner's snapshot is re-read on the next pass.
	}
	return Snapshot{}, errs.ErrContention
}

func (s *atomicState) Snapshot(_ context.Context) (Snapshot, error) {
	return *s.cur.Load(), nil
}
