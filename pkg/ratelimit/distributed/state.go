package distributed

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	errs "github.com/zuub-don/bucketboss/pkg/common/errors"
	"github.com/zuub-don/bucketboss/pkg/ratelimit/core"
)

// redisState implements core.State against a single Redis key holding the
// encoded (level, lastUpdate) pair. Update runs the AdvanceFunc inside a
// WATCH transaction: if another instance commits between the read and the
// EXEC, the transaction fails and is retried with a fresh snapshot, which
// is the distributed analogue of the local CAS loop.
type redisState struct {
	client       redis.UniversalClient
	clock        core.Clock
	key          string
	initialLevel uint64
	timeout      time.Duration
	ttl          time.Duration
	maxRetries   int
}

// NewState creates a Redis-backed core.State for the bucket identified by
// config.Key. InitialLevel seeds the pair the first time the key is seen.
func NewState(config Config, initialLevel uint64) (core.State, error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	config = applyConfigDefaults(config)

	return &redisState{
		client:       config.Redis,
		clock:        config.Clock,
		key:          config.Key,
		initialLevel: initialLevel,
		timeout:      config.RedisTimeout,
		ttl:          config.KeyTTL,
		maxRetries:   config.MaxTxRetries,
	}, nil
}

func (s *redisState) Update(ctx context.Context, fn core.AdvanceFunc) (core.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var committed core.Snapshot
	for i := 0; i < s.maxRetries; i++ {
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			prev, err := s.read(ctx, tx)
			if err != nil {
				return err
			}
			next, err := fn(prev, s.clock.Now())
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, s.key, encodeSnapshot(next), s.ttl)
				return nil
			})
			if err == nil {
				committed = next
			}
			return err
		}, s.key)

		switch {
		case err == nil:
			return committed, nil
		case errors.Is(err, redis.TxFailedErr):
			// Another instance committed first; re-read and recompute.
			continue
		case isRejection(err):
			return core.Snapshot{}, err
		default:
			return core.Snapshot{}, &core.BackendError{Op: "update", Err: err}
		}
	}
	return core.Snapshot{}, errs.ErrContention
}

func (s *redisState) Snapshot(ctx context.Context) (core.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := s.client.Get(ctx, s.key).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return core.Snapshot{Level: s.initialLevel, LastUpdate: s.clock.Now()}, nil
	case err != nil:
		return core.Snapshot{}, &core.BackendError{Op: "snapshot", Err: err}
	}
	return decodeSnapshot(raw)
}

// read loads the pair under the transaction's WATCH so a concurrent write
// invalidates the commit.
func (s *redisState) read(ctx context.Context, tx *redis.Tx) (core.Snapshot, error) {
	raw, err := tx.Get(ctx, s.key).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return core.Snapshot{Level: s.initialLevel, LastUpdate: s.clock.Now()}, nil
	case err != nil:
		return core.Snapshot{}, err
	}
	return decodeSnapshot(raw)
}

// isRejection distinguishes the algorithm's own admission verdicts, which
// must pass through untouched, from store failures.
func isRejection(err error) bool {
	var ins *core.InsufficientError
	var capErr *core.CapacityError
	return errors.As(err, &ins) || errors.As(err, &capErr)
}

// encodeSnapshot renders a pair as "level:lastUpdateUnixNano".
func encodeSnapshot(snap core.Snapshot) string {
	return fmt.Sprintf("%d:%d", snap.Level, snap.LastUpdate.UnixNano())
}

// decodeSnapshot parses the wire form written by encodeSnapshot.
func decodeSnapshot(raw string) (core.Snapshot, error) {
	levelStr, nanosStr, ok := strings.Cut(raw, ":")
	if !ok {
		return core.Snapshot{}, &core.BackendError{Op: "decode", Err: fmt.Errorf("malformed state %q", raw)}
	}
	level, err := strconv.ParseUint(levelStr, 10, 64)
	if err != nil {
		return core.Snapshot{}, &core.BackendError{Op: "decode", Err: err}
	}
	nanos, err := strconv.ParseInt(nanosStr, 10, 64)
	if err != nil {
		return core.Snapshot{}, &core.BackendError{Op: "decode", Err: err}
	}
	return core.Snapshot{Level: level, LastUpdate: time.Unix(0, nanos)}, nil
}
