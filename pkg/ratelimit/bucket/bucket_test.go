package bucket

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zuub-don/bucketboss/internal/testutil"
	errs "github.com/zuub-don/bucketboss/pkg/common/errors"
	"github.com/zuub-don/bucketboss/pkg/ratelimit/core"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		capacity uint64
		rate     Limit
		wantErr  bool
	}{
		{"valid parameters", 5, 10, false},
		{"zero rate", 5, 0, false},
		{"infinite rate", 5, Inf, false},
		{"negative rate", 5, -1, true},
		{"zero capacity", 0, 10, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter, err := New(tt.capacity, tt.rate)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error for invalid parameters")
				}
				if !errors.Is(err, errs.ErrInvalidConfiguration) {
					t.Errorf("error should match ErrInvalidConfiguration, got %v", err)
				}
				if limiter != nil {
					t.Error("expected nil limiter on error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			testutil.AssertEqual(t, limiter.Capacity(), tt.capacity)
			testutil.AssertEqual(t, limiter.Rate(), tt.rate)
			testutil.AssertEqual(t, limiter.Tokens(), float64(tt.capacity))
		})
	}
}

func TestEvery(t *testing.T) {
	tests := []struct {
		name     string
		interval time.Duration
		want     Limit
	}{
		{"100ms", 100 * time.Millisecond, 10},
		{"1s", time.Second, 1},
		{"2s", 2 * time.Second, 0.5},
		{"zero", 0, Inf},
		{"negative", -time.Second, Inf},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Every(tt.interval)
			if math.IsInf(float64(tt.want), 1) {
				if !math.IsInf(float64(got), 1) {
					t.Errorf("Every(%v) = %v, want Inf", tt.interval, got)
				}
			} else {
				if math.Abs(float64(got-tt.want)) > 1e-10 {
					t.Errorf("Every(%v) = %v, want %v", tt.interval, got, tt.want)
				}
			}
		})
	}
}

func TestAllow(t *testing.T) {
	clock := testutil.NewMockClock(time.Now())
	limiter, err := NewWithClock(5, 10, clock)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Full burst is admitted immediately.
	for i := 0; i < 5; i++ {
		if !limiter.Allow() {
			t.Errorf("request %d should be allowed", i+1)
		}
	}

	// 6th request is denied (bucket empty).
	if limiter.Allow() {
		t.Error("6th request should be denied")
	}

	// After 100ms one token refills (10 tokens/sec).
	clock.Advance(100 * time.Millisecond)
	if !limiter.Allow() {
		t.Error("request after 100ms should be allowed")
	}

	if limiter.Allow() {
		t.Error("immediate request after consuming refilled token should be denied")
	}
}

func TestAllowN(t *testing.T) {
	clock := testutil.NewMockClock(time.Now())
	limiter, err := NewWithClock(10, 10, clock)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !limiter.AllowN(3) {
		t.Error("AllowN(3) should succeed with 10 tokens available")
	}
	testutil.AssertEqual(t, limiter.Tokens(), 7.0)

	if !limiter.AllowN(7) {
		t.Error("AllowN(7) should succeed with 7 tokens available")
	}
	testutil.AssertEqual(t, limiter.Tokens(), 0.0)

	if limiter.AllowN(1) {
		t.Error("AllowN(1) should fail with empty bucket")
	}
}

func TestTryAcquireExceedsCapacity(t *testing.T) {
	clock := testutil.NewMockClock(time.Now())
	limiter, err := NewWithClock(10, 10, clock)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := limiter.TryAcquire(context.Background(), 1); err != nil {
		t.Fatalf("TryAcquire(1) should succeed: %v", err)
	}

	// Oversized requests are permanent rejections regardless of elapsed time.
	for _, advance := range []time.Duration{0, time.Second, time.Hour} {
		clock.Advance(advance)
		err := limiter.TryAcquire(context.Background(), 20)
		if !errors.Is(err, errs.ErrCapacityExceeded) {
			t.Fatalf("TryAcquire(20) = %v, want ErrCapacityExceeded", err)
		}
		if errors.Is(err, errs.ErrRateLimited) {
			t.Error("oversized request must never look like a transient rejection")
		}
		var capErr *core.CapacityError
		if !errors.As(err, &capErr) {
			t.Fatal("expected *core.CapacityError")
		}
		testutil.AssertEqual(t, capErr.Requested, uint64(20))
		testutil.AssertEqual(t, capErr.Capacity, uint64(10))
	}
}

func TestRefillAfterDrain(t *testing.T) {
	clock := testutil.NewMockClock(time.Now())
	limiter, err := NewWithClock(10, 10, clock)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !limiter.AllowN(10) {
		t.Fatal("initial burst of 10 should be admitted")
	}

	// 0.5s at 10 tokens/sec refills exactly 5 tokens.
	clock.Advance(500 * time.Millisecond)
	if err := limiter.TryAcquire(context.Background(), 5); err != nil {
		t.Fatalf("TryAcquire(5) after 0.5s should succeed: %v", err)
	}
	testutil.AssertEqual(t, limiter.Tokens(), 0.0)
}

func TestRetryAfter(t *testing.T) {
	clock := testutil.NewMockClock(time.Now())
	limiter, err := NewWithClock(10, 10, clock)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !limiter.AllowN(10) {
		t.Fatal("initial burst should be admitted")
	}

	rejection := limiter.TryAcquire(context.Background(), 5)
	var ins *core.InsufficientError
	if !errors.As(rejection, &ins) {
		t.Fatalf("expected InsufficientError, got %v", rejection)
	}
	testutil.AssertEqual(t, ins.Requested, uint64(5))
	if ins.RetryAfter != 500*time.Millisecond {
		t.Errorf("RetryAfter = %v, want 500ms", ins.RetryAfter)
	}

	// Retrying after exactly RetryAfter succeeds with no other consumers.
	clock.Advance(ins.RetryAfter)
	if err := limiter.TryAcquire(context.Background(), 5); err != nil {
		t.Errorf("retry after RetryAfter should succeed: %v", err)
	}
}

func TestConservation(t *testing.T) {
	clock := testutil.NewMockClock(time.Now())
	limiter, err := NewWithClock(10, 10, clock)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 100 attempts spaced 10ms apart: the last lands at t=0.99s, so the
	// conservation ceiling is capacity 10 plus 9.9 refilled tokens. The
	// burst plus one admission per refilled token is 19, never 20.
	admitted := 0
	for i := 0; i < 100; i++ {
		if limiter.Allow() {
			admitted++
		}
		clock.Advance(10 * time.Millisecond)
	}
	testutil.AssertEqual(t, admitted, 19)

	// One more 10ms step completes the 100ms since the 19th admission.
	clock.Advance(10 * time.Millisecond)
	if !limiter.Allow() {
		t.Error("20th admission should succeed after the next full token accrues")
	}
}

func TestZeroRate(t *testing.T) {
	clock := testutil.NewMockClock(time.Now())
	limiter, err := NewWithClock(3, 0, clock)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Initial tokens are usable; nothing ever refills.
	if !limiter.AllowN(3) {
		t.Fatal("initial tokens should be usable at zero rate")
	}
	clock.Advance(time.Hour)
	rejection := limiter.TryAcquire(context.Background(), 1)
	var ins *core.InsufficientError
	if !errors.As(rejection, &ins) {
		t.Fatalf("expected InsufficientError, got %v", rejection)
	}
	if ins.RetryAfter != core.RetryUnbounded {
		t.Errorf("RetryAfter = %v, want RetryUnbounded", ins.RetryAfter)
	}
}

func TestInfiniteRate(t *testing.T) {
	clock := testutil.NewMockClock(time.Now())
	limiter, err := NewWithClock(5, Inf, clock)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 50; i++ {
		if !limiter.AllowN(5) {
			t.Fatalf("AllowN(5) should always succeed at infinite rate (iteration %d)", i)
		}
	}
	testutil.AssertEqual(t, limiter.Tokens(), 5.0)

	if !errors.Is(limiter.TryAcquire(context.Background(), 6), errs.ErrCapacityExceeded) {
		t.Error("infinite rate must still reject requests over capacity")
	}
}

func TestInitialTokens(t *testing.T) {
	clock := testutil.NewMockClock(time.Now())
	limiter, err := NewWithConfig(Config{
		Capacity:      10,
		Rate:          1,
		Clock:         clock,
		InitialTokens: 3,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	testutil.AssertEqual(t, limiter.Tokens(), 3.0)
	if !limiter.AllowN(3) {
		t.Error("initial 3 tokens should be usable")
	}
	if limiter.Allow() {
		t.Error("4th token should not exist yet")
	}
}

func TestClockRegression(t *testing.T) {
	start := time.Now()
	clock := testutil.NewMockClock(start)
	limiter, err := NewWithClock(10, 10, clock)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !limiter.AllowN(10) {
		t.Fatal("initial burst should be admitted")
	}

	// A regressing clock must clamp to no refill, not corrupt the level.
	clock.Set(start.Add(-time.Hour))
	if limiter.Allow() {
		t.Error("no tokens should refill when the clock goes backwards")
	}
	tokens := limiter.Tokens()
	if tokens != 0 {
		t.Errorf("Tokens() = %v, want 0 after clock regression", tokens)
	}
}

func TestConcurrentExactBudget(t *testing.T) {
	clock := testutil.NewMockClock(time.Now())
	limiter, err := NewWithClock(100, 0, clock)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for limiter.Allow() {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	// With no refill the budget is exact: 100 admissions, not one more.
	testutil.AssertEqual(t, admitted.Load(), int64(100))
	testutil.AssertEqual(t, limiter.Tokens(), 0.0)
}

func TestWaitN(t *testing.T) {
	limiter, err := New(10, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !limiter.AllowN(10) {
		t.Fatal("initial burst should be admitted")
	}

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	// One token refills in 10ms at rate 100.
	if err := limiter.WaitN(ctx, 1); err != nil {
		t.Errorf("WaitN(1) should succeed within the refill window: %v", err)
	}
}

func TestWaitNTimesOut(t *testing.T) {
	clock := testutil.NewMockClock(time.Now())
	limiter, err := NewWithClock(10, 1, clock)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !limiter.AllowN(10) {
		t.Fatal("initial burst should be admitted")
	}

	// Refilling 5 tokens takes 5s; a 50ms deadline can never cover it.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	werr := limiter.WaitN(ctx, 5)
	if !errors.Is(werr, context.DeadlineExceeded) {
		t.Errorf("WaitN = %v, want DeadlineExceeded", werr)
	}
	if time.Since(start) > time.Second {
		t.Error("WaitN should fail fast instead of sleeping out an unreachable deadline")
	}
	testutil.AssertEqual(t, limiter.Tokens(), 0.0)
}

func TestWaitNExceedsCapacity(t *testing.T) {
	limiter, err := New(10, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	if werr := limiter.WaitN(ctx, 11); !errors.Is(werr, errs.ErrCapacityExceeded) {
		t.Errorf("WaitN(11) = %v, want ErrCapacityExceeded", werr)
	}
}

func TestTryAcquireZero(t *testing.T) {
	limiter, err := New(1, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := limiter.TryAcquire(context.Background(), 0); err != nil {
		t.Errorf("TryAcquire(0) should be a no-op: %v", err)
	}
}
