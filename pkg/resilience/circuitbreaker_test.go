package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

var errBoom = errors.New("operation failed")

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func failing(context.Context) error { return errBoom }

func succeeding(context.Context) error { return nil }

func TestCircuitBreaker_InitialState(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Second)
	if cb.State() != StateClosed {
		t.Fatalf("expected initial state Closed, got %v", cb.State())
	}
	if cb.Failures() != 0 {
		t.Fatalf("expected 0 failures, got %d", cb.Failures())
	}
}

func TestCircuitBreaker_Transitions(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	cb := NewCircuitBreaker(2, time.Minute, WithClock(clock.now))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := cb.Execute(ctx, failing); !errors.Is(err, errBoom) {
			t.Fatalf("expected the call's own error, got %v", err)
		}
	}
	if cb.State() != StateOpen {
		t.Fatalf("expected Open after 2 failures, got %v", cb.State())
	}

	called := false
	err := cb.Execute(ctx, func(context.Context) error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) || called {
		t.Fatalf("expected open circuit to reject without calling, got err=%v called=%v", err, called)
	}

	clock.advance(time.Minute)
	if err := cb.Execute(ctx, failing); !errors.Is(err, errBoom) {
		t.Fatalf("expected half-open probe to run, got %v", err)
	}
	if cb.State() != StateOpen {
		t.Fatalf("expected failed probe to reopen, got %v", cb.State())
	}

	clock.advance(time.Minute)
	if err := cb.Execute(ctx, succeeding); err != nil {
		t.Fatalf("expected probe to succeed, got %v", err)
	}
	if cb.State() != StateClosed || cb.Failures() != 0 {
		t.Fatalf("expected Closed with no failures, got %v/%d", cb.State(), cb.Failures())
	}
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute)
	ctx := context.Background()

	_ = cb.Execute(ctx, failing)
	_ = cb.Execute(ctx, failing)
	_ = cb.Execute(ctx, succeeding)
	_ = cb.Execute(ctx, failing)

	if cb.State() != StateClosed {
		t.Fatalf("expected Closed, failures must be consecutive; got %v", cb.State())
	}
	if cb.Failures() != 1 {
		t.Fatalf("expected 1 failure, got %d", cb.Failures())
	}
}

func TestCircuitBreaker_FailurePredicate(t *testing.T) {
	errIgnored := errors.New("bad input")
	cb := NewCircuitBreaker(1, time.Minute, WithFailurePredicate(func(err error) bool {
		return !errors.Is(err, errIgnored)
	}))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := cb.Execute(ctx, func(context.Context) error { return fmt.Errorf("wrapped: %w", errIgnored) })
		if !errors.Is(err, errIgnored) {
			t.Fatalf("expected ignored error to pass through, got %v", err)
		}
	}
	if cb.State() != StateClosed {
		t.Fatalf("ignored errors must not open the circuit, got %v", cb.State())
	}

	_ = cb.Execute(ctx, failing)
	if cb.State() != StateOpen {
		t.Fatalf("expected Open after a counted failure, got %v", cb.State())
	}
}

func TestCircuitBreaker_CancellationIsNotAFailure(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := cb.Execute(ctx, func(ctx context.Context) error { return ctx.Err() })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if cb.State() != StateClosed {
		t.Fatalf("cancellation must not open the circuit, got %v", cb.State())
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Hour)
	_ = cb.Execute(context.Background(), failing)
	if cb.State() != StateOpen {
		t.Fatalf("expected Open, got %v", cb.State())
	}
	cb.Reset()
	if cb.State() != StateClosed {
		t.Fatalf("expected Closed after Reset, got %v", cb.State())
	}
	if err := cb.Execute(context.Background(), succeeding); err != nil {
		t.Fatalf("expected call to run after Reset, got %v", err)
	}
}

func TestState_String(t *testing.T) {
	tests := map[State]string{
		StateClosed:   "closed",
		StateOpen:     "open",
		StateHalfOpen: "half-open",
		State(42):     "unknown",
	}
	for state, want := range tests {
		if got := state.String(); got != want {
			t.Fatalf("State(%d).String() = %q, want %q", int(state), got, want)
		}
	}
}
