package resilience

import (
	"errors"
	"testing"
	"time"
)

var errUpstream = errors.New("llm proxy unavailable")

// trip drives the breaker to open with consecutive failures.
func trip(b *Breaker, failures int) {
	for range failures {
		_ = b.Execute(func() error { return errUpstream })
	}
}

func TestClosedBreakerRunsCalls(t *testing.T) {
	b := NewBreaker(3, time.Second)

	ran := false
	if err := b.Execute(func() error { ran = true; return nil }); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !ran {
		t.Fatal("expected fn to run")
	}
	if got := b.State(); got != StateClosed {
		t.Fatalf("expected closed, got %v", got)
	}
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	b := NewBreaker(3, time.Second)
	trip(b, 3)

	if got := b.State(); got != StateOpen {
		t.Fatalf("expected open after 3 failures, got %v", got)
	}
	err := b.Execute(func() error { return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestOpenBreakerRejectsUntilCooldown(t *testing.T) {
	now := time.Now()
	b := NewBreaker(2, time.Second)
	b.now = func() time.Time { return now }

	trip(b, 2)

	if err := b.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected rejection during cooldown, got %v", err)
	}

	now = now.Add(2 * time.Second)

	ran := false
	if err := b.Execute(func() error { ran = true; return nil }); err != nil {
		t.Fatalf("expected probe to run after cooldown, got %v", err)
	}
	if !ran {
		t.Fatal("expected probe fn to run")
	}
	if got := b.State(); got != StateClosed {
		t.Fatalf("expected closed after successful probe, got %v", got)
	}
}

func TestHalfOpenAdmitsSingleProbe(t *testing.T) {
	now := time.Now()
	b := NewBreaker(2, time.Second)
	b.now = func() time.Time { return now }

	trip(b, 2)
	now = now.Add(2 * time.Second)

	// While the probe runs, a second caller must still fail fast.
	var concurrent error
	err := b.Execute(func() error {
		concurrent = b.Execute(func() error { return nil })
		return nil
	})
	if err != nil {
		t.Fatalf("expected probe to succeed, got %v", err)
	}
	if !errors.Is(concurrent, ErrCircuitOpen) {
		t.Fatalf("expected concurrent call to be rejected during probe, got %v", concurrent)
	}
}

func TestProbeFailureReopensCircuit(t *testing.T) {
	now := time.Now()
	b := NewBreaker(2, time.Second)
	b.now = func() time.Time { return now }

	trip(b, 2)
	now = now.Add(2 * time.Second)

	_ = b.Execute(func() error { return errUpstream })

	if got := b.State(); got != StateOpen {
		t.Fatalf("expected open after failed probe, got %v", got)
	}
	if err := b.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected rejection after reopen, got %v", err)
	}

	// The fresh cooldown starts from the failed probe.
	now = now.Add(2 * time.Second)
	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("expected probe after second cooldown, got %v", err)
	}
}

func TestSuccessClearsFailureStreak(t *testing.T) {
	b := NewBreaker(3, time.Second)

	trip(b, 2)
	_ = b.Execute(func() error { return nil })
	trip(b, 2)

	// Two failures, a success, two more failures: never three in a row.
	if got := b.State(); got != StateClosed {
		t.Fatalf("expected closed, got %v", got)
	}
	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("expected call to run, got %v", err)
	}
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateClosed:   "closed",
		StateOpen:     "open",
		StateHalfOpen: "half_open",
		State(99):     "unknown",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}
