package policy

import (
	"context"
	"testing"
	"time"

	"github.com/voicelane/frontdesk/pkg/core"
)

func fastPolicy(name string) Policy {
	return Policy{
		Name:            name,
		MaxAttempts:     3,
		InitialBackoff:  time.Millisecond,
		MaxBackoff:      2 * time.Millisecond,
		BreakerFailures: 2,
		BreakerCooldown: time.Minute,
	}
}

func TestRunner_SucceedsFirstAttempt(t *testing.T) {
	r := NewRunner[string](fastPolicy("stt"), nil)

	calls := 0
	got, err := r.Do(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		return "hello", nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if got != "hello" {
		t.Errorf("Do() = %q, want %q", got, "hello")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRunner_RetriesTransientFailures(t *testing.T) {
	r := NewRunner[int](fastPolicy("tts"), nil)

	calls := 0
	got, err := r.Do(context.Background(), func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, core.NewTransientError("unreachable")
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if got != 42 {
		t.Errorf("Do() = %d, want 42", got)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRunner_DoesNotRetryValidationErrors(t *testing.T) {
	r := NewRunner[int](fastPolicy("tool"), nil)

	calls := 0
	_, err := r.Do(context.Background(), func(ctx context.Context) (int, error) {
		calls++
		return 0, core.NewValidationError("missing field", "payer")
	})
	if err == nil {
		t.Fatalf("Do() error = nil, want validation error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (validation errors must not retry)", calls)
	}
}

func TestRunner_BreakerOpensAndShortCircuits(t *testing.T) {
	p := fastPolicy("extractor")
	p.MaxAttempts = 1
	r := NewRunner[int](p, nil)

	calls := 0
	fail := func(ctx context.Context) (int, error) {
		calls++
		return 0, core.NewTransientError("down")
	}

	// Two consecutive failures trip the breaker.
	for i := 0; i < 2; i++ {
		if _, err := r.Do(context.Background(), fail); err == nil {
			t.Fatalf("Do() #%d error = nil, want failure", i)
		}
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}

	// Open breaker: fn is never invoked, caller gets a transient error.
	_, err := r.Do(context.Background(), fail)
	if err == nil {
		t.Fatalf("Do() with open breaker error = nil, want transient")
	}
	if !core.IsTransient(err) {
		t.Errorf("IsTransient(err) = false, want true (err = %v)", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2 (open breaker must short-circuit)", calls)
	}
}

func TestRunner_ExhaustsAttempts(t *testing.T) {
	r := NewRunner[int](fastPolicy("tool"), nil)

	calls := 0
	_, err := r.Do(context.Background(), func(ctx context.Context) (int, error) {
		calls++
		return 0, core.NewTransientError("still down")
	})
	if err == nil {
		t.Fatalf("Do() error = nil, want failure after exhausting attempts")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3 (MaxAttempts)", calls)
	}
}
