// Package policy formalizes retry and short-circuit behavior for external
// calls: max attempts, a backoff schedule, and a failure-count breaker that
// routes callers to their fallback path for a cooldown window.
package policy

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/sony/gobreaker/v2"

	"github.com/voicelane/frontdesk/pkg/core"
)

// Policy declares how one class of external call behaves under failure.
type Policy struct {
	// Name identifies the call class in logs ("stt", "tts", "extractor", ...).
	Name string `json:"name" yaml:"name"`

	// MaxAttempts is the total number of tries per call. Default: 2.
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`

	// InitialBackoff is the first retry delay; subsequent delays double.
	// Default: 100ms.
	InitialBackoff time.Duration `json:"initial_backoff" yaml:"initial_backoff"`

	// MaxBackoff caps the delay between attempts. Default: 1s.
	MaxBackoff time.Duration `json:"max_backoff" yaml:"max_backoff"`

	// BreakerFailures is the consecutive-failure count that opens the
	// breaker. Default: 5.
	BreakerFailures uint32 `json:"breaker_failures" yaml:"breaker_failures"`

	// BreakerCooldown is how long the breaker stays open before probing
	// again. Default: 30s.
	BreakerCooldown time.Duration `json:"breaker_cooldown" yaml:"breaker_cooldown"`
}

// Default returns the policy applied to external calls unless overridden.
func Default(name string) Policy {
	return Policy{
		Name:            name,
		MaxAttempts:     2,
		InitialBackoff:  100 * time.Millisecond,
		MaxBackoff:      time.Second,
		BreakerFailures: 5,
		BreakerCooldown: 30 * time.Second,
	}
}

func (p Policy) withDefaults() Policy {
	d := Default(p.Name)
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = d.InitialBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = d.MaxBackoff
	}
	if p.BreakerFailures == 0 {
		p.BreakerFailures = d.BreakerFailures
	}
	if p.BreakerCooldown <= 0 {
		p.BreakerCooldown = d.BreakerCooldown
	}
	return p
}

// Runner executes calls of one class under a shared breaker.
type Runner[T any] struct {
	policy  Policy
	breaker *gobreaker.CircuitBreaker[T]
	logger  *slog.Logger
}

// NewRunner creates a runner for the given policy.
func NewRunner[T any](p Policy, logger *slog.Logger) *Runner[T] {
	p = p.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	cb := gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        p.Name,
		MaxRequests: 1, // one probe in half-open
		Timeout:     p.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= p.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("breaker state change",
				"call", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return &Runner[T]{policy: p, breaker: cb, logger: logger}
}

// Do runs fn with retries inside the breaker. When the breaker is open, fn
// is never invoked and a transient error is returned so the caller takes
// its fallback path.
func (r *Runner[T]) Do(ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	out, err := r.breaker.Execute(func() (T, error) {
		var result T
		backoff := retry.WithCappedDuration(r.policy.MaxBackoff, retry.NewExponential(r.policy.InitialBackoff))
		backoff = retry.WithMaxRetries(uint64(r.policy.MaxAttempts-1), backoff)

		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			v, err := fn(ctx)
			if err != nil {
				if retryable(err) {
					return retry.RetryableError(err)
				}
				return err
			}
			result = v
			return nil
		})
		return result, err
	})
	if err != nil && isOpen(err) {
		var zero T
		return zero, core.NewTransientError(r.policy.Name + " short-circuited by breaker")
	}
	return out, err
}

// retryable reports whether an error is worth another attempt. Structured
// non-transient errors (validation failures, defects) are not: retrying a
// rejected input just repeats the rejection.
func retryable(err error) bool {
	var ce *core.Error
	if errors.As(err, &ce) {
		return ce.Type == core.ErrTransient || ce.Type == core.ErrOverloaded
	}
	return true
}

func isOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
