// Package resilience wraps an arbitrary operation with a three-state
// circuit breaker (§4.3: CLOSED/OPEN/HALF_OPEN), grounded on the teacher's
// gobreaker-based CircuitBreakerProvider but generalized from one
// chat-provider shape to any result type T, since this spec wraps three
// independent collaborators (embed, vector-write, extract) rather than one.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"memkernel/internal/domain"
)

// Breaker wraps calls returning a T with a named circuit breaker instance.
type Breaker[T any] struct {
	name   string
	cb     *gobreaker.CircuitBreaker[T]
	logger *slog.Logger

	mu            sync.Mutex
	lastFailureAt time.Time
}

// New constructs a Breaker with the given name and configuration. MaxRequests
// is fixed at 1 (a single probe request is allowed through in HALF_OPEN,
// matching the teacher's convention), and the failure window never resets on
// a timer (Interval: 0) — consecutive failures only reset on a success, per
// spec.md §4.3's plain threshold/reset-timeout model.
func New[T any](name string, cfg domain.BreakerConfig, logger *slog.Logger) *Breaker[T] {
	b := &Breaker[T]{name: name, logger: logger}
	b.cb = gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     cfg.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})
	return b
}

// Execute runs fn through the breaker. When the breaker is open (or the
// half-open probe slot is taken), it fails fast with a domain.KernelError
// carrying CodeCircuitOpen instead of invoking fn.
func (b *Breaker[T]) Execute(ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	result, err := b.cb.Execute(func() (T, error) {
		return fn(ctx)
	})
	if err != nil {
		b.mu.Lock()
		b.lastFailureAt = time.Now()
		b.mu.Unlock()

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			var zero T
			return zero, domain.NewCircuitOpenError("resilience", "Execute", b.name)
		}
	}
	return result, err
}

// Snapshot returns the breaker's current state for diagnostics/logging.
func (b *Breaker[T]) Snapshot() domain.BreakerSnapshot {
	counts := b.cb.Counts()
	b.mu.Lock()
	lastFailureAt := b.lastFailureAt
	b.mu.Unlock()

	return domain.BreakerSnapshot{
		Name:          b.name,
		State:         stateFrom(b.cb.State()),
		FailureCount:  uint32(counts.ConsecutiveFailures),
		LastFailureAt: lastFailureAt,
	}
}

func stateFrom(s gobreaker.State) domain.BreakerState {
	switch s {
	case gobreaker.StateOpen:
		return domain.BreakerOpen
	case gobreaker.StateHalfOpen:
		return domain.BreakerHalfOpen
	default:
		return domain.BreakerClosed
	}
}
