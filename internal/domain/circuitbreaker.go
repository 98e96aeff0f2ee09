package domain

import "time"

// BreakerState mirrors the three-state circuit breaker machine described in
// §4.3. The runtime state machine itself is implemented by gobreaker; this
// type is the read-only snapshot exposed to callers and tests.
type BreakerState string

const (
	BreakerClosed   BreakerState = "CLOSED"
	BreakerOpen     BreakerState = "OPEN"
	BreakerHalfOpen BreakerState = "HALF_OPEN"
)

// BreakerConfig configures one circuit breaker instance.
type BreakerConfig struct {
	FailureThreshold uint32        `yaml:"failure_threshold"`
	ResetTimeout     time.Duration `yaml:"reset_timeout"`
}

// DefaultBreakerConfig matches spec.md §4.3's stated defaults.
var DefaultBreakerConfig = BreakerConfig{
	FailureThreshold: 3,
	ResetTimeout:      30 * time.Second,
}

// BreakerSnapshot is a point-in-time read of one breaker's counters.
type BreakerSnapshot struct {
	Name          string
	State         BreakerState
	FailureCount  uint32
	LastFailureAt time.Time
}
