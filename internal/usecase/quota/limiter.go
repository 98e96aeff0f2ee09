// Package quota implements the per-tenant token-bucket rate limiter named
// in spec.md §6: "each call passes a per-tenant token-bucket rate limiter
// (fixed window, configurable; defaults 100 requests / 60 s)". The rate
// limiter itself is an out-of-scope external collaborator per spec.md §1,
// but the tool surface (internal/adapter/toolsurface) needs a concrete one
// to be runnable end-to-end, so SPEC_FULL.md wires golang.org/x/time/rate
// here rather than the teacher's hand-rolled sliding window
// (internal/adapter/tool/ratelimit.go), which tracked raw request
// timestamps in a slice per key instead of a token bucket.
package quota

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"memkernel/internal/domain"
)

// DefaultRequests and DefaultWindow match spec.md §6's stated default:
// 100 requests per 60 seconds per tenant.
const (
	DefaultRequests = 100
	DefaultWindow   = 60 * time.Second
)

// Limiter tracks one token bucket per tenant, created lazily on first use
// and never evicted — tenant cardinality is expected to be small and
// long-lived for a local-first deployment (§1 scope).
type Limiter struct {
	mu       sync.Mutex
	buckets  map[string]*rate.Limiter
	requests int
	window   time.Duration
}

// New constructs a Limiter allowing requests tokens per window, per tenant.
// Zero values fall back to DefaultRequests/DefaultWindow.
func New(requests int, window time.Duration) *Limiter {
	if requests <= 0 {
		requests = DefaultRequests
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{
		buckets:  make(map[string]*rate.Limiter),
		requests: requests,
		window:   window,
	}
}

// Allow reports whether tenant has a token available right now, consuming
// one if so. See AllowOrError for the domain.KernelError-wrapped form the
// tool surface actually calls.
func (l *Limiter) Allow(tenant string) bool {
	return l.bucketFor(tenant).Allow()
}

// AllowOrError is Allow rendered as a domain.KernelError for the tool
// surface: exhausted budget is a retryable concurrency-shaped rejection,
// not a hard validation failure, since the same call will likely succeed
// once the window refills.
func (l *Limiter) AllowOrError(tenant string) error {
	if l.Allow(tenant) {
		return nil
	}
	return domain.NewConcurrencyError("quota", "Allow", domain.ErrConcurrency,
		"rate limit exceeded for this tenant, retry after the window refills").
		WithDetail("tenant", tenant)
}

func (l *Limiter) bucketFor(tenant string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[tenant]
	if ok {
		return b
	}

	// Token bucket refilling at requests/window, burst capacity equal to
	// the full request budget so a tenant can spend its whole allowance in
	// one burst at the start of a fresh window (matches a fixed-window
	// limiter's behavior at the window boundary).
	b = rate.NewLimiter(rate.Every(l.window/time.Duration(l.requests)), l.requests)
	l.buckets[tenant] = b
	return b
}
