package config

import (
	"fmt"
	"strings"
)

// ValidationError accumulates config validation errors so callers see every
// problem at once instead of failing on the first one.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness, returning a
// *ValidationError listing every problem found.
func Validate(cfg *Config) error {
	ve := &ValidationError{}

	if cfg.Store.Path == "" {
		ve.Add("store.path must not be empty")
	}
	if cfg.VectorStore.Path == "" {
		ve.Add("vector_store.path must not be empty")
	}

	if cfg.EmbeddingCache.L1Size < 10000 {
		ve.Add("embedding_cache.l1_size must be >= 10000, got %d", cfg.EmbeddingCache.L1Size)
	}
	if cfg.EmbeddingCache.L1TTL <= 0 {
		ve.Add("embedding_cache.l1_ttl must be positive")
	}
	if cfg.EmbeddingCache.L2Dir == "" {
		ve.Add("embedding_cache.l2_dir must not be empty")
	}

	if cfg.CircuitBreaker.FailureThreshold == 0 {
		ve.Add("circuit_breaker.failure_threshold must be > 0")
	}
	if cfg.CircuitBreaker.ResetTimeout <= 0 {
		ve.Add("circuit_breaker.reset_timeout must be positive")
	}

	if cfg.RateLimiter.MaxRequests <= 0 {
		ve.Add("rate_limiter.max_requests must be > 0")
	}
	if cfg.RateLimiter.Window <= 0 {
		ve.Add("rate_limiter.window must be positive")
	}

	if cfg.Recovery.Interval <= 0 {
		ve.Add("recovery.interval must be positive")
	}
	if cfg.Recovery.StaleThreshold <= 0 {
		ve.Add("recovery.stale_threshold must be positive")
	}

	switch strings.ToLower(cfg.Logger.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		ve.Add("logger.level %q is not one of debug, info, warn, error", cfg.Logger.Level)
	}
	switch strings.ToLower(cfg.Logger.Format) {
	case "text", "json":
	default:
		ve.Add("logger.format %q is not one of text, json", cfg.Logger.Format)
	}

	if ve.HasErrors() {
		return ve
	}
	return nil
}
