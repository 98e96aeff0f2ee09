// Package config loads the memkernel process configuration from YAML,
// following the teacher's per-component sub-struct pattern.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level process configuration.
type Config struct {
	Store          StoreConfig          `yaml:"store"`
	VectorStore    VectorStoreConfig    `yaml:"vector_store"`
	EmbeddingCache EmbeddingCacheConfig `yaml:"embedding_cache"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	RateLimiter    RateLimiterConfig    `yaml:"rate_limiter"`
	Recovery       RecoveryConfig       `yaml:"recovery"`
	Logger         LoggerConfig         `yaml:"logger"`
}

// StoreConfig locates the relational graph store.
type StoreConfig struct {
	Path string `yaml:"path"` // SQLite DSN/file path
}

// VectorStoreConfig locates the vector store.
type VectorStoreConfig struct {
	Path string `yaml:"path"`
}

// EmbeddingCacheConfig configures the two-tier embedding cache (§4.2).
type EmbeddingCacheConfig struct {
	L1Size int           `yaml:"l1_size"` // entry count, >= 10000 per spec
	L1TTL  time.Duration `yaml:"l1_ttl"`  // >= 24h per spec
	L2Dir  string        `yaml:"l2_dir"`  // one file per MD5 key
}

// CircuitBreakerConfig configures one breaker instance. Three independent
// instances are constructed from this same config: embed, vector-write,
// extract (§4.3).
type CircuitBreakerConfig struct {
	FailureThreshold uint32        `yaml:"failure_threshold"`
	ResetTimeout     time.Duration `yaml:"reset_timeout"`
}

// RateLimiterConfig configures the per-tenant tool-surface rate limiter (§6).
type RateLimiterConfig struct {
	MaxRequests int           `yaml:"max_requests"`
	Window      time.Duration `yaml:"window"`
}

// RecoveryConfig configures the periodic PENDING→FAILED sweep (§4.7).
type RecoveryConfig struct {
	Interval       time.Duration `yaml:"interval"`        // default 5m
	StaleThreshold time.Duration `yaml:"stale_threshold"` // default 10m
}

// LoggerConfig configures process-wide structured logging.
type LoggerConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
	Output string `yaml:"output"` // stdout, stderr, or a file path
}

// Default returns the configuration spec.md's defaults describe: breaker
// threshold 3 / reset 30s (§4.3), rate limiter 100 req / 60s (§6), recovery
// every 5 minutes with a 10 minute stale threshold (§4.7), L1 cache >=10k
// entries with a >=24h TTL (§4.2).
func Default() Config {
	return Config{
		Store:       StoreConfig{Path: "memkernel.db"},
		VectorStore: VectorStoreConfig{Path: "memkernel_vectors.db"},
		EmbeddingCache: EmbeddingCacheConfig{
			L1Size: 10000,
			L1TTL:  24 * time.Hour,
			L2Dir:  "embedding-cache",
		},
		CircuitBreaker: CircuitBreakerConfig{
			FailureThreshold: 3,
			ResetTimeout:      30 * time.Second,
		},
		RateLimiter: RateLimiterConfig{
			MaxRequests: 100,
			Window:      60 * time.Second,
		},
		Recovery: RecoveryConfig{
			Interval:       5 * time.Minute,
			StaleThreshold: 10 * time.Minute,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Load reads and parses a YAML config file, applying defaults for any zero
// field left unset, then validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
