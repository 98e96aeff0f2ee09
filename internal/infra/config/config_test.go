package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	assert.NoError(t, Validate(&cfg))
}

func TestLoadAppliesDefaultsAndOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "memkernel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  path: /data/graph.db
logger:
  level: debug
  format: json
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/graph.db", cfg.Store.Path)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "json", cfg.Logger.Format)
	// untouched sections keep their defaults
	assert.Equal(t, 10000, cfg.EmbeddingCache.L1Size)
	assert.Equal(t, 100, cfg.RateLimiter.MaxRequests)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	cfg := Default()
	cfg.Logger.Level = "verbose"
	err := Validate(&cfg)
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.True(t, ve.HasErrors())
}

func TestValidateRejectsUndersizedL1Cache(t *testing.T) {
	cfg := Default()
	cfg.EmbeddingCache.L1Size = 10
	assert.Error(t, Validate(&cfg))
}
