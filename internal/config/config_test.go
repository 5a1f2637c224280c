package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadConfigDecodesYAML(t *testing.T) {
	path := writeTempConfig(t, `
server:
  port: "9090"
  env: staging
scanner:
  parallel: true
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "staging", cfg.Server.Env)
	assert.True(t, cfg.Scanner.Parallel)
}

func TestLoadConfigMissingFileReturnsError(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestApplyDefaultsFillsZeroValues(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 500, cfg.Scanner.TimeoutMs)
	assert.Equal(t, 10000, cfg.Queue.MaxSize)
	assert.Equal(t, 64, cfg.Queue.MaxConcurrent)
	assert.Equal(t, "shed", cfg.Backpressure.Strategy)
	assert.Equal(t, 0.6, cfg.Backpressure.Elevated)
	assert.Equal(t, 0.8, cfg.Backpressure.High)
	assert.Equal(t, 0.95, cfg.Backpressure.Critical)
	assert.Equal(t, "round-robin", cfg.LoadBalancer.Algorithm)
	assert.Equal(t, 3, cfg.LoadBalancer.MaxRetries)
	assert.Equal(t, 32, cfg.LoadBalancer.MaxPoolSize)
	assert.Equal(t, 0.92, cfg.Cache.SimilarityThreshold)
	assert.Equal(t, 5000, cfg.Cache.MaxEntries)
	assert.Equal(t, 1000, cfg.Audit.RingBufferSize)
	assert.Equal(t, 40, cfg.Streaming.ChunkIntervalMs)
	assert.Equal(t, 600, cfg.RateLimit.PerMinute)
	assert.Equal(t, 1200, cfg.RateLimit.Burst)
}

func TestApplyDefaultsLeavesNonZeroValuesAlone(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Port = "1234"
	cfg.applyDefaults()
	assert.Equal(t, "1234", cfg.Server.Port)
}

func TestApplyEnvOverridesOverlayEnvironment(t *testing.T) {
	t.Setenv("PORT", "7000")
	t.Setenv("GATEWAY_ENV", "production")
	t.Setenv("SCANNER_PARALLEL", "true")
	t.Setenv("QUEUE_MAX_SIZE", "42")
	t.Setenv("BACKPRESSURE_SHED_PRIORITIES", "low, background")

	cfg := &Config{}
	cfg.applyEnvOverrides()

	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, "production", cfg.Server.Env)
	assert.True(t, cfg.Scanner.Parallel)
	assert.Equal(t, 42, cfg.Queue.MaxSize)
	assert.Equal(t, []string{"low", "background"}, cfg.Backpressure.ShedPriorities)
}

func TestIsProductionReflectsServerEnv(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Env = "production"
	assert.True(t, cfg.IsProduction())
	cfg.Server.Env = "staging"
	assert.False(t, cfg.IsProduction())
}

func TestSplitCSVTrimsAndDropsEmpty(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, splitCSV("a, b ,c,"))
}
