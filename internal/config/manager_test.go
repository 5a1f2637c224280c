package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManagerWithoutOverridesFileUsesGlobalConfig(t *testing.T) {
	dir := t.TempDir()
	masterPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(masterPath, []byte("server:\n  port: \"9999\"\n"), 0o644))

	m, err := NewManager(masterPath, filepath.Join(dir, "missing-overrides.yaml"))
	require.NoError(t, err)

	effective := m.Get("any-tenant")
	assert.Equal(t, "9999", effective.Server.Port)
}

func TestNewManagerMissingMasterReturnsError(t *testing.T) {
	dir := t.TempDir()
	_, err := NewManager(filepath.Join(dir, "missing.yaml"), filepath.Join(dir, "overrides.yaml"))
	assert.Error(t, err)
}

func TestManagerGetAppliesTenantOverride(t *testing.T) {
	dir := t.TempDir()
	masterPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(masterPath, []byte("server:\n  port: \"8080\"\n"), 0o644))

	overridesPath := filepath.Join(dir, "overrides.yaml")
	overridesYAML := `
tenants:
  acme:
    tenant:
      default_max_requests_per_hour: 500
    queue:
      max_concurrent: 8
`
	require.NoError(t, os.WriteFile(overridesPath, []byte(overridesYAML), 0o644))

	m, err := NewManager(masterPath, overridesPath)
	require.NoError(t, err)

	acme := m.Get("acme")
	assert.Equal(t, int64(500), acme.Tenant.DefaultMaxRequestsPerHour)
	assert.Equal(t, 8, acme.Queue.MaxConcurrent)

	other := m.Get("someone-else")
	assert.Equal(t, "8080", other.Server.Port)
	assert.NotEqual(t, int64(500), other.Tenant.DefaultMaxRequestsPerHour)
}

func TestManagerSetOverridesReplacesMapAtomically(t *testing.T) {
	dir := t.TempDir()
	masterPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(masterPath, []byte("server:\n  port: \"8080\"\n"), 0o644))

	m, err := NewManager(masterPath, filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)

	m.SetOverrides(map[string]Config{
		"acme": {Queue: QueueConfig{MaxConcurrent: 99}},
	})

	acme := m.Get("acme")
	assert.Equal(t, 99, acme.Queue.MaxConcurrent)
}
