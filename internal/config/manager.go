package config

import (
	"os"
	"sync"

	"gopkg.in/yaml.v2"
)

// TenantOverrides holds the map of per-tenant config overrides, merged on
// top of the global config. Tenant-specific rate/quota tuning is the
// gateway's equivalent of the teacher's per-tenant Trust/Governance
// overrides.
type TenantOverrides struct {
	Tenants map[string]Config `yaml:"tenants"`
}

// Manager resolves the effective config for a tenant, matching the
// teacher's internal/config/manager.go dynamic-resolution pattern.
type Manager struct {
	globalConfig *Config
	overrides    map[string]Config
	mu           sync.RWMutex
}

// NewManager loads the master config plus an optional tenant-overrides
// file; a missing overrides file is not an error.
func NewManager(masterPath, overridesPath string) (*Manager, error) {
	master, err := LoadConfig(masterPath)
	if err != nil {
		return nil, err
	}
	master.applyEnvOverrides()
	master.applyDefaults()

	f, err := os.Open(overridesPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &Manager{globalConfig: master, overrides: make(map[string]Config)}, nil
		}
		return nil, err
	}
	defer f.Close()

	var to TenantOverrides
	if err := yaml.NewDecoder(f).Decode(&to); err != nil {
		return nil, err
	}

	return &Manager{globalConfig: master, overrides: to.Tenants}, nil
}

// Get returns the effective config for a tenant: the global config with any
// non-zero tenant-specific sections substituted in wholesale.
func (m *Manager) Get(tenantID string) *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	effective := *m.globalConfig

	override, ok := m.overrides[tenantID]
	if !ok {
		return &effective
	}

	if override.Tenant.DefaultMaxRequestsPerHour != 0 || override.Tenant.DefaultMaxTokensPerDay != 0 {
		effective.Tenant = override.Tenant
	}
	if override.Queue.MaxConcurrent != 0 {
		effective.Queue = override.Queue
	}
	if override.Backpressure.Strategy != "" {
		effective.Backpressure = override.Backpressure
	}
	if override.LoadBalancer.Algorithm != "" {
		effective.LoadBalancer = override.LoadBalancer
	}
	if override.Cache.MaxEntries != 0 {
		effective.Cache = override.Cache
	}
	if len(override.Cost.Pricing) > 0 {
		effective.Cost = override.Cost
	}

	return &effective
}

// SetOverrides atomically replaces the tenant-overrides map, for an
// operator endpoint that reloads overrides without restarting the process.
func (m *Manager) SetOverrides(overrides map[string]Config) {
	m.mu.Lock()
	m.overrides = overrides
	m.mu.Unlock()
}
