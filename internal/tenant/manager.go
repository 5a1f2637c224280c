package tenant

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aocs/gateway/internal/gwerrors"
	"golang.org/x/crypto/bcrypt"
)

// Manager is the in-memory TenantManager from spec §4.3: tenant records,
// issued API keys, and per-tenant usage buckets. Each tenant's bucket map
// is guarded by its own lock, per the §5 concurrency discipline ("per-tenant
// lock around the {period, periodStart} → bucket map").
type Manager struct {
	mu      sync.RWMutex
	tenants map[string]*Tenant
	keys    map[string]*APIKey // keyed by KeyID

	bucketsMu sync.Mutex
	buckets   map[string]map[bucketKey]*UsageBucket // tenantID -> bucket

	mirror *UsageMirror // optional, set via SetUsageMirror
}

// SetUsageMirror attaches a Redis-backed mirror that every RecordUsage call
// also writes to, for multi-instance deployments. Passing nil disables
// mirroring (the default).
func (m *Manager) SetUsageMirror(mirror *UsageMirror) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mirror = mirror
}

type bucketKey struct {
	period      Period
	periodStart time.Time
}

// NewManager creates an empty tenant manager.
func NewManager() *Manager {
	return &Manager{
		tenants: make(map[string]*Tenant),
		keys:    make(map[string]*APIKey),
		buckets: make(map[string]map[bucketKey]*UsageBucket),
	}
}

// Register adds or replaces a tenant record.
func (m *Manager) Register(t *Tenant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenants[t.ID] = t
}

// Get returns a tenant by id.
func (m *Manager) Get(tenantID string) (*Tenant, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tenants[tenantID]
	return t, ok
}

// CreateAPIKey issues a new key in the `ocx_<keyId>.<secret>` format; only
// the bcrypt hash of the secret is retained.
func (m *Manager) CreateAPIKey(tenantID, name string, scopes []string) (*APIKey, string, error) {
	idBytes := make([]byte, 8)
	if _, err := rand.Read(idBytes); err != nil {
		return nil, "", gwerrors.Wrap(gwerrors.CodeInternalError, "key id generation failed", err)
	}
	keyID := hex.EncodeToString(idBytes)

	secretBytes := make([]byte, 24)
	if _, err := rand.Read(secretBytes); err != nil {
		return nil, "", gwerrors.Wrap(gwerrors.CodeInternalError, "key secret generation failed", err)
	}
	secret := hex.EncodeToString(secretBytes)

	fullKey := fmt.Sprintf("ocx_%s.%s", keyID, secret)

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", gwerrors.Wrap(gwerrors.CodeInternalError, "key hashing failed", err)
	}

	key := &APIKey{
		KeyID:      keyID,
		TenantID:   tenantID,
		Name:       name,
		SecretHash: string(hash),
		Scopes:     scopes,
		IsActive:   true,
	}

	m.mu.Lock()
	m.keys[keyID] = key
	m.mu.Unlock()

	return key, fullKey, nil
}

// ValidateAPIKey resolves a full `ocx_<keyId>.<secret>` key to its tenant.
func (m *Manager) ValidateAPIKey(fullKey string) (*Tenant, error) {
	if !strings.HasPrefix(fullKey, "ocx_") {
		return nil, gwerrors.New(gwerrors.CodeUnauthorized, "invalid key format")
	}
	parts := strings.SplitN(strings.TrimPrefix(fullKey, "ocx_"), ".", 2)
	if len(parts) != 2 {
		return nil, gwerrors.New(gwerrors.CodeUnauthorized, "invalid key format")
	}
	keyID, secret := parts[0], parts[1]

	m.mu.RLock()
	key, ok := m.keys[keyID]
	m.mu.RUnlock()
	if !ok {
		return nil, gwerrors.New(gwerrors.CodeUnauthorized, "invalid api key")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(key.SecretHash), []byte(secret)); err != nil {
		return nil, gwerrors.New(gwerrors.CodeUnauthorized, "invalid api key secret")
	}
	if !key.IsActive {
		return nil, gwerrors.New(gwerrors.CodeUnauthorized, "api key inactive")
	}
	if key.ExpiresAt != nil && time.Now().After(*key.ExpiresAt) {
		return nil, gwerrors.New(gwerrors.CodeUnauthorized, "api key expired")
	}

	t, ok := m.Get(key.TenantID)
	if !ok {
		return nil, gwerrors.New(gwerrors.CodeTenantDisabled, "tenant not found")
	}
	if t.Status != StatusActive && t.Status != StatusTrial {
		return nil, gwerrors.New(gwerrors.CodeTenantDisabled, "tenant is "+string(t.Status))
	}
	return t, nil
}

// ValidateAccess rejects when the tenant is disabled, the provider/model is
// not on its allow-list, or any quota is exhausted in the current window,
// per spec §4.3.
func (m *Manager) ValidateAccess(tenantID, provider, model string) (bool, string) {
	t, ok := m.Get(tenantID)
	if !ok {
		return false, string(gwerrors.CodeTenantDisabled)
	}
	if t.Status != StatusActive && t.Status != StatusTrial {
		return false, string(gwerrors.CodeTenantDisabled)
	}
	if !allows(t.AllowedProviders, provider) {
		return false, string(gwerrors.CodeProviderNotAllowed)
	}
	if !allows(t.AllowedModels, model) {
		return false, string(gwerrors.CodeModelNotAllowed)
	}
	for _, status := range m.CheckQuotas(tenantID) {
		if status.Exceeded {
			return false, string(gwerrors.CodeQuotaExceeded)
		}
	}
	return true, ""
}
