// Package tenant implements tenant access control, API-key authentication,
// and usage/quota tracking from spec §4.3.
package tenant

import "time"

// Status is a tenant's lifecycle state.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusTrial    Status = "TRIAL"
	StatusDisabled Status = "DISABLED"
	StatusSuspended Status = "SUSPENDED"
)

// Period is one of the three quota windows tracked simultaneously.
type Period string

const (
	PeriodHour  Period = "hour"
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
)

// AllPeriods lists the three windows RecordUsage increments together.
var AllPeriods = []Period{PeriodHour, PeriodDay, PeriodMonth}

// Limit bounds one resource within one period.
type Limit struct {
	MaxRequests int64   `yaml:"maxRequests" json:"maxRequests"`
	MaxTokens   int64   `yaml:"maxTokens" json:"maxTokens"`
	MaxCost     float64 `yaml:"maxCost" json:"maxCost"`
}

// QuotaConfig is a tenant's limits across the three periods. A zero value
// for a field within a Limit means that resource is unbounded.
type QuotaConfig struct {
	Hour  Limit `yaml:"hour" json:"hour"`
	Day   Limit `yaml:"day" json:"day"`
	Month Limit `yaml:"month" json:"month"`
}

func (q QuotaConfig) forPeriod(p Period) Limit {
	switch p {
	case PeriodHour:
		return q.Hour
	case PeriodDay:
		return q.Day
	case PeriodMonth:
		return q.Month
	}
	return Limit{}
}

// Tenant is an onboarded organization with its access policy and quotas.
type Tenant struct {
	ID                string      `json:"id"`
	Name              string      `json:"name"`
	Status            Status      `json:"status"`
	AllowedProviders  []string    `json:"allowedProviders,omitempty"`
	AllowedModels     []string    `json:"allowedModels,omitempty"`
	Quotas            QuotaConfig `json:"quotas"`
	CreatedAt         time.Time   `json:"createdAt"`
}

// allows reports whether list is empty (no restriction) or contains value.
func allows(list []string, value string) bool {
	if len(list) == 0 {
		return true
	}
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}

// APIKey is an issued credential: `ocx_<keyId>.<secret>` at issuance time,
// with only the bcrypt hash of the secret retained.
type APIKey struct {
	KeyID     string     `json:"keyId"`
	TenantID  string     `json:"tenantId"`
	Name      string     `json:"name"`
	SecretHash string    `json:"-"`
	Scopes    []string   `json:"scopes,omitempty"`
	IsActive  bool       `json:"isActive"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// UsageDelta is the increment RecordUsage applies to every live bucket.
type UsageDelta struct {
	Requests  int64
	Tokens    int64
	Cost      float64
	CacheHit  bool
	Blocked   bool
	Error     bool
}

// UsageBucket accumulates usage within one (period, periodStart) window.
type UsageBucket struct {
	Period      Period    `json:"period"`
	PeriodStart time.Time `json:"periodStart"`
	Requests    int64     `json:"requests"`
	Tokens      int64     `json:"tokens"`
	Cost        float64   `json:"cost"`
	CacheHits   int64     `json:"cacheHits"`
	Blocked     int64     `json:"blocked"`
	Errors      int64     `json:"errors"`
}

// QuotaStatus reports one period's consumption against its limit.
type QuotaStatus struct {
	Period   Period  `json:"period"`
	Metric   string  `json:"metric"`
	Current  float64 `json:"current"`
	Limit    float64 `json:"limit"`
	Pct      float64 `json:"pct"`
	Exceeded bool    `json:"exceeded"`
}
