// Package normalize turns raw provider request bytes into a
// reqmodel.Request ready for the scanner/policy pipeline: it resolves the
// ProviderAdapter, stamps a correlation id, assigns priority/deadline, and
// optionally injects a governance header — the supplemented
// "inline contract" feature adapted from the teacher's
// internal/middleware/governance.go header-injection middleware.
package normalize

import (
	"time"

	"github.com/google/uuid"

	"github.com/aocs/gateway/internal/provideradapter"
	"github.com/aocs/gateway/internal/reqmodel"
)

// GovernanceHeaderText is prepended as a system-role message to outbound
// chat-style requests when a tenant's config requests it. Reworded from the
// teacher's "Cognitive Contract" into language describing expectations to
// the receiving model rather than an internal enforcement narrative.
const GovernanceHeaderText = `[GATEWAY NOTICE]
This conversation is intercepted and scanned by an inline governance gateway.
Requests and responses may be logged, redacted, or blocked according to
tenant-configured policy.`

// Options controls per-call normalization behavior.
type Options struct {
	Provider          string
	ModelID           string
	DefaultPriority   reqmodel.Priority
	RequestTimeout    time.Duration
	InjectGovernance  bool
	TenantID          string
	UserID            string
	UserGroup         string
}

// Normalizer ties a provider adapter registry to the per-request shaping
// spec §6 expects from the ingress boundary before a Request ever reaches
// the scanner pipeline.
type Normalizer struct {
	registry *provideradapter.Registry
}

// NewNormalizer builds a Normalizer over the given adapter registry.
func NewNormalizer(registry *provideradapter.Registry) *Normalizer {
	return &Normalizer{registry: registry}
}

// Normalize decodes payload via the detected/named adapter and applies
// correlation-id stamping, tenant/user attribution, priority/deadline
// defaults, and optional governance header injection.
func (n *Normalizer) Normalize(payload []byte, opts Options) (*reqmodel.Request, error) {
	adapter := n.registry.Detect(opts.Provider, payload)

	req, err := adapter.ParseRequest(payload, opts.ModelID)
	if err != nil {
		return nil, err
	}

	req.CorrelationID = uuid.NewString()
	req.TenantID = opts.TenantID
	req.UserID = opts.UserID
	req.UserGroup = opts.UserGroup
	req.ReceivedAt = time.Now()

	priority := opts.DefaultPriority
	if !priority.Valid() {
		priority = reqmodel.PriorityNormal
	}
	req.Priority = priority

	if opts.RequestTimeout > 0 {
		req.Deadline = req.ReceivedAt.Add(opts.RequestTimeout)
	}

	if opts.InjectGovernance {
		injectGovernanceHeader(req)
	}

	return req, nil
}

// injectGovernanceHeader prepends a fixed system-role message, matching the
// teacher's "prepend before the first message" placement.
func injectGovernanceHeader(req *reqmodel.Request) {
	sys := reqmodel.Message{Role: "system", Content: GovernanceHeaderText}
	req.Messages = append([]reqmodel.Message{sys}, req.Messages...)
}
