// Package provideradapter implements spec §6's ProviderAdapter contract:
// one adapter per upstream provider family, owning bit-exact wire
// compatibility so the rest of the gateway stays provider-agnostic. The
// JSON-sniffing style is grounded on the teacher's internal/protocol
// parsers (openai_parser.go, and the CanParse/Parse split seen across
// a2a_parser.go, mcp_parser.go, rag_parser.go).
package provideradapter

import "github.com/aocs/gateway/internal/reqmodel"

// ProviderAdapter owns translation between one upstream wire format and the
// gateway's provider-agnostic Request/Response shapes.
type ProviderAdapter interface {
	// Name identifies the provider family this adapter serializes for.
	Name() string
	// CanParse reports whether payload looks like this provider's wire
	// format, for registry dispatch when the caller didn't name a provider.
	CanParse(payload []byte) bool
	// ParseRequest decodes an inbound request body into the normalized
	// Request shape. modelId disambiguates payloads that don't carry their
	// own model field.
	ParseRequest(payload []byte, modelID string) (*reqmodel.Request, error)
	// SerializeRequest re-encodes a (possibly policy-rewritten) Request back
	// into this provider's wire format for dispatch upstream.
	SerializeRequest(req *reqmodel.Request) ([]byte, error)
	// ParseResponse decodes an upstream response body into the normalized
	// Response shape.
	ParseResponse(payload []byte, modelID string) (*reqmodel.Response, error)
	// SerializeResponse re-encodes a Response into this provider's wire
	// format, for returning the gateway's own response to the caller in
	// the shape it expects from that provider.
	SerializeResponse(resp *reqmodel.Response) ([]byte, error)
}

// Registry holds every configured adapter, keyed by provider name, plus a
// fallback generic adapter for unrecognized wire formats.
type Registry struct {
	adapters map[string]ProviderAdapter
	fallback ProviderAdapter
}

// DefaultRegistry builds the registry the gateway wires at startup: the
// OpenAI and Anthropic adapters by name, falling back to GenericAdapter
// for anything else.
func DefaultRegistry() *Registry {
	return NewRegistry(&GenericAdapter{}, &OpenAIAdapter{}, &AnthropicAdapter{})
}

// NewRegistry builds a registry with the given named adapters and a
// required fallback used when no provider name is given and no adapter's
// CanParse matches.
func NewRegistry(fallback ProviderAdapter, adapters ...ProviderAdapter) *Registry {
	r := &Registry{adapters: make(map[string]ProviderAdapter, len(adapters)), fallback: fallback}
	for _, a := range adapters {
		r.adapters[a.Name()] = a
	}
	return r
}

// Get returns the adapter registered for provider, or false.
func (r *Registry) Get(provider string) (ProviderAdapter, bool) {
	a, ok := r.adapters[provider]
	return a, ok
}

// Detect returns the named adapter when known, otherwise the first adapter
// whose CanParse matches the payload, otherwise the fallback.
func (r *Registry) Detect(provider string, payload []byte) ProviderAdapter {
	if provider != "" {
		if a, ok := r.adapters[provider]; ok {
			return a
		}
	}
	for _, a := range r.adapters {
		if a.CanParse(payload) {
			return a
		}
	}
	return r.fallback
}
