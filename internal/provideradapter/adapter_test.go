package provideradapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultRegistryResolvesKnownProvidersByName(t *testing.T) {
	r := DefaultRegistry()
	a, ok := r.Get("openai")
	assert.True(t, ok)
	assert.Equal(t, "openai", a.Name())
}

func TestRegistryDetectPrefersNamedProviderOverSniffing(t *testing.T) {
	r := DefaultRegistry()
	a := r.Detect("anthropic", []byte(`{"model":"gpt-4","messages":[]}`))
	assert.Equal(t, "anthropic", a.Name())
}

func TestRegistryDetectSniffsWhenNoProviderNamed(t *testing.T) {
	r := DefaultRegistry()
	a := r.Detect("", []byte(`{"usage":{"input_tokens":1}}`))
	assert.Equal(t, "anthropic", a.Name())
}

func TestRegistryDetectFallsBackToGeneric(t *testing.T) {
	r := NewRegistry(&GenericAdapter{}, &OpenAIAdapter{})
	a := r.Detect("", []byte(`{"totally":"unrecognized"}`))
	assert.Equal(t, "generic", a.Name())
}
