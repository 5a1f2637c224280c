package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aocs/gateway/internal/reqmodel"
)

func TestApplyRedactRewritesMatchedSpans(t *testing.T) {
	req := &reqmodel.Request{Messages: []reqmodel.Message{
		{Role: "user", Content: "my ssn is 123-45-6789, please remember it"},
	}}

	out := ApplyRedact(req, []string{"123-45-6789"})

	assert.Contains(t, out.Messages[0].Content, "[REDACTED]")
	assert.NotContains(t, out.Messages[0].Content, "123-45-6789")
}

func TestApplyRedactLeavesOriginalUntouched(t *testing.T) {
	req := &reqmodel.Request{Messages: []reqmodel.Message{
		{Role: "user", Content: "secret: abc123"},
	}}

	ApplyRedact(req, []string{"abc123"})

	assert.Equal(t, "secret: abc123", req.Messages[0].Content)
}

func TestApplyRedactNoSpansReturnsSameRequest(t *testing.T) {
	req := &reqmodel.Request{Messages: []reqmodel.Message{{Role: "user", Content: "hello"}}}

	out := ApplyRedact(req, nil)

	assert.Same(t, req, out)
}

func TestApplyRedactRewritesContentParts(t *testing.T) {
	req := &reqmodel.Request{Messages: []reqmodel.Message{
		{Role: "user", Parts: []reqmodel.ContentPart{{Type: "text", Text: "card 4111111111111111"}}},
	}}

	out := ApplyRedact(req, []string{"4111111111111111"})

	assert.Contains(t, out.Messages[0].Parts[0].Text, "[REDACTED]")
}
