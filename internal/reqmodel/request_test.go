package reqmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriorityRankOrdering(t *testing.T) {
	assert.Less(t, PriorityCritical.Rank(), PriorityHigh.Rank())
	assert.Less(t, PriorityHigh.Rank(), PriorityNormal.Rank())
	assert.Less(t, PriorityNormal.Rank(), PriorityLow.Rank())
	assert.Less(t, PriorityLow.Rank(), PriorityBackground.Rank())
}

func TestPriorityValid(t *testing.T) {
	assert.True(t, PriorityNormal.Valid())
	assert.False(t, Priority("urgent").Valid())
}

func TestFlattenedTextJoinsAllRoles(t *testing.T) {
	req := &Request{Messages: []Message{
		{Role: "system", Content: "be helpful"},
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "hi there"},
	}}
	assert.Equal(t, "be helpful\nhello\nhi there", req.FlattenedText())
}

func TestFlattenedUserTextOnlyUserRole(t *testing.T) {
	req := &Request{Messages: []Message{
		{Role: "system", Content: "be helpful"},
		{Role: "user", Content: "first"},
		{Role: "assistant", Content: "reply"},
		{Role: "user", Content: "second"},
	}}
	assert.Equal(t, "first\nsecond", req.FlattenedUserText())
}

func TestFlattenedTextIncludesContentParts(t *testing.T) {
	req := &Request{Messages: []Message{
		{Role: "user", Content: "look at this", Parts: []ContentPart{{Type: "text", Text: "extra detail"}}},
	}}
	assert.Equal(t, "look at this extra detail", req.FlattenedText())
}

func TestCloneIsIndependent(t *testing.T) {
	original := &Request{
		Messages:   []Message{{Role: "user", Content: "hi"}},
		Parameters: map[string]float64{"temperature": 0.7},
	}
	clone := original.Clone()
	clone.Messages[0].Content = "mutated"
	clone.Parameters["temperature"] = 1.0

	assert.Equal(t, "hi", original.Messages[0].Content)
	assert.Equal(t, 0.7, original.Parameters["temperature"])
	assert.Equal(t, "mutated", clone.Messages[0].Content)
}
