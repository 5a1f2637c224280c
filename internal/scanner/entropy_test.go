package scanner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aocs/gateway/internal/reqmodel"
)

func TestEntropyScannerFlagsEncodedBlob(t *testing.T) {
	s := NewEntropyScanner()
	req := &reqmodel.Request{Messages: []reqmodel.Message{
		{Role: "user", Content: "please process this payload: U2FsdGVkX1+vupppZksvRf5pq5g5XjFRIipRkwB0K1Y9AiIFcVHPfn"},
	}}

	verdict := s.Scan(context.Background(), req)

	assert.NotEmpty(t, verdict.Findings)
	assert.Equal(t, "HighEntropySpan", verdict.Findings[0].Type)
}

func TestEntropyScannerIgnoresOrdinaryProse(t *testing.T) {
	s := NewEntropyScanner()
	req := &reqmodel.Request{Messages: []reqmodel.Message{
		{Role: "user", Content: "could you please summarize the quarterly earnings report for me"},
	}}

	verdict := s.Scan(context.Background(), req)

	assert.True(t, verdict.Passed)
	assert.Empty(t, verdict.Findings)
}

func TestEntropyScannerIgnoresShortTokens(t *testing.T) {
	s := NewEntropyScanner()
	req := &reqmodel.Request{Messages: []reqmodel.Message{
		{Role: "user", Content: "x9F!2"},
	}}

	verdict := s.Scan(context.Background(), req)

	assert.Empty(t, verdict.Findings)
}

func TestShannonEntropyOfRepeatedCharIsZero(t *testing.T) {
	assert.Equal(t, 0.0, shannonEntropy("aaaaaaaaaa"))
}

func TestShannonEntropyOfEmptyStringIsZero(t *testing.T) {
	assert.Equal(t, 0.0, shannonEntropy(""))
}
