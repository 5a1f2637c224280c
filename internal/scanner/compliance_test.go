package scanner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aocs/gateway/internal/reqmodel"
)

func TestComplianceScannerDetectsCVV(t *testing.T) {
	s := NewComplianceScanner()
	req := &reqmodel.Request{Messages: []reqmodel.Message{
		{Role: "user", Content: "my card cvv:123 expires next year"},
	}}

	verdict := s.Scan(context.Background(), req)

	assert.False(t, verdict.Passed)
	assert.Contains(t, findingTypes(verdict.Findings), "PCI-DSS_CardVerificationValue")
	assert.Equal(t, reqmodel.SeverityCritical, verdict.ThreatLevel)
}

func TestComplianceScannerDetectsChildAgeDisclosureViaValidator(t *testing.T) {
	s := NewComplianceScanner()
	req := &reqmodel.Request{Messages: []reqmodel.Message{
		{Role: "user", Content: "hi, i am 9 years old and need homework help"},
	}}

	verdict := s.Scan(context.Background(), req)

	assert.Contains(t, findingTypes(verdict.Findings), "COPPA_ChildUnderThirteenDisclosure")
}

func TestComplianceScannerIgnoresSystemRole(t *testing.T) {
	s := NewComplianceScanner()
	req := &reqmodel.Request{Messages: []reqmodel.Message{
		{Role: "system", Content: "cvv:123"},
	}}

	verdict := s.Scan(context.Background(), req)

	assert.True(t, verdict.Passed)
}

func TestComplianceScannerCleanTextPasses(t *testing.T) {
	s := NewComplianceScanner()
	req := &reqmodel.Request{Messages: []reqmodel.Message{
		{Role: "user", Content: "what time zone is Tokyo in?"},
	}}

	verdict := s.Scan(context.Background(), req)

	assert.True(t, verdict.Passed)
	assert.Empty(t, verdict.Findings)
}
