package reqmodel

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeverityRankOrdering(t *testing.T) {
	assert.Less(t, SeverityNone.Rank(), SeverityLow.Rank())
	assert.Less(t, SeverityLow.Rank(), SeverityMedium.Rank())
	assert.Less(t, SeverityMedium.Rank(), SeverityHigh.Rank())
	assert.Less(t, SeverityHigh.Rank(), SeverityCritical.Rank())
}

func TestSeverityRankUnknownDefaultsToNone(t *testing.T) {
	assert.Equal(t, SeverityNone.Rank(), Severity("bogus").Rank())
}

func TestMaxSeverity(t *testing.T) {
	assert.Equal(t, SeverityHigh, MaxSeverity(SeverityLow, SeverityHigh))
	assert.Equal(t, SeverityHigh, MaxSeverity(SeverityHigh, SeverityLow))
	assert.Equal(t, SeverityCritical, MaxSeverity(SeverityCritical, SeverityCritical))
}

func TestMaxSeverityEmptyStartingValue(t *testing.T) {
	assert.Equal(t, SeverityLow, MaxSeverity("", SeverityLow))
}

func TestMaskEvidenceShortSpanUnchanged(t *testing.T) {
	short := "sk-short-secret"
	assert.Equal(t, short, MaskEvidence(short))
}

func TestMaskEvidenceLongSpanRedactsMiddle(t *testing.T) {
	long := strings.Repeat("a", 50) + strings.Repeat("b", 60)
	masked := MaskEvidence(long)
	assert.Less(t, len(masked), len(long))
	assert.Contains(t, masked, "[REDACTED]")
	assert.True(t, strings.HasPrefix(masked, "aaaa"))
	assert.True(t, strings.HasSuffix(masked, "bbbb"))
}
