package reqmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAggregateEmptyVerdictsPassesByDefault(t *testing.T) {
	agg := Aggregate(nil, 1.5)
	assert.True(t, agg.Passed)
	assert.Equal(t, SeverityNone, agg.OverallThreatLevel)
	assert.Equal(t, 1.0, agg.OverallScore)
	assert.Equal(t, 1.5, agg.DurationMs)
}

func TestAggregateTakesMaxThreatLevelAndMeanScore(t *testing.T) {
	verdicts := []ScannerVerdict{
		{ScannerID: "pii", Passed: true, Score: 1.0, ThreatLevel: SeverityNone},
		{ScannerID: "dlp", Passed: false, Score: 0.4, ThreatLevel: SeverityHigh,
			Findings: []Finding{{Type: "AWSAccessKey", Severity: SeverityHigh, ScannerID: "dlp"}}},
	}
	agg := Aggregate(verdicts, 10)
	assert.False(t, agg.Passed)
	assert.Equal(t, SeverityHigh, agg.OverallThreatLevel)
	assert.InDelta(t, 0.7, agg.OverallScore, 1e-9)
	assert.Len(t, agg.Findings, 1)
}

func TestDefaultDecisionAllows(t *testing.T) {
	d := DefaultDecision()
	assert.Equal(t, ActionAllow, d.Action)
	assert.NotEmpty(t, d.Reason)
}
