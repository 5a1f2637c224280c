// Package scanner implements the content inspection pipeline: a set of
// registered scanners run in parallel (or sequentially) over a normalized
// request and their verdicts are aggregated into one AggregatedVerdict.
package scanner

import (
	"context"

	"github.com/aocs/gateway/internal/reqmodel"
)

// Scanner is the pluggable inspection unit from spec §6: every registered
// scanner is invoked once per request and returns a ScannerVerdict.
type Scanner interface {
	ID() string
	Name() string
	Scan(ctx context.Context, req *reqmodel.Request) reqmodel.ScannerVerdict
}

// verdictFromFindings derives passed/score/threatLevel from a finding set,
// per §4.1: threat level is the max severity, score is the mean of each
// finding's severity score, and an empty finding set is a clean pass.
func verdictFromFindings(scannerID string, findings []reqmodel.Finding, durationMs float64) reqmodel.ScannerVerdict {
	if len(findings) == 0 {
		return reqmodel.ScannerVerdict{
			ScannerID:   scannerID,
			Passed:      true,
			Score:       1.0,
			ThreatLevel: reqmodel.SeverityNone,
			DurationMs:  durationMs,
		}
	}

	threat := reqmodel.SeverityNone
	var sum float64
	for _, f := range findings {
		threat = reqmodel.MaxSeverity(threat, f.Severity)
		sum += f.Severity.Score()
	}

	return reqmodel.ScannerVerdict{
		ScannerID:   scannerID,
		Passed:      threat.Rank() < reqmodel.SeverityHigh.Rank(),
		Score:       sum / float64(len(findings)),
		Findings:    findings,
		ThreatLevel: threat,
		DurationMs:  durationMs,
	}
}
