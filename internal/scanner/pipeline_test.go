package scanner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/aocs/gateway/internal/reqmodel"
)

type stubScanner struct {
	id       string
	verdict  reqmodel.ScannerVerdict
	delay    time.Duration
	shouldPanic bool
}

func (s *stubScanner) ID() string   { return s.id }
func (s *stubScanner) Name() string { return s.id }
func (s *stubScanner) Scan(ctx context.Context, req *reqmodel.Request) reqmodel.ScannerVerdict {
	if s.shouldPanic {
		panic("boom")
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
		}
	}
	return s.verdict
}

func TestPipelineEmptyScannersPassesByDefault(t *testing.T) {
	p := NewPipeline(nil)
	verdict := p.Scan(context.Background(), &reqmodel.Request{})
	assert.True(t, verdict.Passed)
	assert.Equal(t, reqmodel.SeverityNone, verdict.OverallThreatLevel)
}

func TestPipelineAggregatesAcrossScanners(t *testing.T) {
	p := NewPipeline([]Scanner{
		&stubScanner{id: "a", verdict: reqmodel.ScannerVerdict{ScannerID: "a", Passed: true, Score: 1, ThreatLevel: reqmodel.SeverityNone}},
		&stubScanner{id: "b", verdict: reqmodel.ScannerVerdict{ScannerID: "b", Passed: false, Score: 0.3, ThreatLevel: reqmodel.SeverityCritical,
			Findings: []reqmodel.Finding{{Type: "X", Severity: reqmodel.SeverityCritical, ScannerID: "b"}}}},
	})

	verdict := p.Scan(context.Background(), &reqmodel.Request{})

	assert.False(t, verdict.Passed)
	assert.Equal(t, reqmodel.SeverityCritical, verdict.OverallThreatLevel)
	assert.Len(t, verdict.Findings, 1)
}

func TestPipelineScannerPanicBecomesLowSeverityFinding(t *testing.T) {
	p := NewPipeline([]Scanner{&stubScanner{id: "crashy", shouldPanic: true}})

	verdict := p.Scan(context.Background(), &reqmodel.Request{})

	assert.False(t, verdict.Passed)
	assert.Equal(t, reqmodel.SeverityLow, verdict.OverallThreatLevel)
	assert.Len(t, verdict.Findings, 1)
	assert.Equal(t, "ScannerError", verdict.Findings[0].Type)
}

func TestPipelineScannerTimeoutBecomesFinding(t *testing.T) {
	p := NewPipeline([]Scanner{&stubScanner{id: "slow", delay: 50 * time.Millisecond}})
	p.ScanTimeout = 5 * time.Millisecond

	verdict := p.Scan(context.Background(), &reqmodel.Request{})

	assert.False(t, verdict.Passed)
	assert.Len(t, verdict.Findings, 1)
	assert.Equal(t, "ScannerError", verdict.Findings[0].Type)
}

func TestPipelineSetScannersIsAtomic(t *testing.T) {
	p := NewPipeline([]Scanner{&stubScanner{id: "a"}})
	assert.Len(t, p.Scanners(), 1)

	p.SetScanners([]Scanner{&stubScanner{id: "a"}, &stubScanner{id: "b"}})
	assert.Len(t, p.Scanners(), 2)
}
