package scanner

import (
	"context"
	"sync"
	"time"

	"github.com/aocs/gateway/internal/reqmodel"
)

// Pipeline runs every registered scanner against a request and aggregates
// the results, per spec §4.1. The scanner list is published copy-on-write
// (see SetScanners) so readers never block a concurrent registry update.
type Pipeline struct {
	scanners atomicScanners

	// Parallel selects fan-out (default) vs sequential execution.
	Parallel bool

	// ScanTimeout bounds each individual scanner; a scanner exceeding it
	// has its result synthesized as a low-severity ScannerError finding,
	// without affecting the other scanners.
	ScanTimeout time.Duration
}

// atomicScanners holds a copy-on-write snapshot of the scanner list.
type atomicScanners struct {
	mu   sync.RWMutex
	list []Scanner
}

func (a *atomicScanners) Load() []Scanner {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.list
}

func (a *atomicScanners) Store(list []Scanner) {
	a.mu.Lock()
	defer a.mu.Unlock()
	snapshot := make([]Scanner, len(list))
	copy(snapshot, list)
	a.list = snapshot
}

// NewPipeline builds a pipeline with the given scanners, parallel fan-out
// by default, and a 5s per-scanner timeout.
func NewPipeline(scanners []Scanner) *Pipeline {
	p := &Pipeline{Parallel: true, ScanTimeout: 5 * time.Second}
	p.SetScanners(scanners)
	return p
}

// SetScanners atomically publishes a new scanner snapshot.
func (p *Pipeline) SetScanners(scanners []Scanner) {
	p.scanners.Store(scanners)
}

// Scanners returns the current snapshot.
func (p *Pipeline) Scanners() []Scanner {
	return p.scanners.Load()
}

// Scan runs every registered scanner against req and returns the aggregated
// verdict. An empty scanner set returns the boundary-case verdict
// {passed:true, threatLevel:none, score:1} per spec §8.
func (p *Pipeline) Scan(ctx context.Context, req *reqmodel.Request) reqmodel.AggregatedVerdict {
	start := time.Now()
	scanners := p.Scanners()

	if len(scanners) == 0 {
		return reqmodel.AggregatedVerdict{
			OverallThreatLevel: reqmodel.SeverityNone,
			OverallScore:       1.0,
			Passed:             true,
			DurationMs:         0,
		}
	}

	var verdicts []reqmodel.ScannerVerdict
	if p.Parallel {
		verdicts = p.scanParallel(ctx, scanners, req)
	} else {
		verdicts = p.scanSequential(ctx, scanners, req)
	}

	return reqmodel.Aggregate(verdicts, float64(time.Since(start).Milliseconds()))
}

func (p *Pipeline) scanParallel(ctx context.Context, scanners []Scanner, req *reqmodel.Request) []reqmodel.ScannerVerdict {
	results := make([]reqmodel.ScannerVerdict, len(scanners))
	var wg sync.WaitGroup
	for i, s := range scanners {
		wg.Add(1)
		go func(i int, s Scanner) {
			defer wg.Done()
			results[i] = p.runOne(ctx, s, req)
		}(i, s)
	}
	wg.Wait()
	return results
}

func (p *Pipeline) scanSequential(ctx context.Context, scanners []Scanner, req *reqmodel.Request) []reqmodel.ScannerVerdict {
	results := make([]reqmodel.ScannerVerdict, len(scanners))
	for i, s := range scanners {
		results[i] = p.runOne(ctx, s, req)
	}
	return results
}

// runOne executes a single scanner under the pipeline's timeout, recovering
// from both timeouts and panics (recoverable scanner errors, per §4.1/§7:
// the pipeline continues and records a low-severity finding).
func (p *Pipeline) runOne(ctx context.Context, s Scanner, req *reqmodel.Request) (result reqmodel.ScannerVerdict) {
	timeout := p.ScanTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	scanCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan reqmodel.ScannerVerdict, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- reqmodel.ScannerVerdict{
					ScannerID:   s.ID(),
					Passed:      false,
					Score:       0.2,
					Findings:    []reqmodel.Finding{scannerCrashFinding(s.ID())},
					ThreatLevel: reqmodel.SeverityLow,
				}
			}
		}()
		done <- s.Scan(scanCtx, req)
	}()

	select {
	case v := <-done:
		return v
	case <-scanCtx.Done():
		return reqmodel.ScannerVerdict{
			ScannerID:   s.ID(),
			Passed:      false,
			Findings:    []reqmodel.Finding{reqmodel.ScannerErrorFinding(s.ID())},
			ThreatLevel: reqmodel.SeverityLow,
			Score:       0.2,
			DurationMs:  float64(timeout.Milliseconds()),
		}
	}
}

func scannerCrashFinding(scannerID string) reqmodel.Finding {
	f := reqmodel.ScannerErrorFinding(scannerID)
	f.Remediation = "scanner panicked, treated as a recoverable failure"
	return f
}
