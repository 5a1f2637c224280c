// Package loadbalancer implements endpoint selection, health tracking, and
// per-endpoint connection pooling from spec §4.6.
package loadbalancer

import (
	"sync"
	"time"
)

// Endpoint is one upstream provider/model target.
type Endpoint struct {
	ID       string
	Provider string
	Model    string
	Address  string
	Weight   float64
	Priority int // failover rank, ascending = tried first

	// PricePerThousandTokens backs the least-cost selector; zero means
	// unknown pricing (that selector falls back to round-robin).
	PricePerThousandTokens float64

	Enabled bool

	stats *endpointStats
}

// NewEndpoint creates an endpoint with its health tracker initialized.
func NewEndpoint(id, provider, model, address string, weight float64, priority int) *Endpoint {
	return &Endpoint{
		ID:       id,
		Provider: provider,
		Model:    model,
		Address:  address,
		Weight:   weight,
		Priority: priority,
		Enabled:  true,
		stats:    &endpointStats{healthy: true},
	}
}

// endpointStats is the single-writer-per-endpoint counter set from spec §5:
// "single-writer-per-endpoint atomically-updated counters... under a
// per-endpoint lock."
type endpointStats struct {
	mu                sync.Mutex
	activeConnections int
	totalRequests     int64
	totalFailures     int64
	avgLatencyEWMA    float64
	healthy           bool
}

// Healthy reports the sticky health flag: unhealthy once
// totalRequests > 10 and failRate > 0.5, healthy again once failRate
// recovers below that threshold, per spec §4.6.
func (e *Endpoint) Healthy() bool {
	e.stats.mu.Lock()
	defer e.stats.mu.Unlock()
	return e.stats.healthy
}

// ActiveConnections returns the current in-flight count for this endpoint.
func (e *Endpoint) ActiveConnections() int {
	e.stats.mu.Lock()
	defer e.stats.mu.Unlock()
	return e.stats.activeConnections
}

// AvgLatencyEWMA returns the exponentially-weighted moving average latency.
func (e *Endpoint) AvgLatencyEWMA() float64 {
	e.stats.mu.Lock()
	defer e.stats.mu.Unlock()
	return e.stats.avgLatencyEWMA
}

// Candidate reports whether the endpoint may be selected: enabled and
// healthy, per spec §4.6 and the §8 invariant
// ("for all endpoints with enabled=false or healthy=false, never selected").
func (e *Endpoint) Candidate() bool {
	return e.Enabled && e.Healthy()
}

// BeginRequest increments the active-connection count; call before dispatch.
func (e *Endpoint) BeginRequest() {
	e.stats.mu.Lock()
	defer e.stats.mu.Unlock()
	e.stats.activeConnections++
}

// EndRequest records the outcome of a dispatched request: decrements
// active connections, updates the EWMA latency, the failure counters, and
// recomputes the sticky health flag.
func (e *Endpoint) EndRequest(success bool, latency time.Duration) {
	e.stats.mu.Lock()
	defer e.stats.mu.Unlock()

	if e.stats.activeConnections > 0 {
		e.stats.activeConnections--
	}
	e.stats.totalRequests++
	if !success {
		e.stats.totalFailures++
	}

	sample := float64(latency.Milliseconds())
	if e.stats.avgLatencyEWMA == 0 {
		e.stats.avgLatencyEWMA = sample
	} else {
		e.stats.avgLatencyEWMA = 0.9*e.stats.avgLatencyEWMA + 0.1*sample
	}

	e.recomputeHealth()
}

// recomputeHealth applies the sticky flip rule; caller must hold stats.mu.
func (e *Endpoint) recomputeHealth() {
	if e.stats.totalRequests == 0 {
		return
	}
	failRate := float64(e.stats.totalFailures) / float64(e.stats.totalRequests)

	if e.stats.healthy && e.stats.totalRequests > 10 && failRate > 0.5 {
		e.stats.healthy = false
		return
	}
	if !e.stats.healthy && failRate <= 0.5 {
		e.stats.healthy = true
	}
}
