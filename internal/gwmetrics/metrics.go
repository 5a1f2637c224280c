// Package gwmetrics holds the gateway's Prometheus metric registry, built
// the way the teacher's internal/escrow/metrics.go builds its Metrics
// struct: a single promauto-registered struct of CounterVec/HistogramVec/
// GaugeVec fields with static names declared at construction (per spec §9's
// "stats/metrics as free-form name/value dimension map" redesign guidance,
// expressed here as Prometheus label dimensions rather than a free-form map).
package gwmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus metric the gateway pipeline emits.
type Metrics struct {
	RequestsTotal      *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec
	DecisionTotal       *prometheus.CounterVec
	ScannerDuration     *prometheus.HistogramVec
	ScannerFindings     *prometheus.CounterVec
	QueueDepth          *prometheus.GaugeVec
	QueueWaitSeconds    *prometheus.HistogramVec
	AdmissionRejections *prometheus.CounterVec
	CircuitState        *prometheus.GaugeVec
	EndpointHealthy     *prometheus.GaugeVec
	EndpointLatency     *prometheus.HistogramVec
	CacheHits           *prometheus.CounterVec
	CacheMisses         *prometheus.CounterVec
	CacheSize           prometheus.Gauge
	CostTotal           *prometheus.CounterVec
	BudgetAlerts        *prometheus.CounterVec
}

// New builds and registers every metric against the default registry.
func New() *Metrics {
	return &Metrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{Name: "gateway_requests_total", Help: "Total requests received by the gateway"},
			[]string{"provider", "model"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{Name: "gateway_request_duration_seconds", Help: "End-to-end request latency", Buckets: prometheus.DefBuckets},
			[]string{"provider", "model", "outcome"},
		),
		DecisionTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{Name: "gateway_decision_total", Help: "Policy decisions by action"},
			[]string{"action", "threat_level"},
		),
		ScannerDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{Name: "gateway_scanner_duration_seconds", Help: "Per-scanner execution time", Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0}},
			[]string{"scanner"},
		),
		ScannerFindings: promauto.NewCounterVec(
			prometheus.CounterOpts{Name: "gateway_scanner_findings_total", Help: "Findings emitted per scanner and severity"},
			[]string{"scanner", "severity"},
		),
		QueueDepth: promauto.NewGaugeVec(
			prometheus.GaugeOpts{Name: "gateway_queue_depth", Help: "Current items queued per priority band"},
			[]string{"priority"},
		),
		QueueWaitSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{Name: "gateway_queue_wait_seconds", Help: "Time spent queued before dequeue", Buckets: prometheus.DefBuckets},
			[]string{"priority"},
		),
		AdmissionRejections: promauto.NewCounterVec(
			prometheus.CounterOpts{Name: "gateway_admission_rejections_total", Help: "Requests rejected at admission"},
			[]string{"reason"},
		),
		CircuitState: promauto.NewGaugeVec(
			prometheus.GaugeOpts{Name: "gateway_circuit_state", Help: "Circuit breaker state (0=closed,1=half-open,2=open)"},
			[]string{"endpoint"},
		),
		EndpointHealthy: promauto.NewGaugeVec(
			prometheus.GaugeOpts{Name: "gateway_endpoint_healthy", Help: "Endpoint sticky health flag (1=healthy)"},
			[]string{"endpoint"},
		),
		EndpointLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{Name: "gateway_endpoint_latency_seconds", Help: "Upstream call latency", Buckets: prometheus.DefBuckets},
			[]string{"endpoint"},
		),
		CacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{Name: "gateway_cache_hits_total", Help: "Semantic cache hits"},
			[]string{"provider", "model"},
		),
		CacheMisses: promauto.NewCounterVec(
			prometheus.CounterOpts{Name: "gateway_cache_misses_total", Help: "Semantic cache misses"},
			[]string{"provider", "model"},
		),
		CacheSize: promauto.NewGauge(
			prometheus.GaugeOpts{Name: "gateway_cache_size", Help: "Current cache entry count"},
		),
		CostTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{Name: "gateway_cost_total", Help: "Accumulated cost in the pricing table's currency unit"},
			[]string{"provider", "model"},
		),
		BudgetAlerts: promauto.NewCounterVec(
			prometheus.CounterOpts{Name: "gateway_budget_alerts_total", Help: "Budget alert-threshold crossings"},
			[]string{"scope"},
		),
	}
}

// RecordRequest records one completed request's outcome and latency.
func (m *Metrics) RecordRequest(provider, model, outcome string, seconds float64) {
	m.RequestsTotal.WithLabelValues(provider, model).Inc()
	m.RequestDuration.WithLabelValues(provider, model, outcome).Observe(seconds)
}

// RecordDecision records a policy decision outcome.
func (m *Metrics) RecordDecision(action, threatLevel string) {
	m.DecisionTotal.WithLabelValues(action, threatLevel).Inc()
}

// RecordScanner records one scanner's execution time and findings.
func (m *Metrics) RecordScanner(scanner string, seconds float64, findingsBySeverity map[string]int) {
	m.ScannerDuration.WithLabelValues(scanner).Observe(seconds)
	for severity, count := range findingsBySeverity {
		m.ScannerFindings.WithLabelValues(scanner, severity).Add(float64(count))
	}
}

// SetQueueDepth sets the current depth gauge for one priority band.
func (m *Metrics) SetQueueDepth(priority string, depth int) {
	m.QueueDepth.WithLabelValues(priority).Set(float64(depth))
}

// RecordAdmissionRejection records one admission-time rejection.
func (m *Metrics) RecordAdmissionRejection(reason string) {
	m.AdmissionRejections.WithLabelValues(reason).Inc()
}

// SetCircuitState records a breaker's numeric state for one endpoint.
func (m *Metrics) SetCircuitState(endpoint string, state int) {
	m.CircuitState.WithLabelValues(endpoint).Set(float64(state))
}

// SetEndpointHealth records an endpoint's sticky health flag and latency.
func (m *Metrics) SetEndpointHealth(endpoint string, healthy bool, latencySeconds float64) {
	v := 0.0
	if healthy {
		v = 1.0
	}
	m.EndpointHealthy.WithLabelValues(endpoint).Set(v)
	m.EndpointLatency.WithLabelValues(endpoint).Observe(latencySeconds)
}

// RecordCacheLookup records a cache hit or miss for (provider, model).
func (m *Metrics) RecordCacheLookup(provider, model string, hit bool) {
	if hit {
		m.CacheHits.WithLabelValues(provider, model).Inc()
	} else {
		m.CacheMisses.WithLabelValues(provider, model).Inc()
	}
}

// RecordCost records the accumulated cost of one request.
func (m *Metrics) RecordCost(provider, model string, amount float64) {
	m.CostTotal.WithLabelValues(provider, model).Add(amount)
}

// RecordBudgetAlert records a budget alert-threshold crossing for a scope.
func (m *Metrics) RecordBudgetAlert(scope string) {
	m.BudgetAlerts.WithLabelValues(scope).Inc()
}
