// Package gatewaypipeline wires every subsystem into the end-to-end request
// lifecycle from spec §2:
//
//	ingress -> normalize -> admission(quota+tenant+backpressure)
//	        -> cache-lookup -> scanner-pipeline -> policy-engine
//	        -> scheduler(priority queue) -> load-balancer(failover)
//	        -> upstream-call -> response-scan -> cache-store
//	        -> cost-track -> metrics/audit -> egress
//
// No teacher file orchestrates a single end-to-end flow this way; the
// pipeline is built in the idiom the rest of the gateway already
// establishes (a struct of collaborators built once at startup, per spec
// §5's "every subsystem is instantiated once... with a reference to its
// collaborators").
package gatewaypipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aocs/gateway/internal/backpressure"
	"github.com/aocs/gateway/internal/cost"
	"github.com/aocs/gateway/internal/events"
	"github.com/aocs/gateway/internal/gwerrors"
	"github.com/aocs/gateway/internal/gwmetrics"
	"github.com/aocs/gateway/internal/loadbalancer"
	"github.com/aocs/gateway/internal/policy"
	"github.com/aocs/gateway/internal/provideradapter"
	"github.com/aocs/gateway/internal/queue"
	"github.com/aocs/gateway/internal/reqmodel"
	"github.com/aocs/gateway/internal/scanner"
	"github.com/aocs/gateway/internal/semcache"
	"github.com/aocs/gateway/internal/tenant"
)

// Embedder turns a prompt into a vector for the semantic cache; a real
// deployment plugs in a provider embedding call. Out of scope per spec §1
// ("provider-specific request/response parsers specified only as a
// pluggable interface"), so the default is a stand-in, see embed.go.
type Embedder func(text string) []float64

// Dependencies bundles every collaborator the pipeline needs, built once at
// startup per spec §5.
type Dependencies struct {
	Tenant       *tenant.Manager
	Backpressure *backpressure.Controller
	Scanners     *scanner.Pipeline
	Policies     policy.Store
	Cache        semcache.CacheBackend
	Dispatcher   *loadbalancer.Dispatcher
	Adapters     *provideradapter.Registry
	Queue        *queue.Queue
	CostTracker  *cost.CostTracker
	Budget       *cost.BudgetEnforcer
	Pricing      *cost.PricingTable
	Audit        events.AuditSink
	Events       events.EventEmitter
	Metrics      *gwmetrics.Metrics
	Embed        Embedder
	LoadSignal   func() backpressure.Signal
	ShadowTenants map[string]bool // tenant ids with shadow mode enabled
}

// Pipeline runs the full request lifecycle. It owns a Scheduler over Queue
// whose Handler is the pipeline's own dispatch stage, so admission into the
// worker pool and the dispatch-through-upstream work share one queue.
type Pipeline struct {
	deps Dependencies

	mu       sync.Mutex
	breakers map[string]*backpressure.CircuitBreaker
}

// New builds a Pipeline over the given collaborators. deps.Embed defaults
// to a deterministic stand-in embedder when nil.
func New(deps Dependencies) *Pipeline {
	if deps.Embed == nil {
		deps.Embed = HashEmbed
	}
	return &Pipeline{deps: deps, breakers: make(map[string]*backpressure.CircuitBreaker)}
}

// Result is what Handle returns on a successful or gracefully-degraded
// outcome (e.g. a shadow-mode block that still dispatched).
type Result struct {
	Response     *reqmodel.Response
	Decision     reqmodel.Decision
	CacheHit     bool
	ShadowBlock  bool
	CostEntry    cost.Entry
}

// Handle runs req through the full pipeline and returns the upstream (or
// cached) response, or a typed *gwerrors.GatewayError for any terminal
// failure per spec §7 class 2.
func (p *Pipeline) Handle(ctx context.Context, req *reqmodel.Request) (*Result, error) {
	start := time.Now()

	if err := p.admit(req); err != nil {
		p.audit(req, reqmodel.DefaultDecision(), reqmodel.AggregatedVerdict{}, err)
		return nil, err
	}

	prompt := req.FlattenedUserText()
	embedding := p.deps.Embed(prompt)
	cacheMeta := cacheMetadataFor(req)

	var cacheResult semcache.LookupResult
	if p.deps.Cache != nil {
		cacheResult = p.deps.Cache.Lookup(prompt, embedding, cacheMeta)
	}

	verdict := p.deps.Scanners.Scan(ctx, req)
	decision := policy.Evaluate(p.deps.Policies.List(), req, verdict)

	if p.deps.Metrics != nil {
		p.deps.Metrics.RecordDecision(string(decision.Action), string(verdict.OverallThreatLevel))
	}

	shadow := p.deps.ShadowTenants != nil && p.deps.ShadowTenants[req.TenantID]
	if decision.Action == reqmodel.ActionBlock {
		if shadow {
			decision.ShadowBlock = true
			p.deps.emitAlert(req, decision, verdict, "shadow-block")
		} else {
			p.audit(req, decision, verdict, nil)
			return nil, gwerrors.New(gwerrors.CodePolicyBlocked, decision.Reason)
		}
	}
	if decision.Action == reqmodel.ActionRedact {
		req = policy.ApplyRedact(req, decision.RedactSpans)
	}
	if decision.Action == reqmodel.ActionAlert {
		p.deps.emitAlert(req, decision, verdict, "policy-alert")
	}

	if cacheResult.Hit {
		resp, ok := cacheResult.Entry.Response.(*reqmodel.Response)
		if ok {
			resp.Cached = true
			entry := p.recordCost(req, 0, 0)
			p.recordMetrics(req, resp, start, "cache-hit")
			p.audit(req, decision, verdict, nil)
			return &Result{Response: resp, Decision: decision, CacheHit: true, ShadowBlock: decision.ShadowBlock, CostEntry: entry}, nil
		}
	}

	resp, err := p.dispatch(ctx, req)
	if err != nil {
		p.audit(req, decision, verdict, err)
		return nil, err
	}

	p.scanResponse(ctx, req, resp)

	if p.deps.Cache != nil {
		_ = p.deps.Cache.Store(prompt, embedding, resp, cacheMeta)
	}

	entry := p.recordCost(req, resp.InputTokens, resp.OutputTokens)
	p.recordMetrics(req, resp, start, "ok")
	p.audit(req, decision, verdict, nil)

	return &Result{Response: resp, Decision: decision, ShadowBlock: decision.ShadowBlock, CostEntry: entry}, nil
}

// admit runs the quota+tenant+backpressure admission stage, per spec §2.
func (p *Pipeline) admit(req *reqmodel.Request) error {
	if req.TenantID != "" {
		t, ok := p.deps.Tenant.Get(req.TenantID)
		if !ok {
			return gwerrors.New(gwerrors.CodeUnauthorized, "unknown tenant")
		}
		if t.Status != tenant.StatusActive && t.Status != tenant.StatusTrial {
			return gwerrors.New(gwerrors.CodeTenantDisabled, "tenant is "+string(t.Status))
		}
		if ok, reason := p.deps.Tenant.ValidateAccess(req.TenantID, req.Provider, req.Model); !ok {
			return gwerrors.New(gwerrors.CodeProviderNotAllowed, reason)
		}
		for _, qs := range p.deps.Tenant.CheckQuotas(req.TenantID) {
			if qs.Exceeded {
				return gwerrors.New(gwerrors.CodeQuotaExceeded, fmt.Sprintf("%s %s quota exceeded", qs.Period, qs.Metric))
			}
		}
	}

	if p.deps.Budget != nil && p.deps.Budget.Exceeded(req.UserID, req.TenantID) {
		return gwerrors.New(gwerrors.CodeBudgetExceeded, "budget exceeded")
	}

	if p.deps.Backpressure != nil && p.deps.LoadSignal != nil {
		if err := p.deps.Backpressure.Admit(p.deps.LoadSignal(), req.Priority); err != nil {
			if p.deps.Metrics != nil {
				p.deps.Metrics.RecordAdmissionRejection("load-shed")
			}
			return gwerrors.Wrap(gwerrors.CodeLoadShed, "shed under load", err)
		}
	}
	return nil
}

// dispatch enqueues req for scheduling and runs it through the load
// balancer under a per-endpoint circuit breaker.
func (p *Pipeline) dispatch(ctx context.Context, req *reqmodel.Request) (*reqmodel.Response, error) {
	if p.deps.Queue != nil {
		item := &queue.Item{ID: uuid.NewString(), UserID: req.UserID, Priority: req.Priority, EnqueuedAt: time.Now(), Deadline: req.Deadline}
		if err := p.deps.Queue.Enqueue(item); err != nil {
			return nil, err
		}
		defer p.deps.Queue.Release(req.Priority, req.UserID)
	}

	var resp *reqmodel.Response
	work := func(conn *loadbalancer.Conn, ep *loadbalancer.Endpoint) error {
		breaker := p.breakerFor(ep.ID)
		out, err := breaker.Execute(func() (interface{}, error) {
			return callUpstream(ctx, p.deps.Adapters, conn, ep, req)
		})
		if err != nil {
			return err
		}
		resp = out.(*reqmodel.Response)
		return nil
	}

	if err := p.deps.Dispatcher.Dispatch(work); err != nil {
		return nil, gwerrors.Wrap(gwerrors.CodeUpstreamFailure, "all endpoints failed", err)
	}
	return resp, nil
}

func (p *Pipeline) breakerFor(endpointID string) *backpressure.CircuitBreaker {
	p.mu.Lock()
	defer p.mu.Unlock()
	if b, ok := p.breakers[endpointID]; ok {
		return b
	}
	b := backpressure.NewCircuitBreaker(backpressure.DefaultCircuitConfig(endpointID))
	p.breakers[endpointID] = b
	return b
}

// scanResponse runs the scanner pipeline against the assistant's reply,
// per spec §2's "response-scan" stage, folding any findings into the audit
// trail without altering the already-served response.
func (p *Pipeline) scanResponse(ctx context.Context, req *reqmodel.Request, resp *reqmodel.Response) {
	synthetic := &reqmodel.Request{
		CorrelationID: req.CorrelationID,
		TenantID:      req.TenantID,
		UserID:        req.UserID,
		Provider:      resp.Provider,
		Model:         resp.Model,
		Messages:      []reqmodel.Message{{Role: "assistant", Content: resp.Content}},
	}
	verdict := p.deps.Scanners.Scan(ctx, synthetic)
	if len(verdict.Findings) > 0 && p.deps.Events != nil {
		p.deps.Events.Emit("gateway.response.findings", "gatewaypipeline", req.CorrelationID, map[string]interface{}{
			"findingCount": len(verdict.Findings),
			"threatLevel":  string(verdict.OverallThreatLevel),
		})
	}
}

func (p *Pipeline) recordCost(req *reqmodel.Request, inputTokens, outputTokens int64) cost.Entry {
	if p.deps.CostTracker == nil {
		return cost.Entry{}
	}
	entry := p.deps.CostTracker.RecordUsage(req.UserID, req.TenantID, req.Provider, req.Model, inputTokens, outputTokens)
	if req.TenantID != "" {
		p.deps.Tenant.RecordUsage(req.TenantID, tenant.UsageDelta{Requests: 1, Tokens: inputTokens + outputTokens, Cost: entry.TotalCost})
	}
	if p.deps.Metrics != nil {
		p.deps.Metrics.RecordCost(req.Provider, req.Model, entry.TotalCost)
	}
	return entry
}

func (p *Pipeline) recordMetrics(req *reqmodel.Request, resp *reqmodel.Response, start time.Time, outcome string) {
	if p.deps.Metrics == nil {
		return
	}
	p.deps.Metrics.RecordRequest(req.Provider, req.Model, outcome, time.Since(start).Seconds())
	p.deps.Metrics.RecordCacheLookup(req.Provider, req.Model, outcome == "cache-hit")
}

func (p *Pipeline) audit(req *reqmodel.Request, decision reqmodel.Decision, verdict reqmodel.AggregatedVerdict, err error) {
	if p.deps.Audit == nil {
		return
	}
	if err != nil {
		decision.Reason = err.Error()
	}
	p.deps.Audit.Record(events.AuditRecord{
		Timestamp:     time.Now(),
		CorrelationID: req.CorrelationID,
		UserID:        req.UserID,
		TenantID:      req.TenantID,
		Decision:      decision.Action,
		ThreatLevel:   verdict.OverallThreatLevel,
		Findings:      verdict.Findings,
	})
}

func (d Dependencies) emitAlert(req *reqmodel.Request, decision reqmodel.Decision, verdict reqmodel.AggregatedVerdict, reason string) {
	if d.Events == nil {
		return
	}
	d.Events.Emit("gateway.policy.alert", "gatewaypipeline", req.CorrelationID, map[string]interface{}{
		"reason":      reason,
		"action":      string(decision.Action),
		"policyId":    decision.PolicyID,
		"threatLevel": string(verdict.OverallThreatLevel),
	})
}

func cacheMetadataFor(req *reqmodel.Request) semcache.Metadata {
	temp, hasTemp := req.Parameters["temperature"]
	return semcache.Metadata{
		Provider:       req.Provider,
		Model:          req.Model,
		Temperature:    temp,
		HasTemperature: hasTemp,
		OrganizationID: req.TenantID,
	}
}
