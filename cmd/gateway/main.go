package main

import (
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/aocs/gateway/internal/backpressure"
	"github.com/aocs/gateway/internal/config"
	"github.com/aocs/gateway/internal/cost"
	"github.com/aocs/gateway/internal/events"
	"github.com/aocs/gateway/internal/gatewaypipeline"
	"github.com/aocs/gateway/internal/gwmetrics"
	"github.com/aocs/gateway/internal/infra"
	"github.com/aocs/gateway/internal/ingress"
	"github.com/aocs/gateway/internal/loadbalancer"
	"github.com/aocs/gateway/internal/normalize"
	"github.com/aocs/gateway/internal/policy"
	"github.com/aocs/gateway/internal/provideradapter"
	"github.com/aocs/gateway/internal/queue"
	"github.com/aocs/gateway/internal/reqmodel"
	"github.com/aocs/gateway/internal/scanner"
	"github.com/aocs/gateway/internal/semcache"
	"github.com/aocs/gateway/internal/streaming"
	"github.com/aocs/gateway/internal/tenant"
)

func main() {
	log.Println("starting AI governance gateway")

	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg := config.Get()
	if cfg.Server.Port == "" {
		log.Fatal("config: server.port must not be empty") // fail-fast per spec class 3
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	bus := events.NewBus()
	auditSink := events.NewBusAuditSink(bus, "gatewaypipeline")

	tenantMgr := tenant.NewManager()
	seedTenants(tenantMgr, cfg)

	scanPipeline := scanner.NewPipeline([]scanner.Scanner{
		scanner.NewPIIScanner(),
		scanner.NewDLPScanner(),
		scanner.NewInjectionScanner(),
		scanner.NewToxicityScanner(),
		scanner.NewComplianceScanner(),
		scanner.NewEntropyScanner(),
	})

	policyStore := policy.NewInMemoryStore()

	cache, err := buildCache(cfg)
	if err != nil {
		log.Fatalf("semcache: failed to initialize: %v", err)
	}

	if cfg.Cache.UseRedis {
		if adapter, err := infra.NewGoRedisAdapter(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); err != nil {
			log.Printf("usage mirror: redis unavailable, usage stays in-process: %v", err)
		} else {
			tenantMgr.SetUsageMirror(tenant.NewUsageMirror(adapter.Client(), 0))
		}
	}

	pricing := cost.NewPricingTable(bus)
	seedPricing(pricing, cfg)
	tracker := cost.NewCostTracker(pricing, 10000)
	budget := cost.NewBudgetEnforcer(tracker, nil)

	q := queue.New(cfg.Queue.MaxSize, cfg.Queue.EnableFairness)
	shedPriorities := cfg.Backpressure.ShedPriorities
	if len(shedPriorities) == 0 {
		shedPriorities = []string{"low", "background"}
	}
	shed := make([]reqmodel.Priority, len(shedPriorities))
	for i, p := range shedPriorities {
		shed[i] = reqmodel.Priority(p)
	}
	bpController := backpressure.NewController(
		backpressure.Thresholds{Elevated: cfg.Backpressure.Elevated, High: cfg.Backpressure.High, Critical: cfg.Backpressure.Critical},
		shed,
	)

	registry := provideradapter.DefaultRegistry()
	dispatcher := buildDispatcher(cfg)

	metrics := gwmetrics.New()

	pipeline := gatewaypipeline.New(gatewaypipeline.Dependencies{
		Tenant:       tenantMgr,
		Backpressure: bpController,
		Scanners:     scanPipeline,
		Policies:     policyStore,
		Cache:        cache,
		Dispatcher:   dispatcher,
		Adapters:     registry,
		Queue:        q,
		CostTracker:  tracker,
		Budget:       budget,
		Pricing:      pricing,
		Audit:        auditSink,
		Events:       bus,
		Metrics:      metrics,
		LoadSignal: func() backpressure.Signal {
			return backpressure.Signal{QueueUtilization: q.Utilization()}
		},
	})

	normalizer := normalize.NewNormalizer(registry)
	streamInterval := time.Duration(cfg.Streaming.ChunkIntervalMs) * time.Millisecond
	streamer := streaming.NewRelay(streamInterval)
	limiter := ingress.NewRateLimiter(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst)
	server := ingress.NewServer(pipeline, normalizer, policyStore, streamer, tenantMgr, limiter, logger)

	port := 8080
	if p, ok := parsePort(cfg.Server.Port); ok {
		port = p
	}
	if err := server.Start(port); err != nil {
		log.Fatalf("ingress: server failed: %v", err)
	}
}

func seedTenants(mgr *tenant.Manager, cfg *config.Config) {
	mgr.Register(&tenant.Tenant{
		ID:     "default",
		Name:   "default",
		Status: tenant.StatusActive,
		Quotas: tenant.QuotaConfig{
			Hour:  tenant.Limit{MaxRequests: cfg.Tenant.DefaultMaxRequestsPerHour},
			Day:   tenant.Limit{MaxTokens: cfg.Tenant.DefaultMaxTokensPerDay},
			Month: tenant.Limit{MaxCost: cfg.Tenant.DefaultMaxCostPerMonth},
		},
		CreatedAt: time.Now(),
	})
}

func seedPricing(pricing *cost.PricingTable, cfg *config.Config) {
	for provider, models := range cfg.Cost.Pricing {
		for model, price := range models {
			pricing.Set(provider, model, cost.Price{
				InputPricePerMillionTokens:  price.InPrice,
				OutputPricePerMillionTokens: price.OutPrice,
			})
		}
	}
}

func buildCache(cfg *config.Config) (semcache.CacheBackend, error) {
	ttl := time.Duration(cfg.Cache.TTLMs) * time.Millisecond
	if !cfg.Cache.UseRedis {
		return semcache.NewInProcessCache(cfg.Cache.MaxEntries, cfg.Cache.SimilarityThreshold, ttl)
	}
	adapter, err := infra.NewGoRedisAdapter(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}
	return semcache.NewRedisBackend(adapter.Client(), "gateway:cache:", cfg.Cache.SimilarityThreshold, ttl), nil
}

func buildDispatcher(cfg *config.Config) *loadbalancer.Dispatcher {
	endpoints := []*loadbalancer.Endpoint{
		loadbalancer.NewEndpoint("openai-primary", "openai", "gpt-4o", "https://api.openai.com/v1/chat/completions", 1.0, 0),
		loadbalancer.NewEndpoint("anthropic-primary", "anthropic", "claude-3-5-sonnet", "https://api.anthropic.com/v1/messages", 1.0, 0),
	}
	dial := func(ep *loadbalancer.Endpoint) (*loadbalancer.Conn, error) {
		return &loadbalancer.Conn{ID: uuid.NewString()}, nil
	}
	return loadbalancer.NewDispatcher(
		endpoints,
		loadbalancer.Algorithm(cfg.LoadBalancer.Algorithm),
		cfg.LoadBalancer.MaxPoolSize,
		time.Duration(cfg.LoadBalancer.IdleTimeoutMs)*time.Millisecond,
		dial,
		cfg.LoadBalancer.MaxRetries,
		time.Duration(cfg.LoadBalancer.RetryDelayMs)*time.Millisecond,
	)
}

func parsePort(s string) (int, bool) {
	n := 0
	if s == "" {
		return 0, false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}
