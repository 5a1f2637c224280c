// Package ingress is the gateway's REST front door: the gorilla/mux router,
// CORS middleware, and per-route handlers that normalize an inbound
// provider call and hand it to gatewaypipeline, following the teacher's
// internal/api/server.go router-construction style.
package ingress

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/aocs/gateway/internal/gatewaypipeline"
	"github.com/aocs/gateway/internal/gwerrors"
	"github.com/aocs/gateway/internal/normalize"
	"github.com/aocs/gateway/internal/policy"
	"github.com/aocs/gateway/internal/provideradapter"
	"github.com/aocs/gateway/internal/streaming"
	"github.com/aocs/gateway/internal/tenant"
)

// Server exposes the gateway's ingest and admin endpoints over HTTP.
type Server struct {
	pipeline   *gatewaypipeline.Pipeline
	normalizer *normalize.Normalizer
	policies   policy.Store
	streamer   *streaming.Relay
	tenants    *tenant.Manager
	limiter    *RateLimiter
	logger     *slog.Logger
}

// NewServer builds a Server bound to an already-wired pipeline. streamer may
// be nil, in which case a default word-paced relay is constructed. tenants
// may be nil, in which case API-key bearer auth is disabled and every
// request falls back to the X-Tenant-ID header. limiter may be nil, in
// which case per-tenant request-rate limiting is disabled.
func NewServer(pipeline *gatewaypipeline.Pipeline, normalizer *normalize.Normalizer, policies policy.Store, streamer *streaming.Relay, tenants *tenant.Manager, limiter *RateLimiter, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if streamer == nil {
		streamer = streaming.NewRelay(40 * time.Millisecond)
	}
	return &Server{pipeline: pipeline, normalizer: normalizer, policies: policies, streamer: streamer, tenants: tenants, limiter: limiter, logger: logger}
}

// Router builds the mux.Router with CORS middleware and every route
// registered, for an embedding http.Server to serve.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Tenant-ID, X-User-ID, X-Gov-Mode")
			if req.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, req)
		})
	})

	proxyRoutes := r.PathPrefix("/v1").Subrouter()
	proxyRoutes.Use(s.rateLimitMiddleware)
	proxyRoutes.HandleFunc("/{provider}/chat/completions", s.handleProxy).Methods(http.MethodPost)
	proxyRoutes.HandleFunc("/messages", s.handleAnthropicProxy).Methods(http.MethodPost)

	r.HandleFunc("/admin/policies", s.handleListPolicies).Methods(http.MethodGet)
	r.HandleFunc("/admin/policies", s.handleCreatePolicy).Methods(http.MethodPost)
	r.HandleFunc("/admin/policies/{id}", s.handleUpdatePolicy).Methods(http.MethodPut)
	r.HandleFunc("/admin/policies/{id}", s.handleDeletePolicy).Methods(http.MethodDelete)

	r.HandleFunc("/admin/tenants/{id}/api-keys", s.handleCreateAPIKey).Methods(http.MethodPost)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	return r
}

// Start runs the HTTP server, matching the teacher's fmt.Sprintf(":%d")
// addr-construction and blocking ListenAndServe call.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.logger.Info("ingress: listening", "addr", addr)
	return http.ListenAndServe(addr, s.Router())
}

func getTenantID(r *http.Request) string {
	tid := r.Header.Get("X-Tenant-ID")
	if tid == "" {
		return "default"
	}
	return tid
}

func getUserID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

// resolveTenantID prefers a valid `Authorization: Bearer ocx_<id>.<secret>`
// API key over the X-Tenant-ID header, since a caller presenting a key has
// proven tenant membership while the header is a bare, unauthenticated claim.
func (s *Server) resolveTenantID(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	if s.tenants == nil || !strings.HasPrefix(auth, "Bearer ") {
		return getTenantID(r), nil
	}
	key := strings.TrimPrefix(auth, "Bearer ")
	t, err := s.tenants.ValidateAPIKey(key)
	if err != nil {
		return "", err
	}
	return t.ID, nil
}

func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	s.proxy(w, r, vars["provider"])
}

func (s *Server) handleAnthropicProxy(w http.ResponseWriter, r *http.Request) {
	s.proxy(w, r, "anthropic")
}

func (s *Server) proxy(w http.ResponseWriter, r *http.Request, provider string) {
	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, gwerrors.New(gwerrors.CodeInternalError, "failed to read request body"))
		return
	}

	tenantID, err := s.resolveTenantID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	opts := normalize.Options{
		Provider:         provider,
		TenantID:         tenantID,
		UserID:           getUserID(r),
		InjectGovernance: r.Header.Get("X-Gov-Inject") == "true",
		RequestTimeout:   60 * time.Second,
	}

	req, err := s.normalizer.Normalize(body, opts)
	if err != nil {
		writeError(w, gwerrors.Wrap(gwerrors.CodeInternalError, "normalize failed", err))
		return
	}

	result, err := s.pipeline.Handle(r.Context(), req)
	if err != nil {
		if req.Streaming {
			s.streamer.ServeError(w, r, req.CorrelationID, err.Error())
			return
		}
		writeError(w, err)
		return
	}

	if req.Streaming {
		s.streamer.Serve(w, r, result.Response)
		return
	}

	if result.ShadowBlock {
		w.Header().Set("X-Gov-Status", "Shadow-Allow")
	}
	if result.CacheHit {
		w.Header().Set("X-Gateway-Cache", "hit")
	}

	registry := provideradapter.DefaultRegistry()
	adapter := registry.Detect(provider, nil)
	wire, err := adapter.SerializeResponse(result.Response)
	if err != nil {
		writeError(w, gwerrors.Wrap(gwerrors.CodeInternalError, "response serialization failed", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(wire)
}

func (s *Server) handleListPolicies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.policies.List())
}

func (s *Server) handleCreatePolicy(w http.ResponseWriter, r *http.Request) {
	var p policy.Policy
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, gwerrors.New(gwerrors.CodeInternalError, "invalid policy payload"))
		return
	}
	if err := s.policies.Add(p); err != nil {
		writeError(w, gwerrors.Wrap(gwerrors.CodeInternalError, "add policy failed", err))
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleUpdatePolicy(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var p policy.Policy
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, gwerrors.New(gwerrors.CodeInternalError, "invalid policy payload"))
		return
	}
	p.ID = id
	if err := s.policies.Update(p); err != nil {
		writeError(w, gwerrors.Wrap(gwerrors.CodeInternalError, "update policy failed", err))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeletePolicy(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.policies.Remove(id); err != nil {
		writeError(w, gwerrors.Wrap(gwerrors.CodeInternalError, "remove policy failed", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateAPIKey(w http.ResponseWriter, r *http.Request) {
	if s.tenants == nil {
		writeError(w, gwerrors.New(gwerrors.CodeInternalError, "api key issuance is disabled"))
		return
	}
	tenantID := mux.Vars(r)["id"]
	var body struct {
		Name   string   `json:"name"`
		Scopes []string `json:"scopes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, gwerrors.New(gwerrors.CodeInternalError, "invalid api key request"))
		return
	}
	if _, ok := s.tenants.Get(tenantID); !ok {
		writeError(w, gwerrors.New(gwerrors.CodeTenantDisabled, "unknown tenant"))
		return
	}
	key, fullKey, err := s.tenants.CreateAPIKey(tenantID, body.Name, body.Scopes)
	if err != nil {
		writeError(w, err)
		return
	}
	// fullKey is only ever returned here; the stored record keeps the bcrypt hash.
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"keyId":  key.KeyID,
		"key":    fullKey,
		"scopes": key.Scopes,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	ge, ok := gwerrors.AsGatewayError(err)
	if !ok {
		ge = gwerrors.New(gwerrors.CodeInternalError, err.Error())
	}
	writeJSON(w, ge.HTTPStatus(), map[string]string{"code": string(ge.Code), "message": ge.Message})
}
