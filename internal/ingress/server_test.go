package ingress

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aocs/gateway/internal/gatewaypipeline"
	"github.com/aocs/gateway/internal/loadbalancer"
	"github.com/aocs/gateway/internal/normalize"
	"github.com/aocs/gateway/internal/policy"
	"github.com/aocs/gateway/internal/provideradapter"
	"github.com/aocs/gateway/internal/reqmodel"
	"github.com/aocs/gateway/internal/scanner"
	"github.com/aocs/gateway/internal/tenant"
)

func newTestDispatcher(t *testing.T, upstream *httptest.Server) *loadbalancer.Dispatcher {
	t.Helper()
	ep := loadbalancer.NewEndpoint("ep-1", "openai", "gpt-4", upstream.URL, 1, 0)
	dial := func(ep *loadbalancer.Endpoint) (*loadbalancer.Conn, error) {
		return &loadbalancer.Conn{}, nil
	}
	return loadbalancer.NewDispatcher([]*loadbalancer.Endpoint{ep}, loadbalancer.AlgoRoundRobin, 4, time.Minute, dial, 3, time.Millisecond)
}

func newTestServer(t *testing.T, upstream *httptest.Server) (*Server, *tenant.Manager) {
	t.Helper()
	tenants := tenant.NewManager()
	tenants.Register(&tenant.Tenant{ID: "acme", Status: tenant.StatusActive})

	deps := gatewaypipeline.Dependencies{
		Tenant:     tenants,
		Scanners:   scanner.NewPipeline(nil),
		Policies:   policy.NewInMemoryStore(),
		Dispatcher: newTestDispatcher(t, upstream),
		Adapters:   provideradapter.DefaultRegistry(),
	}
	pipeline := gatewaypipeline.New(deps)
	normalizer := normalize.NewNormalizer(provideradapter.DefaultRegistry())

	srv := NewServer(pipeline, normalizer, deps.Policies, nil, tenants, nil, nil)
	return srv, tenants
}

func TestHandleProxyRoutesRequestThroughPipeline(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"model":"gpt-4","choices":[{"message":{"content":"hi"},"finish_reason":"stop"}],"usage":{"prompt_tokens":1,"completion_tokens":1}}`))
	}))
	defer upstream.Close()

	srv, _ := newTestServer(t, upstream)
	router := srv.Router()

	body, _ := json.Marshal(map[string]interface{}{
		"model":    "gpt-4",
		"messages": []map[string]string{{"role": "user", "content": "hi"}},
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/openai/chat/completions", bytes.NewReader(body))
	req.Header.Set("X-Tenant-ID", "acme")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
}

func TestHandleProxyReturnsGatewayErrorStatus(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer upstream.Close()

	srv, _ := newTestServer(t, upstream)
	router := srv.Router()

	body, _ := json.Marshal(map[string]interface{}{
		"model":    "gpt-4",
		"messages": []map[string]string{{"role": "user", "content": "hi"}},
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/openai/chat/completions", bytes.NewReader(body))
	req.Header.Set("X-Tenant-ID", "unknown-tenant")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandleHealthReturnsOK(t *testing.T) {
	srv, _ := newTestServer(t, httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))
	router := srv.Router()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPolicyCRUDRoutes(t *testing.T) {
	srv, _ := newTestServer(t, httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))
	router := srv.Router()

	p := policy.Policy{ID: "p1", Priority: 1, Enabled: true, Action: reqmodel.ActionAllow}
	body, _ := json.Marshal(p)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/policies", bytes.NewReader(body)))
	require.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/policies", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var listed []policy.Policy
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	require.Len(t, listed, 1)

	p.Priority = 5
	body, _ = json.Marshal(p)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/admin/policies/p1", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/admin/policies/p1", nil))
	require.Equal(t, http.StatusNoContent, w.Code)
}

func TestCreateAPIKeyRoute(t *testing.T) {
	srv, _ := newTestServer(t, httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))
	router := srv.Router()

	body, _ := json.Marshal(map[string]interface{}{"name": "ci-key", "scopes": []string{"read"}})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/tenants/acme/api-keys", bytes.NewReader(body)))

	require.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp["key"], "ocx_")
}

func TestResolveTenantIDPrefersAPIKeyOverHeader(t *testing.T) {
	srv, tenants := newTestServer(t, httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	_, fullKey, err := tenants.CreateAPIKey("acme", "test", nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/openai/chat/completions", nil)
	req.Header.Set("Authorization", "Bearer "+fullKey)
	req.Header.Set("X-Tenant-ID", "some-other-tenant")

	tid, err := srv.resolveTenantID(req)
	require.NoError(t, err)
	assert.Equal(t, "acme", tid)
}

func TestResolveTenantIDFallsBackToHeaderWithoutBearer(t *testing.T) {
	srv, _ := newTestServer(t, httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	req := httptest.NewRequest(http.MethodPost, "/v1/openai/chat/completions", nil)
	req.Header.Set("X-Tenant-ID", "header-tenant")

	tid, err := srv.resolveTenantID(req)
	require.NoError(t, err)
	assert.Equal(t, "header-tenant", tid)
}
