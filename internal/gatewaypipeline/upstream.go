package gatewaypipeline

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/aocs/gateway/internal/loadbalancer"
	"github.com/aocs/gateway/internal/provideradapter"
	"github.com/aocs/gateway/internal/reqmodel"
)

// UpstreamClient performs the actual HTTP round trip to a provider
// endpoint. The pipeline composes it with the endpoint's adapter so the
// dispatch closure only needs conn+endpoint, matching the Dispatch
// signature the load balancer already exposes.
var httpClient = &http.Client{Timeout: 60 * time.Second}

// callUpstream serializes req through the endpoint's provider adapter,
// issues the HTTP call against the endpoint's address, and parses the
// reply back into a reqmodel.Response. conn is reserved by the connection
// pool for the duration of the call but this gateway's adapters are
// stateless, so conn.ID is only used for trace correlation.
func callUpstream(ctx context.Context, registry *provideradapter.Registry, conn *loadbalancer.Conn, ep *loadbalancer.Endpoint, req *reqmodel.Request) (*reqmodel.Response, error) {
	adapter := registry.Detect(ep.Provider, nil)

	body, err := adapter.SerializeRequest(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.Address, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	httpResp, err := httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}
	if httpResp.StatusCode >= 400 {
		return nil, &upstreamStatusError{status: httpResp.StatusCode, body: string(raw)}
	}

	resp, err := adapter.ParseResponse(raw, ep.Model)
	if err != nil {
		return nil, err
	}
	resp.CorrelationID = req.CorrelationID
	resp.Provider = ep.Provider
	resp.LatencyMs = float64(time.Since(start).Milliseconds())
	return resp, nil
}

type upstreamStatusError struct {
	status int
	body   string
}

func (e *upstreamStatusError) Error() string {
	return http.StatusText(e.status) + ": " + e.body
}
