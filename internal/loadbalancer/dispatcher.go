package loadbalancer

import (
	"sort"
	"time"

	"github.com/aocs/gateway/internal/gwerrors"
)

// Dispatch is one provider round-trip the dispatcher executes against an
// acquired connection.
type Dispatch func(conn *Conn, ep *Endpoint) error

// Dispatcher owns the endpoint set, the per-endpoint pools, and the
// failover loop from spec §4.6.
type Dispatcher struct {
	Endpoints  []*Endpoint
	Pools      map[string]*ConnectionPool
	Selector   Selector
	MaxRetries int
	RetryDelay time.Duration
}

// NewDispatcher builds a dispatcher over endpoints with the given
// selection algorithm and per-endpoint pool sizing.
func NewDispatcher(endpoints []*Endpoint, algo Algorithm, maxPoolSize int, idleTimeout time.Duration, dial func(ep *Endpoint) (*Conn, error), maxRetries int, retryDelay time.Duration) *Dispatcher {
	pools := make(map[string]*ConnectionPool, len(endpoints))
	for _, ep := range endpoints {
		ep := ep
		pools[ep.ID] = NewConnectionPool(maxPoolSize, idleTimeout, func() (*Conn, error) { return dial(ep) })
	}
	return &Dispatcher{
		Endpoints:  endpoints,
		Pools:      pools,
		Selector:   NewSelector(algo),
		MaxRetries: maxRetries,
		RetryDelay: retryDelay,
	}
}

// candidates returns the enabled∧healthy endpoints.
func (d *Dispatcher) candidates() []*Endpoint {
	out := make([]*Endpoint, 0, len(d.Endpoints))
	for _, e := range d.Endpoints {
		if e.Candidate() {
			out = append(out, e)
		}
	}
	return out
}

// Select runs the configured algorithm over the current candidate set.
func (d *Dispatcher) Select() *Endpoint {
	return d.Selector.Select(d.candidates())
}

// Dispatch executes work with failover: iterate endpoints in ascending
// priority order, acquire-execute-release against each, advancing to the
// next on failure after a retryDelay sleep, stopping after maxRetries
// attempts or exhaustion. Surfaces the last error if every attempt fails.
func (d *Dispatcher) Dispatch(work Dispatch) error {
	ordered := d.candidates()
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Priority < ordered[j].Priority })

	if len(ordered) == 0 {
		return gwerrors.New(gwerrors.CodeUpstreamFailure, "no healthy endpoints available")
	}

	var lastErr error
	attempts := 0
	for _, ep := range ordered {
		if d.MaxRetries > 0 && attempts >= d.MaxRetries {
			break
		}
		attempts++

		pool := d.Pools[ep.ID]
		conn, err := pool.Acquire()
		if err != nil {
			lastErr = err
			time.Sleep(d.RetryDelay)
			continue
		}

		ep.BeginRequest()
		start := time.Now()
		err = work(conn, ep)
		ep.EndRequest(err == nil, time.Since(start))
		pool.Release(conn)

		if err == nil {
			return nil
		}
		lastErr = err
		time.Sleep(d.RetryDelay)
	}

	if lastErr == nil {
		lastErr = gwerrors.New(gwerrors.CodeUpstreamFailure, "all endpoints exhausted")
	}
	return gwerrors.Wrap(gwerrors.CodeUpstreamFailure, "upstream dispatch failed", lastErr)
}

// Close releases every endpoint's connection pool.
func (d *Dispatcher) Close() {
	for _, p := range d.Pools {
		p.Close()
	}
}
