package loadbalancer

import (
	"math/rand"
	"sync"
	"sync/atomic"
)

// Algorithm is one of the six endpoint selection strategies from spec §4.6.
type Algorithm string

const (
	AlgoRoundRobin       Algorithm = "round-robin"
	AlgoLeastConnections Algorithm = "least-connections"
	AlgoLeastLatency     Algorithm = "least-latency"
	AlgoWeightedRandom   Algorithm = "weighted-random"
	AlgoRandom           Algorithm = "random"
	AlgoLeastCost        Algorithm = "least-cost"
)

// Selector picks one endpoint among the candidates (already filtered to
// enabled ∧ healthy by the caller). A nil return means no candidate.
type Selector interface {
	Select(candidates []*Endpoint) *Endpoint
}

// NewSelector builds the Selector for a configured algorithm, defaulting to
// round-robin for an unrecognized value.
func NewSelector(algo Algorithm) Selector {
	switch algo {
	case AlgoLeastConnections:
		return leastConnectionsSelector{}
	case AlgoLeastLatency:
		return leastLatencySelector{}
	case AlgoWeightedRandom:
		return weightedRandomSelector{}
	case AlgoRandom:
		return randomSelector{}
	case AlgoLeastCost:
		return leastCostSelector{fallback: &roundRobinSelector{}}
	default:
		return &roundRobinSelector{}
	}
}

// roundRobinSelector cycles through candidates by index modulo length.
type roundRobinSelector struct {
	mu  sync.Mutex
	idx uint64
}

func (s *roundRobinSelector) Select(candidates []*Endpoint) *Endpoint {
	if len(candidates) == 0 {
		return nil
	}
	i := atomic.AddUint64(&s.idx, 1)
	return candidates[int(i-1)%len(candidates)]
}

type leastConnectionsSelector struct{}

func (leastConnectionsSelector) Select(candidates []*Endpoint) *Endpoint {
	return argmin(candidates, func(e *Endpoint) float64 { return float64(e.ActiveConnections()) })
}

type leastLatencySelector struct{}

func (leastLatencySelector) Select(candidates []*Endpoint) *Endpoint {
	return argmin(candidates, func(e *Endpoint) float64 { return e.AvgLatencyEWMA() })
}

type weightedRandomSelector struct{}

func (weightedRandomSelector) Select(candidates []*Endpoint) *Endpoint {
	if len(candidates) == 0 {
		return nil
	}
	var total float64
	for _, e := range candidates {
		w := e.Weight
		if w <= 0 {
			w = 1
		}
		total += w
	}
	target := rand.Float64() * total
	var cum float64
	for _, e := range candidates {
		w := e.Weight
		if w <= 0 {
			w = 1
		}
		cum += w
		if target <= cum {
			return e
		}
	}
	return candidates[len(candidates)-1]
}

type randomSelector struct{}

func (randomSelector) Select(candidates []*Endpoint) *Endpoint {
	if len(candidates) == 0 {
		return nil
	}
	return candidates[rand.Intn(len(candidates))]
}

// leastCostSelector picks the endpoint with the lowest per-1k-token price
// for the requested model; falls back to round-robin when pricing is
// unknown for every candidate, per spec §4.6.
type leastCostSelector struct {
	fallback Selector
}

func (s leastCostSelector) Select(candidates []*Endpoint) *Endpoint {
	priced := make([]*Endpoint, 0, len(candidates))
	for _, e := range candidates {
		if e.PricePerThousandTokens > 0 {
			priced = append(priced, e)
		}
	}
	if len(priced) == 0 {
		return s.fallback.Select(candidates)
	}
	return argmin(priced, func(e *Endpoint) float64 { return e.PricePerThousandTokens })
}

func argmin(candidates []*Endpoint, value func(*Endpoint) float64) *Endpoint {
	if len(candidates) == 0 {
		return nil
	}
	best := candidates[0]
	bestVal := value(best)
	for _, e := range candidates[1:] {
		v := value(e)
		if v < bestVal {
			best, bestVal = e, v
		}
	}
	return best
}
