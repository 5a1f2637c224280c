package loadbalancer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRoundRobinSelectorCyclesThroughCandidates(t *testing.T) {
	s := NewSelector(AlgoRoundRobin)
	a := NewEndpoint("a", "p", "m", "addr", 1, 0)
	b := NewEndpoint("b", "p", "m", "addr", 1, 0)

	first := s.Select([]*Endpoint{a, b})
	second := s.Select([]*Endpoint{a, b})
	assert.NotEqual(t, first.ID, second.ID)
}

func TestSelectEmptyCandidatesReturnsNil(t *testing.T) {
	s := NewSelector(AlgoRoundRobin)
	assert.Nil(t, s.Select(nil))
}

func TestLeastConnectionsSelectorPicksFewestActive(t *testing.T) {
	s := NewSelector(AlgoLeastConnections)
	a := NewEndpoint("a", "p", "m", "addr", 1, 0)
	b := NewEndpoint("b", "p", "m", "addr", 1, 0)
	a.BeginRequest()
	a.BeginRequest()
	b.BeginRequest()

	picked := s.Select([]*Endpoint{a, b})
	assert.Equal(t, "b", picked.ID)
}

func TestLeastLatencySelectorPicksLowestEWMA(t *testing.T) {
	s := NewSelector(AlgoLeastLatency)
	a := NewEndpoint("a", "p", "m", "addr", 1, 0)
	b := NewEndpoint("b", "p", "m", "addr", 1, 0)
	a.BeginRequest()
	a.EndRequest(true, 500*time.Millisecond)
	b.BeginRequest()
	b.EndRequest(true, 10*time.Millisecond)

	picked := s.Select([]*Endpoint{a, b})
	assert.Equal(t, "b", picked.ID)
}

func TestLeastCostSelectorPicksCheapestPricedEndpoint(t *testing.T) {
	s := NewSelector(AlgoLeastCost)
	a := NewEndpoint("a", "p", "m", "addr", 1, 0)
	a.PricePerThousandTokens = 0.03
	b := NewEndpoint("b", "p", "m", "addr", 1, 0)
	b.PricePerThousandTokens = 0.01

	picked := s.Select([]*Endpoint{a, b})
	assert.Equal(t, "b", picked.ID)
}

func TestLeastCostSelectorFallsBackWhenNoPricingKnown(t *testing.T) {
	s := NewSelector(AlgoLeastCost)
	a := NewEndpoint("a", "p", "m", "addr", 1, 0)
	b := NewEndpoint("b", "p", "m", "addr", 1, 0)

	picked := s.Select([]*Endpoint{a, b})
	assert.NotNil(t, picked)
}

func TestWeightedRandomSelectorOnlyPicksAmongCandidates(t *testing.T) {
	s := NewSelector(AlgoWeightedRandom)
	a := NewEndpoint("a", "p", "m", "addr", 5, 0)
	b := NewEndpoint("b", "p", "m", "addr", 1, 0)

	for i := 0; i < 20; i++ {
		picked := s.Select([]*Endpoint{a, b})
		assert.Contains(t, []string{"a", "b"}, picked.ID)
	}
}
