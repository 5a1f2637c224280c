package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTierLimitsForKnownTiers(t *testing.T) {
	assert.Equal(t, 20, TierLimitsFor(TierStartup).MaxConcurrentRequests)
	assert.Equal(t, 200, TierLimitsFor(TierGrowth).MaxConcurrentRequests)
}

func TestTierLimitsForUnknownTierDefaultsToPayAsYouGo(t *testing.T) {
	assert.Equal(t, TierLimitsFor(TierPayAsYouGo), TierLimitsFor(Tier("bogus")))
}

func TestOverageNoneWhenUnderIncludedAllowance(t *testing.T) {
	exceeded, amount := Overage(TierStartup, 100)
	assert.False(t, exceeded)
	assert.Equal(t, 0.0, amount)
}

func TestOverageReportsAmountPastAllowance(t *testing.T) {
	exceeded, amount := Overage(TierStartup, 600)
	assert.True(t, exceeded)
	assert.InDelta(t, 101.0, amount, 0.001)
}

func TestOverageEnterpriseTierIsNeverOverage(t *testing.T) {
	exceeded, _ := Overage(TierEnterprise, 1_000_000)
	assert.False(t, exceeded)
}
