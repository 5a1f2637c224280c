package cost

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordUsageComputesCostFromPricingTable(t *testing.T) {
	table := NewPricingTable(nil)
	table.Set("openai", "gpt-4", Price{InputPricePerMillionTokens: 10, OutputPricePerMillionTokens: 30})
	tracker := NewCostTracker(table, 10)

	entry := tracker.RecordUsage("user1", "tenant1", "openai", "gpt-4", 1_000_000, 1_000_000)

	assert.Equal(t, 10.0, entry.InputCost)
	assert.Equal(t, 30.0, entry.OutputCost)
	assert.Equal(t, 40.0, entry.TotalCost)
}

func TestRecordUsageFoldsIntoUserTenantAndGlobalBuckets(t *testing.T) {
	table := NewPricingTable(nil)
	table.Set("openai", "gpt-4", Price{InputPricePerMillionTokens: 10})
	tracker := NewCostTracker(table, 0)

	tracker.RecordUsage("user1", "tenant1", "openai", "gpt-4", 1_000_000, 0)

	assert.Equal(t, 10.0, tracker.currentSpend(ScopeUser, "user1", PeriodHourly, time.Now()))
	assert.Equal(t, 10.0, tracker.currentSpend(ScopeTenant, "tenant1", PeriodHourly, time.Now()))
	assert.Equal(t, 10.0, tracker.currentSpend(ScopeGlobal, "", PeriodHourly, time.Now()))
}

func TestRecordUsageAccumulatesAcrossMultipleCalls(t *testing.T) {
	table := NewPricingTable(nil)
	table.Set("openai", "gpt-4", Price{InputPricePerMillionTokens: 10})
	tracker := NewCostTracker(table, 0)

	tracker.RecordUsage("user1", "", "openai", "gpt-4", 1_000_000, 0)
	tracker.RecordUsage("user1", "", "openai", "gpt-4", 1_000_000, 0)

	assert.Equal(t, 20.0, tracker.currentSpend(ScopeUser, "user1", PeriodHourly, time.Now()))
}

func TestRecordUsageBoundsEntryLog(t *testing.T) {
	table := NewPricingTable(nil)
	tracker := NewCostTracker(table, 2)

	for i := 0; i < 5; i++ {
		tracker.RecordUsage("user1", "", "openai", "gpt-4", 100, 0)
	}

	assert.Len(t, tracker.entries, 2)
}
