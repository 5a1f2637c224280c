package cost

import (
	"fmt"
	"sync"

	"github.com/aocs/gateway/internal/events"
)

// PricingTable is a copy-on-write (provider, model) -> Price lookup, kept
// simple with a plain mutex since updates are rare operator actions rather
// than a hot path like the policy/scanner snapshots.
type PricingTable struct {
	mu     sync.RWMutex
	prices map[string]map[string]Price
	events events.EventEmitter
}

// NewPricingTable builds an empty table. emitter may be nil to disable the
// "unknown pricing key" warning event.
func NewPricingTable(emitter events.EventEmitter) *PricingTable {
	return &PricingTable{
		prices: make(map[string]map[string]Price),
		events: emitter,
	}
}

// Set registers or replaces the price for a (provider, model) pair.
func (t *PricingTable) Set(provider, model string, price Price) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.prices[provider] == nil {
		t.prices[provider] = make(map[string]Price)
	}
	t.prices[provider][model] = price
}

// Lookup returns the configured price, or the zero Price plus false when the
// key is absent. Per spec §4.8, an absent key still lets the caller proceed
// with zero-cost tracking, after emitting a warning event.
func (t *PricingTable) Lookup(provider, model string) (Price, bool) {
	t.mu.RLock()
	price, ok := t.prices[provider][model]
	t.mu.RUnlock()

	if !ok && t.events != nil {
		t.events.Emit("cost.pricing.unknown", "cost.pricing", "", map[string]interface{}{
			"provider": provider,
			"model":    model,
		})
	}
	return price, ok
}

// Compute returns the input/output/total cost for a request's token usage,
// per spec §4.8's linear per-million-token formula.
func Compute(price Price, inputTokens, outputTokens int64) (inputCost, outputCost, totalCost float64) {
	inputCost = float64(inputTokens) / 1_000_000 * price.InputPricePerMillionTokens
	outputCost = float64(outputTokens) / 1_000_000 * price.OutputPricePerMillionTokens
	totalCost = inputCost + outputCost
	return
}

// Key renders a (provider, model) pair for logging/debugging.
func Key(provider, model string) string {
	return fmt.Sprintf("%s/%s", provider, model)
}
