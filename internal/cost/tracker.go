package cost

import (
	"sync"
	"time"
)

// AllPeriods lists every period a CostTracker buckets spend into
// simultaneously, mirroring the tenant quota package's rolling buckets.
var AllPeriods = []Period{PeriodHourly, PeriodDaily, PeriodMonthly}

// periodStart floors now to the period boundary in local time, matching
// internal/tenant/quota.go's periodStart exactly (spec §4.3's rule reused
// verbatim for §4.8's budget windows).
func periodStart(period Period, now time.Time) time.Time {
	now = now.Local()
	switch period {
	case PeriodHourly:
		return time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, now.Location())
	case PeriodDaily:
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	case PeriodMonthly:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	}
	return now
}

type bucketKey struct {
	scope       Scope
	scopeID     string
	period      Period
	periodStart time.Time
}

// CostTracker records per-request cost entries and keeps rolling sums per
// (scope, scopeId, period) so CheckBudget doesn't rescan the full entry log.
type CostTracker struct {
	pricing *PricingTable

	mu      sync.Mutex
	buckets map[bucketKey]float64
	entries []Entry // bounded ring for reporting/debugging only
	maxLog  int
}

// NewCostTracker builds a tracker against a pricing table. maxLog bounds the
// retained raw Entry log (0 disables retention, keeping only the bucket
// sums used for budget checks).
func NewCostTracker(pricing *PricingTable, maxLog int) *CostTracker {
	return &CostTracker{
		pricing: pricing,
		buckets: make(map[bucketKey]float64),
		maxLog:  maxLog,
	}
}

// RecordUsage computes the cost of one request via the pricing table and
// folds it into every (scope, period) bucket the caller belongs to:
// user, tenant (when present), and global always.
func (c *CostTracker) RecordUsage(userID, tenantID, provider, model string, inputTokens, outputTokens int64) Entry {
	price, _ := c.pricing.Lookup(provider, model)
	inputCost, outputCost, totalCost := Compute(price, inputTokens, outputTokens)

	now := time.Now()
	entry := Entry{
		UserID: userID, TenantID: tenantID, Provider: provider, Model: model,
		InputTokens: inputTokens, OutputTokens: outputTokens,
		InputCost: inputCost, OutputCost: outputCost, TotalCost: totalCost,
		RecordedAt: now,
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range AllPeriods {
		start := periodStart(p, now)
		if userID != "" {
			c.buckets[bucketKey{ScopeUser, userID, p, start}] += totalCost
		}
		if tenantID != "" {
			c.buckets[bucketKey{ScopeTenant, tenantID, p, start}] += totalCost
		}
		c.buckets[bucketKey{ScopeGlobal, "", p, start}] += totalCost
	}

	if c.maxLog > 0 {
		c.entries = append(c.entries, entry)
		if len(c.entries) > c.maxLog {
			c.entries = c.entries[len(c.entries)-c.maxLog:]
		}
	}

	return entry
}

// currentSpend returns the running total for one bucket at now.
func (c *CostTracker) currentSpend(scope Scope, scopeID string, period Period, now time.Time) float64 {
	key := bucketKey{scope, scopeID, period, periodStart(period, now)}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buckets[key]
}
