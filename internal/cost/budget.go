package cost

import (
	"sync"
	"time"
)

// BudgetEnforcer holds the configured Limit set and answers CheckBudget
// calls against a CostTracker's running sums, per spec §4.8. Limits are
// copy-on-write, matching the policy/scanner snapshot discipline elsewhere
// in the gateway: reads never block on a writer publishing a new set.
type BudgetEnforcer struct {
	tracker *CostTracker

	mu     sync.RWMutex
	limits []Limit
}

// NewBudgetEnforcer builds an enforcer against a tracker and an initial
// limit set.
func NewBudgetEnforcer(tracker *CostTracker, limits []Limit) *BudgetEnforcer {
	e := &BudgetEnforcer{tracker: tracker}
	e.SetLimits(limits)
	return e
}

// SetLimits atomically replaces the configured limit set.
func (e *BudgetEnforcer) SetLimits(limits []Limit) {
	snapshot := make([]Limit, len(limits))
	copy(snapshot, limits)

	e.mu.Lock()
	e.limits = snapshot
	e.mu.Unlock()
}

// applicable returns the limits that govern a (userID, tenantID) caller:
// every global limit, every limit scoped to this tenant, and every limit
// scoped to this user.
func (e *BudgetEnforcer) applicable(userID, tenantID string) []Limit {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []Limit
	for _, l := range e.limits {
		switch l.Scope {
		case ScopeGlobal:
			out = append(out, l)
		case ScopeTenant:
			if tenantID != "" && l.ScopeID == tenantID {
				out = append(out, l)
			}
		case ScopeUser:
			if userID != "" && l.ScopeID == userID {
				out = append(out, l)
			}
		}
	}
	return out
}

// CheckBudget iterates every limit applicable to the caller and returns a
// BudgetStatus per limit, per spec §4.8.
func (e *BudgetEnforcer) CheckBudget(userID, tenantID string) []BudgetStatus {
	now := time.Now()
	limits := e.applicable(userID, tenantID)

	statuses := make([]BudgetStatus, 0, len(limits))
	for _, l := range limits {
		scopeID := l.ScopeID
		if l.Scope == ScopeGlobal {
			scopeID = ""
		}
		current := e.tracker.currentSpend(l.Scope, scopeID, l.Period, now)
		statuses = append(statuses, budgetStatus(l, current))
	}
	return statuses
}

// Exceeded reports whether any limit applicable to the caller is already
// over budget; the admission layer uses this to raise BudgetExceeded
// before dispatching, per spec §4.8's "subsequent calls... are blocked."
func (e *BudgetEnforcer) Exceeded(userID, tenantID string) bool {
	for _, s := range e.CheckBudget(userID, tenantID) {
		if s.Exceeded {
			return true
		}
	}
	return false
}

func budgetStatus(limit Limit, current float64) BudgetStatus {
	if limit.LimitAmount <= 0 {
		return BudgetStatus{Limit: limit, Current: current}
	}
	pct := current / limit.LimitAmount
	return BudgetStatus{
		Limit:          limit,
		Current:        current,
		Pct:            pct,
		Exceeded:       pct >= 1.0,
		AlertTriggered: limit.AlertThreshold > 0 && pct >= limit.AlertThreshold,
	}
}
