package tenant

import (
	"context"
	"log/slog"
	"time"
)

// periodStart floors now to the boundary of period in the server's local
// timezone, per spec §4.3: "period start is the floor of current wall-clock
// time to the period boundary in the server's timezone; quotas reset
// implicitly when now rolls past the boundary (no background job)."
func periodStart(period Period, now time.Time) time.Time {
	now = now.Local()
	switch period {
	case PeriodHour:
		return time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, now.Location())
	case PeriodDay:
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	case PeriodMonth:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	}
	return now
}

// bucketFor returns the live bucket for (tenantID, period) at now, creating
// it lazily. Because periodStart is deterministic in now, rolling past a
// boundary naturally addresses a fresh key — no expiry sweep is needed for
// correctness, only for memory reclamation (left to a retention policy per
// spec §4.3, not implemented here: out of scope for the in-process default).
func (m *Manager) bucketFor(tenantID string, period Period, now time.Time) *UsageBucket {
	key := bucketKey{period: period, periodStart: periodStart(period, now)}

	m.bucketsMu.Lock()
	defer m.bucketsMu.Unlock()

	perTenant, ok := m.buckets[tenantID]
	if !ok {
		perTenant = make(map[bucketKey]*UsageBucket)
		m.buckets[tenantID] = perTenant
	}
	b, ok := perTenant[key]
	if !ok {
		b = &UsageBucket{Period: period, PeriodStart: key.periodStart}
		perTenant[key] = b
	}
	return b
}

// RecordUsage increments the hour/day/month buckets simultaneously, per
// spec §4.3.
func (m *Manager) RecordUsage(tenantID string, delta UsageDelta) {
	now := time.Now()

	m.mu.RLock()
	mirror := m.mirror
	m.mu.RUnlock()

	for _, p := range AllPeriods {
		b := m.bucketFor(tenantID, p, now)

		m.bucketsMu.Lock()
		b.Requests += delta.Requests
		b.Tokens += delta.Tokens
		b.Cost += delta.Cost
		if delta.CacheHit {
			b.CacheHits++
		}
		if delta.Blocked {
			b.Blocked++
		}
		if delta.Error {
			b.Errors++
		}
		periodStart := b.PeriodStart
		m.bucketsMu.Unlock()

		if mirror != nil {
			if err := mirror.Apply(context.Background(), tenantID, p, periodStart, delta); err != nil {
				slog.Warn("usage mirror write failed", "tenant", tenantID, "period", p, "err", err)
			}
		}
	}
}

// CheckQuotas reports the tenant's consumption against its configured
// limits for every period, per spec §4.3.
func (m *Manager) CheckQuotas(tenantID string) []QuotaStatus {
	t, ok := m.Get(tenantID)
	if !ok {
		return nil
	}

	now := time.Now()
	var statuses []QuotaStatus
	for _, p := range AllPeriods {
		limit := t.Quotas.forPeriod(p)
		b := m.bucketFor(tenantID, p, now)

		m.bucketsMu.Lock()
		requests, tokens, cost := b.Requests, b.Tokens, b.Cost
		m.bucketsMu.Unlock()

		statuses = append(statuses,
			quotaStatus(p, "requests", float64(requests), float64(limit.MaxRequests)),
			quotaStatus(p, "tokens", float64(tokens), float64(limit.MaxTokens)),
			quotaStatus(p, "cost", cost, limit.MaxCost),
		)
	}
	return statuses
}

// quotaStatus builds one QuotaStatus entry; a zero limit means unbounded
// and never exceeds.
func quotaStatus(period Period, metric string, current, limit float64) QuotaStatus {
	if limit <= 0 {
		return QuotaStatus{Period: period, Metric: metric, Current: current, Limit: 0, Pct: 0, Exceeded: false}
	}
	pct := current / limit
	return QuotaStatus{
		Period:   period,
		Metric:   metric,
		Current:  current,
		Limit:    limit,
		Pct:      pct,
		Exceeded: pct >= 1.0,
	}
}
