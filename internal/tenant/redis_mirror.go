package tenant

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// UsageMirror mirrors each RecordUsage increment into Redis so that multiple
// gateway instances behind the same tenant see a consistent usage view
// instead of each accumulating its own in-process buckets, per spec §4.3's
// "usage buckets ... implementation may be in-process or backed by a shared
// store" note. It never blocks the request path on the mirror write failing.
type UsageMirror struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewUsageMirror wraps an existing *redis.Client (typically the one behind
// infra.GoRedisAdapter.Client()) for usage-bucket mirroring. ttl bounds how
// long a period's hash survives past its natural rollover, as a safety net
// against a deployment that never calls Clear.
func NewUsageMirror(rdb *redis.Client, ttl time.Duration) *UsageMirror {
	if ttl <= 0 {
		ttl = 35 * 24 * time.Hour
	}
	return &UsageMirror{rdb: rdb, prefix: "gw:usage:", ttl: ttl}
}

func (m *UsageMirror) key(tenantID string, period Period, periodStart time.Time) string {
	return fmt.Sprintf("%s%s:%s:%d", m.prefix, tenantID, period, periodStart.Unix())
}

// Apply increments the shared hash for one (tenantID, period, periodStart)
// bucket with the same fields RecordUsage applies locally.
func (m *UsageMirror) Apply(ctx context.Context, tenantID string, period Period, periodStart time.Time, delta UsageDelta) error {
	key := m.key(tenantID, period, periodStart)

	pipe := m.rdb.TxPipeline()
	pipe.HIncrBy(ctx, key, "requests", delta.Requests)
	pipe.HIncrBy(ctx, key, "tokens", delta.Tokens)
	pipe.HIncrByFloat(ctx, key, "cost", delta.Cost)
	if delta.CacheHit {
		pipe.HIncrBy(ctx, key, "cacheHits", 1)
	}
	if delta.Blocked {
		pipe.HIncrBy(ctx, key, "blocked", 1)
	}
	if delta.Error {
		pipe.HIncrBy(ctx, key, "errors", 1)
	}
	pipe.Expire(ctx, key, m.ttl)

	_, err := pipe.Exec(ctx)
	return err
}

// Fetch reads back the shared bucket, for a gateway instance that just
// started and has no local accumulation yet for the current window.
func (m *UsageMirror) Fetch(ctx context.Context, tenantID string, period Period, periodStart time.Time) (UsageBucket, error) {
	key := m.key(tenantID, period, periodStart)
	vals, err := m.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return UsageBucket{}, fmt.Errorf("fetch usage mirror %s: %w", key, err)
	}

	b := UsageBucket{Period: period, PeriodStart: periodStart}
	fmt.Sscanf(vals["requests"], "%d", &b.Requests)
	fmt.Sscanf(vals["tokens"], "%d", &b.Tokens)
	fmt.Sscanf(vals["cost"], "%g", &b.Cost)
	fmt.Sscanf(vals["cacheHits"], "%d", &b.CacheHits)
	fmt.Sscanf(vals["blocked"], "%d", &b.Blocked)
	fmt.Sscanf(vals["errors"], "%d", &b.Errors)
	return b, nil
}
