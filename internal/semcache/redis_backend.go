package semcache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend is the alternate remote CacheBackend from spec §6. Entries
// are scanned through a Redis hash keyed by id; similarity is still
// computed in-process (Redis has no vector search in this client's feature
// set), so this backend trades memory locality for durability/sharing
// across gateway instances rather than changing the lookup algorithm.
type RedisBackend struct {
	client              *redis.Client
	keyPrefix           string
	similarityThreshold float64
	ttl                 time.Duration
}

// NewRedisBackend wraps an existing client; keyPrefix namespaces entries
// (e.g. "gateway:semcache:").
func NewRedisBackend(client *redis.Client, keyPrefix string, similarityThreshold float64, ttl time.Duration) *RedisBackend {
	return &RedisBackend{client: client, keyPrefix: keyPrefix, similarityThreshold: similarityThreshold, ttl: ttl}
}

type redisEntry struct {
	ID             string    `json:"id"`
	Prompt         string    `json:"prompt"`
	Embedding      []float64 `json:"embedding"`
	Response       json.RawMessage `json:"response"`
	Provider       string    `json:"provider"`
	Model          string    `json:"model"`
	Temperature    float64   `json:"temperature"`
	HasTemperature bool      `json:"hasTemperature"`
	OrganizationID string    `json:"organizationId"`
	CreatedAt      time.Time `json:"createdAt"`
	ExpiresAt      time.Time `json:"expiresAt"`
	LastAccessedAt time.Time `json:"lastAccessedAt"`
	Hits           int64     `json:"hits"`
}

func (b *RedisBackend) Lookup(prompt string, embedding []float64, metadata Metadata) LookupResult {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ids, err := b.client.SMembers(ctx, b.keyPrefix+"index").Result()
	if err != nil {
		return LookupResult{Hit: false}
	}

	now := time.Now()
	var best *redisEntry
	var bestSim float64
	for _, id := range ids {
		raw, err := b.client.Get(ctx, b.keyPrefix+"entry:"+id).Bytes()
		if err != nil {
			continue
		}
		var e redisEntry
		if json.Unmarshal(raw, &e) != nil {
			continue
		}
		if !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt) {
			continue
		}
		candidateMeta := Metadata{Provider: e.Provider, Model: e.Model, Temperature: e.Temperature, HasTemperature: e.HasTemperature, OrganizationID: e.OrganizationID}
		if !metadata.Matches(candidateMeta) {
			continue
		}
		sim := CosineSimilarity(embedding, e.Embedding)
		if best == nil || sim > bestSim {
			e := e
			best, bestSim = &e, sim
		}
	}

	if best == nil || bestSim < b.similarityThreshold {
		return LookupResult{Hit: false}
	}

	best.Hits++
	best.LastAccessedAt = now
	if raw, err := json.Marshal(best); err == nil {
		b.client.Set(ctx, b.keyPrefix+"entry:"+best.ID, raw, time.Until(best.ExpiresAt))
	}

	var response interface{}
	json.Unmarshal(best.Response, &response)

	return LookupResult{
		Hit:                  true,
		Entry:                &Entry{ID: best.ID, Prompt: best.Prompt, Embedding: best.Embedding, Response: response, LastAccessedAt: best.LastAccessedAt, Hits: best.Hits, ExpiresAt: best.ExpiresAt, CreatedAt: best.CreatedAt},
		Similarity:           bestSim,
		SavedLatencyEstimate: estimateSavedLatency(),
	}
}

func (b *RedisBackend) Store(prompt string, embedding []float64, response interface{}, metadata Metadata) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	respBytes, err := json.Marshal(response)
	if err != nil {
		return err
	}

	now := time.Now()
	var expiresAt time.Time
	if b.ttl > 0 {
		expiresAt = now.Add(b.ttl)
	}

	id := newEntryID()
	entry := redisEntry{
		ID: id, Prompt: prompt, Embedding: embedding, Response: respBytes,
		Provider: metadata.Provider, Model: metadata.Model, Temperature: metadata.Temperature,
		HasTemperature: metadata.HasTemperature, OrganizationID: metadata.OrganizationID,
		CreatedAt: now, ExpiresAt: expiresAt, LastAccessedAt: now,
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	pipe := b.client.TxPipeline()
	pipe.Set(ctx, b.keyPrefix+"entry:"+id, raw, b.ttl)
	pipe.SAdd(ctx, b.keyPrefix+"index", id)
	_, err = pipe.Exec(ctx)
	return err
}

func (b *RedisBackend) Clear() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ids, err := b.client.SMembers(ctx, b.keyPrefix+"index").Result()
	if err != nil {
		return err
	}
	for _, id := range ids {
		b.client.Del(ctx, b.keyPrefix+"entry:"+id)
	}
	return b.client.Del(ctx, b.keyPrefix+"index").Err()
}

func (b *RedisBackend) Size() int {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	n, err := b.client.SCard(ctx, b.keyPrefix+"index").Result()
	if err != nil {
		return 0
	}
	return int(n)
}

var _ CacheBackend = (*RedisBackend)(nil)
