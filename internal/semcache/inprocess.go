package semcache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/oklog/ulid/v2"
)

// InProcessCache is the default CacheBackend: an LRU-bounded table of
// entries scanned by cosine similarity on lookup. Capacity eviction is
// delegated to the underlying LRU (github.com/hashicorp/golang-lru/v2),
// whose "least recently used" eviction is exactly the spec's "evict the
// entry with minimum lastAccessedAt" rule, since a hit promotes its entry
// to most-recently-used.
type InProcessCache struct {
	cache               *lru.Cache[string, *Entry]
	similarityThreshold float64
	ttl                 time.Duration

	hitsMu sync.Mutex // guards Hits/LastAccessedAt writes on a looked-up *Entry
	stopCh chan struct{}
}

// NewInProcessCache builds a cache bounded to maxEntries, with the given
// similarity threshold and default TTL (0 disables expiry).
func NewInProcessCache(maxEntries int, similarityThreshold float64, ttl time.Duration) (*InProcessCache, error) {
	c, err := lru.New[string, *Entry](maxEntries)
	if err != nil {
		return nil, err
	}
	ic := &InProcessCache{
		cache:               c,
		similarityThreshold: similarityThreshold,
		ttl:                 ttl,
		stopCh:              make(chan struct{}),
	}
	go ic.reapExpired()
	return ic, nil
}

// Lookup scans non-expired, metadata-matching entries for the maximum
// cosine similarity and returns it as a hit when it meets the threshold,
// per spec §4.7's lookup algorithm.
func (c *InProcessCache) Lookup(prompt string, embedding []float64, metadata Metadata) LookupResult {
	now := time.Now()

	var best *Entry
	var bestSim float64
	for _, key := range c.cache.Keys() {
		entry, ok := c.cache.Peek(key)
		if !ok {
			continue
		}
		if !entry.ExpiresAt.IsZero() && now.After(entry.ExpiresAt) {
			continue
		}
		if !metadata.Matches(entry.Metadata) {
			continue
		}
		sim := CosineSimilarity(embedding, entry.Embedding)
		if best == nil || sim > bestSim {
			best, bestSim = entry, sim
		}
	}

	if best == nil || bestSim < c.similarityThreshold {
		return LookupResult{Hit: false}
	}

	// Promote to most-recently-used and update hit bookkeeping. Peek above
	// only read the entry; concurrent Lookups can race on the same *Entry's
	// fields here, so the increment and timestamp write are locked.
	c.cache.Get(best.ID)
	c.hitsMu.Lock()
	best.Hits++
	best.LastAccessedAt = now
	c.hitsMu.Unlock()

	return LookupResult{
		Hit:                  true,
		Entry:                best,
		Similarity:           bestSim,
		SavedLatencyEstimate: estimateSavedLatency(),
	}
}

// Store inserts a new entry, evicting the LRU entry first if at capacity
// (handled by the underlying cache.Add call itself).
func (c *InProcessCache) Store(prompt string, embedding []float64, response interface{}, metadata Metadata) error {
	now := time.Now()
	var expiresAt time.Time
	if c.ttl > 0 {
		expiresAt = now.Add(c.ttl)
	}

	entry := &Entry{
		ID:             newEntryID(),
		Prompt:         prompt,
		Embedding:      embedding,
		Response:       response,
		Metadata:       metadata,
		CreatedAt:      now,
		ExpiresAt:      expiresAt,
		LastAccessedAt: now,
	}
	c.cache.Add(entry.ID, entry)
	return nil
}

// Clear removes every cached entry.
func (c *InProcessCache) Clear() error {
	c.cache.Purge()
	return nil
}

// Size returns the current entry count; invariant: Size() <= maxEntries.
func (c *InProcessCache) Size() int {
	return c.cache.Len()
}

// Close stops the expiry reaper.
func (c *InProcessCache) Close() {
	close(c.stopCh)
}

// newEntryID generates a sortable, collision-resistant cache entry id.
func newEntryID() string {
	return ulid.Make().String()
}

// reapExpired removes entries with expiresAt < now on a fixed timer, per
// spec §4.7's "background reaper."
func (c *InProcessCache) reapExpired() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			now := time.Now()
			for _, key := range c.cache.Keys() {
				entry, ok := c.cache.Peek(key)
				if !ok {
					continue
				}
				if !entry.ExpiresAt.IsZero() && now.After(entry.ExpiresAt) {
					c.cache.Remove(key)
				}
			}
		}
	}
}

// estimateSavedLatency is a fixed stand-in for the upstream round-trip the
// cache hit avoided; a real deployment would derive this from the
// endpoint's observed avgLatencyEWMA.
func estimateSavedLatency() time.Duration {
	return 400 * time.Millisecond
}

var _ CacheBackend = (*InProcessCache)(nil)
