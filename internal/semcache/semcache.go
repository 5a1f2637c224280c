// Package semcache implements the semantic cache from spec §4.7: embedding
// similarity lookup with a metadata gate, LRU capacity eviction, and TTL
// expiry.
package semcache

import "time"

// Entry is one cached prompt/response pair.
type Entry struct {
	ID             string
	Prompt         string
	Embedding      []float64
	Response       interface{}
	Metadata       Metadata
	CreatedAt      time.Time
	ExpiresAt      time.Time
	LastAccessedAt time.Time
	Hits           int64
}

// Metadata is the gate spec §4.7 requires to hold before similarity is
// even considered: provider/model equality, a temperature tolerance, and
// an optional organization match.
type Metadata struct {
	Provider       string
	Model          string
	Temperature    float64
	HasTemperature bool
	OrganizationID string
}

// Matches reports whether the metadata gate holds between a query and a
// candidate entry, per spec §4.7:
//
//	provider and model equal;
//	|temperature_query - temperature_entry| <= 0.1 (when both set);
//	if both entries have an organizationId, they must match.
func (q Metadata) Matches(c Metadata) bool {
	if q.Provider != c.Provider || q.Model != c.Model {
		return false
	}
	if q.HasTemperature && c.HasTemperature {
		diff := q.Temperature - c.Temperature
		if diff < 0 {
			diff = -diff
		}
		if diff > 0.1 {
			return false
		}
	}
	if q.OrganizationID != "" && c.OrganizationID != "" && q.OrganizationID != c.OrganizationID {
		return false
	}
	return true
}

// LookupResult is the outcome of a Lookup call.
type LookupResult struct {
	Hit                  bool
	Entry                *Entry
	Similarity           float64
	SavedLatencyEstimate time.Duration
}

// CacheBackend is the external contract from spec §6: Lookup, Store, Clear.
// The default implementation is in-process (see inprocess.go); an
// alternate remote implementation is provided in redis_backend.go.
type CacheBackend interface {
	Lookup(prompt string, embedding []float64, metadata Metadata) LookupResult
	Store(prompt string, embedding []float64, response interface{}, metadata Metadata) error
	Clear() error
	Size() int
}
