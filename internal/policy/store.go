package policy

import (
	"sort"
	"sync"

	"github.com/aocs/gateway/internal/gwerrors"
)

// Store is the external PolicyStore contract from spec §6:
// List/Get/Add/Update/Remove. The policy set is held copy-on-write per the
// §5 concurrency discipline: readers get a stable snapshot sorted by
// ascending priority, writers publish a new snapshot atomically.
type Store interface {
	List() []Policy
	Get(id string) (Policy, bool)
	Add(p Policy) error
	Update(p Policy) error
	Remove(id string) error
}

// InMemoryStore is the default Store: a mutex-guarded map with a
// precomputed sorted snapshot, mirroring the teacher's copy-on-write
// scanner/tool registries.
type InMemoryStore struct {
	mu       sync.RWMutex
	policies map[string]Policy
	snapshot []Policy
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{policies: make(map[string]Policy)}
}

// List returns the current sorted snapshot. An empty set is valid: policy
// evaluation over it returns the default-allow decision (spec §8 boundary
// case).
func (s *InMemoryStore) List() []Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

func (s *InMemoryStore) Get(id string) (Policy, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[id]
	return p, ok
}

// Add inserts a new policy. Malformed policies are rejected here, at load
// time, never silently accepted into the evaluation path (spec §4.2).
func (s *InMemoryStore) Add(p Policy) error {
	if !p.Valid() {
		return gwerrors.New(gwerrors.CodeInternalError, "malformed policy: "+p.ID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.policies[p.ID]; exists {
		return gwerrors.New(gwerrors.CodeInternalError, "policy already exists: "+p.ID)
	}
	s.policies[p.ID] = p
	s.republish()
	return nil
}

func (s *InMemoryStore) Update(p Policy) error {
	if !p.Valid() {
		return gwerrors.New(gwerrors.CodeInternalError, "malformed policy: "+p.ID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.policies[p.ID]; !exists {
		return gwerrors.New(gwerrors.CodeInternalError, "policy not found: "+p.ID)
	}
	s.policies[p.ID] = p
	s.republish()
	return nil
}

func (s *InMemoryStore) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.policies[id]; !exists {
		return gwerrors.New(gwerrors.CodeInternalError, "policy not found: "+id)
	}
	delete(s.policies, id)
	s.republish()
	return nil
}

// republish rebuilds the sorted snapshot; callers must hold the write lock.
func (s *InMemoryStore) republish() {
	snapshot := make([]Policy, 0, len(s.policies))
	for _, p := range s.policies {
		snapshot = append(snapshot, p)
	}
	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].Priority < snapshot[j].Priority })
	s.snapshot = snapshot
}

var _ Store = (*InMemoryStore)(nil)
