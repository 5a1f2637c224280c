package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aocs/gateway/internal/reqmodel"
)

func TestInMemoryStoreAddGetList(t *testing.T) {
	s := NewInMemoryStore()
	p := Policy{ID: "p1", Priority: 5, Action: reqmodel.ActionAllow}

	require.NoError(t, s.Add(p))

	got, ok := s.Get("p1")
	require.True(t, ok)
	assert.Equal(t, p.ID, got.ID)
	assert.Len(t, s.List(), 1)
}

func TestInMemoryStoreAddRejectsInvalidPolicy(t *testing.T) {
	s := NewInMemoryStore()
	err := s.Add(Policy{ID: "", Action: reqmodel.ActionAllow})
	assert.Error(t, err)
}

func TestInMemoryStoreAddRejectsDuplicateID(t *testing.T) {
	s := NewInMemoryStore()
	p := Policy{ID: "dup", Action: reqmodel.ActionAllow}
	require.NoError(t, s.Add(p))

	err := s.Add(p)
	assert.Error(t, err)
}

func TestInMemoryStoreUpdateRequiresExistingPolicy(t *testing.T) {
	s := NewInMemoryStore()
	err := s.Update(Policy{ID: "missing", Action: reqmodel.ActionAllow})
	assert.Error(t, err)
}

func TestInMemoryStoreRemove(t *testing.T) {
	s := NewInMemoryStore()
	require.NoError(t, s.Add(Policy{ID: "p1", Action: reqmodel.ActionAllow}))

	require.NoError(t, s.Remove("p1"))
	_, ok := s.Get("p1")
	assert.False(t, ok)
}

func TestInMemoryStoreListIsSortedByPriority(t *testing.T) {
	s := NewInMemoryStore()
	require.NoError(t, s.Add(Policy{ID: "low", Priority: 10, Action: reqmodel.ActionAllow}))
	require.NoError(t, s.Add(Policy{ID: "high", Priority: 1, Action: reqmodel.ActionAllow}))

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, "high", list[0].ID)
	assert.Equal(t, "low", list[1].ID)
}
