package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aocs/gateway/internal/gwerrors"
	"github.com/aocs/gateway/internal/reqmodel"
)

func TestEnqueueDequeueDrainsHighestPriorityFirst(t *testing.T) {
	q := New(0, false)
	require.NoError(t, q.Enqueue(&Item{ID: "low1", Priority: reqmodel.PriorityLow}))
	require.NoError(t, q.Enqueue(&Item{ID: "crit1", Priority: reqmodel.PriorityCritical}))

	item, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, "crit1", item.ID)
}

func TestEnqueueRejectsWhenBandFull(t *testing.T) {
	q := New(1, false)
	require.NoError(t, q.Enqueue(&Item{ID: "a", Priority: reqmodel.PriorityLow}))

	err := q.Enqueue(&Item{ID: "b", Priority: reqmodel.PriorityLow})
	assert.True(t, gwerrors.Is(err, gwerrors.CodeQueueFull))
}

func TestDequeueEmptyQueueReturnsFalse(t *testing.T) {
	q := New(0, false)
	_, ok := q.Dequeue()
	assert.False(t, ok)
}

func TestDequeueWithoutFairnessIsFIFO(t *testing.T) {
	q := New(0, false)
	require.NoError(t, q.Enqueue(&Item{ID: "a", UserID: "u1", Priority: reqmodel.PriorityLow}))
	require.NoError(t, q.Enqueue(&Item{ID: "b", UserID: "u1", Priority: reqmodel.PriorityLow}))

	first, _ := q.Dequeue()
	assert.Equal(t, "a", first.ID)
}

func TestDequeueWithFairnessPrefersUserWithFewerOutstandingRequests(t *testing.T) {
	q := New(0, true)
	require.NoError(t, q.Enqueue(&Item{ID: "u1a", UserID: "u1", Priority: reqmodel.PriorityNormal}))
	require.NoError(t, q.Enqueue(&Item{ID: "u1b", UserID: "u1", Priority: reqmodel.PriorityNormal}))
	require.NoError(t, q.Enqueue(&Item{ID: "u1c", UserID: "u1", Priority: reqmodel.PriorityNormal}))
	require.NoError(t, q.Enqueue(&Item{ID: "u2a", UserID: "u2", Priority: reqmodel.PriorityNormal}))

	// u2 has only one outstanding request against u1's three, so it goes
	// first even though it was enqueued last.
	first, _ := q.Dequeue()
	assert.Equal(t, "u2a", first.ID)

	second, _ := q.Dequeue()
	assert.Equal(t, "u1a", second.ID)

	third, _ := q.Dequeue()
	assert.Equal(t, "u1b", third.ID)

	fourth, _ := q.Dequeue()
	assert.Equal(t, "u1c", fourth.ID)
}

func TestCancelRemovesQueuedItem(t *testing.T) {
	q := New(0, false)
	require.NoError(t, q.Enqueue(&Item{ID: "a", Priority: reqmodel.PriorityLow}))

	assert.True(t, q.Cancel(reqmodel.PriorityLow, "a"))
	assert.False(t, q.Cancel(reqmodel.PriorityLow, "a"))
	assert.Equal(t, 0, q.Len())
}

func TestSweepExpiredRemovesPastDeadlineItems(t *testing.T) {
	q := New(0, false)
	past := time.Now().Add(-time.Minute)
	require.NoError(t, q.Enqueue(&Item{ID: "expired", Priority: reqmodel.PriorityLow, Deadline: past}))
	require.NoError(t, q.Enqueue(&Item{ID: "fresh", Priority: reqmodel.PriorityLow, Deadline: time.Now().Add(time.Hour)}))

	expired := q.SweepExpired(time.Now())

	require.Len(t, expired, 1)
	assert.Equal(t, "expired", expired[0].ID)
	assert.Equal(t, 1, q.Len())
}

func TestUtilizationReflectsFullestBand(t *testing.T) {
	q := New(4, false)
	require.NoError(t, q.Enqueue(&Item{ID: "a", Priority: reqmodel.PriorityLow}))
	require.NoError(t, q.Enqueue(&Item{ID: "b", Priority: reqmodel.PriorityLow}))

	assert.InDelta(t, 0.5, q.Utilization(), 0.001)
}

func TestUtilizationZeroWhenUnbounded(t *testing.T) {
	q := New(0, false)
	require.NoError(t, q.Enqueue(&Item{ID: "a", Priority: reqmodel.PriorityLow}))
	assert.Equal(t, 0.0, q.Utilization())
}

func TestReleaseDecrementsInFlightWithoutGoingNegative(t *testing.T) {
	q := New(0, false)
	q.Release(reqmodel.PriorityLow, "ghost-user") // should not panic on empty bucket
}
