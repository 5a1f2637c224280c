package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aocs/gateway/internal/reqmodel"
)

func TestRetryPolicyDelayForAppliesExponentialBackoffCappedAtMaxDelay(t *testing.T) {
	p := RetryPolicy{RetryDelay: 10 * time.Millisecond, Backoff: 2, MaxDelay: 30 * time.Millisecond}

	assert.Equal(t, 10*time.Millisecond, p.delayFor(0))
	assert.Equal(t, 20*time.Millisecond, p.delayFor(1))
	assert.Equal(t, 30*time.Millisecond, p.delayFor(2)) // would be 40ms, capped
}

func TestRetryPolicyAllowsRespectsMaxRetriesAndPredicate(t *testing.T) {
	p := RetryPolicy{MaxRetries: 2, IsRetryable: func(err error) bool { return err.Error() == "retry-me" }}

	assert.True(t, p.allows(0, errors.New("retry-me")))
	assert.False(t, p.allows(0, errors.New("fatal")))
	assert.False(t, p.allows(2, errors.New("retry-me")))
}

func TestSchedulerProcessesQueuedItemsAndReportsMetrics(t *testing.T) {
	q := New(0, false)
	require.NoError(t, q.Enqueue(&Item{ID: "task1", Priority: reqmodel.PriorityNormal, EnqueuedAt: time.Now()}))

	done := make(chan TaskMetrics, 1)
	s := NewScheduler(q, func(ctx context.Context, item *Item) error {
		return nil
	}, 1, 1, RetryPolicy{})
	s.OnMetrics(func(m TaskMetrics) { done <- m })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Start(ctx)
	defer s.Stop()

	select {
	case m := <-done:
		assert.Equal(t, "task1", m.ItemID)
		assert.NoError(t, m.Err)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not process the queued item in time")
	}
}

func TestSchedulerWorkersReflectsSpawnedPool(t *testing.T) {
	q := New(0, false)
	s := NewScheduler(q, func(ctx context.Context, item *Item) error { return nil }, 2, 2, RetryPolicy{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Start(ctx)
	defer s.Stop()

	assert.Eventually(t, func() bool { return s.Workers() == 2 }, time.Second, 5*time.Millisecond)
}

func TestNewSchedulerClampsConcurrencyBounds(t *testing.T) {
	q := New(0, false)
	s := NewScheduler(q, func(ctx context.Context, item *Item) error { return nil }, 0, -1, RetryPolicy{})
	assert.Equal(t, 1, s.minConcurrency)
	assert.Equal(t, 1, s.maxConcurrency)
}
