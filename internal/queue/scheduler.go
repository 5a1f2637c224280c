package queue

import (
	"context"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Handler executes one dequeued item's work.
type Handler func(ctx context.Context, item *Item) error

// RetryPolicy controls the scheduler's re-enqueue-on-failure behavior, per
// spec §4.4: "if retries < maxRetries and the error type is in the retry
// allow-list, re-schedule after retryDelay * backoff^attempt (capped)."
type RetryPolicy struct {
	MaxRetries  int
	RetryDelay  time.Duration
	Backoff     float64
	MaxDelay    time.Duration
	IsRetryable func(err error) bool
}

func (p RetryPolicy) delayFor(attempt int) time.Duration {
	backoff := p.Backoff
	if backoff <= 0 {
		backoff = 1
	}
	d := time.Duration(float64(p.RetryDelay) * math.Pow(backoff, float64(attempt)))
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

func (p RetryPolicy) allows(attempt int, err error) bool {
	if attempt >= p.MaxRetries {
		return false
	}
	if p.IsRetryable == nil {
		return true
	}
	return p.IsRetryable(err)
}

// TaskMetrics is recorded once per completed (non-retried) item, per spec
// §4.4: "waitTime = dequeueTs - enqueueTs, processingTime = completeTs -
// dequeueTs."
type TaskMetrics struct {
	ItemID         string
	WaitTime       time.Duration
	ProcessingTime time.Duration
	Err            error
}

// Scheduler runs a worker pool draining a Queue, autoscaling concurrency
// between minConcurrency and maxConcurrency based on queue utilization,
// per spec §4.4.
type Scheduler struct {
	queue   *Queue
	handler Handler
	retry   RetryPolicy

	minConcurrency int
	maxConcurrency int
	workers        int32 // current worker count, atomic

	errCount int64
	okCount  int64

	onMetrics func(TaskMetrics)

	logger *log.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

// NewScheduler builds a scheduler over q with the given concurrency bounds,
// retry policy, and per-task handler.
func NewScheduler(q *Queue, handler Handler, minConcurrency, maxConcurrency int, retry RetryPolicy) *Scheduler {
	if minConcurrency < 1 {
		minConcurrency = 1
	}
	if maxConcurrency < minConcurrency {
		maxConcurrency = minConcurrency
	}
	return &Scheduler{
		queue:          q,
		handler:        handler,
		retry:          retry,
		minConcurrency: minConcurrency,
		maxConcurrency: maxConcurrency,
		logger:         log.New(log.Writer(), "[SCHEDULER] ", log.LstdFlags),
	}
}

// OnMetrics registers a callback invoked once per completed task.
func (s *Scheduler) OnMetrics(fn func(TaskMetrics)) {
	s.onMetrics = fn
}

// Start launches the worker pool and autoscaler; it runs until ctx is
// cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	for i := 0; i < s.minConcurrency; i++ {
		s.spawnWorker(ctx)
	}

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.autoscale(ctx)
		}
	}
}

// Stop halts the autoscale loop; running workers exit on their own once ctx
// is cancelled or the queue empties and Stop has fired.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.stopCh)
}

// Workers reports the current worker count.
func (s *Scheduler) Workers() int {
	return int(atomic.LoadInt32(&s.workers))
}

func (s *Scheduler) spawnWorker(ctx context.Context) {
	atomic.AddInt32(&s.workers, 1)
	go func() {
		defer atomic.AddInt32(&s.workers, -1)
		s.workerLoop(ctx)
	}()
}

func (s *Scheduler) workerLoop(ctx context.Context) {
	idle := time.NewTimer(50 * time.Millisecond)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		default:
		}

		item, ok := s.queue.Dequeue()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case <-time.After(10 * time.Millisecond):
				continue
			}
		}

		s.execute(ctx, item, 0)
	}
}

// execute runs item's work, retrying per policy on a retryable failure and
// reporting TaskMetrics on the terminal outcome (success, exhausted
// retries, or a non-retryable error).
func (s *Scheduler) execute(ctx context.Context, item *Item, attempt int) {
	dequeueTs := time.Now()
	err := s.handler(ctx, item)
	completeTs := time.Now()
	s.queue.Release(item.Priority, item.UserID)
	s.recordOutcome(err)

	if err != nil && s.retry.allows(attempt, err) {
		delay := s.retry.delayFor(attempt)
		time.AfterFunc(delay, func() {
			if reErr := s.queue.Enqueue(item); reErr != nil {
				s.logger.Printf("retry re-enqueue failed for %s: %v", item.ID, reErr)
				s.reportMetrics(item, dequeueTs, completeTs, err)
			}
		})
		return
	}

	s.reportMetrics(item, dequeueTs, completeTs, err)
}

func (s *Scheduler) reportMetrics(item *Item, dequeueTs, completeTs time.Time, err error) {
	if s.onMetrics == nil {
		return
	}
	s.onMetrics(TaskMetrics{
		ItemID:         item.ID,
		WaitTime:       dequeueTs.Sub(item.EnqueuedAt),
		ProcessingTime: completeTs.Sub(dequeueTs),
		Err:            err,
	})
}

// autoscale adds workers when utilization is sustained above 0.7 and the
// error rate is low; below 0.2 it simply stops growing and lets the pool
// settle toward minConcurrency as workers find the queue empty, per spec
// §4.4.
func (s *Scheduler) autoscale(ctx context.Context) {
	util := s.queue.Utilization()
	current := int(atomic.LoadInt32(&s.workers))

	if util > 0.7 && s.errorRate() < 0.5 && current < s.maxConcurrency {
		s.spawnWorker(ctx)
		s.logger.Printf("scaled up to %d workers (utilization=%.2f)", current+1, util)
	}
}

func (s *Scheduler) errorRate() float64 {
	ok := atomic.LoadInt64(&s.okCount)
	errs := atomic.LoadInt64(&s.errCount)
	total := ok + errs
	if total == 0 {
		return 0
	}
	return float64(errs) / float64(total)
}

func (s *Scheduler) recordOutcome(err error) {
	if err != nil {
		atomic.AddInt64(&s.errCount, 1)
	} else {
		atomic.AddInt64(&s.okCount, 1)
	}
}
