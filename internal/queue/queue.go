// Package queue implements the admission queue and worker-pool scheduler
// from spec §4.4: five priority bands, optional per-band fairness,
// cancellation, deadline-based timeout, and an autoscaling worker pool with
// retry backoff.
package queue

import (
	"container/list"
	"sync"
	"time"

	"github.com/aocs/gateway/internal/gwerrors"
	"github.com/aocs/gateway/internal/reqmodel"
)

// Item is one admitted unit of work sitting in the queue.
type Item struct {
	ID         string
	UserID     string
	Priority   reqmodel.Priority
	EnqueuedAt time.Time
	Deadline   time.Time
	Payload    interface{}

	cancelled bool
}

// Stats carries the wait/processing timing spec §4.4 requires per task.
type Stats struct {
	WaitTime       time.Duration
	ProcessingTime time.Duration
}

// band is one FIFO priority lane, plus per-user queued and in-flight counts
// for the optional fairness rule.
type band struct {
	mu       sync.Mutex
	items    *list.List // of *Item
	index    map[string]*list.Element
	queued   map[string]int // userId -> count of items still waiting in this band
	inFlight map[string]int // userId -> count of dequeued-not-yet-released requests
}

func newBand() *band {
	return &band{
		items:    list.New(),
		index:    make(map[string]*list.Element),
		queued:   make(map[string]int),
		inFlight: make(map[string]int),
	}
}

// Queue holds the five priority bands described in spec §4.4. Enqueue
// appends to the band matching the item's priority; Dequeue drains higher
// bands first, and within a band applies fairness (by fewest outstanding
// requests per user) when enabled, else strict FIFO.
type Queue struct {
	bands         map[reqmodel.Priority]*band
	maxQueueSize  int
	enableFairness bool
}

// New creates a queue with the five fixed priority bands.
func New(maxQueueSize int, enableFairness bool) *Queue {
	q := &Queue{
		bands:          make(map[reqmodel.Priority]*band),
		maxQueueSize:   maxQueueSize,
		enableFairness: enableFairness,
	}
	for _, p := range reqmodel.AllPriorities {
		q.bands[p] = newBand()
	}
	return q
}

// Enqueue appends item to the band matching its priority. Fails with
// QueueFull when that band is already at maxQueueSize.
func (q *Queue) Enqueue(item *Item) error {
	b := q.bands[item.Priority]
	if b == nil {
		return gwerrors.New(gwerrors.CodeInternalError, "unknown priority band: "+string(item.Priority))
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if q.maxQueueSize > 0 && b.items.Len() >= q.maxQueueSize {
		return gwerrors.New(gwerrors.CodeQueueFull, "queue full for priority "+string(item.Priority))
	}

	el := b.items.PushBack(item)
	b.index[item.ID] = el
	b.queued[item.UserID]++
	return nil
}

// Dequeue returns the next item to run, draining bands in priority order
// (critical first). Returns nil, false when every band is empty.
func (q *Queue) Dequeue() (*Item, bool) {
	for _, p := range reqmodel.AllPriorities {
		b := q.bands[p]
		if item, ok := q.dequeueFromBand(b); ok {
			return item, true
		}
	}
	return nil, false
}

func (q *Queue) dequeueFromBand(b *band) (*Item, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.items.Len() == 0 {
		return nil, false
	}

	var target *list.Element
	if q.enableFairness {
		target = selectFairest(b)
	} else {
		target = b.items.Front()
	}

	item := target.Value.(*Item)
	b.items.Remove(target)
	delete(b.index, item.ID)
	if b.queued[item.UserID] > 0 {
		b.queued[item.UserID]--
	}
	b.inFlight[item.UserID]++
	return item, true
}

// selectFairest picks the front-most element belonging to the user with the
// fewest outstanding requests — still queued in this band plus dequeued but
// not yet released — ties broken by FIFO (list front-to-back order). Ranking
// only on in-flight count would leave every user tied at the first dequeue
// regardless of how much each has queued, so outstanding must include the
// still-queued count too.
func selectFairest(b *band) *list.Element {
	outstanding := func(userID string) int {
		return b.queued[userID] + b.inFlight[userID]
	}

	best := b.items.Front()
	bestCount := outstanding(best.Value.(*Item).UserID)
	for el := best.Next(); el != nil; el = el.Next() {
		item := el.Value.(*Item)
		count := outstanding(item.UserID)
		if count < bestCount {
			best = el
			bestCount = count
		}
	}
	return best
}

// Release decrements the in-flight count for a completed item's user; call
// once per Dequeue, after the work finishes (success, failure, or cancel).
func (q *Queue) Release(priority reqmodel.Priority, userID string) {
	b := q.bands[priority]
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.inFlight[userID] > 0 {
		b.inFlight[userID]--
	}
}

// Cancel removes a still-queued item by id in O(band size). Returns false
// if the item was not found queued (already dequeued or unknown id).
func (q *Queue) Cancel(priority reqmodel.Priority, id string) bool {
	b := q.bands[priority]
	if b == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	el, ok := b.index[id]
	if !ok {
		return false
	}
	item := el.Value.(*Item)
	item.cancelled = true
	b.items.Remove(el)
	delete(b.index, id)
	if b.queued[item.UserID] > 0 {
		b.queued[item.UserID]--
	}
	return true
}

// SweepExpired removes and returns every item past its deadline across all
// bands, for the caller to fail with a Timeout error (spec §4.4).
func (q *Queue) SweepExpired(now time.Time) []*Item {
	var expired []*Item
	for _, p := range reqmodel.AllPriorities {
		b := q.bands[p]
		b.mu.Lock()
		var next *list.Element
		for el := b.items.Front(); el != nil; el = next {
			next = el.Next()
			item := el.Value.(*Item)
			if !item.Deadline.IsZero() && now.After(item.Deadline) {
				b.items.Remove(el)
				delete(b.index, item.ID)
				if b.queued[item.UserID] > 0 {
					b.queued[item.UserID]--
				}
				expired = append(expired, item)
			}
		}
		b.mu.Unlock()
	}
	return expired
}

// Len returns the combined length of all bands.
func (q *Queue) Len() int {
	total := 0
	for _, p := range reqmodel.AllPriorities {
		b := q.bands[p]
		b.mu.Lock()
		total += b.items.Len()
		b.mu.Unlock()
	}
	return total
}

// Utilization reports queue fullness in [0,1] against maxQueueSize per band,
// taking the maximum across bands (used by the scheduler's autoscaler and
// the backpressure load signal).
func (q *Queue) Utilization() float64 {
	if q.maxQueueSize <= 0 {
		return 0
	}
	var max float64
	for _, p := range reqmodel.AllPriorities {
		b := q.bands[p]
		b.mu.Lock()
		u := float64(b.items.Len()) / float64(q.maxQueueSize)
		b.mu.Unlock()
		if u > max {
			max = u
		}
	}
	return max
}
