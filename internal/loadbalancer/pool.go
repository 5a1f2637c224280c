package loadbalancer

import (
	"container/list"
	"fmt"
	"sync"
	"time"
)

// Conn is a pooled connection slot. Dial/Close are left to the caller's
// transport; the pool only tracks lifecycle and idleness.
type Conn struct {
	ID       string
	LastUsed time.Time
	busy     bool
	elem     *list.Element // position in the pool's LRU list
}

// ConnectionPool is a per-endpoint bounded pool, per spec §4.6: "Bounded by
// maxPoolSize. Acquire: first idle slot; else create a new one if under
// cap; else take the least-recently-used busy slot (wait-on-LRU). Release:
// mark idle, update lastUsed... Pool is per-endpoint; never shared across
// endpoints."
type ConnectionPool struct {
	mu          sync.Mutex
	maxPoolSize int
	idleTimeout time.Duration

	dial  func() (*Conn, error)
	next  int

	// lru orders every live conn, busy or idle, by LastUsed ascending, so a
	// saturated pool can reclaim the least-recently-used busy slot.
	lru     *list.List
	entries map[string]*Conn

	stopCh chan struct{}
}

// NewConnectionPool creates a pool bounded to maxPoolSize, reaping idle
// entries older than idleTimeout on a background timer. dial creates a new
// underlying connection.
func NewConnectionPool(maxPoolSize int, idleTimeout time.Duration, dial func() (*Conn, error)) *ConnectionPool {
	p := &ConnectionPool{
		maxPoolSize: maxPoolSize,
		idleTimeout: idleTimeout,
		dial:        dial,
		lru:         list.New(),
		entries:     make(map[string]*Conn),
		stopCh:      make(chan struct{}),
	}
	go p.reap()
	return p
}

// Acquire returns an idle connection, creates one if under capacity, or
// waits on the least-recently-used busy slot when saturated.
func (p *ConnectionPool) Acquire() (*Conn, error) {
	p.mu.Lock()

	for el := p.lru.Front(); el != nil; el = el.Next() {
		c := el.Value.(*Conn)
		if !c.busy {
			p.markBusy(c)
			p.mu.Unlock()
			return c, nil
		}
	}

	if len(p.entries) < p.maxPoolSize {
		p.mu.Unlock()
		c, err := p.dial()
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		p.next++
		if c.ID == "" {
			c.ID = poolConnID(p.next)
		}
		c.busy = true
		c.LastUsed = time.Now()
		c.elem = p.lru.PushBack(c)
		p.entries[c.ID] = c
		p.mu.Unlock()
		return c, nil
	}

	// Saturated: take the LRU busy slot (wait-on-LRU per spec §4.6).
	lru := p.lru.Front()
	p.mu.Unlock()
	if lru == nil {
		return nil, errPoolExhausted
	}
	c := lru.Value.(*Conn)
	p.mu.Lock()
	p.markBusy(c)
	p.mu.Unlock()
	return c, nil
}

// markBusy marks c busy and moves it to the back of the LRU list; caller
// must hold p.mu.
func (p *ConnectionPool) markBusy(c *Conn) {
	c.busy = true
	c.LastUsed = time.Now()
	p.lru.MoveToBack(c.elem)
}

// Release marks a connection idle and updates lastUsed, per spec §4.6.
func (p *ConnectionPool) Release(c *Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c.busy = false
	c.LastUsed = time.Now()
	if c.elem != nil {
		p.lru.MoveToFront(c.elem)
	}
}

// Size returns the current pool occupancy; invariant: Size() <= maxPoolSize
// at all times (spec §8).
func (p *ConnectionPool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// reap removes idle entries older than idleTimeout on a fixed interval.
func (p *ConnectionPool) reap() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.reapOnce()
		}
	}
}

func (p *ConnectionPool) reapOnce() {
	if p.idleTimeout <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	var next *list.Element
	for el := p.lru.Front(); el != nil; el = next {
		next = el.Next()
		c := el.Value.(*Conn)
		if c.busy {
			continue
		}
		if now.Sub(c.LastUsed) > p.idleTimeout {
			p.lru.Remove(el)
			delete(p.entries, c.ID)
		}
	}
}

// Close stops the reaper goroutine.
func (p *ConnectionPool) Close() {
	close(p.stopCh)
}

func poolConnID(n int) string {
	return fmt.Sprintf("conn-%d", n)
}

var errPoolExhausted = poolError("connection pool exhausted")

type poolError string

func (e poolError) Error() string { return string(e) }
