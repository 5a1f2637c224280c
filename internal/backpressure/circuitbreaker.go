// Package backpressure implements the load-shedding and circuit breaker
// admission control from spec §4.5.
package backpressure

import (
	"errors"
	"log"
	"sync"
	"time"
)

// State is one of the three circuit breaker states.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

var (
	// ErrCircuitOpen is returned while the breaker rejects all non-critical
	// traffic during its cooldown.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrTooManyProbes is returned once the half-open probe batch is full.
	ErrTooManyProbes = errors.New("too many probe requests in half-open state")
)

// CircuitConfig configures one breaker's trip/recovery behavior.
type CircuitConfig struct {
	Name string

	// ProbeBatch is the number of admitted requests while half-open.
	ProbeBatch uint32

	// Window is the cyclic period in the closed state for clearing counts.
	Window time.Duration

	// CoolDown is how long the breaker stays open before probing again.
	CoolDown time.Duration

	// ReadyToTrip is evaluated after every closed-state failure; it trips to
	// open when it returns true.
	ReadyToTrip func(counts Counts) bool

	OnStateChange func(name string, from, to State)
}

// DefaultCircuitConfig trips when the rolling failure rate exceeds 50% with
// at least 5 outcomes recorded, per spec §4.5.
func DefaultCircuitConfig(name string) *CircuitConfig {
	return &CircuitConfig{
		Name:       name,
		ProbeBatch: 3,
		Window:     60 * time.Second,
		CoolDown:   30 * time.Second,
		ReadyToTrip: func(c Counts) bool {
			return c.Requests >= 5 && c.FailureRatio() > 0.5
		},
		OnStateChange: func(name string, from, to State) {
			log.Printf("[CIRCUIT:%s] %s -> %s", name, from, to)
		},
	}
}

// Counts is the rolling outcome tally within one generation.
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

func (c Counts) FailureRatio() float64 {
	if c.Requests == 0 {
		return 0
	}
	return float64(c.TotalFailures) / float64(c.Requests)
}

func (c *Counts) clear() { *c = Counts{} }

func (c *Counts) onSuccess() {
	c.Requests++
	c.TotalSuccesses++
	c.ConsecutiveSuccesses++
	c.ConsecutiveFailures = 0
}

func (c *Counts) onFailure() {
	c.Requests++
	c.TotalFailures++
	c.ConsecutiveFailures++
	c.ConsecutiveSuccesses = 0
}

// CircuitBreaker is a three-state (closed/open/half-open) breaker with
// generation-based outcome counting, so stale results from a superseded
// generation are never applied.
type CircuitBreaker struct {
	cfg *CircuitConfig

	mu            sync.Mutex
	state         State
	generation    uint64
	counts        Counts
	expiry        time.Time
	lastStateTime time.Time
}

// NewCircuitBreaker creates a breaker in the closed state.
func NewCircuitBreaker(cfg *CircuitConfig) *CircuitBreaker {
	if cfg == nil {
		cfg = DefaultCircuitConfig("default")
	}
	return &CircuitBreaker{cfg: cfg, state: StateClosed, lastStateTime: time.Now()}
}

func (cb *CircuitBreaker) Name() string { return cb.cfg.Name }

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	state, _ := cb.currentState(time.Now())
	return state
}

func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.counts
}

// Allow reports whether a request may proceed without executing it.
func (cb *CircuitBreaker) Allow() error {
	_, err := cb.beforeRequest()
	return err
}

// Execute runs req if the breaker allows it, recording the outcome.
func (cb *CircuitBreaker) Execute(req func() (interface{}, error)) (interface{}, error) {
	generation, err := cb.beforeRequest()
	if err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			cb.afterRequest(generation, false)
			panic(r)
		}
	}()

	result, err := req()
	cb.afterRequest(generation, err == nil)
	return result, err
}

func (cb *CircuitBreaker) beforeRequest() (uint64, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	state, generation := cb.currentState(time.Now())
	if state == StateOpen {
		return generation, ErrCircuitOpen
	}
	if state == StateHalfOpen && cb.counts.Requests >= cb.cfg.ProbeBatch {
		return generation, ErrTooManyProbes
	}
	cb.counts.Requests++
	return generation, nil
}

func (cb *CircuitBreaker) afterRequest(generation uint64, success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	state, current := cb.currentState(time.Now())
	if generation != current {
		return
	}
	if success {
		cb.onSuccess(state)
	} else {
		cb.onFailure(state)
	}
}

func (cb *CircuitBreaker) onSuccess(state State) {
	switch state {
	case StateClosed:
		cb.counts.onSuccess()
	case StateHalfOpen:
		cb.counts.onSuccess()
		if cb.counts.ConsecutiveSuccesses >= cb.cfg.ProbeBatch {
			cb.setState(StateClosed, time.Now())
		}
	}
}

func (cb *CircuitBreaker) onFailure(state State) {
	switch state {
	case StateClosed:
		cb.counts.onFailure()
		if cb.cfg.ReadyToTrip(cb.counts) {
			cb.setState(StateOpen, time.Now())
		}
	case StateHalfOpen:
		cb.setState(StateOpen, time.Now())
	}
}

func (cb *CircuitBreaker) currentState(now time.Time) (State, uint64) {
	switch cb.state {
	case StateClosed:
		if !cb.expiry.IsZero() && cb.expiry.Before(now) {
			cb.toNewGeneration(now)
		}
	case StateOpen:
		if cb.expiry.Before(now) {
			cb.setState(StateHalfOpen, now)
		}
	}
	return cb.state, cb.generation
}

func (cb *CircuitBreaker) setState(state State, now time.Time) {
	if cb.state == state {
		return
	}
	prev := cb.state
	cb.state = state
	cb.lastStateTime = now
	cb.toNewGeneration(now)
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.cfg.Name, prev, state)
	}
}

func (cb *CircuitBreaker) toNewGeneration(now time.Time) {
	cb.generation++
	cb.counts.clear()

	var expiry time.Time
	switch cb.state {
	case StateClosed:
		if cb.cfg.Window > 0 {
			expiry = now.Add(cb.cfg.Window)
		}
	case StateOpen:
		expiry = now.Add(cb.cfg.CoolDown)
	}
	cb.expiry = expiry
}
