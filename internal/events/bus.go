// Package events carries the CloudEvents-shaped audit and alert envelope
// used by the policy engine's "alert"/"block"/"log" actions and by the
// default in-memory AuditSink.
package events

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// GatewayEvent is the CloudEvents 1.0 envelope emitted for every audited
// decision. It widens spec §6's audit sink contract
// {ts, correlationId, userId?, tenantId?, decision, threatLevel, findings[]}
// into a CloudEvents envelope so the same payload can also be fanned out as
// an alert.
type GatewayEvent struct {
	SpecVersion   string                 `json:"specversion"`
	Type          string                 `json:"type"`
	Source        string                 `json:"source"`
	ID            string                 `json:"id"`
	Time          time.Time              `json:"time"`
	CorrelationID string                 `json:"subject,omitempty"`
	TenantID      string                 `json:"tenantid,omitempty"`
	UserID        string                 `json:"userid,omitempty"`
	Data          map[string]interface{} `json:"data"`
}

// NewGatewayEvent creates a CloudEvents 1.0 compliant event.
func NewGatewayEvent(eventType, source, correlationID string, data map[string]interface{}) *GatewayEvent {
	return &GatewayEvent{
		SpecVersion:   "1.0",
		Type:          eventType,
		Source:        source,
		ID:            uuid.NewString(),
		Time:          time.Now(),
		CorrelationID: correlationID,
		Data:          data,
	}
}

// JSON serializes the event.
func (e *GatewayEvent) JSON() ([]byte, error) {
	return json.Marshal(e)
}

// SSEFormat returns the event in Server-Sent Events format, for the admin
// UI's live audit stream (the UI itself is out of scope, the format isn't).
func (e *GatewayEvent) SSEFormat() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\nid: %s\n\n", e.Type, data, e.ID)), nil
}

// EventEmitter is the interface satisfied by every sink below: the
// in-memory Bus, and the Pub/Sub-backed alert fanout in pubsub_bus.go.
type EventEmitter interface {
	Emit(eventType, source, correlationID string, data map[string]interface{})
}

// Bus is an in-process pub/sub fanout for gateway events. It backs both the
// default AuditSink and local alert-channel subscribers.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]chan *GatewayEvent
	allSubs     []chan *GatewayEvent
	logger      *log.Logger
	bufferSize  int
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[string][]chan *GatewayEvent),
		logger:      log.New(log.Writer(), "[EVENTS] ", log.LstdFlags),
		bufferSize:  100,
	}
}

// Subscribe returns a channel receiving events of the given types; pass no
// types to receive everything.
func (b *Bus) Subscribe(eventTypes ...string) chan *GatewayEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan *GatewayEvent, b.bufferSize)
	if len(eventTypes) == 0 {
		b.allSubs = append(b.allSubs, ch)
		return ch
	}
	for _, t := range eventTypes {
		b.subscribers[t] = append(b.subscribers[t], ch)
	}
	return ch
}

// Unsubscribe removes and closes a subscription channel.
func (b *Bus) Unsubscribe(ch chan *GatewayEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for t, subs := range b.subscribers {
		b.subscribers[t] = removeChan(subs, ch)
	}
	b.allSubs = removeChan(b.allSubs, ch)
	close(ch)
}

func removeChan(subs []chan *GatewayEvent, target chan *GatewayEvent) []chan *GatewayEvent {
	filtered := make([]chan *GatewayEvent, 0, len(subs))
	for _, s := range subs {
		if s != target {
			filtered = append(filtered, s)
		}
	}
	return filtered
}

// Emit builds and publishes an event.
func (b *Bus) Emit(eventType, source, correlationID string, data map[string]interface{}) {
	b.Publish(NewGatewayEvent(eventType, source, correlationID, data))
}

// Publish fans a pre-built event out to matching subscribers without
// blocking the caller; a full subscriber channel drops the event rather
// than stalling the request path.
func (b *Bus) Publish(event *GatewayEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	deliver := func(ch chan *GatewayEvent) {
		select {
		case ch <- event:
		default:
			b.logger.Printf("subscriber channel full, dropping event %s", event.ID)
		}
	}

	for _, ch := range b.subscribers[event.Type] {
		deliver(ch)
	}
	for _, ch := range b.allSubs {
		deliver(ch)
	}
}

// SubscriberCount returns the number of active subscriber channels.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := len(b.allSubs)
	for _, subs := range b.subscribers {
		n += len(subs)
	}
	return n
}

var _ EventEmitter = (*Bus)(nil)
