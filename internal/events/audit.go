package events

import (
	"sync"
	"time"

	"github.com/aocs/gateway/internal/reqmodel"
)

// AuditRecord is the structured audit payload from spec §6:
// {ts, correlationId, userId?, tenantId?, decision, threatLevel, findings[]}.
type AuditRecord struct {
	Timestamp     time.Time              `json:"ts"`
	CorrelationID string                 `json:"correlationId"`
	UserID        string                 `json:"userId,omitempty"`
	TenantID      string                 `json:"tenantId,omitempty"`
	Decision      reqmodel.Action        `json:"decision"`
	ThreatLevel   reqmodel.Severity      `json:"threatLevel"`
	Findings      []reqmodel.Finding     `json:"findings,omitempty"`
}

// AuditSink is the pluggable audit interface from spec §6. The core emits
// events through it; durable storage is left to the caller (spec §1
// Non-goals: no persistent durable audit storage in the core).
type AuditSink interface {
	Record(rec AuditRecord)
}

// BusAuditSink adapts an EventEmitter into an AuditSink, emitting a
// "gateway.audit" CloudEvent for every record. Findings whose evidence is
// not sanctioned for disclosure (anything but a PolicyBlocked decision with
// an action that requests it) are masked before publication.
type BusAuditSink struct {
	emitter EventEmitter
	source  string
}

// NewBusAuditSink wraps emitter as an AuditSink.
func NewBusAuditSink(emitter EventEmitter, source string) *BusAuditSink {
	return &BusAuditSink{emitter: emitter, source: source}
}

func (s *BusAuditSink) Record(rec AuditRecord) {
	findings := make([]map[string]interface{}, 0, len(rec.Findings))
	revealEvidence := rec.Decision == reqmodel.ActionBlock
	for _, f := range rec.Findings {
		evidence := f.Evidence
		if !revealEvidence {
			evidence = ""
		}
		findings = append(findings, map[string]interface{}{
			"type":       f.Type,
			"severity":   string(f.Severity),
			"confidence": f.Confidence,
			"evidence":   evidence,
		})
	}

	s.emitter.Emit("gateway.audit", s.source, rec.CorrelationID, map[string]interface{}{
		"user_id":      rec.UserID,
		"tenant_id":    rec.TenantID,
		"decision":     string(rec.Decision),
		"threat_level": string(rec.ThreatLevel),
		"findings":     findings,
	})
}

// RingBufferAuditSink is the default in-process AuditSink: a fixed-capacity
// ring buffer that the admin surface (out of scope here) can poll. Modeled
// on the teacher's in-memory EventBus retention being bounded by channel
// buffers rather than unbounded slices.
type RingBufferAuditSink struct {
	mu       sync.Mutex
	records  []AuditRecord
	capacity int
	next     int
	filled   bool
}

// NewRingBufferAuditSink creates a sink retaining the last capacity records.
func NewRingBufferAuditSink(capacity int) *RingBufferAuditSink {
	if capacity <= 0 {
		capacity = 1000
	}
	return &RingBufferAuditSink{
		records:  make([]AuditRecord, capacity),
		capacity: capacity,
	}
}

func (s *RingBufferAuditSink) Record(rec AuditRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[s.next] = rec
	s.next = (s.next + 1) % s.capacity
	if s.next == 0 {
		s.filled = true
	}
}

// Recent returns the retained records in chronological order.
func (s *RingBufferAuditSink) Recent() []AuditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.filled {
		out := make([]AuditRecord, s.next)
		copy(out, s.records[:s.next])
		return out
	}
	out := make([]AuditRecord, s.capacity)
	copy(out, s.records[s.next:])
	copy(out[s.capacity-s.next:], s.records[:s.next])
	return out
}

var _ AuditSink = (*BusAuditSink)(nil)
var _ AuditSink = (*RingBufferAuditSink)(nil)
