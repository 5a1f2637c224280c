package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aocs/gateway/internal/reqmodel"
)

func TestBusAuditSinkEmitsGatewayAuditEvent(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe("gateway.audit")
	defer bus.Unsubscribe(ch)

	sink := NewBusAuditSink(bus, "test")
	sink.Record(AuditRecord{
		Timestamp:     time.Now(),
		CorrelationID: "corr-1",
		TenantID:      "acme",
		Decision:      reqmodel.ActionBlock,
		ThreatLevel:   reqmodel.SeverityHigh,
		Findings: []reqmodel.Finding{
			{Type: "PII", Severity: reqmodel.SeverityHigh, Evidence: "4111 1111 1111 1111"},
		},
	})

	select {
	case evt := <-ch:
		assert.Equal(t, "gateway.audit", evt.Type)
		assert.Equal(t, "corr-1", evt.CorrelationID)
		findings, ok := evt.Data["findings"].([]map[string]interface{})
		require.True(t, ok)
		require.Len(t, findings, 1)
		assert.Equal(t, "4111 1111 1111 1111", findings[0]["evidence"])
	case <-time.After(time.Second):
		t.Fatal("expected an audit event")
	}
}

func TestBusAuditSinkMasksEvidenceWhenNotBlocked(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe("gateway.audit")
	defer bus.Unsubscribe(ch)

	sink := NewBusAuditSink(bus, "test")
	sink.Record(AuditRecord{
		CorrelationID: "corr-2",
		Decision:      reqmodel.ActionAlert,
		Findings:      []reqmodel.Finding{{Type: "PII", Evidence: "secret-data"}},
	})

	evt := <-ch
	findings := evt.Data["findings"].([]map[string]interface{})
	assert.Equal(t, "", findings[0]["evidence"])
}

func TestRingBufferAuditSinkRetainsMostRecentWithinCapacity(t *testing.T) {
	sink := NewRingBufferAuditSink(3)
	for i := 0; i < 5; i++ {
		sink.Record(AuditRecord{CorrelationID: string(rune('a' + i))})
	}

	recent := sink.Recent()
	require.Len(t, recent, 3)
	assert.Equal(t, "c", recent[0].CorrelationID)
	assert.Equal(t, "d", recent[1].CorrelationID)
	assert.Equal(t, "e", recent[2].CorrelationID)
}

func TestRingBufferAuditSinkBelowCapacityReturnsAllInOrder(t *testing.T) {
	sink := NewRingBufferAuditSink(5)
	sink.Record(AuditRecord{CorrelationID: "a"})
	sink.Record(AuditRecord{CorrelationID: "b"})

	recent := sink.Recent()
	require.Len(t, recent, 2)
	assert.Equal(t, "a", recent[0].CorrelationID)
	assert.Equal(t, "b", recent[1].CorrelationID)
}

func TestNewRingBufferAuditSinkDefaultsNonPositiveCapacity(t *testing.T) {
	sink := NewRingBufferAuditSink(0)
	assert.Equal(t, 1000, sink.capacity)
}
