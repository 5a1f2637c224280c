package loadbalancer

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/aocs/gateway/internal/gwerrors"
)

func newTestDispatcher(endpoints []*Endpoint, maxRetries int) *Dispatcher {
	return NewDispatcher(endpoints, AlgoRoundRobin, 2, 0, func(ep *Endpoint) (*Conn, error) {
		return &Conn{}, nil
	}, maxRetries, time.Millisecond)
}

func TestDispatchSucceedsOnHealthyEndpoint(t *testing.T) {
	ep := NewEndpoint("a", "openai", "gpt-4", "addr", 1, 0)
	d := newTestDispatcher([]*Endpoint{ep}, 3)
	defer d.Close()

	err := d.Dispatch(func(conn *Conn, e *Endpoint) error { return nil })
	assert.NoError(t, err)
}

func TestDispatchFailsOverToNextEndpointByPriority(t *testing.T) {
	primary := NewEndpoint("primary", "openai", "gpt-4", "addr", 1, 0)
	backup := NewEndpoint("backup", "openai", "gpt-4", "addr", 1, 1)
	d := newTestDispatcher([]*Endpoint{primary, backup}, 3)
	defer d.Close()

	var used []string
	err := d.Dispatch(func(conn *Conn, e *Endpoint) error {
		used = append(used, e.ID)
		if e.ID == "primary" {
			return errors.New("primary down")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, []string{"primary", "backup"}, used)
}

func TestDispatchReturnsErrorWhenNoHealthyEndpoints(t *testing.T) {
	ep := NewEndpoint("a", "openai", "gpt-4", "addr", 1, 0)
	ep.Enabled = false
	d := newTestDispatcher([]*Endpoint{ep}, 3)
	defer d.Close()

	err := d.Dispatch(func(conn *Conn, e *Endpoint) error { return nil })
	assert.True(t, gwerrors.Is(err, gwerrors.CodeUpstreamFailure))
}

func TestDispatchSurfacesLastErrorWhenAllFail(t *testing.T) {
	ep := NewEndpoint("a", "openai", "gpt-4", "addr", 1, 0)
	d := newTestDispatcher([]*Endpoint{ep}, 1)
	defer d.Close()

	err := d.Dispatch(func(conn *Conn, e *Endpoint) error { return errors.New("boom") })
	assert.Error(t, err)
}
