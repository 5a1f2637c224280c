package backpressure

import (
	"math/rand"

	"github.com/aocs/gateway/internal/gwerrors"
	"github.com/aocs/gateway/internal/reqmodel"
)

// LoadLevel is one of the four monotonic bands from spec §4.5.
type LoadLevel string

const (
	LoadNormal   LoadLevel = "normal"
	LoadElevated LoadLevel = "elevated"
	LoadHigh     LoadLevel = "high"
	LoadCritical LoadLevel = "critical"
)

// Thresholds configures the band boundaries; defaults match spec §4.5.
type Thresholds struct {
	Elevated float64
	High     float64
	Critical float64
}

// DefaultThresholds returns {elevated:0.6, high:0.8, critical:0.95}.
func DefaultThresholds() Thresholds {
	return Thresholds{Elevated: 0.6, High: 0.8, Critical: 0.95}
}

// LevelFor classifies a composed load signal L into one of the four bands.
func (t Thresholds) LevelFor(l float64) LoadLevel {
	switch {
	case l >= t.Critical:
		return LoadCritical
	case l >= t.High:
		return LoadHigh
	case l >= t.Elevated:
		return LoadElevated
	default:
		return LoadNormal
	}
}

// Signal is the composed load measurement from spec §4.5:
// L = max(queueUtilization, processingUtilization, optional cpu%, mem%).
type Signal struct {
	QueueUtilization      float64
	ProcessingUtilization float64
	CPUPercent            float64
	MemPercent            float64
}

// Value returns the composed L.
func (s Signal) Value() float64 {
	l := s.QueueUtilization
	if s.ProcessingUtilization > l {
		l = s.ProcessingUtilization
	}
	if s.CPUPercent > l {
		l = s.CPUPercent
	}
	if s.MemPercent > l {
		l = s.MemPercent
	}
	return l
}

// Controller applies the admission rule per spec §4.5 on top of a Signal
// and a set of per-resource circuit breakers.
type Controller struct {
	Thresholds     Thresholds
	ShedPriorities map[reqmodel.Priority]bool
	Rand           func() float64
}

// NewController builds a controller with the given shed-eligible priorities
// (defaults per spec's example: low, background).
func NewController(thresholds Thresholds, shedPriorities []reqmodel.Priority) *Controller {
	shed := make(map[reqmodel.Priority]bool, len(shedPriorities))
	for _, p := range shedPriorities {
		shed[p] = true
	}
	return &Controller{Thresholds: thresholds, ShedPriorities: shed, Rand: rand.Float64}
}

// Admit applies spec §4.5's per-level admission rule to an incoming
// request's priority, returning nil to admit or a typed error to reject.
func (c *Controller) Admit(signal Signal, priority reqmodel.Priority) error {
	l := signal.Value()
	level := c.Thresholds.LevelFor(l)

	switch level {
	case LoadNormal, LoadElevated:
		return nil
	case LoadHigh:
		if !c.ShedPriorities[priority] {
			return nil
		}
		shedProbability := (l - c.Thresholds.High) / (1.0 - c.Thresholds.High)
		if shedProbability < 0 {
			shedProbability = 0
		}
		if c.Rand() < shedProbability {
			return gwerrors.New(gwerrors.CodeLoadShed, "load shed at high load level")
		}
		return nil
	case LoadCritical:
		if priority == reqmodel.PriorityCritical {
			return nil
		}
		return gwerrors.New(gwerrors.CodeLoadShed, "load critical")
	}
	return nil
}

// Level classifies the current signal, exposed for metrics/logging.
func (c *Controller) Level(signal Signal) LoadLevel {
	return c.Thresholds.LevelFor(signal.Value())
}
