package workflow

import (
	"time"

	"github.com/google/uuid"
)

// StepEvent is emitted once per completed or failed step. Informational events
// report recovery actions and never change progress.
type StepEvent struct {
	Label         string    `json:"label" yaml:"label"`
	Success       bool      `json:"success" yaml:"success"`
	Progress      int       `json:"progress" yaml:"progress"`
	RunID         uuid.UUID `json:"run_id" yaml:"run_id"`
	Phase         Phase     `json:"phase,omitempty" yaml:"phase,omitempty"`
	Informational bool      `json:"informational,omitempty" yaml:"informational,omitempty"`
	Time          time.Time `json:"time" yaml:"time"`
}

// Observer receives step events. Implementations must not block or panic.
type Observer interface {
	OnStep(StepEvent)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(StepEvent)

func (f ObserverFunc) OnStep(ev StepEvent) { f(ev) }

// NopObserver discards events.
type NopObserver struct{}

func (NopObserver) OnStep(StepEvent) {}
