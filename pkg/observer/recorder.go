package observer

import (
	"sync"

	"github.com/chainsafe/anchor-orchestrator/pkg/workflow"
)

// Recorder keeps the event log in memory.
type Recorder struct {
	mu     sync.RWMutex
	events []workflow.StepEvent
}

var _ workflow.Observer = (*Recorder)(nil)

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) OnStep(ev workflow.StepEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []workflow.StepEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]workflow.StepEvent{}, r.events...)
}

// Since returns the events after the first n.
func (r *Recorder) Since(n int) []workflow.StepEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if n < 0 {
		n = 0
	}
	if n >= len(r.events) {
		return []workflow.StepEvent{}
	}
	return append([]workflow.StepEvent{}, r.events[n:]...)
}

// Len returns the number of recorded events.
func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.events)
}

// Reset clears the log.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}
