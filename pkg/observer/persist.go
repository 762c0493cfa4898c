package observer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chainsafe/anchor-orchestrator/pkg/workflow"
)

const (
	persistTimeout = 5 * time.Second
	persistBuffer  = 256
)

// EventStore stores step events of an execution.
type EventStore interface {
	AppendEvent(ctx context.Context, executionID uuid.UUID, seq int, ev workflow.StepEvent) error
}

type sequencedEvent struct {
	seq int
	ev  workflow.StepEvent
}

// Persist writes the events of one execution to an EventStore. Events are
// queued and written by a single goroutine in arrival order; when the queue
// is full they are dropped. Write errors are logged and dropped.
type Persist struct {
	store       EventStore
	executionID uuid.UUID
	logger      *zap.Logger

	mu      sync.Mutex
	seq     int
	closed  bool
	events  chan sequencedEvent
	done    chan struct{}
	dropped atomic.Int64
}

var _ workflow.Observer = (*Persist)(nil)

// NewPersist creates a persisting observer for executionID and starts its
// writer. Callers must Close it to flush queued events.
func NewPersist(store EventStore, executionID uuid.UUID, logger *zap.Logger) *Persist {
	p := &Persist{
		store:       store,
		executionID: executionID,
		logger:      logger,
		events:      make(chan sequencedEvent, persistBuffer),
		done:        make(chan struct{}),
	}
	go p.loop()
	return p
}

// OnStep queues ev without blocking.
func (p *Persist) OnStep(ev workflow.StepEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.seq++
	select {
	case p.events <- sequencedEvent{seq: p.seq, ev: ev}:
	default:
		n := p.dropped.Add(1)
		p.logger.Warn("persist queue full, dropping event",
			zap.String("execution_id", p.executionID.String()),
			zap.Int("seq", p.seq),
			zap.Int64("dropped", n))
	}
}

// Dropped returns the number of events dropped because the queue was full.
func (p *Persist) Dropped() int64 {
	return p.dropped.Load()
}

// Close stops accepting events and waits until queued ones are written.
func (p *Persist) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.events)
	p.mu.Unlock()
	<-p.done
}

func (p *Persist) loop() {
	defer close(p.done)
	for se := range p.events {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		err := p.store.AppendEvent(ctx, p.executionID, se.seq, se.ev)
		cancel()
		if err != nil {
			p.logger.Warn("failed to persist step event",
				zap.String("execution_id", p.executionID.String()),
				zap.Int("seq", se.seq),
				zap.Error(err))
		}
	}
}
