// Package observer provides workflow.Observer implementations.
package observer

import (
	"go.uber.org/zap"

	"github.com/chainsafe/anchor-orchestrator/pkg/workflow"
)

// Multi fans events out to every observer. A panicking observer is logged
// and skipped.
type Multi struct {
	observers []workflow.Observer
	logger    *zap.Logger
}

var _ workflow.Observer = (*Multi)(nil)

// NewMulti creates a fan-out observer. Nil observers are ignored.
func NewMulti(logger *zap.Logger, observers ...workflow.Observer) *Multi {
	m := &Multi{logger: logger}
	for _, o := range observers {
		if o != nil {
			m.observers = append(m.observers, o)
		}
	}
	return m
}

func (m *Multi) OnStep(ev workflow.StepEvent) {
	for _, o := range m.observers {
		m.deliver(o, ev)
	}
}

func (m *Multi) deliver(o workflow.Observer, ev workflow.StepEvent) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("observer panicked",
				zap.Any("panic", r),
				zap.String("run_id", ev.RunID.String()),
				zap.String("label", ev.Label))
		}
	}()
	o.OnStep(ev)
}

// Log writes every event to a zap logger.
type Log struct {
	logger *zap.Logger
}

// NewLog creates a logging observer.
func NewLog(logger *zap.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) OnStep(ev workflow.StepEvent) {
	fields := []zap.Field{
		zap.String("run_id", ev.RunID.String()),
		zap.String("phase", string(ev.Phase)),
		zap.Int("progress", ev.Progress),
		zap.Bool("informational", ev.Informational),
	}
	if ev.Success {
		l.logger.Info(ev.Label, fields...)
		return
	}
	l.logger.Warn(ev.Label, fields...)
}
