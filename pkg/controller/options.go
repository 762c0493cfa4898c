package controller

import (
	"context"

	"go.uber.org/zap"

	"github.com/chainsafe/anchor-orchestrator/pkg/runstore"
	"github.com/chainsafe/anchor-orchestrator/pkg/workflow"
)

// Option configures a Controller.
type Option func(*settings)

type settings struct {
	logger    *zap.Logger
	registry  RegistryFactory
	observers []workflow.Observer
	store     runstore.Store
	baseCtx   context.Context
}

// WithLogger sets the controller logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRegistryFactory sets how parties are created for a new run.
func WithRegistryFactory(f RegistryFactory) Option {
	return func(s *settings) {
		if f != nil {
			s.registry = f
		}
	}
}

// WithObservers adds event sinks next to the in-memory log.
func WithObservers(obs ...workflow.Observer) Option {
	return func(s *settings) {
		s.observers = append(s.observers, obs...)
	}
}

// WithStore records executions and their events.
func WithStore(store runstore.Store) Option {
	return func(s *settings) {
		s.store = store
	}
}

// WithBaseContext sets the context commands run under. It should only be
// cancelled at shutdown.
func WithBaseContext(ctx context.Context) Option {
	return func(s *settings) {
		if ctx != nil {
			s.baseCtx = ctx
		}
	}
}

func applyOptions(opts []Option) settings {
	s := settings{
		logger:   zap.NewNop(),
		registry: RandomRegistry,
		baseCtx:  context.Background(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}
