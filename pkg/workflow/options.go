package workflow

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/chainsafe/anchor-orchestrator/pkg/party"
)

// Metrics receives engine measurements. internal/metrics provides the
// prometheus implementation.
type Metrics interface {
	ObservePhase(phase Phase, err error, elapsed time.Duration)
	IncOracleFallback()
	IncFeeRecovery(role party.Role, err error)
}

type nopMetrics struct{}

func (nopMetrics) ObservePhase(Phase, error, time.Duration) {}
func (nopMetrics) IncOracleFallback()                       {}
func (nopMetrics) IncFeeRecovery(party.Role, error)         {}

// Option configures an Engine.
type Option func(*settings)

type settings struct {
	logger  *zap.Logger
	metrics Metrics
	sleep   func(ctx context.Context, d time.Duration) error
	now     func() time.Time
}

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(s *settings) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithSleeper replaces the settlement wait, mainly for tests.
func WithSleeper(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(s *settings) {
		if fn != nil {
			s.sleep = fn
		}
	}
}

// WithClock sets the clock used for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

func applyOptions(opts []Option) settings {
	s := settings{
		logger:  zap.NewNop(),
		metrics: nopMetrics{},
		sleep:   sleepContext,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
