// Package service exposes the run controller over HTTP.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/chainsafe/anchor-orchestrator/pkg/app/errors"
	"github.com/chainsafe/anchor-orchestrator/pkg/controller"
	"github.com/chainsafe/anchor-orchestrator/pkg/party"
	"github.com/chainsafe/anchor-orchestrator/pkg/runstore"
	"github.com/chainsafe/anchor-orchestrator/pkg/workflow"
)

const defaultExecutionLimit = 50

var ErrHistoryDisabled = errors.New("execution history is not configured")

// Controller is the controller surface the service drives.
type Controller interface {
	Submit(cmd controller.Command, amount string) (*controller.Ticket, error)
	Reset() error
	Status() controller.Status
	EventsSince(n int) []workflow.StepEvent
	Parties() []party.Info
}

// History reads stored executions.
type History interface {
	GetExecution(ctx context.Context, id uuid.UUID) (*runstore.Execution, error)
	ListExecutions(ctx context.Context, limit int) ([]*runstore.Execution, error)
	ListEvents(ctx context.Context, executionID uuid.UUID) ([]workflow.StepEvent, error)
}

// Service defines the controller API operations.
type Service interface {
	Submit(ctx context.Context, cmd controller.Command, amount string) (*controller.Ticket, error)
	Reset(ctx context.Context) (*controller.Status, error)
	Status(ctx context.Context) (*controller.Status, error)
	Events(ctx context.Context, since int) (*EventsResponse, error)
	Parties(ctx context.Context) ([]party.Info, error)
	ListExecutions(ctx context.Context, limit int) ([]*runstore.Execution, error)
	ExecutionEvents(ctx context.Context, id uuid.UUID) ([]workflow.StepEvent, error)
}

// EventsResponse is a page of the event log. Next is the cursor for the
// following request.
type EventsResponse struct {
	Events []workflow.StepEvent `json:"events"`
	Next   int                  `json:"next"`
}

type controllerService struct {
	ctrl    Controller
	history History
	logger  *zap.Logger
}

// NewService creates the controller service. history may be nil when no
// database is configured.
func NewService(ctrl Controller, history History, logger *zap.Logger) Service {
	return &controllerService{ctrl: ctrl, history: history, logger: logger}
}

func (s *controllerService) Submit(_ context.Context, cmd controller.Command, amount string) (*controller.Ticket, error) {
	ticket, err := s.ctrl.Submit(cmd, amount)
	if err != nil {
		return nil, mapError(err)
	}
	return ticket, nil
}

func (s *controllerService) Reset(_ context.Context) (*controller.Status, error) {
	if err := s.ctrl.Reset(); err != nil {
		return nil, mapError(err)
	}
	st := s.ctrl.Status()
	return &st, nil
}

func (s *controllerService) Status(_ context.Context) (*controller.Status, error) {
	st := s.ctrl.Status()
	return &st, nil
}

func (s *controllerService) Events(_ context.Context, since int) (*EventsResponse, error) {
	if since < 0 {
		return nil, apperrors.BadRequestError(nil, "since must not be negative")
	}
	events := s.ctrl.EventsSince(since)
	next := since + len(events)
	if len(events) == 0 {
		// the log was reset below the cursor
		next = min(since, s.ctrl.Status().Events)
	}
	return &EventsResponse{Events: events, Next: next}, nil
}

func (s *controllerService) Parties(_ context.Context) ([]party.Info, error) {
	return s.ctrl.Parties(), nil
}

func (s *controllerService) ListExecutions(ctx context.Context, limit int) ([]*runstore.Execution, error) {
	if s.history == nil {
		return nil, apperrors.UnavailableError(ErrHistoryDisabled, ErrHistoryDisabled.Error())
	}
	if limit <= 0 {
		limit = defaultExecutionLimit
	}
	execs, err := s.history.ListExecutions(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	return execs, nil
}

func (s *controllerService) ExecutionEvents(ctx context.Context, id uuid.UUID) ([]workflow.StepEvent, error) {
	if s.history == nil {
		return nil, apperrors.UnavailableError(ErrHistoryDisabled, ErrHistoryDisabled.Error())
	}
	if _, err := s.history.GetExecution(ctx, id); err != nil {
		if errors.Is(err, runstore.ErrExecutionNotFound) {
			return nil, apperrors.ResourceNotFoundError(err, "execution not found")
		}
		return nil, fmt.Errorf("failed to get execution: %w", err)
	}
	events, err := s.history.ListEvents(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

// mapError assigns controller and workflow failures their API category.
func mapError(err error) error {
	switch {
	case errors.Is(err, workflow.ErrValidation):
		return apperrors.BadRequestError(err, "Please enter a positive USD amount")
	case errors.Is(err, controller.ErrUnknownCommand):
		return apperrors.BadRequestError(err, "unknown command")
	case errors.Is(err, controller.ErrBusy):
		return apperrors.ConflictError(err, "another command is running")
	case errors.Is(err, controller.ErrCommandDisabled):
		return apperrors.ConflictError(err, "command is disabled")
	case errors.Is(err, controller.ErrNoRun):
		return apperrors.ResourceNotFoundError(err, "start a run first")
	default:
		return apperrors.DependencyError(err, "command failed")
	}
}
