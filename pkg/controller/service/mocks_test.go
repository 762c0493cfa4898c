package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/chainsafe/anchor-orchestrator/pkg/controller"
	"github.com/chainsafe/anchor-orchestrator/pkg/party"
	"github.com/chainsafe/anchor-orchestrator/pkg/runstore"
	"github.com/chainsafe/anchor-orchestrator/pkg/workflow"
)

// MockService is a Service test double.
type MockService struct {
	SubmitFunc          func(ctx context.Context, cmd controller.Command, amount string) (*controller.Ticket, error)
	ResetFunc           func(ctx context.Context) (*controller.Status, error)
	StatusFunc          func(ctx context.Context) (*controller.Status, error)
	EventsFunc          func(ctx context.Context, since int) (*EventsResponse, error)
	PartiesFunc         func(ctx context.Context) ([]party.Info, error)
	ListExecutionsFunc  func(ctx context.Context, limit int) ([]*runstore.Execution, error)
	ExecutionEventsFunc func(ctx context.Context, id uuid.UUID) ([]workflow.StepEvent, error)
}

func (m *MockService) Submit(ctx context.Context, cmd controller.Command, amount string) (*controller.Ticket, error) {
	return m.SubmitFunc(ctx, cmd, amount)
}

func (m *MockService) Reset(ctx context.Context) (*controller.Status, error) {
	return m.ResetFunc(ctx)
}

func (m *MockService) Status(ctx context.Context) (*controller.Status, error) {
	return m.StatusFunc(ctx)
}

func (m *MockService) Events(ctx context.Context, since int) (*EventsResponse, error) {
	return m.EventsFunc(ctx, since)
}

func (m *MockService) Parties(ctx context.Context) ([]party.Info, error) {
	return m.PartiesFunc(ctx)
}

func (m *MockService) ListExecutions(ctx context.Context, limit int) ([]*runstore.Execution, error) {
	return m.ListExecutionsFunc(ctx, limit)
}

func (m *MockService) ExecutionEvents(ctx context.Context, id uuid.UUID) ([]workflow.StepEvent, error) {
	return m.ExecutionEventsFunc(ctx, id)
}

// MockController is a Controller test double.
type MockController struct {
	SubmitFunc      func(cmd controller.Command, amount string) (*controller.Ticket, error)
	ResetFunc       func() error
	StatusFunc      func() controller.Status
	EventsSinceFunc func(n int) []workflow.StepEvent
	PartiesFunc     func() []party.Info
}

func (m *MockController) Submit(cmd controller.Command, amount string) (*controller.Ticket, error) {
	return m.SubmitFunc(cmd, amount)
}

func (m *MockController) Reset() error {
	if m.ResetFunc != nil {
		return m.ResetFunc()
	}
	return nil
}

func (m *MockController) Status() controller.Status {
	if m.StatusFunc != nil {
		return m.StatusFunc()
	}
	return controller.Status{}
}

func (m *MockController) EventsSince(n int) []workflow.StepEvent {
	if m.EventsSinceFunc != nil {
		return m.EventsSinceFunc(n)
	}
	return nil
}

func (m *MockController) Parties() []party.Info {
	if m.PartiesFunc != nil {
		return m.PartiesFunc()
	}
	return nil
}

// MockHistory is a History test double.
type MockHistory struct {
	GetExecutionFunc   func(ctx context.Context, id uuid.UUID) (*runstore.Execution, error)
	ListExecutionsFunc func(ctx context.Context, limit int) ([]*runstore.Execution, error)
	ListEventsFunc     func(ctx context.Context, executionID uuid.UUID) ([]workflow.StepEvent, error)
}

func (m *MockHistory) GetExecution(ctx context.Context, id uuid.UUID) (*runstore.Execution, error) {
	return m.GetExecutionFunc(ctx, id)
}

func (m *MockHistory) ListExecutions(ctx context.Context, limit int) ([]*runstore.Execution, error) {
	return m.ListExecutionsFunc(ctx, limit)
}

func (m *MockHistory) ListEvents(ctx context.Context, executionID uuid.UUID) ([]workflow.StepEvent, error) {
	return m.ListEventsFunc(ctx, executionID)
}
