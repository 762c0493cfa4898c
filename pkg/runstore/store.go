// Package runstore persists command executions and their step events.
package runstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/chainsafe/anchor-orchestrator/pkg/workflow"
)

var ErrExecutionNotFound = errors.New("execution not found")

// Status of an execution.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Execution is one controller command against a run.
type Execution struct {
	ID         uuid.UUID       `json:"id"`
	RunID      uuid.UUID       `json:"run_id"`
	Command    string          `json:"command"`
	Amount     decimal.Decimal `json:"amount"`
	Status     Status          `json:"status"`
	Error      string          `json:"error,omitempty"`
	Progress   int             `json:"progress"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

// Store reads and writes execution history.
type Store interface {
	CreateExecution(ctx context.Context, exec *Execution) error
	FinishExecution(ctx context.Context, id uuid.UUID, status Status, progress int, errMsg string) error
	AppendEvent(ctx context.Context, executionID uuid.UUID, seq int, ev workflow.StepEvent) error
	GetExecution(ctx context.Context, id uuid.UUID) (*Execution, error)
	ListExecutions(ctx context.Context, limit int) ([]*Execution, error)
	ListEvents(ctx context.Context, executionID uuid.UUID) ([]workflow.StepEvent, error)
}
