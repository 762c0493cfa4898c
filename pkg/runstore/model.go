package runstore

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"github.com/chainsafe/anchor-orchestrator/pkg/workflow"
)

// ExecutionDao maps to the 'executions' table.
type ExecutionDao struct {
	bun.BaseModel `bun:"table:executions,alias:e"`
	ID            uuid.UUID       `bun:"id,pk,type:uuid"`
	RunID         uuid.UUID       `bun:"run_id,notnull,type:uuid"`
	Command       string          `bun:"command,notnull,type:varchar(32)"`
	Amount        decimal.Decimal `bun:"amount,notnull,type:numeric(38,7)"`
	Status        string          `bun:"status,notnull,type:varchar(16)"`
	Error         *string         `bun:"error,type:text"`
	Progress      int             `bun:"progress,notnull,default:0"`
	StartedAt     time.Time       `bun:"started_at,notnull,default:current_timestamp"`
	FinishedAt    *time.Time      `bun:"finished_at"`
}

// StepEventDao maps to the 'step_events' table.
type StepEventDao struct {
	bun.BaseModel `bun:"table:step_events,alias:se"`
	ID            int64     `bun:"id,pk,autoincrement"`
	ExecutionID   uuid.UUID `bun:"execution_id,notnull,type:uuid"`
	RunID         uuid.UUID `bun:"run_id,notnull,type:uuid"`
	Seq           int       `bun:"seq,notnull"`
	Phase         string    `bun:"phase,type:varchar(32)"`
	Label         string    `bun:"label,notnull,type:text"`
	Success       bool      `bun:"success,notnull"`
	Informational bool      `bun:"informational,notnull,default:false"`
	Progress      int       `bun:"progress,notnull"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

func toExecutionDao(exec *Execution) *ExecutionDao {
	dao := &ExecutionDao{
		ID:         exec.ID,
		RunID:      exec.RunID,
		Command:    exec.Command,
		Amount:     exec.Amount,
		Status:     string(exec.Status),
		Progress:   exec.Progress,
		StartedAt:  exec.StartedAt,
		FinishedAt: exec.FinishedAt,
	}
	if exec.Error != "" {
		dao.Error = &exec.Error
	}
	return dao
}

func toExecution(dao *ExecutionDao) *Execution {
	exec := &Execution{
		ID:         dao.ID,
		RunID:      dao.RunID,
		Command:    dao.Command,
		Amount:     dao.Amount,
		Status:     Status(dao.Status),
		Progress:   dao.Progress,
		StartedAt:  dao.StartedAt,
		FinishedAt: dao.FinishedAt,
	}
	if dao.Error != nil {
		exec.Error = *dao.Error
	}
	return exec
}

func toStepEventDao(executionID uuid.UUID, seq int, ev workflow.StepEvent) *StepEventDao {
	return &StepEventDao{
		ExecutionID:   executionID,
		RunID:         ev.RunID,
		Seq:           seq,
		Phase:         string(ev.Phase),
		Label:         ev.Label,
		Success:       ev.Success,
		Informational: ev.Informational,
		Progress:      ev.Progress,
		CreatedAt:     ev.Time,
	}
}

func toStepEvent(dao *StepEventDao) workflow.StepEvent {
	return workflow.StepEvent{
		Label:         dao.Label,
		Success:       dao.Success,
		Progress:      dao.Progress,
		RunID:         dao.RunID,
		Phase:         workflow.Phase(dao.Phase),
		Informational: dao.Informational,
		Time:          dao.CreatedAt,
	}
}
