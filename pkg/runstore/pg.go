package runstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/chainsafe/anchor-orchestrator/pkg/workflow"
)

const defaultListLimit = 50

type pgStore struct {
	db *bun.DB
}

var _ Store = (*pgStore)(nil)

// NewStore creates a postgres implementation of the run store.
func NewStore(db *bun.DB) *pgStore {
	return &pgStore{db: db}
}

func (s *pgStore) CreateExecution(ctx context.Context, exec *Execution) error {
	if exec.ID == uuid.Nil {
		exec.ID = uuid.New()
	}
	if exec.StartedAt.IsZero() {
		exec.StartedAt = time.Now().UTC()
	}
	if exec.Status == "" {
		exec.Status = StatusRunning
	}

	_, err := s.db.NewInsert().
		Model(toExecutionDao(exec)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create execution: %w", err)
	}
	return nil
}

func (s *pgStore) FinishExecution(ctx context.Context, id uuid.UUID, status Status, progress int, errMsg string) error {
	q := s.db.NewUpdate().
		Model((*ExecutionDao)(nil)).
		Set("status = ?", string(status)).
		Set("progress = ?", progress).
		Set("finished_at = ?", time.Now().UTC()).
		Where("id = ?", id)
	if errMsg != "" {
		q = q.Set("error = ?", errMsg)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to finish execution: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrExecutionNotFound
	}
	return nil
}

func (s *pgStore) AppendEvent(ctx context.Context, executionID uuid.UUID, seq int, ev workflow.StepEvent) error {
	dao := toStepEventDao(executionID, seq, ev)
	if dao.CreatedAt.IsZero() {
		dao.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.NewInsert().
		Model(dao).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to append step event: %w", err)
	}
	return nil
}

func (s *pgStore) GetExecution(ctx context.Context, id uuid.UUID) (*Execution, error) {
	dao := new(ExecutionDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrExecutionNotFound
		}
		return nil, fmt.Errorf("failed to get execution: %w", err)
	}
	return toExecution(dao), nil
}

func (s *pgStore) ListExecutions(ctx context.Context, limit int) ([]*Execution, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	var daos []ExecutionDao
	err := s.db.NewSelect().
		Model(&daos).
		Order("started_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	execs := make([]*Execution, len(daos))
	for i := range daos {
		execs[i] = toExecution(&daos[i])
	}
	return execs, nil
}

func (s *pgStore) ListEvents(ctx context.Context, executionID uuid.UUID) ([]workflow.StepEvent, error) {
	var daos []StepEventDao
	err := s.db.NewSelect().
		Model(&daos).
		Where("execution_id = ?", executionID).
		Order("seq ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list step events: %w", err)
	}
	events := make([]workflow.StepEvent, len(daos))
	for i := range daos {
		events[i] = toStepEvent(&daos[i])
	}
	return events, nil
}
