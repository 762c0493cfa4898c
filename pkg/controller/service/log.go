package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chainsafe/anchor-orchestrator/pkg/controller"
	"github.com/chainsafe/anchor-orchestrator/pkg/party"
	"github.com/chainsafe/anchor-orchestrator/pkg/runstore"
	"github.com/chainsafe/anchor-orchestrator/pkg/workflow"
)

const serviceName = "ControllerService"

// logService wraps Service with logging of the mutating calls
type logService struct {
	svc    Service
	logger *zap.Logger
}

// NewLog creates a logging decorator for the controller Service.
// Read-only calls are logged only when they fail.
func NewLog(svc Service, logger *zap.Logger) Service {
	return &logService{svc: svc, logger: logger}
}

func (ls *logService) Submit(ctx context.Context, cmd controller.Command, amount string) (ticket *controller.Ticket, err error) {
	start := time.Now()
	ls.logger.Info("Submit started",
		zap.String("service", serviceName),
		zap.String("method", "Submit"),
		zap.String("command", string(cmd)),
		zap.String("amount", amount),
	)
	defer func() {
		fields := []zap.Field{
			zap.String("service", serviceName),
			zap.String("method", "Submit"),
			zap.String("command", string(cmd)),
			zap.Duration("duration", time.Since(start)),
		}
		if err != nil {
			ls.logger.Warn("Submit failed", append(fields, zap.Error(err))...)
			return
		}
		ls.logger.Info("Submit accepted", append(fields,
			zap.String("run_id", ticket.RunID.String()),
			zap.String("execution_id", ticket.ExecutionID.String()))...)
	}()
	return ls.svc.Submit(ctx, cmd, amount)
}

func (ls *logService) Reset(ctx context.Context) (st *controller.Status, err error) {
	start := time.Now()
	defer func() {
		if err != nil {
			ls.failed("Reset", start, err)
			return
		}
		ls.logger.Info("Reset completed",
			zap.String("service", serviceName),
			zap.String("method", "Reset"),
			zap.Duration("duration", time.Since(start)),
		)
	}()
	return ls.svc.Reset(ctx)
}

func (ls *logService) Status(ctx context.Context) (st *controller.Status, err error) {
	defer ls.onError("Status", time.Now(), &err)
	return ls.svc.Status(ctx)
}

func (ls *logService) Events(ctx context.Context, since int) (resp *EventsResponse, err error) {
	defer ls.onError("Events", time.Now(), &err)
	return ls.svc.Events(ctx, since)
}

func (ls *logService) Parties(ctx context.Context) (parties []party.Info, err error) {
	defer ls.onError("Parties", time.Now(), &err)
	return ls.svc.Parties(ctx)
}

func (ls *logService) ListExecutions(ctx context.Context, limit int) (execs []*runstore.Execution, err error) {
	defer ls.onError("ListExecutions", time.Now(), &err)
	return ls.svc.ListExecutions(ctx, limit)
}

func (ls *logService) ExecutionEvents(ctx context.Context, id uuid.UUID) (events []workflow.StepEvent, err error) {
	defer ls.onError("ExecutionEvents", time.Now(), &err)
	return ls.svc.ExecutionEvents(ctx, id)
}

func (ls *logService) onError(method string, start time.Time, err *error) {
	if *err != nil {
		ls.failed(method, start, *err)
	}
}

func (ls *logService) failed(method string, start time.Time, err error) {
	ls.logger.Warn(method+" failed",
		zap.String("service", serviceName),
		zap.String("method", method),
		zap.Duration("duration", time.Since(start)),
		zap.Error(err),
	)
}
