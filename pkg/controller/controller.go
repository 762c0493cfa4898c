// Package controller drives workflow runs and gates the follow-up commands.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/chainsafe/anchor-orchestrator/pkg/asset"
	"github.com/chainsafe/anchor-orchestrator/pkg/observer"
	"github.com/chainsafe/anchor-orchestrator/pkg/party"
	"github.com/chainsafe/anchor-orchestrator/pkg/runstore"
	"github.com/chainsafe/anchor-orchestrator/pkg/workflow"
)

// Command names a controller command.
type Command string

const (
	CommandStart       Command = "start"
	CommandRepeatSend  Command = "repeat_send"
	CommandReverseSend Command = "reverse_send"
	CommandRoundTrip   Command = "round_trip"
	CommandReset       Command = "reset"
)

// Commands lists every command in display order.
var Commands = []Command{CommandStart, CommandRepeatSend, CommandReverseSend, CommandRoundTrip, CommandReset}

var followUps = []Command{CommandRepeatSend, CommandReverseSend, CommandRoundTrip}

var (
	ErrBusy            = errors.New("another command is running")
	ErrCommandDisabled = errors.New("command is disabled")
	ErrNoRun           = errors.New("no completed run")
	ErrUnknownCommand  = errors.New("unknown command")
)

// Engine is the workflow surface the controller drives.
type Engine interface {
	Execute(ctx context.Context, rc *workflow.RunContext, run workflow.Run) (workflow.Run, error)
	RepeatSend(ctx context.Context, rc *workflow.RunContext, run workflow.Run, amount decimal.Decimal) error
	ReverseSend(ctx context.Context, rc *workflow.RunContext, run workflow.Run, amount decimal.Decimal) error
	RoundTripSwap(ctx context.Context, rc *workflow.RunContext, run workflow.Run, amount decimal.Decimal) error
}

// RegistryFactory creates the parties of a new run.
type RegistryFactory func(runID uuid.UUID) (*party.Registry, error)

// RandomRegistry generates fresh keys for every run.
func RandomRegistry(uuid.UUID) (*party.Registry, error) {
	return party.NewRegistry()
}

// DerivedRegistry derives each run's keys from masterSeed and the run ID.
func DerivedRegistry(masterSeed []byte) RegistryFactory {
	return func(runID uuid.UUID) (*party.Registry, error) {
		return party.NewDerivedRegistry(masterSeed, runID.String())
	}
}

// Ticket identifies an accepted command.
type Ticket struct {
	Command     Command   `json:"command"`
	RunID       uuid.UUID `json:"run_id"`
	ExecutionID uuid.UUID `json:"execution_id"`
}

// Status is a snapshot of the controller state.
type Status struct {
	Busy      bool             `json:"busy"`
	Current   Command          `json:"current,omitempty"`
	Enabled   map[Command]bool `json:"enabled"`
	Run       *workflow.Run    `json:"run,omitempty"`
	LastError string           `json:"last_error,omitempty"`
	Events    int              `json:"events"`
}

// Controller owns the current run and serializes commands against it.
type Controller struct {
	engine      Engine
	assetCode   string
	newRegistry RegistryFactory
	recorder    *observer.Recorder
	observers   []workflow.Observer
	store       runstore.Store
	logger      *zap.Logger
	baseCtx     context.Context

	mu        sync.Mutex
	busy      bool
	current   Command
	enabled   map[Command]bool
	run       *workflow.Run
	registry  *party.Registry
	lastError string

	wg sync.WaitGroup
}

// New creates a controller for runs of assetCode.
func New(engine Engine, assetCode string, opts ...Option) *Controller {
	s := applyOptions(opts)
	c := &Controller{
		engine:      engine,
		assetCode:   assetCode,
		newRegistry: s.registry,
		recorder:    observer.NewRecorder(),
		observers:   s.observers,
		store:       s.store,
		logger:      s.logger,
		baseCtx:     s.baseCtx,
	}
	c.enabled = initialGating()
	return c
}

func initialGating() map[Command]bool {
	g := make(map[Command]bool, len(Commands))
	for _, cmd := range Commands {
		g[cmd] = false
	}
	g[CommandStart] = true
	g[CommandReset] = true
	return g
}

// Start validates amount and runs the full workflow, blocking until it ends.
// Gating is checked before amount, so a disabled start returns ErrCommandDisabled
// without emitting a validation event.
func (c *Controller) Start(amount string) error {
	return c.Do(CommandStart, amount)
}

// RepeatSend pays amount from the intermediary to the recipient again.
func (c *Controller) RepeatSend(amount string) error {
	return c.Do(CommandRepeatSend, amount)
}

// ReverseSend pays amount from the recipient back to the intermediary.
func (c *Controller) ReverseSend(amount string) error {
	return c.Do(CommandReverseSend, amount)
}

// RoundTripSwap swaps amount of the sender's asset to the native asset and back.
func (c *Controller) RoundTripSwap(amount string) error {
	return c.Do(CommandRoundTrip, amount)
}

// Do runs cmd synchronously.
func (c *Controller) Do(cmd Command, amount string) error {
	job, err := c.acquire(cmd, amount)
	if err != nil {
		return err
	}
	return c.execute(job)
}

// Submit validates and gates cmd synchronously, then runs it in the background.
func (c *Controller) Submit(cmd Command, amount string) (*Ticket, error) {
	job, err := c.acquire(cmd, amount)
	if err != nil {
		return nil, err
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		_ = c.execute(job)
	}()
	return &Ticket{Command: cmd, RunID: job.run.ID, ExecutionID: job.executionID}, nil
}

// Wait blocks until every submitted command has finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Reset clears the event log and the run and restores initial gating.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return fmt.Errorf("%w: %s", ErrBusy, c.current)
	}
	c.recorder.Reset()
	c.run = nil
	c.registry = nil
	c.lastError = ""
	c.enabled = initialGating()
	c.logger.Info("controller reset")
	return nil
}

// Status returns a snapshot of the controller.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{
		Busy:      c.busy,
		Current:   c.current,
		Enabled:   make(map[Command]bool, len(c.enabled)),
		LastError: c.lastError,
		Events:    c.recorder.Len(),
	}
	for cmd, ok := range c.enabled {
		st.Enabled[cmd] = ok && !c.busy
	}
	if c.run != nil {
		run := *c.run
		st.Run = &run
	}
	return st
}

// Events returns the event log since the last start or reset.
func (c *Controller) Events() []workflow.StepEvent {
	return c.recorder.Events()
}

// EventsSince returns the events after the first n.
func (c *Controller) EventsSince(n int) []workflow.StepEvent {
	return c.recorder.Since(n)
}

// Parties returns the public addresses of the current run's parties.
func (c *Controller) Parties() []party.Info {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.registry == nil {
		return []party.Info{}
	}
	return c.registry.Public()
}

type job struct {
	cmd         Command
	amount      decimal.Decimal
	run         workflow.Run
	registry    *party.Registry
	executionID uuid.UUID
}

func (c *Controller) acquire(cmd Command, raw string) (*job, error) {
	if cmd == CommandReset {
		return nil, fmt.Errorf("%w: reset is not a run command", ErrUnknownCommand)
	}
	if !isRunCommand(cmd) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, cmd)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.busy {
		return nil, fmt.Errorf("%w: %s", ErrBusy, c.current)
	}
	if !c.enabled[cmd] {
		if cmd != CommandStart && c.run == nil {
			return nil, fmt.Errorf("%w: %s requires a completed run", ErrNoRun, cmd)
		}
		return nil, fmt.Errorf("%w: %s", ErrCommandDisabled, cmd)
	}

	amount, err := validateAmount(raw)
	if err != nil {
		c.rejectLocked(cmd, err)
		return nil, err
	}

	j := &job{cmd: cmd, amount: amount, executionID: uuid.New()}
	if cmd == CommandStart {
		run := workflow.NewRun(amount)
		reg, err := c.newRegistry(run.ID)
		if err != nil {
			return nil, fmt.Errorf("create parties: %w", err)
		}
		c.recorder.Reset()
		c.run = &run
		c.registry = reg
		c.lastError = ""
	}
	if c.run == nil || c.registry == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoRun, cmd)
	}
	j.run = *c.run
	j.registry = c.registry

	c.busy = true
	c.current = cmd
	c.enabled[cmd] = false
	return j, nil
}

func isRunCommand(cmd Command) bool {
	if cmd == CommandStart {
		return true
	}
	for _, f := range followUps {
		if f == cmd {
			return true
		}
	}
	return false
}

// ParseCommand maps a command name to a Command.
func ParseCommand(s string) (Command, error) {
	for _, cmd := range Commands {
		if string(cmd) == s {
			return cmd, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCommand, s)
}

func validateAmount(raw string) (decimal.Decimal, error) {
	amount, err := asset.ParseAmount(raw)
	if err != nil {
		return decimal.Zero, &workflow.PhaseError{Phase: workflow.PhaseValidate, Kind: workflow.ErrValidation, Err: err}
	}
	if !amount.IsPositive() {
		return decimal.Zero, &workflow.PhaseError{
			Phase: workflow.PhaseValidate,
			Kind:  workflow.ErrValidation,
			Err:   fmt.Errorf("amount must be positive, got %s", raw),
		}
	}
	if _, err := asset.ToStroops(asset.Round(amount)); err != nil {
		return decimal.Zero, &workflow.PhaseError{Phase: workflow.PhaseValidate, Kind: workflow.ErrValidation, Err: err}
	}
	return amount, nil
}

// rejectLocked reports a validation failure as the command's only event.
func (c *Controller) rejectLocked(cmd Command, err error) {
	ev := workflow.StepEvent{
		Label: err.Error(),
		Phase: workflow.PhaseValidate,
		Time:  time.Now().UTC(),
	}
	if c.run != nil {
		ev.RunID = c.run.ID
		ev.Progress = c.run.Progress
	}
	c.logger.Warn("command rejected", zap.String("command", string(cmd)), zap.Error(err))
	c.sink(nil).OnStep(ev)
}

func (c *Controller) sink(persist workflow.Observer) workflow.Observer {
	obs := append([]workflow.Observer{c.recorder}, c.observers...)
	if persist != nil {
		obs = append(obs, persist)
	}
	return observer.NewMulti(c.logger, obs...)
}

func (c *Controller) execute(j *job) error {
	log := c.logger.With(
		zap.String("command", string(j.cmd)),
		zap.String("run_id", j.run.ID.String()),
		zap.String("execution_id", j.executionID.String()))
	log.Info("command started", zap.String("amount", j.amount.String()))

	var (
		persist *observer.Persist
		sink    workflow.Observer
	)
	if c.store != nil {
		if err := c.store.CreateExecution(c.baseCtx, &runstore.Execution{
			ID:       j.executionID,
			RunID:    j.run.ID,
			Command:  string(j.cmd),
			Amount:   j.amount,
			Status:   runstore.StatusRunning,
			Progress: j.run.Progress,
		}); err != nil {
			log.Warn("failed to record execution", zap.Error(err))
		} else {
			persist = observer.NewPersist(c.store, j.executionID, c.logger)
			sink = persist
		}
	}

	rc, err := workflow.NewRunContext(j.registry, c.assetCode, c.sink(sink))
	if err != nil {
		c.closePersist(persist)
		c.finish(j, nil, err, persist != nil)
		return err
	}

	var final *workflow.Run
	switch j.cmd {
	case CommandStart:
		var run workflow.Run
		run, err = c.engine.Execute(c.baseCtx, rc, j.run)
		final = &run
	case CommandRepeatSend:
		err = c.engine.RepeatSend(c.baseCtx, rc, j.run, j.amount)
	case CommandReverseSend:
		err = c.engine.ReverseSend(c.baseCtx, rc, j.run, j.amount)
	case CommandRoundTrip:
		err = c.engine.RoundTripSwap(c.baseCtx, rc, j.run, j.amount)
	}

	c.closePersist(persist)
	c.finish(j, final, err, persist != nil)
	if err != nil {
		log.Warn("command failed", zap.Error(err))
		return err
	}
	log.Info("command completed")
	return nil
}

// closePersist flushes queued step events before the execution is finalised.
func (c *Controller) closePersist(p *observer.Persist) {
	if p != nil {
		p.Close()
	}
}

func (c *Controller) finish(j *job, final *workflow.Run, err error, recorded bool) {
	c.mu.Lock()
	if final != nil && c.run != nil && c.run.ID == final.ID {
		c.run = final
	}
	progress := 0
	if c.run != nil {
		progress = c.run.Progress
	}
	c.busy = false
	c.current = ""
	c.enabled[CommandReset] = true

	switch {
	case j.cmd == CommandStart && err == nil:
		c.enabled[CommandStart] = false
		for _, cmd := range followUps {
			c.enabled[cmd] = true
		}
	case j.cmd == CommandStart:
		c.enabled[CommandStart] = true
	default:
		c.enabled[j.cmd] = true
	}
	if err != nil {
		c.lastError = err.Error()
	}
	c.mu.Unlock()

	if !recorded {
		return
	}
	status, msg := runstore.StatusSucceeded, ""
	if err != nil {
		status, msg = runstore.StatusFailed, err.Error()
	}
	if err := c.store.FinishExecution(c.baseCtx, j.executionID, status, progress, msg); err != nil {
		c.logger.Warn("failed to finish execution", zap.String("execution_id", j.executionID.String()), zap.Error(err))
	}
}
