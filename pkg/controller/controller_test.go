package controller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsafe/anchor-orchestrator/pkg/ledger/ledgertest"
	"github.com/chainsafe/anchor-orchestrator/pkg/runstore"
	"github.com/chainsafe/anchor-orchestrator/pkg/workflow"
)

// MockEngine is an Engine test double.
type MockEngine struct {
	ExecuteFunc       func(ctx context.Context, rc *workflow.RunContext, run workflow.Run) (workflow.Run, error)
	RepeatSendFunc    func(ctx context.Context, rc *workflow.RunContext, run workflow.Run, amount decimal.Decimal) error
	ReverseSendFunc   func(ctx context.Context, rc *workflow.RunContext, run workflow.Run, amount decimal.Decimal) error
	RoundTripSwapFunc func(ctx context.Context, rc *workflow.RunContext, run workflow.Run, amount decimal.Decimal) error
}

func (m *MockEngine) Execute(ctx context.Context, rc *workflow.RunContext, run workflow.Run) (workflow.Run, error) {
	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, rc, run)
	}
	run.Progress = 100
	run.Completed = true
	return run, nil
}

func (m *MockEngine) RepeatSend(ctx context.Context, rc *workflow.RunContext, run workflow.Run, amount decimal.Decimal) error {
	if m.RepeatSendFunc != nil {
		return m.RepeatSendFunc(ctx, rc, run, amount)
	}
	return nil
}

func (m *MockEngine) ReverseSend(ctx context.Context, rc *workflow.RunContext, run workflow.Run, amount decimal.Decimal) error {
	if m.ReverseSendFunc != nil {
		return m.ReverseSendFunc(ctx, rc, run, amount)
	}
	return nil
}

func (m *MockEngine) RoundTripSwap(ctx context.Context, rc *workflow.RunContext, run workflow.Run, amount decimal.Decimal) error {
	if m.RoundTripSwapFunc != nil {
		return m.RoundTripSwapFunc(ctx, rc, run, amount)
	}
	return nil
}

type mockConversion struct{}

func (mockConversion) OnRamp(_ context.Context, usd decimal.Decimal) (decimal.Decimal, error) {
	return usd, nil
}

func (mockConversion) OffRamp(_ context.Context, usdc decimal.Decimal) (decimal.Decimal, error) {
	return usdc, nil
}

type fixedOracle struct{}

func (fixedOracle) Price(context.Context) (decimal.Decimal, error) {
	return decimal.RequireFromString("0.1"), nil
}

func newEngine(l *ledgertest.Ledger) *workflow.Engine {
	cfg := workflow.DefaultConfig()
	cfg.Settlement.MaxAttempts = 3
	return workflow.NewEngine(l, mockConversion{}, fixedOracle{}, cfg,
		workflow.WithSleeper(func(context.Context, time.Duration) error { return nil }))
}

// MockStore is an in-memory runstore.Store.
type MockStore struct {
	mu         sync.Mutex
	executions map[uuid.UUID]*runstore.Execution
	events     map[uuid.UUID][]workflow.StepEvent
}

func NewMockStore() *MockStore {
	return &MockStore{
		executions: make(map[uuid.UUID]*runstore.Execution),
		events:     make(map[uuid.UUID][]workflow.StepEvent),
	}
}

func (m *MockStore) CreateExecution(_ context.Context, exec *runstore.Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *exec
	m.executions[exec.ID] = &cp
	return nil
}

func (m *MockStore) FinishExecution(_ context.Context, id uuid.UUID, status runstore.Status, progress int, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	exec, ok := m.executions[id]
	if !ok {
		return runstore.ErrExecutionNotFound
	}
	now := time.Now()
	exec.Status, exec.Progress, exec.Error, exec.FinishedAt = status, progress, errMsg, &now
	return nil
}

func (m *MockStore) AppendEvent(_ context.Context, executionID uuid.UUID, _ int, ev workflow.StepEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[executionID] = append(m.events[executionID], ev)
	return nil
}

func (m *MockStore) GetExecution(_ context.Context, id uuid.UUID) (*runstore.Execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exec, ok := m.executions[id]
	if !ok {
		return nil, runstore.ErrExecutionNotFound
	}
	cp := *exec
	return &cp, nil
}

func (m *MockStore) ListExecutions(context.Context, int) ([]*runstore.Execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*runstore.Execution, 0, len(m.executions))
	for _, e := range m.executions {
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MockStore) ListEvents(_ context.Context, executionID uuid.UUID) ([]workflow.StepEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]workflow.StepEvent(nil), m.events[executionID]...), nil
}

func TestStart_CompletesAndEnablesFollowUps(t *testing.T) {
	l := ledgertest.New()
	c := New(newEngine(l), "USDC")

	require.NoError(t, c.Start("10"))

	st := c.Status()
	require.NotNil(t, st.Run)
	assert.True(t, st.Run.Completed)
	assert.Equal(t, 100, st.Run.Progress)
	assert.False(t, st.Busy)
	assert.False(t, st.Enabled[CommandStart])
	assert.True(t, st.Enabled[CommandRepeatSend])
	assert.True(t, st.Enabled[CommandReverseSend])
	assert.True(t, st.Enabled[CommandRoundTrip])
	assert.True(t, st.Enabled[CommandReset])
	assert.Len(t, c.Parties(), 4)

	var progress []int
	for _, ev := range c.Events() {
		if !ev.Informational {
			progress = append(progress, ev.Progress)
		}
	}
	assert.Equal(t, []int{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}, progress)
}

func TestStart_InvalidAmount(t *testing.T) {
	for _, amount := range []string{"", "abc", "0", "-5", "1e400"} {
		t.Run(amount, func(t *testing.T) {
			l := ledgertest.New()
			c := New(newEngine(l), "USDC")

			err := c.Start(amount)
			require.ErrorIs(t, err, workflow.ErrValidation)

			events := c.Events()
			require.Len(t, events, 1)
			assert.False(t, events[0].Success)
			assert.Equal(t, workflow.PhaseValidate, events[0].Phase)
			assert.Equal(t, uuid.Nil, events[0].RunID)
			assert.Zero(t, l.Calls())

			st := c.Status()
			assert.True(t, st.Enabled[CommandStart])
			assert.False(t, st.Enabled[CommandRepeatSend])
			assert.Nil(t, st.Run)
		})
	}
}

func TestFollowUp_InvalidAmountKeepsRun(t *testing.T) {
	l := ledgertest.New()
	c := New(newEngine(l), "USDC")
	require.NoError(t, c.Start("10"))
	calls := l.Calls()
	before := len(c.Events())

	err := c.RepeatSend("-1")
	require.ErrorIs(t, err, workflow.ErrValidation)
	assert.Equal(t, calls, l.Calls())

	events := c.EventsSince(before)
	require.Len(t, events, 1)
	assert.False(t, events[0].Success)
	assert.Equal(t, 100, events[0].Progress)
	assert.Equal(t, c.Status().Run.ID, events[0].RunID)
	assert.True(t, c.Status().Enabled[CommandRepeatSend])
}

func TestFollowUp_RequiresRun(t *testing.T) {
	c := New(&MockEngine{}, "USDC")

	assert.ErrorIs(t, c.RepeatSend("1"), ErrNoRun)
	assert.ErrorIs(t, c.ReverseSend("1"), ErrNoRun)
	assert.ErrorIs(t, c.RoundTripSwap("1"), ErrNoRun)
	assert.Empty(t, c.Events())
}

func TestFollowUps_RunAgainstCompletedRun(t *testing.T) {
	l := ledgertest.New()
	c := New(newEngine(l), "USDC")
	require.NoError(t, c.Start("10"))
	before := len(c.Events())

	require.NoError(t, c.RepeatSend("2.5"))
	require.NoError(t, c.ReverseSend("1"))
	require.NoError(t, c.RoundTripSwap("1"))

	for _, ev := range c.EventsSince(before) {
		if ev.Informational {
			continue
		}
		assert.True(t, ev.Success, ev.Label)
		assert.Equal(t, 100, ev.Progress)
	}
	st := c.Status()
	assert.True(t, st.Enabled[CommandRepeatSend])
	assert.True(t, st.Enabled[CommandReverseSend])
	assert.True(t, st.Enabled[CommandRoundTrip])
	assert.False(t, st.Enabled[CommandStart])
}

func TestStart_FailureReenablesStart(t *testing.T) {
	l := ledgertest.New()
	l.OnFund = func(string) error { return errors.New("faucet down") }
	c := New(newEngine(l), "USDC")

	err := c.Start("10")
	require.ErrorIs(t, err, workflow.ErrFunding)

	st := c.Status()
	assert.True(t, st.Enabled[CommandStart])
	assert.True(t, st.Enabled[CommandReset])
	assert.False(t, st.Enabled[CommandRepeatSend])
	assert.Contains(t, st.LastError, "seed failed")

	events := c.Events()
	require.NotEmpty(t, events)
	assert.False(t, events[len(events)-1].Success)
}

func TestFollowUp_FailureReenablesItself(t *testing.T) {
	eng := &MockEngine{
		RepeatSendFunc: func(context.Context, *workflow.RunContext, workflow.Run, decimal.Decimal) error {
			return errors.New("rejected")
		},
	}
	c := New(eng, "USDC")
	require.NoError(t, c.Start("10"))

	require.Error(t, c.RepeatSend("1"))
	st := c.Status()
	assert.True(t, st.Enabled[CommandRepeatSend])
	assert.Equal(t, "rejected", st.LastError)
}

func TestSubmit_RejectsWhileBusy(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	eng := &MockEngine{
		ExecuteFunc: func(_ context.Context, _ *workflow.RunContext, run workflow.Run) (workflow.Run, error) {
			close(started)
			<-release
			run.Progress, run.Completed = 100, true
			return run, nil
		},
	}
	c := New(eng, "USDC")

	ticket, err := c.Submit(CommandStart, "10")
	require.NoError(t, err)
	assert.Equal(t, CommandStart, ticket.Command)
	<-started

	st := c.Status()
	assert.True(t, st.Busy)
	for _, cmd := range Commands {
		assert.False(t, st.Enabled[cmd], cmd)
	}
	_, err = c.Submit(CommandStart, "10")
	assert.ErrorIs(t, err, ErrBusy)
	_, err = c.Submit(CommandRepeatSend, "10")
	assert.ErrorIs(t, err, ErrBusy)
	assert.ErrorIs(t, c.Reset(), ErrBusy)

	close(release)
	c.Wait()

	st = c.Status()
	assert.False(t, st.Busy)
	require.NotNil(t, st.Run)
	assert.Equal(t, ticket.RunID, st.Run.ID)
	assert.True(t, st.Enabled[CommandRepeatSend])
}

func TestStart_DisabledAfterSuccess(t *testing.T) {
	c := New(&MockEngine{}, "USDC")
	require.NoError(t, c.Start("10"))

	assert.ErrorIs(t, c.Start("10"), ErrCommandDisabled)

	// gating runs before amount validation
	before := len(c.Events())
	assert.ErrorIs(t, c.Start("-1"), ErrCommandDisabled)
	assert.Len(t, c.Events(), before)
}

func TestReset(t *testing.T) {
	c := New(&MockEngine{}, "USDC")
	require.NoError(t, c.Start("10"))
	require.NoError(t, c.RepeatSend("1"))

	require.NoError(t, c.Reset())
	first := c.Status()
	require.NoError(t, c.Reset())
	assert.Equal(t, first, c.Status())

	assert.Nil(t, first.Run)
	assert.Empty(t, c.Events())
	assert.Empty(t, c.Parties())
	assert.True(t, first.Enabled[CommandStart])
	assert.True(t, first.Enabled[CommandReset])
	assert.False(t, first.Enabled[CommandRepeatSend])
	assert.False(t, first.Enabled[CommandReverseSend])
	assert.False(t, first.Enabled[CommandRoundTrip])

	require.NoError(t, c.Start("5"))
}

func TestReset_FromAnyState(t *testing.T) {
	partial := &MockEngine{
		ExecuteFunc: func(_ context.Context, rc *workflow.RunContext, run workflow.Run) (workflow.Run, error) {
			rc.Observer.OnStep(workflow.StepEvent{Phase: workflow.PhaseSeed, Success: true, RunID: run.ID, Progress: 10})
			return run, &workflow.PhaseError{Phase: workflow.PhaseTrust, Kind: workflow.ErrTrust, Err: errors.New("change_trust rejected")}
		},
	}

	tests := []struct {
		name    string
		engine  Engine
		prepare func(t *testing.T, c *Controller)
	}{
		{
			name:    "untouched",
			engine:  &MockEngine{},
			prepare: func(*testing.T, *Controller) {},
		},
		{
			name:   "after failed start",
			engine: partial,
			prepare: func(t *testing.T, c *Controller) {
				require.ErrorIs(t, c.Start("10"), workflow.ErrTrust)
				require.NotEmpty(t, c.Events())
			},
		},
		{
			name:   "after success",
			engine: &MockEngine{},
			prepare: func(t *testing.T, c *Controller) {
				require.NoError(t, c.Start("10"))
			},
		},
	}

	fresh := New(&MockEngine{}, "USDC").Status()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(tt.engine, "USDC")
			tt.prepare(t, c)

			require.NoError(t, c.Reset())
			assert.Equal(t, fresh, c.Status())
			assert.Empty(t, c.Events())

			require.NoError(t, c.Reset())
			assert.Equal(t, fresh, c.Status())
			assert.Empty(t, c.Events())
		})
	}
}

func TestStart_NewRunClearsLog(t *testing.T) {
	eng := &MockEngine{
		ExecuteFunc: func(_ context.Context, rc *workflow.RunContext, run workflow.Run) (workflow.Run, error) {
			rc.Observer.OnStep(workflow.StepEvent{Label: "step", Success: true, RunID: run.ID})
			return run, errors.New("boom")
		},
	}
	c := New(eng, "USDC")
	require.Error(t, c.Start("10"))
	require.Error(t, c.Start("10"))

	events := c.Events()
	require.Len(t, events, 1)
	assert.Equal(t, c.Status().Run.ID, events[0].RunID)
}

func TestStore_RecordsExecutions(t *testing.T) {
	store := NewMockStore()
	l := ledgertest.New()
	c := New(newEngine(l), "USDC", WithStore(store))

	ticket, err := c.Submit(CommandStart, "10")
	require.NoError(t, err)
	c.Wait()

	exec, err := store.GetExecution(context.Background(), ticket.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, runstore.StatusSucceeded, exec.Status)
	assert.Equal(t, 100, exec.Progress)
	assert.Equal(t, ticket.RunID, exec.RunID)
	assert.Equal(t, string(CommandStart), exec.Command)
	assert.NotNil(t, exec.FinishedAt)

	events, err := store.ListEvents(context.Background(), ticket.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, c.Events(), events)
}

func TestStore_RecordsFailure(t *testing.T) {
	store := NewMockStore()
	eng := &MockEngine{
		ExecuteFunc: func(_ context.Context, _ *workflow.RunContext, run workflow.Run) (workflow.Run, error) {
			run.Progress = 30
			return run, errors.New("trust rejected")
		},
	}
	c := New(eng, "USDC", WithStore(store))

	ticket, err := c.Submit(CommandStart, "10")
	require.NoError(t, err)
	c.Wait()

	exec, err := store.GetExecution(context.Background(), ticket.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, runstore.StatusFailed, exec.Status)
	assert.Equal(t, 30, exec.Progress)
	assert.Equal(t, "trust rejected", exec.Error)
}

func TestObservers_ReceiveEvents(t *testing.T) {
	var mu sync.Mutex
	var seen []workflow.StepEvent
	obs := workflow.ObserverFunc(func(ev workflow.StepEvent) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, ev)
	})
	c := New(newEngine(ledgertest.New()), "USDC", WithObservers(obs))

	require.NoError(t, c.Start("10"))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, c.Events(), seen)
}

func TestDerivedRegistry_IsDeterministic(t *testing.T) {
	seed := make([]byte, 64)
	f := DerivedRegistry(seed)
	id := uuid.New()

	a, err := f(id)
	require.NoError(t, err)
	b, err := f(id)
	require.NoError(t, err)
	assert.Equal(t, a.Public(), b.Public())

	other, err := f(uuid.New())
	require.NoError(t, err)
	assert.NotEqual(t, a.Public(), other.Public())
}

func TestParseCommand(t *testing.T) {
	cmd, err := ParseCommand("round_trip")
	require.NoError(t, err)
	assert.Equal(t, CommandRoundTrip, cmd)

	_, err = ParseCommand("launch")
	assert.ErrorIs(t, err, ErrUnknownCommand)

	_, err = New(&MockEngine{}, "USDC").Submit(CommandReset, "1")
	assert.ErrorIs(t, err, ErrUnknownCommand)
}
