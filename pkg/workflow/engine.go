// Package workflow implements the multi-party transfer state machine:
// seed, trust, issue, convert-in, rate lookup, bridge, relay, bridge-back,
// downstream send and convert-out, plus the follow-up commands.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/chainsafe/anchor-orchestrator/pkg/asset"
	"github.com/chainsafe/anchor-orchestrator/pkg/conversion"
	"github.com/chainsafe/anchor-orchestrator/pkg/ledger"
	"github.com/chainsafe/anchor-orchestrator/pkg/party"
)

// PriceOracle quotes the native asset in USD.
type PriceOracle interface {
	Price(ctx context.Context) (decimal.Decimal, error)
}

// SettlementConfig bounds the poll-until-confirmed waits.
type SettlementConfig struct {
	Interval    time.Duration
	MaxInterval time.Duration
	MaxAttempts int
}

// Config holds engine tunables.
type Config struct {
	// FeeReserve is the native balance below which a signer is re-funded.
	FeeReserve decimal.Decimal
	// FallbackRate replaces a failed or non-positive oracle quote.
	FallbackRate      decimal.Decimal
	SubmissionTimeout time.Duration
	// TxTimeout is the validity window placed on every transaction.
	TxTimeout  time.Duration
	Settlement SettlementConfig
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		FeeReserve:        decimal.NewFromInt(10),
		FallbackRate:      decimal.RequireFromString("0.1"),
		SubmissionTimeout: 60 * time.Second,
		TxTimeout:         30 * time.Second,
		Settlement: SettlementConfig{
			Interval:    time.Second,
			MaxInterval: 8 * time.Second,
			MaxAttempts: 10,
		},
	}
}

// Engine sequences ledger and conversion calls for a run.
type Engine struct {
	ledger     ledger.Gateway
	conversion conversion.Gateway
	oracle     PriceOracle
	cfg        Config

	logger  *zap.Logger
	metrics Metrics
	sleep   func(ctx context.Context, d time.Duration) error
	now     func() time.Time
}

// NewEngine creates an Engine. Zero config fields take their defaults.
func NewEngine(lg ledger.Gateway, cv conversion.Gateway, oracle PriceOracle, cfg Config, opts ...Option) *Engine {
	s := applyOptions(opts)
	def := DefaultConfig()
	if cfg.FeeReserve.IsZero() {
		cfg.FeeReserve = def.FeeReserve
	}
	if !cfg.FallbackRate.IsPositive() {
		cfg.FallbackRate = def.FallbackRate
	}
	if cfg.SubmissionTimeout <= 0 {
		cfg.SubmissionTimeout = def.SubmissionTimeout
	}
	if cfg.TxTimeout <= 0 {
		cfg.TxTimeout = def.TxTimeout
	}
	if cfg.Settlement.Interval <= 0 {
		cfg.Settlement.Interval = def.Settlement.Interval
	}
	if cfg.Settlement.MaxInterval < cfg.Settlement.Interval {
		cfg.Settlement.MaxInterval = max(def.Settlement.MaxInterval, cfg.Settlement.Interval)
	}
	if cfg.Settlement.MaxAttempts <= 0 {
		cfg.Settlement.MaxAttempts = def.Settlement.MaxAttempts
	}
	return &Engine{
		ledger:     lg,
		conversion: cv,
		oracle:     oracle,
		cfg:        cfg,
		logger:     s.logger,
		metrics:    s.metrics,
		sleep:      s.sleep,
		now:        s.now,
	}
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

type phaseFunc func(ctx context.Context, rc *RunContext, run Run) (Run, string, error)

type step struct {
	phase Phase
	kind  error
	fn    phaseFunc
}

func (e *Engine) steps() []step {
	return []step{
		{PhaseSeed, ErrFunding, e.seed},
		{PhaseTrust, ErrTrust, e.establishTrust},
		{PhaseIssue, ErrIssuance, e.issue},
		{PhaseConvertIn, ErrConversion, e.convertIn},
		{PhaseRateLookup, ErrOracle, e.lookupRate},
		{PhaseBridge, ErrSubmission, e.bridge},
		{PhaseRelay, ErrSubmission, e.relay},
		{PhaseBridgeBack, ErrSubmission, e.bridgeBack},
		{PhaseDownstream, ErrSubmission, e.downstreamSend},
		{PhaseConvertOut, ErrConversion, e.convertOut},
	}
}

// Execute runs every phase in order and stops at the first failure.
func (e *Engine) Execute(ctx context.Context, rc *RunContext, run Run) (Run, error) {
	e.logger.Info("workflow started",
		zap.String("run_id", run.ID.String()),
		zap.String("amount", run.RequestedAmount.String()))
	start := e.now()

	for _, s := range e.steps() {
		var err error
		run, err = e.runPhase(ctx, rc, run, s)
		if err != nil {
			e.logger.Error("workflow aborted",
				zap.String("run_id", run.ID.String()),
				zap.String("phase", string(s.phase)),
				zap.Error(err))
			return run, err
		}
	}
	run.Completed = true

	e.logger.Info("workflow completed",
		zap.String("run_id", run.ID.String()),
		zap.String("amount", run.Amount.String()),
		zap.String("offramp_amount", run.OffRampAmount.String()),
		zap.Duration("elapsed", e.now().Sub(start)))
	return run, nil
}

// Seed requests faucet funding for every party and waits until all accounts are visible.
func (e *Engine) Seed(ctx context.Context, rc *RunContext, run Run) (Run, error) {
	return e.runPhase(ctx, rc, run, step{PhaseSeed, ErrFunding, e.seed})
}

// EstablishTrust opens a trustline for the asset on every holder.
func (e *Engine) EstablishTrust(ctx context.Context, rc *RunContext, run Run) (Run, error) {
	return e.runPhase(ctx, rc, run, step{PhaseTrust, ErrTrust, e.establishTrust})
}

// Issue pays the requested amount from the issuer to the sender.
func (e *Engine) Issue(ctx context.Context, rc *RunContext, run Run) (Run, error) {
	return e.runPhase(ctx, rc, run, step{PhaseIssue, ErrIssuance, e.issue})
}

// ConvertIn on-ramps the requested amount and adopts the converted amount.
func (e *Engine) ConvertIn(ctx context.Context, rc *RunContext, run Run) (Run, error) {
	return e.runPhase(ctx, rc, run, step{PhaseConvertIn, ErrConversion, e.convertIn})
}

// LookupRate quotes the native asset and derives the bridge prices.
func (e *Engine) LookupRate(ctx context.Context, rc *RunContext, run Run) (Run, error) {
	return e.runPhase(ctx, rc, run, step{PhaseRateLookup, ErrOracle, e.lookupRate})
}

// Bridge converts the sender's asset into the native asset through a crossing offer pair.
func (e *Engine) Bridge(ctx context.Context, rc *RunContext, run Run) (Run, error) {
	return e.runPhase(ctx, rc, run, step{PhaseBridge, ErrSubmission, e.bridge})
}

// Relay pays the native amount from the sender to the intermediary.
func (e *Engine) Relay(ctx context.Context, rc *RunContext, run Run) (Run, error) {
	return e.runPhase(ctx, rc, run, step{PhaseRelay, ErrSubmission, e.relay})
}

// BridgeBack converts the intermediary's native asset back into the asset.
func (e *Engine) BridgeBack(ctx context.Context, rc *RunContext, run Run) (Run, error) {
	return e.runPhase(ctx, rc, run, step{PhaseBridgeBack, ErrSubmission, e.bridgeBack})
}

// DownstreamSend pays the asset amount from the intermediary to the recipient.
func (e *Engine) DownstreamSend(ctx context.Context, rc *RunContext, run Run) (Run, error) {
	return e.runPhase(ctx, rc, run, step{PhaseDownstream, ErrSubmission, e.downstreamSend})
}

// ConvertOut off-ramps the final asset amount.
func (e *Engine) ConvertOut(ctx context.Context, rc *RunContext, run Run) (Run, error) {
	return e.runPhase(ctx, rc, run, step{PhaseConvertOut, ErrConversion, e.convertOut})
}

func (e *Engine) runPhase(ctx context.Context, rc *RunContext, run Run, s step) (Run, error) {
	run.Phase = s.phase
	start := e.now()
	next, label, err := s.fn(ctx, rc, run)
	e.metrics.ObservePhase(s.phase, err, e.now().Sub(start))
	if err != nil {
		perr := &PhaseError{Phase: s.phase, Kind: s.kind, Err: err}
		e.emit(rc, run, perr.Error(), false, false)
		return run, perr
	}

	next.Progress = max(next.Progress, Checkpoints[s.phase])
	e.logger.Info("phase completed",
		zap.String("run_id", run.ID.String()),
		zap.String("phase", string(s.phase)),
		zap.Int("progress", next.Progress))
	e.emit(rc, next, label, true, false)
	return next, nil
}

func (e *Engine) emit(rc *RunContext, run Run, label string, success, informational bool) {
	rc.Observer.OnStep(StepEvent{
		Label:         label,
		Success:       success,
		Progress:      run.Progress,
		RunID:         run.ID,
		Phase:         run.Phase,
		Informational: informational,
		Time:          e.now().UTC(),
	})
}

// submit signs and submits ops for p after the fee-reserve check. It returns
// the sequence number the account had before submission.
func (e *Engine) submit(ctx context.Context, rc *RunContext, run Run, p *party.Party, ops ...ledger.Operation) (int64, error) {
	acct, err := e.ensureFeeReserve(ctx, rc, run, p)
	if err != nil {
		return 0, fmt.Errorf("%w: load %s: %w", ErrSubmission, p.Role, err)
	}
	before := acct.Sequence

	subCtx, cancel := context.WithTimeout(ctx, e.cfg.SubmissionTimeout)
	defer cancel()

	tx := ledger.NewTransaction(acct, e.cfg.TxTimeout, ops...)
	res, err := e.ledger.Submit(subCtx, tx, p.Keys)
	if err != nil {
		return before, fmt.Errorf("%w: %s %s: %w", ErrSubmission, p.Role, describe(ops), err)
	}
	e.logger.Debug("transaction accepted",
		zap.String("run_id", run.ID.String()),
		zap.String("role", string(p.Role)),
		zap.String("hash", res.Hash),
		zap.Int64("ledger", res.Ledger))
	return before, nil
}

func describe(ops []ledger.Operation) string {
	parts := make([]string, len(ops))
	for i, op := range ops {
		parts[i] = op.String()
	}
	return strings.Join(parts, ", ")
}

// ensureFeeReserve loads p and re-funds it once when its native balance is
// below the reserve. Faucet failures are logged; the caller then submits
// anyway and fails at the ledger.
func (e *Engine) ensureFeeReserve(ctx context.Context, rc *RunContext, run Run, p *party.Party) (*ledger.Account, error) {
	acct, err := e.ledger.LoadAccount(ctx, p.Address())
	if err != nil {
		return nil, err
	}
	if !acct.NativeBalance().LessThan(e.cfg.FeeReserve) {
		return acct, nil
	}

	log := e.logger.With(zap.String("run_id", run.ID.String()), zap.String("role", string(p.Role)))
	log.Warn("native balance below fee reserve",
		zap.String("balance", acct.NativeBalance().String()),
		zap.String("reserve", e.cfg.FeeReserve.String()))

	if err := e.ledger.RequestFunding(ctx, p.Address()); err != nil {
		e.metrics.IncFeeRecovery(p.Role, err)
		log.Warn("fee reserve funding failed", zap.Error(err))
		return acct, nil
	}

	funded := acct
	err = e.awaitSettled(ctx, string(p.Role)+" fee reserve", func(ctx context.Context) (bool, error) {
		latest, err := e.ledger.LoadAccount(ctx, p.Address())
		if err != nil {
			return false, err
		}
		funded = latest
		return !latest.NativeBalance().LessThan(e.cfg.FeeReserve), nil
	})
	e.metrics.IncFeeRecovery(p.Role, err)
	if err != nil {
		log.Warn("fee reserve not restored", zap.Error(err))
	}

	gained := funded.NativeBalance().Sub(acct.NativeBalance())
	info := run
	info.Phase = PhaseFeeReserve
	e.emit(rc, info, fmt.Sprintf("%s got %s more XLM for fees", p.Role, asset.Format(gained)), true, true)
	return funded, nil
}

// awaitSettled polls check with exponential backoff until it reports true or
// the attempt budget is spent.
func (e *Engine) awaitSettled(ctx context.Context, what string, check func(ctx context.Context) (bool, error)) error {
	interval := e.cfg.Settlement.Interval
	var lastErr error
	for attempt := 1; ; attempt++ {
		ok, err := check(ctx)
		if err == nil && ok {
			return nil
		}
		if err != nil {
			lastErr = err
		}
		if attempt >= e.cfg.Settlement.MaxAttempts {
			if lastErr != nil {
				return fmt.Errorf("%w: %s after %d attempts: %w", ErrNotSettled, what, attempt, lastErr)
			}
			return fmt.Errorf("%w: %s after %d attempts", ErrNotSettled, what, attempt)
		}
		if err := e.sleep(ctx, interval); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrNotSettled, what, err)
		}
		interval = min(interval*2, e.cfg.Settlement.MaxInterval)
	}
}

// awaitSequence waits until p's account sequence has moved past before.
func (e *Engine) awaitSequence(ctx context.Context, p *party.Party, before int64) error {
	return e.awaitSettled(ctx, string(p.Role)+" offer", func(ctx context.Context) (bool, error) {
		acct, err := e.ledger.LoadAccount(ctx, p.Address())
		if err != nil {
			return false, err
		}
		return acct.Sequence > before, nil
	})
}

func isNotFound(err error) bool {
	return errors.Is(err, ledger.ErrAccountNotFound)
}
