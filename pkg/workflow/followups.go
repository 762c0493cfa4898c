package workflow

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/chainsafe/anchor-orchestrator/pkg/asset"
	"github.com/chainsafe/anchor-orchestrator/pkg/ledger"
	"github.com/chainsafe/anchor-orchestrator/pkg/party"
)

// Follow-up commands run against a completed run. Their events carry the
// run's final progress unchanged.

// RepeatSend pays amount of the asset from the intermediary to the recipient again.
func (e *Engine) RepeatSend(ctx context.Context, rc *RunContext, run Run, amount decimal.Decimal) error {
	return e.send(ctx, rc, run, PhaseRepeatSend, rc.Registry.Intermediary(), rc.Registry.Recipient(), amount)
}

// ReverseSend pays amount of the asset from the recipient back to the intermediary.
func (e *Engine) ReverseSend(ctx context.Context, rc *RunContext, run Run, amount decimal.Decimal) error {
	return e.send(ctx, rc, run, PhaseReverseSend, rc.Registry.Recipient(), rc.Registry.Intermediary(), amount)
}

func (e *Engine) send(ctx context.Context, rc *RunContext, run Run, phase Phase, from, to *party.Party, amount decimal.Decimal) error {
	run.Phase = phase
	amount = asset.Round(amount)
	start := e.now()
	_, err := e.submit(ctx, rc, run, from, ledger.Payment(to.Address(), rc.Asset, amount))
	e.metrics.ObservePhase(phase, err, e.now().Sub(start))
	if err != nil {
		return e.fail(rc, run, phase, err)
	}
	e.logger.Info("follow-up completed",
		zap.String("run_id", run.ID.String()),
		zap.String("phase", string(phase)),
		zap.String("amount", amount.String()))
	e.emit(rc, run, fmt.Sprintf("%s sent %s %s to %s", from.Role, asset.Format(amount), rc.Asset.Code(), to.Role), true, false)
	return nil
}

// RoundTripSwap converts amount of the sender's asset into the native asset
// and back again. Each leg emits its own event.
func (e *Engine) RoundTripSwap(ctx context.Context, rc *RunContext, run Run, amount decimal.Decimal) error {
	run.Phase = PhaseRoundTrip
	amount = asset.Round(amount)
	sender := rc.Registry.Sender()
	start := e.now()

	q := e.quote(ctx, run, amount)
	err := e.crossOffers(ctx, rc, run, sender, rc.Asset, asset.Native(), amount, q.price)
	if err != nil {
		e.metrics.ObservePhase(PhaseRoundTrip, err, e.now().Sub(start))
		return e.fail(rc, run, PhaseRoundTrip, err)
	}
	e.emit(rc, run, fmt.Sprintf("Sender swapped %s %s for %s XLM",
		asset.Format(amount), rc.Asset.Code(), asset.Format(q.nativeAmount)), true, false)

	err = e.crossOffers(ctx, rc, run, sender, asset.Native(), rc.Asset, q.nativeAmount, q.inversePrice)
	e.metrics.ObservePhase(PhaseRoundTrip, err, e.now().Sub(start))
	if err != nil {
		return e.fail(rc, run, PhaseRoundTrip, err)
	}
	e.emit(rc, run, fmt.Sprintf("Sender swapped %s XLM back to %s",
		asset.Format(q.nativeAmount), rc.Asset.Code()), true, false)
	return nil
}

func (e *Engine) fail(rc *RunContext, run Run, phase Phase, err error) error {
	perr := &PhaseError{Phase: phase, Kind: ErrSubmission, Err: err}
	e.logger.Error("follow-up failed",
		zap.String("run_id", run.ID.String()),
		zap.String("phase", string(phase)),
		zap.Error(err))
	e.emit(rc, run, perr.Error(), false, false)
	return perr
}
