package workflow

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/chainsafe/anchor-orchestrator/pkg/asset"
	"github.com/chainsafe/anchor-orchestrator/pkg/conversion"
	"github.com/chainsafe/anchor-orchestrator/pkg/ledger"
	"github.com/chainsafe/anchor-orchestrator/pkg/party"
)

var one = decimal.NewFromInt(1)

func (e *Engine) seed(ctx context.Context, rc *RunContext, run Run) (Run, string, error) {
	parties := rc.Registry.All()
	for _, p := range parties {
		if err := e.ledger.RequestFunding(ctx, p.Address()); err != nil {
			return run, "", fmt.Errorf("fund %s: %w", p.Role, err)
		}
	}
	for _, p := range parties {
		err := e.awaitSettled(ctx, string(p.Role)+" account", func(ctx context.Context) (bool, error) {
			_, err := e.ledger.LoadAccount(ctx, p.Address())
			if isNotFound(err) {
				return false, nil
			}
			return err == nil, err
		})
		if err != nil {
			return run, "", err
		}
	}
	return run, fmt.Sprintf("Funded %d accounts from the faucet", len(parties)), nil
}

func (e *Engine) establishTrust(ctx context.Context, rc *RunContext, run Run) (Run, string, error) {
	for _, role := range party.Holders {
		p := rc.Registry.MustGet(role)
		if _, err := e.submit(ctx, rc, run, p, ledger.ChangeTrust(rc.Asset)); err != nil {
			return run, "", err
		}
	}
	for _, role := range party.Holders {
		p := rc.Registry.MustGet(role)
		err := e.awaitSettled(ctx, string(role)+" trustline", func(ctx context.Context) (bool, error) {
			acct, err := e.ledger.LoadAccount(ctx, p.Address())
			if err != nil {
				return false, err
			}
			return acct.HasTrustline(rc.Asset), nil
		})
		if err != nil {
			return run, "", err
		}
	}
	return run, fmt.Sprintf("Sender, intermediary and recipient trust %s", rc.Asset.Code()), nil
}

func (e *Engine) issue(ctx context.Context, rc *RunContext, run Run) (Run, string, error) {
	amount := asset.Round(run.RequestedAmount)
	op := ledger.Payment(rc.Registry.Sender().Address(), rc.Asset, amount)
	if _, err := e.submit(ctx, rc, run, rc.Registry.Issuer(), op); err != nil {
		return run, "", err
	}
	return run, fmt.Sprintf("Issuer sent %s %s to sender", asset.Format(amount), rc.Asset.Code()), nil
}

func (e *Engine) convertIn(ctx context.Context, _ *RunContext, run Run) (Run, string, error) {
	usdc, err := e.conversion.OnRamp(ctx, run.RequestedAmount)
	if err != nil {
		return run, "", err
	}
	if !usdc.IsPositive() {
		return run, "", fmt.Errorf("%w: on-ramp returned %s", conversion.ErrMalformedResponse, usdc)
	}
	run.Amount = asset.Round(usdc)
	return run, fmt.Sprintf("On-ramped %s USD to %s USDC", run.RequestedAmount, asset.Format(run.Amount)), nil
}

func (e *Engine) lookupRate(ctx context.Context, _ *RunContext, run Run) (Run, string, error) {
	q := e.quote(ctx, run, run.Amount)
	run.Rate = q.rate
	run.RateFallback = q.fallback
	run.NativeAmount = q.nativeAmount
	run.Price = q.price
	run.InversePrice = q.inversePrice

	label := fmt.Sprintf("XLM at %s USD: %s USDC is %s XLM", q.rate, asset.Format(run.Amount), asset.Format(q.nativeAmount))
	if q.fallback {
		label += " (fallback rate)"
	}
	return run, label, nil
}

type quote struct {
	rate         decimal.Decimal
	fallback     bool
	nativeAmount decimal.Decimal
	price        decimal.Decimal
	inversePrice decimal.Decimal
}

// quote prices amount of the asset in the native asset. Oracle failures fall back
// to the configured rate. The inverse price is rounded independently, so the
// two legs of a bridge drift slightly.
func (e *Engine) quote(ctx context.Context, run Run, amount decimal.Decimal) quote {
	rate, err := e.oracleRate(ctx)
	q := quote{rate: rate}
	if err == nil {
		q.price = one.Div(rate).Round(asset.Precision)
		if q.price.IsZero() {
			err = fmt.Errorf("%w: rate %s too large", ErrOracle, rate)
		}
	}
	if err != nil {
		e.metrics.IncOracleFallback()
		e.logger.Warn("using fallback rate",
			zap.String("run_id", run.ID.String()),
			zap.String("fallback", e.cfg.FallbackRate.String()),
			zap.Error(err))
		q = quote{rate: e.cfg.FallbackRate, fallback: true, price: one.Div(e.cfg.FallbackRate).Round(asset.Precision)}
	}
	q.nativeAmount = asset.Round(amount.Mul(q.rate))
	q.inversePrice = one.Div(q.price).Round(asset.Precision)
	return q
}

func (e *Engine) oracleRate(ctx context.Context) (decimal.Decimal, error) {
	if e.oracle == nil {
		return decimal.Zero, fmt.Errorf("%w: no oracle configured", ErrOracle)
	}
	rate, err := e.oracle.Price(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %w", ErrOracle, err)
	}
	if !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: non-positive rate %s", ErrOracle, rate)
	}
	return rate, nil
}

// crossOffers posts the issuer's standing buy offer, waits until it is on the
// ledger, then posts the holder's matching sell offer.
func (e *Engine) crossOffers(ctx context.Context, rc *RunContext, run Run, holder *party.Party,
	selling, buying asset.Asset, amount, price decimal.Decimal) error {
	issuer := rc.Registry.Issuer()
	before, err := e.submit(ctx, rc, run, issuer, ledger.ManageBuyOffer(buying, selling, amount, price))
	if err != nil {
		return err
	}
	if err := e.awaitSequence(ctx, issuer, before); err != nil {
		return err
	}
	_, err = e.submit(ctx, rc, run, holder, ledger.ManageSellOffer(selling, buying, amount, price))
	return err
}

func (e *Engine) bridge(ctx context.Context, rc *RunContext, run Run) (Run, string, error) {
	err := e.crossOffers(ctx, rc, run, rc.Registry.Sender(), rc.Asset, asset.Native(), run.Amount, run.Price)
	if err != nil {
		return run, "", err
	}
	return run, fmt.Sprintf("Sender swapped %s %s for XLM at %s",
		asset.Format(run.Amount), rc.Asset.Code(), asset.Format(run.Price)), nil
}

func (e *Engine) relay(ctx context.Context, rc *RunContext, run Run) (Run, string, error) {
	op := ledger.Payment(rc.Registry.Intermediary().Address(), asset.Native(), run.NativeAmount)
	if _, err := e.submit(ctx, rc, run, rc.Registry.Sender(), op); err != nil {
		return run, "", err
	}
	return run, fmt.Sprintf("Sender paid %s XLM to intermediary", asset.Format(run.NativeAmount)), nil
}

func (e *Engine) bridgeBack(ctx context.Context, rc *RunContext, run Run) (Run, string, error) {
	err := e.crossOffers(ctx, rc, run, rc.Registry.Intermediary(), asset.Native(), rc.Asset, run.NativeAmount, run.InversePrice)
	if err != nil {
		return run, "", err
	}
	return run, fmt.Sprintf("Intermediary swapped %s XLM for %s at %s",
		asset.Format(run.NativeAmount), rc.Asset.Code(), asset.Format(run.InversePrice)), nil
}

func (e *Engine) downstreamSend(ctx context.Context, rc *RunContext, run Run) (Run, string, error) {
	op := ledger.Payment(rc.Registry.Recipient().Address(), rc.Asset, run.Amount)
	if _, err := e.submit(ctx, rc, run, rc.Registry.Intermediary(), op); err != nil {
		return run, "", err
	}
	return run, fmt.Sprintf("Intermediary paid %s %s to recipient", asset.Format(run.Amount), rc.Asset.Code()), nil
}

func (e *Engine) convertOut(ctx context.Context, _ *RunContext, run Run) (Run, string, error) {
	usd, err := e.conversion.OffRamp(ctx, run.Amount)
	if err != nil {
		return run, "", err
	}
	if !usd.IsPositive() {
		return run, "", fmt.Errorf("%w: off-ramp returned %s", conversion.ErrMalformedResponse, usd)
	}
	run.OffRampAmount = usd
	return run, fmt.Sprintf("Off-ramped %s USDC to %s USD", asset.Format(run.Amount), usd), nil
}
