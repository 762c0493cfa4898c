package horizon

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/stellar/go/price"
	"github.com/stellar/go/txnbuild"
	"github.com/stellar/go/xdr"

	"github.com/chainsafe/anchor-orchestrator/pkg/asset"
	"github.com/chainsafe/anchor-orchestrator/pkg/ledger"
)

// buildTransaction converts tx into an unsigned txnbuild transaction whose
// sequence is one past the source account's.
func (c *Client) buildTransaction(tx *ledger.Transaction) (*txnbuild.Transaction, error) {
	ops := make([]txnbuild.Operation, 0, len(tx.Operations))
	for i, op := range tx.Operations {
		converted, err := toOperation(op)
		if err != nil {
			return nil, fmt.Errorf("operation %d: %w", i, err)
		}
		ops = append(ops, converted)
	}

	bounds := txnbuild.NewInfiniteTimeout()
	if tx.Timeout > 0 {
		now := c.now()
		var minTime int64
		if c.cfg.MinTimeBound > 0 {
			minTime = now.Add(-c.cfg.MinTimeBound).Unix()
		}
		bounds = txnbuild.NewTimebounds(minTime, now.Add(tx.Timeout).Unix())
	}

	source := txnbuild.NewSimpleAccount(tx.Source.Address, tx.Source.Sequence)
	return txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        &source,
		IncrementSequenceNum: true,
		Operations:           ops,
		BaseFee:              int64(c.cfg.BaseFee),
		Preconditions:        txnbuild.Preconditions{TimeBounds: bounds},
	})
}

func toOperation(op ledger.Operation) (txnbuild.Operation, error) {
	switch op.Type {
	case ledger.OpChangeTrust:
		line, err := toAsset(op.Asset).ToChangeTrustAsset()
		if err != nil {
			return nil, err
		}
		return &txnbuild.ChangeTrust{
			Line:          line,
			Limit:         txnbuild.MaxTrustlineLimit,
			SourceAccount: op.Source,
		}, nil

	case ledger.OpPayment:
		amount, err := amountString(op.Amount)
		if err != nil {
			return nil, err
		}
		return &txnbuild.Payment{
			Destination:   op.Destination,
			Amount:        amount,
			Asset:         toAsset(op.Asset),
			SourceAccount: op.Source,
		}, nil

	case ledger.OpManageBuyOffer:
		amount, p, err := offerTerms(op)
		if err != nil {
			return nil, err
		}
		return &txnbuild.ManageBuyOffer{
			Selling:       toAsset(op.Selling),
			Buying:        toAsset(op.Buying),
			Amount:        amount,
			Price:         p,
			OfferID:       op.OfferID,
			SourceAccount: op.Source,
		}, nil

	case ledger.OpManageSellOffer:
		amount, p, err := offerTerms(op)
		if err != nil {
			return nil, err
		}
		return &txnbuild.ManageSellOffer{
			Selling:       toAsset(op.Selling),
			Buying:        toAsset(op.Buying),
			Amount:        amount,
			Price:         p,
			OfferID:       op.OfferID,
			SourceAccount: op.Source,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported operation type %q", op.Type)
	}
}

func toAsset(a asset.Asset) txnbuild.Asset {
	if a.IsNative() {
		return txnbuild.NativeAsset{}
	}
	return txnbuild.CreditAsset{Code: a.Code(), Issuer: a.Issuer()}
}

func offerTerms(op ledger.Operation) (string, xdr.Price, error) {
	amount, err := amountString(op.Amount)
	if err != nil {
		return "", xdr.Price{}, err
	}
	p, err := price.Parse(op.Price.String())
	if err != nil {
		return "", xdr.Price{}, fmt.Errorf("price %s cannot be represented: %w", op.Price.String(), err)
	}
	return amount, p, nil
}

// amountString renders d for the ledger, rejecting values that do not fit in stroops.
func amountString(d decimal.Decimal) (string, error) {
	if _, err := asset.ToStroops(d); err != nil {
		return "", err
	}
	return asset.Format(d), nil
}
