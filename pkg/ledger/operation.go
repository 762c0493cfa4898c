package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chainsafe/anchor-orchestrator/pkg/asset"
)

// OperationType names a supported ledger operation.
type OperationType string

const (
	OpChangeTrust     OperationType = "change_trust"
	OpPayment         OperationType = "payment"
	OpManageBuyOffer  OperationType = "manage_buy_offer"
	OpManageSellOffer OperationType = "manage_sell_offer"
)

// Operation is a single ledger operation. Only the fields relevant to Type are set.
type Operation struct {
	Type OperationType
	// Source overrides the transaction source account when set.
	Source string

	Asset       asset.Asset // change_trust line, payment asset
	Destination string      // payment
	Selling     asset.Asset // offers
	Buying      asset.Asset // offers
	Amount      decimal.Decimal
	Price       decimal.Decimal
	OfferID     int64
}

func (o Operation) String() string {
	switch o.Type {
	case OpChangeTrust:
		return fmt.Sprintf("change_trust(%s)", o.Asset)
	case OpPayment:
		return fmt.Sprintf("payment(%s %s -> %s)", asset.Format(o.Amount), o.Asset.Code(), o.Destination)
	case OpManageBuyOffer:
		return fmt.Sprintf("manage_buy_offer(buy %s %s for %s @ %s)",
			asset.Format(o.Amount), o.Buying.Code(), o.Selling.Code(), asset.Format(o.Price))
	case OpManageSellOffer:
		return fmt.Sprintf("manage_sell_offer(sell %s %s for %s @ %s)",
			asset.Format(o.Amount), o.Selling.Code(), o.Buying.Code(), asset.Format(o.Price))
	default:
		return string(o.Type)
	}
}

// ChangeTrust establishes a trustline for line with the maximum limit.
func ChangeTrust(line asset.Asset) Operation {
	return Operation{Type: OpChangeTrust, Asset: line}
}

// Payment sends amount of as to destination.
func Payment(destination string, as asset.Asset, amount decimal.Decimal) Operation {
	return Operation{Type: OpPayment, Destination: destination, Asset: as, Amount: amount}
}

// ManageBuyOffer posts an offer to buy buyAmount of buying, paying with selling
// at price (units of selling per unit of buying).
func ManageBuyOffer(selling, buying asset.Asset, buyAmount, price decimal.Decimal) Operation {
	return Operation{Type: OpManageBuyOffer, Selling: selling, Buying: buying, Amount: buyAmount, Price: price}
}

// ManageSellOffer posts an offer to sell amount of selling for buying at price
// (units of buying per unit of selling).
func ManageSellOffer(selling, buying asset.Asset, amount, price decimal.Decimal) Operation {
	return Operation{Type: OpManageSellOffer, Selling: selling, Buying: buying, Amount: amount, Price: price}
}

// Transaction is an unsigned transaction for one source account.
type Transaction struct {
	Source     *Account
	Operations []Operation
	// Timeout bounds the transaction's validity window. Zero means no upper bound.
	Timeout time.Duration
}

// NewTransaction builds a transaction for source.
func NewTransaction(source *Account, timeout time.Duration, ops ...Operation) *Transaction {
	return &Transaction{Source: source, Operations: ops, Timeout: timeout}
}

// Validate checks the transaction can be encoded.
func (tx *Transaction) Validate() error {
	if tx.Source == nil {
		return fmt.Errorf("transaction has no source account")
	}
	if len(tx.Operations) == 0 {
		return ErrNoOperations
	}
	for i, op := range tx.Operations {
		switch op.Type {
		case OpChangeTrust:
			if op.Asset.IsNative() {
				return fmt.Errorf("operation %d: cannot trust the native asset", i)
			}
		case OpPayment:
			if op.Destination == "" {
				return fmt.Errorf("operation %d: missing destination", i)
			}
			if !op.Amount.IsPositive() {
				return fmt.Errorf("operation %d: amount must be positive", i)
			}
		case OpManageBuyOffer, OpManageSellOffer:
			if op.Selling.Equal(op.Buying) {
				return fmt.Errorf("operation %d: selling and buying must differ", i)
			}
			if op.Amount.IsNegative() {
				return fmt.Errorf("operation %d: amount must not be negative", i)
			}
			if !op.Price.IsPositive() {
				return fmt.Errorf("operation %d: price must be positive", i)
			}
		default:
			return fmt.Errorf("operation %d: unsupported type %q", i, op.Type)
		}
	}
	return nil
}
