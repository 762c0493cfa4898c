// Package ledger defines the boundary to the value ledger: the faucet,
// account state and signed transaction submission.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/chainsafe/anchor-orchestrator/pkg/asset"
	"github.com/chainsafe/anchor-orchestrator/pkg/keys"
)

// Gateway is the ledger surface the workflow depends on.
type Gateway interface {
	// RequestFunding asks the faucet to create and fund address.
	RequestFunding(ctx context.Context, address string) error
	// LoadAccount returns the current account state. Returns ErrAccountNotFound
	// while the account does not yet exist on the ledger.
	LoadAccount(ctx context.Context, address string) (*Account, error)
	// Submit signs tx with signer and submits it.
	Submit(ctx context.Context, tx *Transaction, signer *keys.KeyPair) (*Result, error)
}

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrFundingRejected = errors.New("funding rejected")
	ErrNoOperations    = errors.New("transaction has no operations")
)

// Balance is one account balance line.
type Balance struct {
	AssetType   asset.Type      `json:"asset_type"`
	AssetCode   string          `json:"asset_code,omitempty"`
	AssetIssuer string          `json:"asset_issuer,omitempty"`
	Amount      decimal.Decimal `json:"balance"`
}

// Asset returns the balance's asset.
func (b Balance) Asset() (asset.Asset, error) {
	if b.AssetType == asset.TypeNative {
		return asset.Native(), nil
	}
	return asset.NewIssued(b.AssetCode, b.AssetIssuer)
}

// Account is a ledger account snapshot.
type Account struct {
	Address  string
	Sequence int64
	Balances []Balance
}

// NativeBalance returns the balance with asset_type "native", or zero.
func (a *Account) NativeBalance() decimal.Decimal {
	for _, b := range a.Balances {
		if b.AssetType == asset.TypeNative {
			return b.Amount
		}
	}
	return decimal.Zero
}

// Balance returns the balance held in as and whether a line exists for it.
func (a *Account) Balance(as asset.Asset) (decimal.Decimal, bool) {
	for _, b := range a.Balances {
		got, err := b.Asset()
		if err != nil {
			continue
		}
		if got.Equal(as) {
			return b.Amount, true
		}
	}
	return decimal.Zero, false
}

// HasTrustline reports whether the account can hold as.
func (a *Account) HasTrustline(as asset.Asset) bool {
	if as.IsNative() {
		return true
	}
	_, ok := a.Balance(as)
	return ok
}

// Result is the outcome of an accepted transaction.
type Result struct {
	Hash   string
	Ledger int64
}

// SubmitError is returned when the ledger rejects a transaction.
type SubmitError struct {
	Status         int
	TxCode         string
	OperationCodes []string
	Detail         string
}

func (e *SubmitError) Error() string {
	var b strings.Builder
	b.WriteString("transaction rejected")
	if e.TxCode != "" {
		fmt.Fprintf(&b, ": %s", e.TxCode)
	}
	if len(e.OperationCodes) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(e.OperationCodes, ", "))
	}
	if e.Detail != "" && e.TxCode == "" {
		fmt.Fprintf(&b, ": %s", e.Detail)
	}
	return b.String()
}

// IsSubmitError reports whether err carries a ledger rejection.
func IsSubmitError(err error) bool {
	var se *SubmitError
	return errors.As(err, &se)
}
