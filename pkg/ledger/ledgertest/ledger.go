// Package ledgertest provides an in-memory ledger.Gateway for tests.
//
// Accounts, sequence numbers, trustlines and native balances are modelled.
// Offers are recorded but never matched, so issued-asset balances are
// tracked without being enforced.
package ledgertest

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/chainsafe/anchor-orchestrator/pkg/asset"
	"github.com/chainsafe/anchor-orchestrator/pkg/keys"
	"github.com/chainsafe/anchor-orchestrator/pkg/ledger"
)

// DefaultFunding is the native amount the faucet grants per request.
var DefaultFunding = decimal.NewFromInt(10_000)

var feePerOperation = asset.FromStroops(100)

// Submission is a transaction accepted by the fake.
type Submission struct {
	Source     string
	Operations []ledger.Operation
}

// Ledger is a recording fake ledger. The zero value is not usable; call New.
type Ledger struct {
	// FundingAmount is granted per faucet request.
	FundingAmount decimal.Decimal
	// FundingLag is the number of loads that still report a newly funded
	// account as missing.
	FundingLag int

	// OnFund, OnLoad and OnSubmit inject failures before the fake applies a call.
	OnFund   func(address string) error
	OnLoad   func(address string) error
	OnSubmit func(source string, ops []ledger.Operation) error

	mu          sync.Mutex
	accounts    map[string]*account
	lag         map[string]int
	log         []string
	fundings    []string
	submissions []Submission
}

type account struct {
	sequence int64
	native   decimal.Decimal
	lines    map[string]decimal.Decimal // keyed by asset.String()
}

var _ ledger.Gateway = (*Ledger)(nil)

// New returns an empty fake ledger.
func New() *Ledger {
	return &Ledger{
		FundingAmount: DefaultFunding,
		accounts:      make(map[string]*account),
		lag:           make(map[string]int),
	}
}

// RequestFunding creates address if needed and credits FundingAmount.
func (l *Ledger) RequestFunding(_ context.Context, address string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.log = append(l.log, "fund "+address)
	l.fundings = append(l.fundings, address)
	if l.OnFund != nil {
		if err := l.OnFund(address); err != nil {
			return err
		}
	}

	acct, ok := l.accounts[address]
	if !ok {
		acct = &account{sequence: 1 << 32, lines: map[string]decimal.Decimal{}}
		l.accounts[address] = acct
		l.lag[address] = l.FundingLag
	}
	acct.native = acct.native.Add(l.FundingAmount)
	return nil
}

// LoadAccount returns a snapshot of the account.
func (l *Ledger) LoadAccount(_ context.Context, address string) (*ledger.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.log = append(l.log, "load "+address)
	if l.OnLoad != nil {
		if err := l.OnLoad(address); err != nil {
			return nil, err
		}
	}

	acct, ok := l.accounts[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, address)
	}
	if l.lag[address] > 0 {
		l.lag[address]--
		return nil, fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, address)
	}
	return l.snapshot(address, acct), nil
}

func (l *Ledger) snapshot(address string, acct *account) *ledger.Account {
	out := &ledger.Account{Address: address, Sequence: acct.sequence}
	for key, amt := range acct.lines {
		code, issuer := splitKey(key)
		as, _ := asset.NewIssued(code, issuer)
		out.Balances = append(out.Balances, ledger.Balance{
			AssetType:   as.Type(),
			AssetCode:   code,
			AssetIssuer: issuer,
			Amount:      amt,
		})
	}
	out.Balances = append(out.Balances, ledger.Balance{AssetType: asset.TypeNative, Amount: acct.native})
	return out
}

// Submit validates and applies tx atomically.
func (l *Ledger) Submit(_ context.Context, tx *ledger.Transaction, signer *keys.KeyPair) (*ledger.Result, error) {
	if err := tx.Validate(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	source := tx.Source.Address
	l.log = append(l.log, "submit "+source+" "+opTypes(tx.Operations))
	if l.OnSubmit != nil {
		if err := l.OnSubmit(source, tx.Operations); err != nil {
			return nil, err
		}
	}

	if signer == nil || signer.Address() != source {
		return nil, reject("tx_bad_auth")
	}
	acct, ok := l.accounts[source]
	if !ok {
		return nil, reject("tx_no_source_account")
	}
	if tx.Source.Sequence != acct.sequence {
		return nil, reject("tx_bad_seq")
	}
	fee := feePerOperation.Mul(decimal.NewFromInt(int64(len(tx.Operations))))
	if acct.native.LessThan(fee) {
		return nil, reject("tx_insufficient_balance")
	}

	staged := l.clone()
	staged[source].native = staged[source].native.Sub(fee)
	codes := make([]string, len(tx.Operations))
	failed := false
	for i, op := range tx.Operations {
		codes[i] = apply(staged, source, op)
		if codes[i] != "op_success" {
			failed = true
		}
	}
	if failed {
		return nil, &ledger.SubmitError{Status: 400, TxCode: "tx_failed", OperationCodes: codes}
	}

	staged[source].sequence++
	l.accounts = staged
	tx.Source.Sequence++
	l.submissions = append(l.submissions, Submission{
		Source:     source,
		Operations: append([]ledger.Operation(nil), tx.Operations...),
	})
	return &ledger.Result{
		Hash:   fmt.Sprintf("tx-%d", len(l.submissions)),
		Ledger: int64(len(l.submissions)),
	}, nil
}

func apply(accounts map[string]*account, source string, op ledger.Operation) string {
	if op.Source != "" {
		source = op.Source
	}
	src := accounts[source]
	if src == nil {
		return "op_no_source_account"
	}

	switch op.Type {
	case ledger.OpChangeTrust:
		if _, ok := src.lines[op.Asset.String()]; !ok {
			src.lines[op.Asset.String()] = decimal.Zero
		}
	case ledger.OpPayment:
		dst := accounts[op.Destination]
		if dst == nil {
			return "op_no_destination"
		}
		if op.Asset.IsNative() {
			if src.native.LessThan(op.Amount) {
				return "op_underfunded"
			}
			src.native = src.native.Sub(op.Amount)
			dst.native = dst.native.Add(op.Amount)
			return "op_success"
		}
		key := op.Asset.String()
		if source != op.Asset.Issuer() {
			if _, ok := src.lines[key]; !ok {
				return "op_src_no_trust"
			}
			src.lines[key] = src.lines[key].Sub(op.Amount)
		}
		if op.Destination != op.Asset.Issuer() {
			if _, ok := dst.lines[key]; !ok {
				return "op_no_trust"
			}
			dst.lines[key] = dst.lines[key].Add(op.Amount)
		}
	case ledger.OpManageBuyOffer, ledger.OpManageSellOffer:
		if !holds(src, source, op.Selling) {
			return "op_sell_no_trust"
		}
		if !holds(src, source, op.Buying) {
			return "op_buy_no_trust"
		}
	}
	return "op_success"
}

func holds(acct *account, address string, as asset.Asset) bool {
	if as.IsNative() || as.Issuer() == address {
		return true
	}
	_, ok := acct.lines[as.String()]
	return ok
}

func (l *Ledger) clone() map[string]*account {
	out := make(map[string]*account, len(l.accounts))
	for addr, acct := range l.accounts {
		lines := make(map[string]decimal.Decimal, len(acct.lines))
		for k, v := range acct.lines {
			lines[k] = v
		}
		out[addr] = &account{sequence: acct.sequence, native: acct.native, lines: lines}
	}
	return out
}

func reject(code string) error {
	return &ledger.SubmitError{Status: 400, TxCode: code}
}
