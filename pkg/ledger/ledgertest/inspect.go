package ledgertest

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/chainsafe/anchor-orchestrator/pkg/asset"
	"github.com/chainsafe/anchor-orchestrator/pkg/ledger"
)

// SetNativeBalance overwrites the native balance of an existing account.
func (l *Ledger) SetNativeBalance(address string, amount decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if acct, ok := l.accounts[address]; ok {
		acct.native = amount
	}
}

// NativeBalance returns the native balance of address.
func (l *Ledger) NativeBalance(address string) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	if acct, ok := l.accounts[address]; ok {
		return acct.native
	}
	return decimal.Zero
}

// AssetBalance returns the tracked balance of as held by address.
func (l *Ledger) AssetBalance(address string, as asset.Asset) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	if acct, ok := l.accounts[address]; ok {
		return acct.lines[as.String()]
	}
	return decimal.Zero
}

// Fundings returns every faucet request in order.
func (l *Ledger) Fundings() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.fundings...)
}

// FundingCount returns the number of faucet requests for address.
func (l *Ledger) FundingCount(address string) int {
	n := 0
	for _, a := range l.Fundings() {
		if a == address {
			n++
		}
	}
	return n
}

// Submissions returns every accepted transaction in order.
func (l *Ledger) Submissions() []Submission {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Submission(nil), l.submissions...)
}

// Operations returns every accepted operation of type t in order.
func (l *Ledger) Operations(t ledger.OperationType) []ledger.Operation {
	var out []ledger.Operation
	for _, sub := range l.Submissions() {
		for _, op := range sub.Operations {
			if op.Type == t {
				out = append(out, op)
			}
		}
	}
	return out
}

// Log returns the ordered call log: "fund <addr>", "load <addr>" and
// "submit <addr> <op types>".
func (l *Ledger) Log() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.log...)
}

// Calls returns the number of gateway calls made.
func (l *Ledger) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.log)
}

func opTypes(ops []ledger.Operation) string {
	names := make([]string, len(ops))
	for i, op := range ops {
		names[i] = string(op.Type)
	}
	return strings.Join(names, ",")
}

func splitKey(key string) (code, issuer string) {
	code, issuer, _ = strings.Cut(key, ":")
	return code, issuer
}
