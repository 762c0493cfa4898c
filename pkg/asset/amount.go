package asset

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Precision is the number of decimal places the ledger keeps for amounts.
const Precision = 7

var (
	ErrInvalidAmount = errors.New("invalid amount")

	stroopsPerUnit = decimal.New(1, Precision)
	maxAmount      = decimal.New(math.MaxInt64, -Precision)
)

// ParseAmount parses a decimal amount string.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return d, nil
}

// Round rounds d to ledger precision.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Precision)
}

// Format renders d with exactly seven decimal places.
func Format(d decimal.Decimal) string {
	return d.StringFixed(Precision)
}

// ToStroops converts d to the ledger's int64 base unit.
func ToStroops(d decimal.Decimal) (int64, error) {
	if d.IsNegative() || d.GreaterThan(maxAmount) {
		return 0, fmt.Errorf("%w: %s out of range", ErrInvalidAmount, d.String())
	}
	if !d.Equal(Round(d)) {
		return 0, fmt.Errorf("%w: %s has more than %d decimals", ErrInvalidAmount, d.String(), Precision)
	}
	return d.Mul(stroopsPerUnit).IntPart(), nil
}

// FromStroops converts base units back to a decimal amount.
func FromStroops(v int64) decimal.Decimal {
	return decimal.New(v, -Precision)
}
