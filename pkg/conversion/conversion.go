// Package conversion is the client for the on-ramp/off-ramp conversion relay.
package conversion

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Gateway converts between the off-ledger USD amount and the on-ledger asset amount.
type Gateway interface {
	// OnRamp turns usd into the issued asset and returns the converted amount.
	OnRamp(ctx context.Context, usd decimal.Decimal) (decimal.Decimal, error)
	// OffRamp turns usdc back into USD and returns the converted amount.
	OffRamp(ctx context.Context, usdc decimal.Decimal) (decimal.Decimal, error)
}

// Direction names a conversion leg.
type Direction string

const (
	DirectionOnRamp  Direction = "onramp"
	DirectionOffRamp Direction = "offramp"
)

var ErrMalformedResponse = errors.New("malformed conversion response")

// Error is returned when the relay answers with a non-2xx status.
type Error struct {
	Direction Direction
	Status    int
	Message   string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s failed: status %d", e.Direction, e.Status)
	}
	return fmt.Sprintf("%s failed: status %d: %s", e.Direction, e.Status, e.Message)
}

// OnRampRequest is the /onramp request body.
type OnRampRequest struct {
	USDAmount decimal.Decimal `json:"usdAmount"`
}

// OnRampResponse is the /onramp response body.
type OnRampResponse struct {
	USDCAmount decimal.NullDecimal `json:"usdcAmount"`
}

// OffRampRequest is the /offramp request body.
type OffRampRequest struct {
	USDCAmount decimal.Decimal `json:"usdcAmount"`
}

// OffRampResponse is the /offramp response body.
type OffRampResponse struct {
	USDAmount decimal.NullDecimal `json:"usdAmount"`
}

// ErrorResponse is the body of a failed relay call.
type ErrorResponse struct {
	Error string `json:"error"`
}
