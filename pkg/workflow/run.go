package workflow

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/chainsafe/anchor-orchestrator/pkg/asset"
	"github.com/chainsafe/anchor-orchestrator/pkg/party"
)

// Phase names an orchestration step.
type Phase string

const (
	PhaseValidate    Phase = "validate"
	PhaseSeed        Phase = "seed"
	PhaseTrust       Phase = "establish_trust"
	PhaseIssue       Phase = "issue"
	PhaseConvertIn   Phase = "convert_in"
	PhaseRateLookup  Phase = "rate_lookup"
	PhaseBridge      Phase = "bridge"
	PhaseRelay       Phase = "relay"
	PhaseBridgeBack  Phase = "bridge_back"
	PhaseDownstream  Phase = "downstream_send"
	PhaseConvertOut  Phase = "convert_out"
	PhaseFeeReserve  Phase = "fee_reserve"
	PhaseRepeatSend  Phase = "repeat_send"
	PhaseReverseSend Phase = "reverse_send"
	PhaseRoundTrip   Phase = "round_trip"
)

// Checkpoints are the progress reached when each workflow phase succeeds.
var Checkpoints = map[Phase]int{
	PhaseSeed:       10,
	PhaseTrust:      20,
	PhaseIssue:      30,
	PhaseConvertIn:  40,
	PhaseRateLookup: 50,
	PhaseBridge:     60,
	PhaseRelay:      70,
	PhaseBridgeBack: 80,
	PhaseDownstream: 90,
	PhaseConvertOut: 100,
}

// Run is the mutable state of one workflow execution. Only the Engine changes it.
type Run struct {
	ID              uuid.UUID       `json:"id" yaml:"id"`
	RequestedAmount decimal.Decimal `json:"requested_amount" yaml:"requested_amount"`
	// Amount is authoritative after Convert-In replaces the requested amount.
	Amount        decimal.Decimal `json:"amount" yaml:"amount"`
	Phase         Phase           `json:"phase" yaml:"phase"`
	Rate          decimal.Decimal `json:"rate" yaml:"rate"`
	RateFallback  bool            `json:"rate_fallback" yaml:"rate_fallback"`
	NativeAmount  decimal.Decimal `json:"native_amount" yaml:"native_amount"`
	Price         decimal.Decimal `json:"price" yaml:"price"`
	InversePrice  decimal.Decimal `json:"inverse_price" yaml:"inverse_price"`
	Progress      int             `json:"progress" yaml:"progress"`
	OffRampAmount decimal.Decimal `json:"offramp_amount" yaml:"offramp_amount"`
	Completed     bool            `json:"completed" yaml:"completed"`
	StartedAt     time.Time       `json:"started_at" yaml:"started_at"`
}

// NewRun creates a run for the requested amount.
func NewRun(amount decimal.Decimal) Run {
	return Run{
		ID:              uuid.New(),
		RequestedAmount: amount,
		Amount:          amount,
		StartedAt:       time.Now().UTC(),
	}
}

// RunContext carries the per-run collaborators every phase needs.
type RunContext struct {
	Registry *party.Registry
	Asset    asset.Asset
	Observer Observer
}

// NewRunContext binds the issued asset code to the registry's issuer.
func NewRunContext(reg *party.Registry, assetCode string, obs Observer) (*RunContext, error) {
	if reg == nil {
		return nil, fmt.Errorf("registry is required")
	}
	as, err := asset.NewIssued(assetCode, reg.Issuer().Address())
	if err != nil {
		return nil, fmt.Errorf("invalid asset: %w", err)
	}
	if obs == nil {
		obs = NopObserver{}
	}
	return &RunContext{Registry: reg, Asset: as, Observer: obs}, nil
}
