package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsafe/anchor-orchestrator/pkg/asset"
	"github.com/chainsafe/anchor-orchestrator/pkg/ledger"
)

func completedRun(t *testing.T, h *harness) Run {
	t.Helper()
	run, err := h.engine.Execute(context.Background(), h.rc, NewRun(dec("10")))
	require.NoError(t, err)
	h.events = nil
	return run
}

func TestReverseSend(t *testing.T) {
	h := newHarness(t)
	run := completedRun(t, h)
	reg := h.rc.Registry

	require.NoError(t, h.engine.ReverseSend(context.Background(), h.rc, run, dec("5")))

	subs := h.ledger.Submissions()
	last := subs[len(subs)-1]
	assert.Equal(t, reg.Recipient().Address(), last.Source)
	require.Len(t, last.Operations, 1)
	op := last.Operations[0]
	assert.Equal(t, ledger.OpPayment, op.Type)
	assert.Equal(t, reg.Intermediary().Address(), op.Destination)
	assert.True(t, op.Asset.Equal(h.rc.Asset))
	assert.Equal(t, "5.0000000", asset.Format(op.Amount))

	require.Len(t, h.events, 1)
	assert.True(t, h.events[0].Success)
	assert.Equal(t, 100, h.events[0].Progress)
	assert.Equal(t, PhaseReverseSend, h.events[0].Phase)
}

func TestRepeatSend(t *testing.T) {
	h := newHarness(t)
	run := completedRun(t, h)
	reg := h.rc.Registry
	before := h.ledger.AssetBalance(reg.Recipient().Address(), h.rc.Asset)

	require.NoError(t, h.engine.RepeatSend(context.Background(), h.rc, run, dec("2.5")))

	after := h.ledger.AssetBalance(reg.Recipient().Address(), h.rc.Asset)
	assert.True(t, after.Sub(before).Equal(dec("2.5")))
	require.Len(t, h.events, 1)
	assert.Equal(t, "intermediary sent 2.5000000 USDC to recipient", h.events[0].Label)
}

func TestRepeatSend_Rejected(t *testing.T) {
	h := newHarness(t)
	run := completedRun(t, h)
	h.ledger.OnSubmit = func(string, []ledger.Operation) error {
		return &ledger.SubmitError{Status: 400, TxCode: "tx_failed", OperationCodes: []string{"op_underfunded"}}
	}

	err := h.engine.RepeatSend(context.Background(), h.rc, run, dec("1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSubmission)

	require.Len(t, h.events, 1)
	assert.False(t, h.events[0].Success)
	assert.Equal(t, 100, h.events[0].Progress)
}

func TestRoundTripSwap(t *testing.T) {
	h := newHarness(t)
	run := completedRun(t, h)
	sender := h.rc.Registry.Sender().Address()
	issuer := h.rc.Registry.Issuer().Address()
	offset := len(h.ledger.Submissions())

	require.NoError(t, h.engine.RoundTripSwap(context.Background(), h.rc, run, dec("4")))

	subs := h.ledger.Submissions()[offset:]
	require.Len(t, subs, 4)
	assert.Equal(t, []string{issuer, sender, issuer, sender},
		[]string{subs[0].Source, subs[1].Source, subs[2].Source, subs[3].Source})

	leg1 := subs[1].Operations[0]
	assert.Equal(t, ledger.OpManageSellOffer, leg1.Type)
	assert.True(t, leg1.Selling.Equal(h.rc.Asset))
	assert.Equal(t, "4.0000000", asset.Format(leg1.Amount))
	assert.Equal(t, "10.0000000", asset.Format(leg1.Price))

	leg2 := subs[3].Operations[0]
	assert.True(t, leg2.Selling.IsNative())
	assert.Equal(t, "0.4000000", asset.Format(leg2.Amount))
	assert.Equal(t, "0.1000000", asset.Format(leg2.Price))

	require.Len(t, h.events, 2)
	for _, ev := range h.events {
		assert.True(t, ev.Success)
		assert.Equal(t, 100, ev.Progress)
		assert.Equal(t, PhaseRoundTrip, ev.Phase)
	}
}
