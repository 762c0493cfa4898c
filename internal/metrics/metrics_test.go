package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/chainsafe/anchor-orchestrator/pkg/party"
	"github.com/chainsafe/anchor-orchestrator/pkg/workflow"
)

func TestWorkflow_ObservePhase(t *testing.T) {
	m := Workflow{}
	okBefore := testutil.ToFloat64(PhasesTotal.WithLabelValues("issue", "succeeded"))
	failBefore := testutil.ToFloat64(PhasesTotal.WithLabelValues("relay", "failed"))
	kindBefore := testutil.ToFloat64(ErrorsTotal.WithLabelValues("relay", "submission"))

	m.ObservePhase(workflow.PhaseIssue, nil, time.Second)
	m.ObservePhase(workflow.PhaseRelay, &workflow.PhaseError{
		Phase: workflow.PhaseRelay,
		Kind:  workflow.ErrSubmission,
		Err:   fmt.Errorf("%w: sender payment: rejected", workflow.ErrSubmission),
	}, time.Second)

	assert.Equal(t, okBefore+1, testutil.ToFloat64(PhasesTotal.WithLabelValues("issue", "succeeded")))
	assert.Equal(t, failBefore+1, testutil.ToFloat64(PhasesTotal.WithLabelValues("relay", "failed")))
	assert.Equal(t, kindBefore+1, testutil.ToFloat64(ErrorsTotal.WithLabelValues("relay", "submission")))
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "not_settled", errorKind(fmt.Errorf("wait: %w", workflow.ErrNotSettled)))
	assert.Equal(t, "other", errorKind(errors.New("boom")))
}

func TestWorkflow_Counters(t *testing.T) {
	m := Workflow{}
	fallbacks := testutil.ToFloat64(OracleFallbacks)
	failed := testutil.ToFloat64(FeeRecoveries.WithLabelValues("sender", "failed"))

	m.IncOracleFallback()
	m.IncFeeRecovery(party.RoleSender, errors.New("faucet down"))

	assert.Equal(t, fallbacks+1, testutil.ToFloat64(OracleFallbacks))
	assert.Equal(t, failed+1, testutil.ToFloat64(FeeRecoveries.WithLabelValues("sender", "failed")))
}

func TestObserver(t *testing.T) {
	before := testutil.ToFloat64(StepEvents.WithLabelValues("fee_reserve", "info"))

	Observer{}.OnStep(workflow.StepEvent{Phase: workflow.PhaseFeeReserve, Informational: true, Success: true, Progress: 40})

	assert.Equal(t, before+1, testutil.ToFloat64(StepEvents.WithLabelValues("fee_reserve", "info")))
	assert.Equal(t, float64(40), testutil.ToFloat64(LastProgress))
}

func TestHTTPMiddleware(t *testing.T) {
	r := chi.NewRouter()
	r.Use(HTTPMiddleware)
	r.Get("/api/v1/executions/{id}/events", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	before := testutil.ToFloat64(HTTPRequests.WithLabelValues("/api/v1/executions/{id}/events", "GET", "418"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/executions/abc/events", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(HTTPRequests.WithLabelValues("/api/v1/executions/{id}/events", "GET", "418")))
}
