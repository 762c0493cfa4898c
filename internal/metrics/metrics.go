// Package metrics holds the orchestrator's prometheus collectors.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/chainsafe/anchor-orchestrator/pkg/party"
	"github.com/chainsafe/anchor-orchestrator/pkg/workflow"
)

var (
	// PhasesTotal counts phase executions by phase and status
	PhasesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_phases_total",
			Help: "Total number of workflow phase executions",
		},
		[]string{"phase", "status"},
	)

	// PhaseDuration tracks phase processing time
	PhaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orchestrator_phase_duration_seconds",
			Help:    "Workflow phase duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"phase"},
	)

	// ErrorsTotal counts phase failures by error kind
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_errors_total",
			Help: "Total number of workflow errors",
		},
		[]string{"phase", "kind"},
	)

	// OracleFallbacks counts rate lookups that used the fallback rate
	OracleFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orchestrator_oracle_fallbacks_total",
			Help: "Total number of rate lookups that used the fallback rate",
		},
	)

	// FeeRecoveries counts fee-reserve refunds by role and status
	FeeRecoveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_fee_recoveries_total",
			Help: "Total number of fee-reserve faucet refunds",
		},
		[]string{"role", "status"},
	)

	// StepEvents counts emitted step events by phase and outcome
	StepEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_step_events_total",
			Help: "Total number of step events emitted",
		},
		[]string{"phase", "outcome"},
	)

	// LastProgress tracks the progress of the latest run
	LastProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "orchestrator_run_progress",
			Help: "Progress percentage of the most recent run",
		},
	)

	// HTTPRequests counts API requests by route, method and status code
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "code"},
	)

	// HTTPDuration tracks API request latency
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orchestrator_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
)

// Workflow records engine measurements in the package collectors.
type Workflow struct{}

var _ workflow.Metrics = Workflow{}

func (Workflow) ObservePhase(phase workflow.Phase, err error, elapsed time.Duration) {
	PhaseDuration.WithLabelValues(string(phase)).Observe(elapsed.Seconds())
	if err != nil {
		PhasesTotal.WithLabelValues(string(phase), "failed").Inc()
		ErrorsTotal.WithLabelValues(string(phase), errorKind(err)).Inc()
		return
	}
	PhasesTotal.WithLabelValues(string(phase), "succeeded").Inc()
}

func (Workflow) IncOracleFallback() {
	OracleFallbacks.Inc()
}

func (Workflow) IncFeeRecovery(role party.Role, err error) {
	status := "succeeded"
	if err != nil {
		status = "failed"
	}
	FeeRecoveries.WithLabelValues(string(role), status).Inc()
}

var kindNames = map[error]string{
	workflow.ErrValidation: "validation",
	workflow.ErrFunding:    "funding",
	workflow.ErrTrust:      "trust",
	workflow.ErrIssuance:   "issuance",
	workflow.ErrConversion: "conversion",
	workflow.ErrOracle:     "oracle",
	workflow.ErrSubmission: "submission",
	workflow.ErrNotSettled: "not_settled",
}

func errorKind(err error) string {
	for _, kind := range []error{workflow.ErrNotSettled, workflow.ErrConversion} {
		if errors.Is(err, kind) {
			return kindNames[kind]
		}
	}
	var perr *workflow.PhaseError
	if errors.As(err, &perr) {
		if name, ok := kindNames[perr.Kind]; ok {
			return name
		}
	}
	if errors.Is(err, workflow.ErrSubmission) {
		return kindNames[workflow.ErrSubmission]
	}
	return "other"
}

// Observer counts step events and tracks run progress.
type Observer struct{}

var _ workflow.Observer = Observer{}

func (Observer) OnStep(ev workflow.StepEvent) {
	outcome := "failed"
	switch {
	case ev.Informational:
		outcome = "info"
	case ev.Success:
		outcome = "succeeded"
	}
	phase := string(ev.Phase)
	if phase == "" {
		phase = "unknown"
	}
	StepEvents.WithLabelValues(phase, outcome).Inc()
	LastProgress.Set(float64(ev.Progress))
}

// HTTPMiddleware records request counts and latency by chi route pattern.
func HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		HTTPDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
