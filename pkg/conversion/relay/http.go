// Package relay signs conversion requests and forwards them to the sandbox
// exchange. It serves /onramp, /offramp and /test.
package relay

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	apperrors "github.com/chainsafe/anchor-orchestrator/pkg/app/errors"
	apphttp "github.com/chainsafe/anchor-orchestrator/pkg/app/http"
	"github.com/chainsafe/anchor-orchestrator/pkg/conversion"
)

const defaultRequestTimeout = 60 * time.Second

// HTTP exposes the exchange as the conversion gateway.
type HTTP struct {
	exchange  Exchanger
	productID string
	logger    *zap.Logger
}

// RegisterRoutes registers the relay endpoints on r.
func RegisterRoutes(r chi.Router, exchange Exchanger, productID string, logger *zap.Logger) {
	h := &HTTP{
		exchange:  exchange,
		productID: productID,
		logger:    logger,
	}

	r.Post("/onramp", apphttp.HandleError(h.onRamp))
	r.Post("/offramp", apphttp.HandleError(h.offRamp))
	r.Get("/test", apphttp.HandleError(h.test))
}

// NewRouter serves the relay endpoints at the root and under /coinbase.
func NewRouter(exchange Exchanger, productID string, allowedOrigins []string, logger *zap.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(defaultRequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	RegisterRoutes(r, exchange, productID, logger)
	r.Route("/coinbase", func(r chi.Router) {
		RegisterRoutes(r, exchange, productID, logger)
	})
	return r
}

func (h *HTTP) onRamp(w http.ResponseWriter, r *http.Request) error {
	var req conversion.OnRampRequest
	if err := decode(r, &req); err != nil {
		return err
	}
	if !req.USDAmount.IsPositive() {
		return apperrors.BadRequestError(nil, "usdAmount must be positive")
	}

	fill, err := h.exchange.PlaceOrder(r.Context(), BuyFunds(h.productID, req.USDAmount))
	if err != nil {
		return h.upstream(w, err, "On-ramp failed")
	}
	apphttp.WriteJSON(w, http.StatusOK, conversion.OnRampResponse{USDCAmount: fill.FilledSize})
	return nil
}

func (h *HTTP) offRamp(w http.ResponseWriter, r *http.Request) error {
	var req conversion.OffRampRequest
	if err := decode(r, &req); err != nil {
		return err
	}
	if !req.USDCAmount.IsPositive() {
		return apperrors.BadRequestError(nil, "usdcAmount must be positive")
	}

	fill, err := h.exchange.PlaceOrder(r.Context(), SellSize(h.productID, req.USDCAmount))
	if err != nil {
		return h.upstream(w, err, "Off-ramp failed")
	}
	apphttp.WriteJSON(w, http.StatusOK, conversion.OffRampResponse{USDAmount: fill.FilledFunds})
	return nil
}

func (h *HTTP) test(w http.ResponseWriter, r *http.Request) error {
	data, err := h.exchange.Accounts(r.Context())
	if err != nil {
		return h.upstream(w, err, "Test request failed")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
	return nil
}

// upstream forwards an exchange rejection with its status. Transport
// failures become dependency errors.
func (h *HTTP) upstream(w http.ResponseWriter, err error, fallback string) error {
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		h.logger.Error("exchange call failed", zap.Error(err))
		return apperrors.DependencyError(err, err.Error())
	}
	h.logger.Warn("exchange rejected request", zap.Int("status", ue.Status), zap.String("body", ue.Body))
	msg := ue.Body
	if msg == "" {
		msg = fallback
	}
	var body struct {
		Message string `json:"message"`
	}
	if json.Unmarshal([]byte(ue.Body), &body) == nil && body.Message != "" {
		msg = body.Message
	}
	apphttp.WriteJSON(w, ue.Status, conversion.ErrorResponse{Error: msg})
	return nil
}

func decode(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		return apperrors.BadRequestError(err, "failed to read request")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return apperrors.BadRequestError(err, "invalid JSON")
	}
	return nil
}
