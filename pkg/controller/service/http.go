package service

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/chainsafe/anchor-orchestrator/pkg/app/errors"
	apphttp "github.com/chainsafe/anchor-orchestrator/pkg/app/http"
	"github.com/chainsafe/anchor-orchestrator/pkg/controller"
)

const maxBodySize = 1 << 16

// AmountRequest is the body of every run command.
type AmountRequest struct {
	Amount string `json:"amount" validate:"max=64"`
}

// HTTP serves the controller API.
type HTTP struct {
	service  Service
	logger   *zap.Logger
	validate *validator.Validate
}

// RegisterRoutes registers the controller routes on r.
func RegisterRoutes(r chi.Router, service Service, logger *zap.Logger) {
	h := &HTTP{
		service:  service,
		logger:   logger,
		validate: validator.New(),
	}

	r.Post("/start", apphttp.HandleError(h.command(controller.CommandStart)))
	r.Post("/repeat-send", apphttp.HandleError(h.command(controller.CommandRepeatSend)))
	r.Post("/reverse-send", apphttp.HandleError(h.command(controller.CommandReverseSend)))
	r.Post("/round-trip", apphttp.HandleError(h.command(controller.CommandRoundTrip)))
	r.Post("/reset", apphttp.HandleError(h.reset))
	r.Get("/status", apphttp.HandleError(h.status))
	r.Get("/events", apphttp.HandleError(h.events))
	r.Get("/parties", apphttp.HandleError(h.parties))
	r.Get("/executions", apphttp.HandleError(h.executions))
	r.Get("/executions/{id}/events", apphttp.HandleError(h.executionEvents))
}

func (h *HTTP) command(cmd controller.Command) apphttp.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
		if err != nil {
			return apperrors.BadRequestError(err, "failed to read request")
		}
		var req AmountRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return apperrors.BadRequestError(err, "invalid JSON")
		}
		if err := h.validate.Struct(&req); err != nil {
			return apperrors.BadRequestError(err, "invalid amount")
		}

		ticket, err := h.service.Submit(r.Context(), cmd, req.Amount)
		if err != nil {
			return err
		}
		apphttp.WriteJSON(w, http.StatusAccepted, ticket)
		return nil
	}
}

func (h *HTTP) reset(w http.ResponseWriter, r *http.Request) error {
	st, err := h.service.Reset(r.Context())
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, st)
	return nil
}

func (h *HTTP) status(w http.ResponseWriter, r *http.Request) error {
	st, err := h.service.Status(r.Context())
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, st)
	return nil
}

func (h *HTTP) events(w http.ResponseWriter, r *http.Request) error {
	since, err := intQuery(r, "since")
	if err != nil {
		return err
	}
	resp, err := h.service.Events(r.Context(), since)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, resp)
	return nil
}

func (h *HTTP) parties(w http.ResponseWriter, r *http.Request) error {
	parties, err := h.service.Parties(r.Context())
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, map[string]any{"parties": parties})
	return nil
}

func (h *HTTP) executions(w http.ResponseWriter, r *http.Request) error {
	limit, err := intQuery(r, "limit")
	if err != nil {
		return err
	}
	execs, err := h.service.ListExecutions(r.Context(), limit)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, map[string]any{"executions": execs})
	return nil
}

func (h *HTTP) executionEvents(w http.ResponseWriter, r *http.Request) error {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return apperrors.BadRequestError(err, "invalid execution id")
	}
	events, err := h.service.ExecutionEvents(r.Context(), id)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, map[string]any{"events": events})
	return nil
}

func intQuery(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.BadRequestError(err, "invalid "+key)
	}
	return v, nil
}
