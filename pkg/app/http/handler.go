// Package http holds the error-returning handler adapter and the server
// lifecycle shared by the API and relay processes.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/chainsafe/anchor-orchestrator/pkg/app/errors"
)

// HandlerFunc is an http.HandlerFunc that reports failure by returning an error.
type HandlerFunc func(http.ResponseWriter, *http.Request) error

// ErrorResponse is the JSON body written for a failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// HandleError adapts h to http.HandlerFunc, rendering a returned error with
// DefaultErrorHandler.
//
//	r.Post("/start", apphttp.HandleError(h.command(controller.CommandStart)))
func HandleError(h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			DefaultErrorHandler(w, err)
		}
	}
}

// DefaultErrorHandler writes err as an ErrorResponse. A ServiceError keeps its
// category status and message; an expired request deadline maps to 504; any
// other error is reported as a 500 without its text.
func DefaultErrorHandler(w http.ResponseWriter, err error) {
	var svcErr *apperrors.ServiceError
	switch {
	case errors.As(err, &svcErr):
		WriteJSON(w, svcErr.StatusCode(), ErrorResponse{Error: svcErr.Message, Code: svcErr.StatusCode()})
	case errors.Is(err, context.DeadlineExceeded):
		WriteJSON(w, http.StatusGatewayTimeout, ErrorResponse{Error: "request timed out", Code: http.StatusGatewayTimeout})
	default:
		WriteJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Unexpected Service Error", Code: http.StatusInternalServerError})
	}
}

// WriteJSON writes v as a JSON body with status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
