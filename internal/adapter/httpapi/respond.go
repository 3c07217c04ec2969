package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/guillermoBallester/asksql/internal/core/domain"
	"github.com/guillermoBallester/asksql/internal/core/service"
)

type errorBody struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
	SQL    string `json:"sql,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrSafetyViolation),
		errors.Is(err, domain.ErrEmptyQuery),
		errors.Is(err, domain.ErrInvalidSavedQuery),
		errors.Is(err, domain.ErrQueryFailed),
		errors.Is(err, service.ErrEmptyQuestion),
		errors.Is(err, service.ErrEmptyTableName):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, service.ErrLanguageModel):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// respondError writes err with its mapped status. Server-side failures are
// logged and their details withheld from the client.
func respondError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, sql string) {
	status := statusFor(err)
	body := errorBody{Error: err.Error(), SQL: sql}

	var v *domain.SafetyViolation
	if errors.As(err, &v) {
		body.Reason = v.Reason
	}

	switch {
	case status == http.StatusBadGateway:
		logger.ErrorContext(r.Context(), "language model call failed", slog.String("error", err.Error()))
		body.Error = service.ErrLanguageModel.Error()
	case status >= http.StatusInternalServerError && status != http.StatusGatewayTimeout:
		logger.ErrorContext(r.Context(), "request failed",
			slog.String("url.path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		body.Error = "internal error"
	}
	respondJSON(w, status, body)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
