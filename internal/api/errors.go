package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"courtbook/internal/domain"
	"courtbook/internal/logging"
	"courtbook/internal/models"

	"github.com/rs/zerolog"
)

type errorResponse struct {
	Error    string        `json:"error"`
	Code     string        `json:"code,omitempty"`
	Conflict *conflictBody `json:"conflict,omitempty"`
}

type conflictBody struct {
	Kind          domain.ConflictKind `json:"kind"`
	Window        models.Window       `json:"window"`
	ReservationID int64               `json:"reservation_id,omitempty"`
	Reason        string              `json:"reason,omitempty"`
}

var errorCodes = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrInvalidWindow, http.StatusUnprocessableEntity, "invalid_window"},
	{domain.ErrVenueClosed, http.StatusUnprocessableEntity, "venue_closed"},
	{domain.ErrOutsideOperatingHours, http.StatusUnprocessableEntity, "outside_operating_hours"},
	{domain.ErrCutoffExceeded, http.StatusUnprocessableEntity, "cutoff_exceeded"},
	{domain.ErrTooFarInAdvance, http.StatusUnprocessableEntity, "too_far_in_advance"},
	{domain.ErrSlotConflict, http.StatusConflict, "slot_conflict"},
	{domain.ErrAlreadyTerminal, http.StatusConflict, "already_terminal"},
	{domain.ErrConcurrentModification, http.StatusConflict, "concurrent_modification"},
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrForbidden, http.StatusForbidden, "forbidden"},
	{domain.ErrRetryable, http.StatusServiceUnavailable, "retryable"},
}

// statusFor maps an engine error onto an HTTP status and a stable code.
func statusFor(err error) (int, string) {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return e.status, e.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

func (s *HTTPServer) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	logger := logging.FromContext(r.Context(), s.logger)

	if status == http.StatusInternalServerError {
		logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeJSON(w, status, errorResponse{Error: "internal error", Code: code})
		return
	}
	logEvent(logger, status).Err(err).Str("code", code).Msg("request rejected")

	resp := errorResponse{Error: err.Error(), Code: code}
	var conflict *domain.ConflictError
	if errors.As(err, &conflict) {
		resp.Conflict = &conflictBody{
			Kind:          conflict.Kind,
			Window:        conflict.Window,
			ReservationID: conflict.ReservationID,
			Reason:        conflict.Reason,
		}
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, status, resp)
}

func logEvent(logger *zerolog.Logger, status int) *zerolog.Event {
	if status >= http.StatusInternalServerError {
		return logger.Warn()
	}
	return logger.Debug()
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, errorResponse{Error: message})
}
