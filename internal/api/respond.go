package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/schedule"
	"github.com/hackgods/clinic-booking/internal/validation"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	return true
}

// writeServiceError maps domain errors onto HTTP responses. Unknown errors
// are logged and hidden behind a generic 500.
func writeServiceError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation_failed",
			Details: "one or more fields are invalid",
			Fields:  verr.Fields,
		})
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrConsultationTypeNotFound):
		writeError(w, http.StatusNotFound, "consultation_type_not_found", err.Error())
	case errors.Is(err, schedule.ErrRuleNotFound):
		writeError(w, http.StatusNotFound, "working_hours_not_found", err.Error())
	case errors.Is(err, appointment.ErrInvalidToken):
		writeError(w, http.StatusForbidden, "invalid_token", "the link is invalid or has been altered")
	case errors.Is(err, appointment.ErrNotCancellable):
		writeError(w, http.StatusConflict, "not_cancellable", err.Error())
	case errors.Is(err, appointment.ErrDuplicateContact):
		writeError(w, http.StatusConflict, "duplicate_contact", err.Error())
	case errors.Is(err, appointment.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, appointment.ErrStatusConflict):
		writeError(w, http.StatusConflict, "status_conflict", err.Error())
	case errors.Is(err, appointment.ErrCalendarAuthExpired), errors.Is(err, appointment.ErrCalendarNotConnected):
		writeError(w, http.StatusConflict, "calendar_not_connected", "calendar authorization is required")
	case errors.Is(err, appointment.ErrCalendarUnavailable):
		writeError(w, http.StatusServiceUnavailable, "calendar_unavailable", "calendar is temporarily unavailable")
	default:
		logger.Error().Err(err).Msg("unhandled service error")
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
