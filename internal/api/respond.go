package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hackgods/clinic-appointment-scheduling/internal/appointment"
	"github.com/hackgods/clinic-appointment-scheduling/internal/auth"
	"github.com/hackgods/clinic-appointment-scheduling/pkg/logging"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// writeServiceError maps domain failures onto HTTP statuses. Internal errors
// are logged and never echoed to the client.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *logging.Logger, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", err.Error())
		return
	case errors.Is(err, auth.ErrWeakPassword):
		writeError(w, http.StatusUnprocessableEntity, "weak_password", err.Error())
		return
	case errors.Is(err, auth.ErrIncorrectPassword):
		writeError(w, http.StatusUnprocessableEntity, "incorrect_password", err.Error())
		return
	case errors.Is(err, auth.ErrPasswordMismatch):
		writeError(w, http.StatusUnprocessableEntity, "password_mismatch", err.Error())
		return
	}

	code := appointment.Code(err)
	switch appointment.KindOf(err) {
	case appointment.KindNotFound:
		writeError(w, http.StatusNotFound, code, err.Error())
	case appointment.KindValidation:
		writeError(w, http.StatusUnprocessableEntity, code, err.Error())
	case appointment.KindConflict, appointment.KindState:
		writeError(w, http.StatusConflict, code, err.Error())
	case appointment.KindForbidden:
		writeError(w, http.StatusForbidden, code, err.Error())
	default:
		logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", GetRequestID(r.Context()),
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected error, please retry")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	return true
}
