package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/parisxmas/OxiDB/OxiLeads/internal/intake"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps pipeline errors to HTTP statuses.
func statusFor(err error) int {
	var (
		verr  *models.ValidationError
		total *models.TotalMaterializationFailure
		mbe   *http.MaxBytesError
	)
	switch {
	case errors.As(err, &mbe):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, intake.ErrMalformed):
		return http.StatusBadRequest
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrLeadNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidTransition), errors.Is(err, models.ErrVersionConflict):
		return http.StatusConflict
	case errors.As(err, &total):
		return http.StatusBadGateway
	case models.IsRetryable(err):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeServiceError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}
