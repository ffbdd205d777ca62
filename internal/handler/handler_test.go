package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/parisxmas/OxiDB/OxiLeads/internal/intake"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/models"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"malformed", fmt.Errorf("%w: eof", intake.ErrMalformed), http.StatusBadRequest},
		{"too large", &http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge},
		{"validation", &models.ValidationError{Field: "lead_id", Msg: "required"}, http.StatusUnprocessableEntity},
		{"not found", fmt.Errorf("get: %w", models.ErrLeadNotFound), http.StatusNotFound},
		{"transition", &models.TransitionError{From: models.StatusPhase2Complete, To: models.StatusPhase2InProgress}, http.StatusConflict},
		{"version", models.ErrVersionConflict, http.StatusConflict},
		{"total", &models.TotalMaterializationFailure{Attempted: 2, Err: errors.New("quota")}, http.StatusBadGateway},
		{"retryable", &models.ExternalServiceError{Op: "copy", Retryable: true, Err: errors.New("503")}, http.StatusServiceUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestHealth(t *testing.T) {
	h := NewHealthHandler(map[string]Check{
		"store": func(context.Context) error { return nil },
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})
	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"degraded","checks":{"store":"ok","redis":"connection refused"}}`, rec.Body.String())
}
