package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPhase1Complete, StatusPhase2InProgress, true},
		{StatusPhase1Complete, StatusPhase2Complete, false},
		{StatusPhase1Complete, StatusError, false},
		{StatusPhase2InProgress, StatusPhase2Complete, true},
		{StatusPhase2InProgress, StatusError, true},
		{StatusPhase2InProgress, StatusPhase1Complete, false},
		{StatusPhase2Complete, StatusPhase2InProgress, false},
		{StatusError, StatusPhase1Complete, false},
		{StatusError, StatusPhase2InProgress, false},
		{StatusError, StatusError, true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s->%s", tt.from, tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
	assert.True(t, StatusError.CanReset())
	assert.False(t, StatusPhase2Complete.CanReset())
	assert.False(t, Status("DRAFT").Valid())
}

func TestLeadPatch_Apply(t *testing.T) {
	now := time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC)

	t.Run("rejects illegal move", func(t *testing.T) {
		l := &Lead{Status: StatusPhase1Complete, Version: 1}
		err := LeadPatch{Status: StatusPhase2Complete}.Apply(l, now)
		var terr *TransitionError
		require.ErrorAs(t, err, &terr)
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.Equal(t, StatusPhase1Complete, l.Status)
		assert.Equal(t, 1, l.Version)
	})

	t.Run("reset only from error", func(t *testing.T) {
		l := &Lead{Status: StatusError, Version: 3, RetryCount: 2}
		require.NoError(t, LeadPatch{Status: StatusPhase1Complete, Reset: true, ErrorDetails: StringPtr("")}.Apply(l, now))
		assert.Equal(t, StatusPhase1Complete, l.Status)
		assert.Equal(t, 4, l.Version)
		assert.Equal(t, 2, l.RetryCount)

		done := &Lead{Status: StatusPhase2Complete}
		assert.ErrorIs(t, LeadPatch{Status: StatusPhase1Complete, Reset: true}.Apply(done, now), ErrInvalidTransition)
	})

	t.Run("column only", func(t *testing.T) {
		l := &Lead{Status: StatusPhase2InProgress, Version: 1}
		require.NoError(t, LeadPatch{Phase2FolderID: StringPtr("f2"), RetryCount: IntPtr(1)}.Apply(l, now))
		assert.Equal(t, StatusPhase2InProgress, l.Status)
		assert.Equal(t, "f2", l.Phase2FolderID)
		assert.Equal(t, 1, l.RetryCount)
		assert.Equal(t, now, l.LastUpdated)
	})
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(fmt.Errorf("update: %w", ErrVersionConflict)))
	assert.True(t, IsRetryable(NewExternalServiceError("copy", context.DeadlineExceeded)))
	assert.False(t, IsRetryable(NewExternalServiceError("copy", errors.New("forbidden"))))
	assert.False(t, IsRetryable(&ValidationError{Field: "lead_id", Msg: "required"}))

	inner := NewExternalServiceError("copy", context.DeadlineExceeded)
	assert.Same(t, inner, NewExternalServiceError("outer", inner))
}

func TestGeneratedDocument_MarshalJSON(t *testing.T) {
	ok, err := json.Marshal(GeneratedDocument{ID: "d1", Name: "Acme - NDA", ViewLink: "https://docs/d1", Folder: "External"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"d1","name":"Acme - NDA","viewLink":"https://docs/d1"}`, string(ok))

	failed, err := json.Marshal(GeneratedDocument{Name: "Acme - NDA", Err: errors.New("quota")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"quota","name":"Acme - NDA"}`, string(failed))
}
