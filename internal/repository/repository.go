// Package repository persists leads. Every backend validates status
// transitions through models.LeadPatch and bumps a version counter so
// concurrent writers can detect lost updates.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/parisxmas/OxiDB/OxiLeads/internal/fields"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/logging"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/models"
)

// LeadStore is the lead lifecycle store.
type LeadStore interface {
	// EnsureHeader creates the table, header row or schema if missing.
	EnsureHeader(ctx context.Context) error
	CreateLead(ctx context.Context, n models.NewLead) (*models.Lead, error)
	// GetLeadByID returns models.ErrLeadNotFound for unknown ids.
	GetLeadByID(ctx context.Context, id string) (*models.Lead, error)
	// FindLeadByFolder returns the lead created for a phase-one case
	// folder, or models.ErrLeadNotFound.
	FindLeadByFolder(ctx context.Context, phase1FolderID string) (*models.Lead, error)
	UpdateLeadStatus(ctx context.Context, id string, patch models.LeadPatch) (*models.Lead, error)
	// UpdateIfVersion applies patch only when the stored version equals
	// version, otherwise it returns models.ErrVersionConflict.
	UpdateIfVersion(ctx context.Context, id string, version int, patch models.LeadPatch) (*models.Lead, error)
}

// Columns is the record layout shared by every backend.
var Columns = []string{
	"lead_id",
	"status",
	"business_legal_name",
	"phase1_folder_id",
	"phase2_folder_id",
	"phase1_submission_data_json",
	"phase2_submission_data_json",
	"created_at",
	"last_updated",
	"error_details",
	"retry_count",
	"version",
}

const timeLayout = time.RFC3339

// maxErrorDetails keeps error text within a spreadsheet cell.
const maxErrorDetails = 2000

// RecordError moves a lead to ERROR with the cause and an incremented retry
// count. It is best effort: failures are logged, never returned, so the
// caller's original error stays the one reported.
func RecordError(ctx context.Context, s LeadStore, log *logging.Logger, id string, cause error) {
	if id == "" || cause == nil {
		return
	}
	for attempt := 0; attempt < 3; attempt++ {
		l, err := s.GetLeadByID(ctx, id)
		if err != nil {
			log.Error(ctx, "record error: load lead", zap.String("lead", id), zap.Error(err), zap.NamedError("cause", cause))
			return
		}
		details := cause.Error()
		if len(details) > maxErrorDetails {
			details = details[:maxErrorDetails]
		}
		_, err = s.UpdateIfVersion(ctx, id, l.Version, models.LeadPatch{
			Status:       models.StatusError,
			ErrorDetails: models.StringPtr(details),
			RetryCount:   models.IntPtr(l.RetryCount + 1),
		})
		if errors.Is(err, models.ErrVersionConflict) {
			continue
		}
		if err != nil {
			log.Error(ctx, "record error: update lead", zap.String("lead", id), zap.Error(err), zap.NamedError("cause", cause))
		}
		return
	}
	log.Error(ctx, "record error: lead kept changing", zap.String("lead", id), zap.NamedError("cause", cause))
}

// encodeSnapshot serializes a submission snapshot with sorted keys.
func encodeSnapshot(m map[string]string) string {
	if len(m) == 0 {
		return "{}"
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// decodeSnapshot never fails: unparseable text yields an empty map and
// non-string values are flattened the way the normalizer flattens them.
func decodeSnapshot(s string) (map[string]string, error) {
	out := map[string]string{}
	if s == "" {
		return out, nil
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return out, fmt.Errorf("decode snapshot: %w", err)
	}
	for k, v := range raw {
		out[k] = fields.Stringify(v)
	}
	return out, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
