package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parisxmas/OxiDB/OxiLeads/internal/logging"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/models"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/provider"
)

// SheetLeadRepo keeps one lead per row of a provider.Table. Row 1 is the
// header. Lookups scan the whole sheet.
type SheetLeadRepo struct {
	table   provider.Table
	sheetID string
	rng     provider.Range
	log     *logging.Logger
	now     func() time.Time
}

// NewSheetLeadRepo stores leads in sheetName of sheetID, columns A to L.
func NewSheetLeadRepo(t provider.Table, sheetID, sheetName string, log *logging.Logger) *SheetLeadRepo {
	return &SheetLeadRepo{
		table:   t,
		sheetID: sheetID,
		rng:     provider.Range{Sheet: sheetName, FirstCol: 1, LastCol: len(Columns)},
		log:     log,
		now:     time.Now,
	}
}

func (r *SheetLeadRepo) EnsureHeader(ctx context.Context) error {
	rows, err := r.table.ReadRows(ctx, r.sheetID, r.rng.Row(1))
	if err != nil {
		return &models.RecordStoreError{Op: "read header", Err: err}
	}
	if len(rows) > 0 && slices.Equal(rows[0], Columns) {
		return nil
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		// Older sheets lack trailing columns; the known prefix must match.
		if !slices.Equal(rows[0], Columns[:min(len(rows[0]), len(Columns))]) {
			return &models.RecordStoreError{Op: "read header", Err: fmt.Errorf("unexpected header %v", rows[0])}
		}
		r.log.Info(ctx, "extending lead sheet header", zap.Int("from", len(rows[0])), zap.Int("to", len(Columns)))
	}
	if err := r.table.UpdateRow(ctx, r.sheetID, r.rng.Row(1), Columns); err != nil {
		return &models.RecordStoreError{Op: "write header", Err: err}
	}
	return nil
}

func (r *SheetLeadRepo) CreateLead(ctx context.Context, n models.NewLead) (*models.Lead, error) {
	if err := r.EnsureHeader(ctx); err != nil {
		return nil, err
	}
	now := r.now().UTC().Truncate(time.Second)
	l := &models.Lead{
		ID:                uuid.NewString(),
		Status:            models.StatusPhase1Complete,
		BusinessLegalName: n.BusinessLegalName,
		Phase1FolderID:    n.Phase1FolderID,
		Phase1Data:        cloneMap(n.Phase1Data),
		Phase2Data:        map[string]string{},
		CreatedAt:         now,
		LastUpdated:       now,
		Version:           1,
	}
	if err := r.table.AppendRow(ctx, r.sheetID, r.rng.String(), r.toRow(l)); err != nil {
		return nil, &models.RecordStoreError{Op: "append", LeadID: l.ID, Err: err}
	}
	return l, nil
}

func (r *SheetLeadRepo) GetLeadByID(ctx context.Context, id string) (*models.Lead, error) {
	l, _, _, err := r.find(ctx, func(row []string) bool { return cell(row, 0) == id })
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (r *SheetLeadRepo) FindLeadByFolder(ctx context.Context, phase1FolderID string) (*models.Lead, error) {
	if phase1FolderID == "" {
		return nil, models.ErrLeadNotFound
	}
	l, _, _, err := r.find(ctx, func(row []string) bool { return cell(row, 3) == phase1FolderID })
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (r *SheetLeadRepo) UpdateLeadStatus(ctx context.Context, id string, patch models.LeadPatch) (*models.Lead, error) {
	l, rowNum, _, err := r.find(ctx, func(row []string) bool { return cell(row, 0) == id })
	if err != nil {
		return nil, err
	}
	if err := patch.Apply(l, r.now().UTC().Truncate(time.Second)); err != nil {
		return nil, err
	}
	if err := r.table.UpdateRow(ctx, r.sheetID, r.rng.Row(rowNum), r.toRow(l)); err != nil {
		return nil, &models.RecordStoreError{Op: "update", LeadID: id, Err: err}
	}
	return l, nil
}

func (r *SheetLeadRepo) UpdateIfVersion(ctx context.Context, id string, version int, patch models.LeadPatch) (*models.Lead, error) {
	l, rowNum, original, err := r.find(ctx, func(row []string) bool { return cell(row, 0) == id })
	if err != nil {
		return nil, err
	}
	if l.Version != version {
		return nil, models.ErrVersionConflict
	}
	if err := patch.Apply(l, r.now().UTC().Truncate(time.Second)); err != nil {
		return nil, err
	}
	rowRange := r.rng.Row(rowNum)
	next := r.toRow(l)

	if ct, ok := r.table.(provider.ConditionalTable); ok {
		if err := ct.UpdateRowIfMatch(ctx, r.sheetID, rowRange, original, next); err != nil {
			if errors.Is(err, models.ErrVersionConflict) {
				return nil, models.ErrVersionConflict
			}
			return nil, &models.RecordStoreError{Op: "update", LeadID: id, Err: err}
		}
		return l, nil
	}

	// Without an atomic compare, re-read right before writing to keep the
	// window as small as the backend allows.
	current, err := r.table.ReadRows(ctx, r.sheetID, rowRange)
	if err != nil {
		return nil, &models.RecordStoreError{Op: "reread", LeadID: id, Err: err}
	}
	if len(current) == 0 || cell(current[0], 0) != id || atoi(cell(current[0], 11)) != version {
		return nil, models.ErrVersionConflict
	}
	if err := r.table.UpdateRow(ctx, r.sheetID, rowRange, next); err != nil {
		return nil, &models.RecordStoreError{Op: "update", LeadID: id, Err: err}
	}
	return l, nil
}

// find scans every data row and returns the first match with its 1-based
// row number and the raw cells as stored.
func (r *SheetLeadRepo) find(ctx context.Context, match func([]string) bool) (*models.Lead, int, []string, error) {
	rows, err := r.table.ReadRows(ctx, r.sheetID, r.rng.String())
	if err != nil {
		return nil, 0, nil, &models.RecordStoreError{Op: "scan", Err: err}
	}
	for i, row := range rows {
		if i == 0 || !match(row) {
			continue
		}
		return r.fromRow(ctx, row), i + 1, row, nil
	}
	return nil, 0, nil, models.ErrLeadNotFound
}

func (r *SheetLeadRepo) toRow(l *models.Lead) []string {
	return []string{
		l.ID,
		string(l.Status),
		l.BusinessLegalName,
		l.Phase1FolderID,
		l.Phase2FolderID,
		encodeSnapshot(l.Phase1Data),
		encodeSnapshot(l.Phase2Data),
		formatTime(l.CreatedAt),
		formatTime(l.LastUpdated),
		l.ErrorDetails,
		strconv.Itoa(l.RetryCount),
		strconv.Itoa(l.Version),
	}
}

func (r *SheetLeadRepo) fromRow(ctx context.Context, row []string) *models.Lead {
	l := &models.Lead{
		ID:                cell(row, 0),
		Status:            models.Status(cell(row, 1)),
		BusinessLegalName: cell(row, 2),
		Phase1FolderID:    cell(row, 3),
		Phase2FolderID:    cell(row, 4),
		CreatedAt:         parseTime(cell(row, 7)),
		LastUpdated:       parseTime(cell(row, 8)),
		ErrorDetails:      cell(row, 9),
		RetryCount:        atoi(cell(row, 10)),
		Version:           atoi(cell(row, 11)),
	}
	var err error
	if l.Phase1Data, err = decodeSnapshot(cell(row, 5)); err != nil {
		r.log.Warn(ctx, "unreadable phase one snapshot", zap.String("lead", l.ID), zap.Error(err))
	}
	if l.Phase2Data, err = decodeSnapshot(cell(row, 6)); err != nil {
		r.log.Warn(ctx, "unreadable phase two snapshot", zap.String("lead", l.ID), zap.Error(err))
	}
	return l
}

// cell tolerates the ragged rows spreadsheet APIs return.
func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
