package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/parisxmas/OxiDB/OxiLeads/internal/logging"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/models"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/provider"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/provider/memory"
)

const sheet = "sheet-1"

// plainTable hides UpdateRowIfMatch so the re-read path is exercised.
type plainTable struct{ provider.Table }

func newRepo(t *testing.T, tbl provider.Table) (*SheetLeadRepo, *logging.TestLogger) {
	t.Helper()
	tl := logging.NewTestLogger()
	r := NewSheetLeadRepo(tbl, sheet, "Leads", tl.Logger)
	clock := time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { clock = clock.Add(time.Minute); return clock }
	return r, tl
}

func TestSheetLeadRepo_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	tbl := memory.NewTable()
	r, _ := newRepo(t, tbl)

	l, err := r.CreateLead(ctx, models.NewLead{
		BusinessLegalName: "Acme",
		Phase1FolderID:    "folder-1",
		Phase1Data:        map[string]string{"business_legal_name": "Acme"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPhase1Complete, l.Status)
	assert.Equal(t, 1, l.Version)

	rows := tbl.Rows(sheet, "Leads")
	require.Len(t, rows, 2)
	assert.Equal(t, Columns, rows[0])

	got, err := r.GetLeadByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, l, got)

	byFolder, err := r.FindLeadByFolder(ctx, "folder-1")
	require.NoError(t, err)
	assert.Equal(t, l.ID, byFolder.ID)

	_, err = r.GetLeadByID(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrLeadNotFound)
	_, err = r.FindLeadByFolder(ctx, "")
	assert.ErrorIs(t, err, models.ErrLeadNotFound)
}

func TestSheetLeadRepo_Lifecycle(t *testing.T) {
	ctx := context.Background()
	r, _ := newRepo(t, memory.NewTable())
	l, err := r.CreateLead(ctx, models.NewLead{BusinessLegalName: "Acme"})
	require.NoError(t, err)

	_, err = r.UpdateLeadStatus(ctx, l.ID, models.LeadPatch{Status: models.StatusPhase2Complete})
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	l, err = r.UpdateLeadStatus(ctx, l.ID, models.LeadPatch{
		Status:     models.StatusPhase2InProgress,
		Phase2Data: map[string]string{"total_revenue": "$1"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, l.Version)

	l, err = r.UpdateLeadStatus(ctx, l.ID, models.LeadPatch{
		Status:         models.StatusPhase2Complete,
		Phase2FolderID: models.StringPtr("folder-2"),
	})
	require.NoError(t, err)

	got, err := r.GetLeadByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPhase2Complete, got.Status)
	assert.Equal(t, "folder-2", got.Phase2FolderID)
	assert.Equal(t, "$1", got.Phase2Data["total_revenue"])
	assert.True(t, got.LastUpdated.After(got.CreatedAt))

	_, err = r.UpdateLeadStatus(ctx, l.ID, models.LeadPatch{Status: models.StatusPhase2InProgress})
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestSheetLeadRepo_UpdateIfVersion(t *testing.T) {
	for name, tbl := range map[string]provider.Table{
		"conditional": memory.NewTable(),
		"reread":      plainTable{memory.NewTable()},
	} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			r, _ := newRepo(t, tbl)
			l, err := r.CreateLead(ctx, models.NewLead{BusinessLegalName: "Acme"})
			require.NoError(t, err)

			_, err = r.UpdateIfVersion(ctx, l.ID, l.Version, models.LeadPatch{Status: models.StatusPhase2InProgress})
			require.NoError(t, err)

			_, err = r.UpdateIfVersion(ctx, l.ID, l.Version, models.LeadPatch{Status: models.StatusPhase2Complete})
			assert.ErrorIs(t, err, models.ErrVersionConflict)
		})
	}
}

func TestSheetLeadRepo_CorruptSnapshot(t *testing.T) {
	ctx := context.Background()
	tbl := memory.NewTable()
	r, tl := newRepo(t, tbl)
	require.NoError(t, r.EnsureHeader(ctx))
	require.NoError(t, tbl.AppendRow(ctx, sheet, "Leads!A:L", []string{
		"L-1", "PHASE_1_COMPLETE", "Acme", "f1", "", "{not json", `{"n":5,"ok":true}`, "garbage", "",
	}))

	l, err := r.GetLeadByID(ctx, "L-1")
	require.NoError(t, err)
	assert.Empty(t, l.Phase1Data)
	assert.Equal(t, map[string]string{"n": "5", "ok": "Yes"}, l.Phase2Data)
	assert.True(t, l.CreatedAt.IsZero())
	assert.Equal(t, 0, l.Version)
	tl.AssertLogged(t, zapcore.WarnLevel, "unreadable phase one snapshot")

	_, err = r.UpdateIfVersion(ctx, "L-1", 0, models.LeadPatch{Status: models.StatusPhase2InProgress})
	require.NoError(t, err)
}

func TestSheetLeadRepo_EnsureHeader(t *testing.T) {
	ctx := context.Background()
	tbl := memory.NewTable()
	r, _ := newRepo(t, tbl)

	require.NoError(t, tbl.UpdateRow(ctx, sheet, "Leads!A1:K1", Columns[:11]))
	require.NoError(t, r.EnsureHeader(ctx))
	assert.Equal(t, Columns, tbl.Rows(sheet, "Leads")[0])

	require.NoError(t, tbl.UpdateRow(ctx, sheet, "Leads!A1:L1", []string{"something", "else"}))
	err := r.EnsureHeader(ctx)
	var rse *models.RecordStoreError
	assert.ErrorAs(t, err, &rse)
}

func TestSheetLeadRepo_TableFailure(t *testing.T) {
	tbl := memory.NewTable()
	r, _ := newRepo(t, tbl)
	tbl.FailOn("read_rows", errors.New("quota"))

	_, err := r.GetLeadByID(context.Background(), "x")
	var rse *models.RecordStoreError
	require.ErrorAs(t, err, &rse)
	assert.Equal(t, "scan", rse.Op)
}

func TestRecordError(t *testing.T) {
	ctx := context.Background()
	r, tl := newRepo(t, memory.NewTable())
	l, err := r.CreateLead(ctx, models.NewLead{BusinessLegalName: "Acme"})
	require.NoError(t, err)
	_, err = r.UpdateLeadStatus(ctx, l.ID, models.LeadPatch{Status: models.StatusPhase2InProgress})
	require.NoError(t, err)

	RecordError(ctx, r, tl.Logger, l.ID, errors.New("form c failed"))
	RecordError(ctx, r, tl.Logger, l.ID, errors.New("again"))

	got, err := r.GetLeadByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, got.Status)
	assert.Equal(t, "again", got.ErrorDetails)
	assert.Equal(t, 2, got.RetryCount)

	RecordError(ctx, r, tl.Logger, "missing", errors.New("x"))
	tl.AssertLogged(t, zapcore.ErrorLevel, "record error: load lead")
}
