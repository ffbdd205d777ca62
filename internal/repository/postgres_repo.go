package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/parisxmas/OxiDB/OxiLeads/internal/logging"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/models"
)

type leadModel struct {
	LeadID            string    `gorm:"column:lead_id;primaryKey"`
	Status            string    `gorm:"column:status;index"`
	BusinessLegalName string    `gorm:"column:business_legal_name"`
	Phase1FolderID    string    `gorm:"column:phase1_folder_id;index"`
	Phase2FolderID    string    `gorm:"column:phase2_folder_id"`
	Phase1Data        string    `gorm:"column:phase1_submission_data_json;type:text"`
	Phase2Data        string    `gorm:"column:phase2_submission_data_json;type:text"`
	CreatedAt         time.Time `gorm:"column:created_at"`
	LastUpdated       time.Time `gorm:"column:last_updated"`
	ErrorDetails      string    `gorm:"column:error_details;type:text"`
	RetryCount        int       `gorm:"column:retry_count"`
	Version           int       `gorm:"column:version"`
}

func (leadModel) TableName() string { return "leads" }

// PostgresLeadRepo stores leads in a "leads" table with the same columns
// as the sheet layout. Version checks run inside the UPDATE statement.
type PostgresLeadRepo struct {
	db  *gorm.DB
	log *logging.Logger
	now func() time.Time
}

// OpenPostgres connects with gorm's postgres driver.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
}

func NewPostgresLeadRepo(db *gorm.DB, log *logging.Logger) *PostgresLeadRepo {
	return &PostgresLeadRepo{db: db, log: log, now: time.Now}
}

func (r *PostgresLeadRepo) EnsureHeader(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&leadModel{}); err != nil {
		return &models.RecordStoreError{Op: "migrate", Err: err}
	}
	return nil
}

func (r *PostgresLeadRepo) CreateLead(ctx context.Context, n models.NewLead) (*models.Lead, error) {
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
	rec := toLeadModel(l)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return nil, &models.RecordStoreError{Op: "insert", LeadID: l.ID, Err: err}
	}
	return l, nil
}

func (r *PostgresLeadRepo) GetLeadByID(ctx context.Context, id string) (*models.Lead, error) {
	return r.take(ctx, "lead_id = ?", id)
}

func (r *PostgresLeadRepo) FindLeadByFolder(ctx context.Context, phase1FolderID string) (*models.Lead, error) {
	if phase1FolderID == "" {
		return nil, models.ErrLeadNotFound
	}
	return r.take(ctx, "phase1_folder_id = ?", phase1FolderID)
}

func (r *PostgresLeadRepo) UpdateLeadStatus(ctx context.Context, id string, patch models.LeadPatch) (*models.Lead, error) {
	l, err := r.GetLeadByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.write(ctx, l, patch, r.db.WithContext(ctx).Model(&leadModel{}).Where("lead_id = ?", id))
}

func (r *PostgresLeadRepo) UpdateIfVersion(ctx context.Context, id string, version int, patch models.LeadPatch) (*models.Lead, error) {
	l, err := r.GetLeadByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if l.Version != version {
		return nil, models.ErrVersionConflict
	}
	return r.write(ctx, l, patch, r.db.WithContext(ctx).Model(&leadModel{}).Where("lead_id = ? AND version = ?", id, version))
}

func (r *PostgresLeadRepo) write(ctx context.Context, l *models.Lead, patch models.LeadPatch, q *gorm.DB) (*models.Lead, error) {
	if err := patch.Apply(l, r.now().UTC().Truncate(time.Second)); err != nil {
		return nil, err
	}
	rec := toLeadModel(l)
	res := q.Updates(map[string]any{
		"status":                      rec.Status,
		"business_legal_name":         rec.BusinessLegalName,
		"phase1_folder_id":            rec.Phase1FolderID,
		"phase2_folder_id":            rec.Phase2FolderID,
		"phase1_submission_data_json": rec.Phase1Data,
		"phase2_submission_data_json": rec.Phase2Data,
		"last_updated":                rec.LastUpdated,
		"error_details":               rec.ErrorDetails,
		"retry_count":                 rec.RetryCount,
		"version":                     rec.Version,
	})
	if res.Error != nil {
		return nil, &models.RecordStoreError{Op: "update", LeadID: l.ID, Err: res.Error}
	}
	if res.RowsAffected == 0 {
		return nil, models.ErrVersionConflict
	}
	return l, nil
}

func (r *PostgresLeadRepo) take(ctx context.Context, query string, arg any) (*models.Lead, error) {
	var rec leadModel
	if err := r.db.WithContext(ctx).Where(query, arg).Order("created_at").Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrLeadNotFound
		}
		return nil, &models.RecordStoreError{Op: "select", Err: err}
	}
	return r.fromLeadModel(ctx, rec), nil
}

func toLeadModel(l *models.Lead) leadModel {
	return leadModel{
		LeadID:            l.ID,
		Status:            string(l.Status),
		BusinessLegalName: l.BusinessLegalName,
		Phase1FolderID:    l.Phase1FolderID,
		Phase2FolderID:    l.Phase2FolderID,
		Phase1Data:        encodeSnapshot(l.Phase1Data),
		Phase2Data:        encodeSnapshot(l.Phase2Data),
		CreatedAt:         l.CreatedAt,
		LastUpdated:       l.LastUpdated,
		ErrorDetails:      l.ErrorDetails,
		RetryCount:        l.RetryCount,
		Version:           l.Version,
	}
}

func (r *PostgresLeadRepo) fromLeadModel(ctx context.Context, rec leadModel) *models.Lead {
	l := &models.Lead{
		ID:                rec.LeadID,
		Status:            models.Status(rec.Status),
		BusinessLegalName: rec.BusinessLegalName,
		Phase1FolderID:    rec.Phase1FolderID,
		Phase2FolderID:    rec.Phase2FolderID,
		CreatedAt:         rec.CreatedAt.UTC(),
		LastUpdated:       rec.LastUpdated.UTC(),
		ErrorDetails:      rec.ErrorDetails,
		RetryCount:        rec.RetryCount,
		Version:           rec.Version,
	}
	var err error
	if l.Phase1Data, err = decodeSnapshot(rec.Phase1Data); err != nil {
		r.log.Warn(ctx, "unreadable phase one snapshot", zap.String("lead", l.ID), zap.Error(err))
	}
	if l.Phase2Data, err = decodeSnapshot(rec.Phase2Data); err != nil {
		r.log.Warn(ctx, "unreadable phase two snapshot", zap.String("lead", l.ID), zap.Error(err))
	}
	return l
}
