package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/CleanExpo/ATO-sub007/internal/platform/logger"
	"github.com/CleanExpo/ATO-sub007/internal/types"
)

// ErrVersionConflict is returned when a compare-and-swap update loses to a
// concurrent writer. The caller should re-read the job row and retry or bail.
var ErrVersionConflict = errors.New("analysis job was modified concurrently")

type AnalysisJobRepo interface {
	// GetByTenant returns nil, nil when the tenant has no job row yet.
	GetByTenant(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID) (*types.AnalysisJob, error)
	Create(ctx context.Context, tx *gorm.DB, job *types.AnalysisJob) error
	// UpdateCAS persists status/cursor changes guarded by LockVersion.
	// On success the job's LockVersion is advanced in place.
	UpdateCAS(ctx context.Context, tx *gorm.DB, job *types.AnalysisJob) error
	// MarkError records a failure summary without a version check; it is
	// the background loop's last action and must not itself fail on a
	// race. Creates the row when the failure precedes the first
	// checkpoint.
	MarkError(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, summary string) error
}

type analysisJobRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAnalysisJobRepo(db *gorm.DB, baseLog *logger.Logger) AnalysisJobRepo {
	return &analysisJobRepo{db: db, log: baseLog.With("repo", "AnalysisJobRepo")}
}

func (r *analysisJobRepo) GetByTenant(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID) (*types.AnalysisJob, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var job types.AnalysisJob
	err := transaction.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *analysisJobRepo) Create(ctx context.Context, tx *gorm.DB, job *types.AnalysisJob) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now().UTC()
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	return transaction.WithContext(ctx).Create(job).Error
}

func (r *analysisJobRepo) UpdateCAS(ctx context.Context, tx *gorm.DB, job *types.AnalysisJob) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	currentVersion := job.LockVersion
	job.UpdatedAt = time.Now().UTC()
	res := transaction.WithContext(ctx).
		Model(&types.AnalysisJob{}).
		Where("tenant_id = ? AND lock_version = ?", job.TenantID, currentVersion).
		Updates(map[string]interface{}{
			"status":          job.Status,
			"total_items":     job.TotalItems,
			"processed_count": job.ProcessedCount,
			"last_error":      job.LastError,
			"lock_version":    currentVersion + 1,
			"updated_at":      job.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	job.LockVersion = currentVersion + 1
	return nil
}

func (r *analysisJobRepo) MarkError(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, summary string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	// Upsert: a failure on the very first chunk happens before any row
	// exists, and the summary must still land somewhere pollable.
	now := time.Now().UTC()
	job := &types.AnalysisJob{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Status:    types.JobStatusError,
		LastError: summary,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tenant_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"status", "last_error", "updated_at",
			}),
		}).
		Create(job).Error
}
