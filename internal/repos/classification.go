package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/CleanExpo/ATO-sub007/internal/platform/logger"
	"github.com/CleanExpo/ATO-sub007/internal/types"
)

type ClassificationRepo interface {
	// UpsertBatch inserts or overwrites classifications keyed by
	// (tenant_id, transaction_id). Rows must already be deduplicated on
	// that key; a batch with internal duplicates is a caller bug.
	UpsertBatch(ctx context.Context, tx *gorm.DB, rows []*types.TransactionClassification) error
	GetByKey(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, transactionID string) (*types.TransactionClassification, error)
	CountByTenant(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID) (int64, error)
}

type classificationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewClassificationRepo(db *gorm.DB, baseLog *logger.Logger) ClassificationRepo {
	return &classificationRepo{db: db, log: baseLog.With("repo", "ClassificationRepo")}
}

func (r *classificationRepo) UpsertBatch(ctx context.Context, tx *gorm.DB, rows []*types.TransactionClassification) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for _, row := range rows {
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
		if row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
		row.UpdatedAt = now
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tenant_id"}, {Name: "transaction_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"financial_year", "primary_category", "category_confidence",
				"deduction_type", "claimable_amount", "fully_deductible",
				"rnd_candidate", "rnd_confidence", "rnd_reasoning",
				"fbt_implications", "division7a_risk", "requires_documentation",
				"compliance_notes", "updated_at",
			}),
		}).
		Create(&rows).Error
}

func (r *classificationRepo) GetByKey(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, transactionID string) (*types.TransactionClassification, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.TransactionClassification
	err := transaction.WithContext(ctx).
		Where("tenant_id = ? AND transaction_id = ?", tenantID, transactionID).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *classificationRepo) CountByTenant(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	err := transaction.WithContext(ctx).
		Model(&types.TransactionClassification{}).
		Where("tenant_id = ?", tenantID).
		Count(&count).Error
	return count, err
}
