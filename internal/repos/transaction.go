package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/CleanExpo/ATO-sub007/internal/platform/logger"
	"github.com/CleanExpo/ATO-sub007/internal/types"
)

type TransactionRepo interface {
	// ListByTenant returns the tenant's cached transactions in a stable
	// order. Chunk windows are index-addressed, so the order must not
	// change between calls while a job is in flight.
	ListByTenant(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID) ([]types.CachedTransaction, error)
	CountByTenant(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID) (int64, error)
}

type transactionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTransactionRepo(db *gorm.DB, baseLog *logger.Logger) TransactionRepo {
	return &transactionRepo{db: db, log: baseLog.With("repo", "TransactionRepo")}
}

func (r *transactionRepo) ListByTenant(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID) ([]types.CachedTransaction, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []types.CachedTransaction
	err := transaction.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("txn_date, id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *transactionRepo) CountByTenant(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	err := transaction.WithContext(ctx).
		Model(&types.CachedTransaction{}).
		Where("tenant_id = ?", tenantID).
		Count(&count).Error
	return count, err
}
