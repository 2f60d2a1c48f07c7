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

type CostLedgerRepo interface {
	// Upsert writes the ledger row for (tenant_id, batch_index). A replayed
	// batch overwrites its own row rather than appending a duplicate.
	Upsert(ctx context.Context, tx *gorm.DB, entry *types.CostLedgerEntry) error
	ListByTenant(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID) ([]types.CostLedgerEntry, error)
}

type costLedgerRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCostLedgerRepo(db *gorm.DB, baseLog *logger.Logger) CostLedgerRepo {
	return &costLedgerRepo{db: db, log: baseLog.With("repo", "CostLedgerRepo")}
}

func (r *costLedgerRepo) Upsert(ctx context.Context, tx *gorm.DB, entry *types.CostLedgerEntry) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = time.Now().UTC()
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tenant_id"}, {Name: "batch_index"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"item_count", "input_tokens", "output_tokens",
				"estimated_cost_usd", "recorded_at",
			}),
		}).
		Create(entry).Error
}

func (r *costLedgerRepo) ListByTenant(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID) ([]types.CostLedgerEntry, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []types.CostLedgerEntry
	err := transaction.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("batch_index").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
