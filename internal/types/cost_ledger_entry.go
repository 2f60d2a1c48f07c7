package types

import (
	"time"

	"github.com/google/uuid"
)

// CostLedgerEntry records the estimated classifier spend for one batch.
// Keyed by (tenant_id, batch_index) so a replayed batch overwrites its own
// row instead of double-counting.
type CostLedgerEntry struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID         uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uniq_cost_ledger_tenant_batch" json:"tenant_id"`
	BatchIndex       int       `gorm:"column:batch_index;not null;uniqueIndex:uniq_cost_ledger_tenant_batch" json:"batch_index"`
	ItemCount        int       `gorm:"column:item_count;not null" json:"item_count"`
	InputTokens      int       `gorm:"column:input_tokens;not null" json:"input_tokens"`
	OutputTokens     int       `gorm:"column:output_tokens;not null" json:"output_tokens"`
	EstimatedCostUSD float64   `gorm:"column:estimated_cost_usd;not null" json:"estimated_cost_usd"`
	RecordedAt       time.Time `gorm:"column:recorded_at;not null" json:"recorded_at"`
}

func (CostLedgerEntry) TableName() string {
	return "analysis_cost_ledger"
}
