package types

import (
	"time"

	"github.com/google/uuid"
)

// CachedTransaction is one bank transaction synced from Xero for a tenant.
// Rows are written by the sync layer; the analysis pipeline only reads them.
type CachedTransaction struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID      uuid.UUID `gorm:"type:uuid;not null;index:idx_cached_txn_tenant" json:"tenant_id"`
	TransactionID string    `gorm:"column:transaction_id" json:"transaction_id"`
	TxnDate       time.Time `gorm:"column:txn_date;not null" json:"txn_date"`
	SupplierName  string    `gorm:"column:supplier_name" json:"supplier_name"`
	Description   string    `gorm:"column:description" json:"description"`
	Amount        float64   `gorm:"column:amount;not null" json:"amount"`
	AccountCode   string    `gorm:"column:account_code" json:"account_code"`
	CreatedAt     time.Time `gorm:"not null" json:"created_at"`
}

func (CachedTransaction) TableName() string {
	return "cached_transaction"
}
