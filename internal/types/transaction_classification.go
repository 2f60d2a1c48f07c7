package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// TransactionClassification is the classifier's verdict for one transaction.
// Keyed by (tenant_id, transaction_id); last write wins.
type TransactionClassification struct {
	ID                    uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID              uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uniq_classification_tenant_txn" json:"tenant_id"`
	TransactionID         string         `gorm:"column:transaction_id;not null;uniqueIndex:uniq_classification_tenant_txn" json:"transaction_id"`
	FinancialYear         string         `gorm:"column:financial_year" json:"financial_year"`
	PrimaryCategory       string         `gorm:"column:primary_category;not null" json:"primary_category"`
	CategoryConfidence    float64        `gorm:"column:category_confidence" json:"category_confidence"`
	DeductionType         string         `gorm:"column:deduction_type" json:"deduction_type"`
	ClaimableAmount       float64        `gorm:"column:claimable_amount" json:"claimable_amount"`
	FullyDeductible       bool           `gorm:"column:fully_deductible" json:"fully_deductible"`
	RnDCandidate          bool           `gorm:"column:rnd_candidate" json:"rnd_candidate"`
	RnDConfidence         float64        `gorm:"column:rnd_confidence" json:"rnd_confidence"`
	RnDReasoning          string         `gorm:"column:rnd_reasoning" json:"rnd_reasoning"`
	FBTImplications       bool           `gorm:"column:fbt_implications" json:"fbt_implications"`
	Division7ARisk        bool           `gorm:"column:division7a_risk" json:"division7a_risk"`
	RequiresDocumentation bool           `gorm:"column:requires_documentation" json:"requires_documentation"`
	ComplianceNotes       datatypes.JSON `gorm:"type:jsonb;column:compliance_notes" json:"compliance_notes"`
	CreatedAt             time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt             time.Time      `gorm:"not null" json:"updated_at"`
}

func (TransactionClassification) TableName() string {
	return "transaction_classification"
}
