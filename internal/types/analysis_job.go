package types

import (
	"time"

	"github.com/google/uuid"
)

// Valid AnalysisJob statuses. "idle" is represented by the absence of a row.
const (
	JobStatusSyncing  = "syncing"
	JobStatusComplete = "complete"
	JobStatusError    = "error"
)

// AnalysisJob is the durable checkpoint for a tenant's classification job.
// One row per tenant; never hard-deleted. LockVersion guards against two
// concurrent steps double-advancing the cursor.
type AnalysisJob struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uniq_analysis_job_tenant" json:"tenant_id"`
	Status         string    `gorm:"column:status;not null" json:"status"`
	TotalItems     int       `gorm:"column:total_items;not null" json:"total_items"`
	ProcessedCount int       `gorm:"column:processed_count;not null" json:"processed_count"`
	LastError      string    `gorm:"column:last_error" json:"last_error,omitempty"`
	LockVersion    int       `gorm:"column:lock_version;not null" json:"-"`
	UpdatedAt      time.Time `gorm:"not null" json:"updated_at"`
	CreatedAt      time.Time `gorm:"not null" json:"created_at"`
}

func (AnalysisJob) TableName() string {
	return "analysis_job"
}
