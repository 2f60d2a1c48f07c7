package analysis

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/CleanExpo/ATO-sub007/internal/platform/logger"
	"github.com/CleanExpo/ATO-sub007/internal/repos"
	"github.com/CleanExpo/ATO-sub007/internal/types"
)

// Persister deduplicates a chunk's results and upserts them keyed by
// (tenant_id, transaction_id). Re-persisting the same chunk leaves stored
// state unchanged except for timestamps.
type Persister struct {
	repo repos.ClassificationRepo
	log  *logger.Logger
}

func NewPersister(repo repos.ClassificationRepo, baseLog *logger.Logger) *Persister {
	return &Persister{
		repo: repo,
		log:  baseLog.With("component", "Persister"),
	}
}

func (p *Persister) Persist(ctx context.Context, tenantID uuid.UUID, results []Classification) error {
	if len(results) == 0 {
		return nil
	}

	// Later results win so two fallback-key transactions collapse into a
	// single write instead of tripping the unique index.
	index := make(map[string]int, len(results))
	rows := make([]*types.TransactionClassification, 0, len(results))
	for i := range results {
		r := &results[i]
		row := toRow(tenantID, r)
		if at, seen := index[r.TransactionID]; seen {
			rows[at] = row
			continue
		}
		index[r.TransactionID] = len(rows)
		rows = append(rows, row)
	}

	if collapsed := len(results) - len(rows); collapsed > 0 {
		p.log.Warn("duplicate transaction keys collapsed in chunk",
			"tenant_id", tenantID.String(),
			"collapsed", collapsed,
			"stored", len(rows),
		)
	}

	return p.repo.UpsertBatch(ctx, nil, rows)
}

func toRow(tenantID uuid.UUID, r *Classification) *types.TransactionClassification {
	notes, err := json.Marshal(r.ComplianceNotes)
	if err != nil {
		notes = []byte("[]")
	}
	return &types.TransactionClassification{
		TenantID:              tenantID,
		TransactionID:         r.TransactionID,
		FinancialYear:         r.FinancialYear,
		PrimaryCategory:       r.PrimaryCategory,
		CategoryConfidence:    r.CategoryConfidence,
		DeductionType:         r.DeductionType,
		ClaimableAmount:       r.ClaimableAmount,
		FullyDeductible:       r.FullyDeductible,
		RnDCandidate:          r.RnDCandidate,
		RnDConfidence:         r.RnDConfidence,
		RnDReasoning:          r.RnDReasoning,
		FBTImplications:       r.FBTImplications,
		Division7ARisk:        r.Division7ARisk,
		RequiresDocumentation: r.RequiresDocumentation,
		ComplianceNotes:       notes,
	}
}
