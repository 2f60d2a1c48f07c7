package analysis

import (
	"context"
	"math"

	"github.com/google/uuid"

	"github.com/CleanExpo/ATO-sub007/internal/platform/logger"
	"github.com/CleanExpo/ATO-sub007/internal/repos"
	"github.com/CleanExpo/ATO-sub007/internal/types"
)

// Flat per-transaction token budget. The same item count always prices the
// same, so ledger rows stay additive across chunks.
const (
	inputTokensPerItem  = 420
	outputTokensPerItem = 180

	inputUSDPerMillionTokens  = 2.50
	outputUSDPerMillionTokens = 10.00
)

// CostEstimate is the priced token budget for a number of transactions.
type CostEstimate struct {
	InputTokens      int
	OutputTokens     int
	EstimatedCostUSD float64
}

// EstimateCost prices itemCount transactions. Pure.
func EstimateCost(itemCount int) CostEstimate {
	if itemCount < 0 {
		itemCount = 0
	}
	in := itemCount * inputTokensPerItem
	out := itemCount * outputTokensPerItem
	usd := float64(in)/1e6*inputUSDPerMillionTokens + float64(out)/1e6*outputUSDPerMillionTokens
	return CostEstimate{
		InputTokens:      in,
		OutputTokens:     out,
		EstimatedCostUSD: roundUSD(usd),
	}
}

func roundUSD(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// Accountant records one ledger row per successfully processed chunk, keyed
// by (tenant, batch) so a replayed chunk overwrites rather than double-bills.
type Accountant struct {
	repo repos.CostLedgerRepo
	log  *logger.Logger
}

func NewAccountant(repo repos.CostLedgerRepo, baseLog *logger.Logger) *Accountant {
	return &Accountant{
		repo: repo,
		log:  baseLog.With("component", "Accountant"),
	}
}

func (a *Accountant) Record(ctx context.Context, tenantID uuid.UUID, batchIndex, itemCount int, est CostEstimate) error {
	return a.repo.Upsert(ctx, nil, &types.CostLedgerEntry{
		TenantID:         tenantID,
		BatchIndex:       batchIndex,
		ItemCount:        itemCount,
		InputTokens:      est.InputTokens,
		OutputTokens:     est.OutputTokens,
		EstimatedCostUSD: est.EstimatedCostUSD,
	})
}
