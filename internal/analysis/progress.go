package analysis

import (
	"context"

	"github.com/google/uuid"

	"github.com/CleanExpo/ATO-sub007/internal/platform/logger"
	"github.com/CleanExpo/ATO-sub007/internal/repos"
	"github.com/CleanExpo/ATO-sub007/internal/types"
)

// Tracker owns the durable job row and its state machine:
// idle (no row) -> syncing -> complete, with a stored error status written
// only by the background loop. The cursor advances by window end index, not
// by distinct stored keys, so fallback-key collisions cannot stall a job
// short of completion.
type Tracker struct {
	repo repos.AnalysisJobRepo
	log  *logger.Logger
}

func NewTracker(repo repos.AnalysisJobRepo, baseLog *logger.Logger) *Tracker {
	return &Tracker{
		repo: repo,
		log:  baseLog.With("component", "Tracker"),
	}
}

// Advance checkpoints a successful step. It creates the job row lazily on
// the first step, advances the cursor monotonically, and reports whether
// this step performed the transition to complete. Updates are guarded by an
// optimistic version check; losing the race returns ErrVersionConflict.
func (t *Tracker) Advance(ctx context.Context, tenantID uuid.UUID, totalItems int, window Window) (*types.AnalysisJob, bool, error) {
	done := window.Empty() || window.End >= totalItems
	processed := window.End
	if done {
		processed = totalItems
	}

	job, err := t.repo.GetByTenant(ctx, nil, tenantID)
	if err != nil {
		return nil, false, err
	}

	if job == nil {
		status := types.JobStatusSyncing
		if done {
			status = types.JobStatusComplete
		}
		job = &types.AnalysisJob{
			TenantID:       tenantID,
			Status:         status,
			TotalItems:     totalItems,
			ProcessedCount: processed,
		}
		if err := t.repo.Create(ctx, nil, job); err != nil {
			return nil, false, err
		}
		return job, done, nil
	}

	wasComplete := job.Status == types.JobStatusComplete

	// Complete is terminal. A replayed earlier chunk after completion must
	// not demote the job back to syncing.
	if wasComplete {
		done = true
		processed = totalItems
	}

	// A replay of an older chunk must not move the cursor backwards.
	if processed < job.ProcessedCount && !done {
		processed = job.ProcessedCount
	}

	job.TotalItems = totalItems
	job.ProcessedCount = processed
	job.LastError = ""
	if done {
		job.Status = types.JobStatusComplete
	} else {
		job.Status = types.JobStatusSyncing
	}

	if err := t.repo.UpdateCAS(ctx, nil, job); err != nil {
		return nil, false, err
	}
	return job, done && !wasComplete, nil
}

// Get returns the tenant's job row, or nil when the job is idle.
func (t *Tracker) Get(ctx context.Context, tenantID uuid.UUID) (*types.AnalysisJob, error) {
	return t.repo.GetByTenant(ctx, nil, tenantID)
}

// Fail stores an error summary for status consumers. Used by the background
// loop, which has no caller left to report to.
func (t *Tracker) Fail(ctx context.Context, tenantID uuid.UUID, summary string) error {
	return t.repo.MarkError(ctx, nil, tenantID, summary)
}
