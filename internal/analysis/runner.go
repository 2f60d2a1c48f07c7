package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/CleanExpo/ATO-sub007/internal/platform/logger"
)

// Runner is the push driver: a detached background loop that steps the same
// Service the pull driver uses, chunk by chunk, until completion or an
// unrecoverable error. Its only output channel is the durable job row.
type Runner struct {
	svc *Service
	log *logger.Logger
}

func NewRunner(svc *Service, baseLog *logger.Logger) *Runner {
	return &Runner{
		svc: svc,
		log: baseLog.With("component", "AnalysisRunner"),
	}
}

// Launch starts the loop and returns immediately. The loop runs on a
// background context: it must outlive the HTTP request that started it.
func (r *Runner) Launch(tenantID uuid.UUID, batchSize int, bc BusinessContext) {
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.log.Error("analysis loop panicked", "tenant_id", tenantID.String(), "panic", rec)
				_ = r.svc.FailJob(context.Background(), tenantID, fmt.Sprintf("internal panic: %v", rec))
			}
		}()

		ctx := context.Background()
		r.log.Info("analysis loop started", "tenant_id", tenantID.String())

		for batch := 0; ; batch++ {
			res, err := r.svc.Step(ctx, StepRequest{
				TenantID:  tenantID,
				Batch:     batch,
				BatchSize: batchSize,
				Context:   bc,
			})
			if err != nil {
				r.log.Error("analysis loop step failed",
					"tenant_id", tenantID.String(),
					"batch", batch,
					"error", err,
				)
				if failErr := r.svc.FailJob(ctx, tenantID, err.Error()); failErr != nil {
					r.log.Warn("failed to persist job error", "tenant_id", tenantID.String(), "error", failErr)
				}
				return
			}
			if res.AllComplete {
				r.log.Info("analysis loop finished",
					"tenant_id", tenantID.String(),
					"batches", batch+1,
					"total", res.TotalTransactions,
				)
				return
			}
			// Small pause between chunks keeps the classifier quota honest
			// without materially slowing the job.
			time.Sleep(200 * time.Millisecond)
		}
	}()
}
