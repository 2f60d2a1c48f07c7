package analysis

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/CleanExpo/ATO-sub007/internal/platform/apierr"
	"github.com/CleanExpo/ATO-sub007/internal/platform/logger"
	"github.com/CleanExpo/ATO-sub007/internal/repos"
	"github.com/CleanExpo/ATO-sub007/internal/types"
)

// CacheInvalidator evicts a tenant's cached report views. Satisfied by the
// redis report cache; nil disables the completion hook.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, tenantID string) (int, error)
}

// Service is the single step implementation shared by the pull and push
// drivers. Both entry points call Step; the planning/persistence logic never
// forks between them.
type Service struct {
	log        *logger.Logger
	txns       repos.TransactionRepo
	invoker    *Invoker
	persister  *Persister
	accountant *Accountant
	tracker    *Tracker
	cache      CacheInvalidator
}

func NewService(
	baseLog *logger.Logger,
	txns repos.TransactionRepo,
	invoker *Invoker,
	persister *Persister,
	accountant *Accountant,
	tracker *Tracker,
	cache CacheInvalidator,
) *Service {
	return &Service{
		log:        baseLog.With("service", "AnalysisService"),
		txns:       txns,
		invoker:    invoker,
		persister:  persister,
		accountant: accountant,
		tracker:    tracker,
		cache:      cache,
	}
}

type StepRequest struct {
	TenantID  uuid.UUID
	Batch     int
	BatchSize int
	Context   BusinessContext
}

type StepResult struct {
	Analyzed          int
	TotalAnalyzed     int
	TotalTransactions int
	HasMore           bool
	NextBatch         *int
	AllComplete       bool
	Progress          float64
	Cost              CostEstimate
	AnalyzeMs         int64
	TotalMs           int64
}

// Step processes exactly one chunk: plan, classify, persist, account,
// checkpoint, and fire the completion hook if this step finished the job.
// Durable writes happen strictly after classification succeeds and in a
// fixed order, so an interrupted step loses compute but never leaves a
// partial chunk visible.
func (s *Service) Step(ctx context.Context, req StepRequest) (*StepResult, error) {
	start := time.Now()

	if req.TenantID == uuid.Nil {
		return nil, apierr.New(http.StatusBadRequest, "missing_tenant", fmt.Errorf("tenantId is required"))
	}

	txns, err := s.txns.ListByTenant(ctx, nil, req.TenantID)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "transaction_load_failed", err)
	}
	total := len(txns)
	if total == 0 {
		return nil, apierr.New(http.StatusBadRequest, "no_cached_transactions",
			fmt.Errorf("no cached transactions for tenant; run a Xero sync first"))
	}

	size := ClampChunkSize(req.BatchSize)
	window := Plan(total, req.Batch, size)

	if window.Empty() {
		// Already past the end: force completion and report. A replay of a
		// trailing chunk lands here.
		job, completedNow, err := s.tracker.Advance(ctx, req.TenantID, total, window)
		if err != nil {
			return nil, stepAdvanceError(err)
		}
		if completedNow {
			s.fireCompletionHook(ctx, req.TenantID)
		}
		return &StepResult{
			Analyzed:          0,
			TotalAnalyzed:     job.ProcessedCount,
			TotalTransactions: total,
			HasMore:           false,
			NextBatch:         nil,
			AllComplete:       true,
			Progress:          100,
			TotalMs:           time.Since(start).Milliseconds(),
		}, nil
	}

	chunk := txns[window.Start:window.End]

	analyzeStart := time.Now()
	results, err := s.invoker.Classify(ctx, chunk, req.Context, func(completed, totalItems int) {
		s.log.Debug("chunk progress",
			"tenant_id", req.TenantID.String(),
			"batch", req.Batch,
			"completed", completed,
			"total", totalItems,
		)
	})
	if err != nil {
		// Job row untouched: the identical chunk can be retried.
		return nil, apierr.New(http.StatusBadGateway, "classification_failed", err)
	}
	analyzeMs := time.Since(analyzeStart).Milliseconds()

	if err := s.persister.Persist(ctx, req.TenantID, results); err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "persistence_failed", err)
	}

	est := EstimateCost(len(chunk))
	if err := s.accountant.Record(ctx, req.TenantID, req.Batch, len(chunk), est); err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "cost_ledger_failed", err)
	}

	job, completedNow, err := s.tracker.Advance(ctx, req.TenantID, total, window)
	if err != nil {
		return nil, stepAdvanceError(err)
	}
	if completedNow {
		s.fireCompletionHook(ctx, req.TenantID)
	}

	allComplete := job.Status == types.JobStatusComplete
	res := &StepResult{
		Analyzed:          window.Len(),
		TotalAnalyzed:     job.ProcessedCount,
		TotalTransactions: total,
		HasMore:           !allComplete,
		AllComplete:       allComplete,
		Progress:          progressPercent(job.ProcessedCount, total),
		Cost:              est,
		AnalyzeMs:         analyzeMs,
		TotalMs:           time.Since(start).Milliseconds(),
	}
	if res.HasMore {
		next := req.Batch + 1
		res.NextBatch = &next
	}

	s.log.Info("chunk processed",
		"tenant_id", req.TenantID.String(),
		"batch", req.Batch,
		"analyzed", res.Analyzed,
		"total_analyzed", res.TotalAnalyzed,
		"all_complete", res.AllComplete,
		"analyze_ms", res.AnalyzeMs,
	)
	return res, nil
}

func stepAdvanceError(err error) error {
	if err == repos.ErrVersionConflict {
		return apierr.New(http.StatusConflict, "concurrent_step", err).
			WithHint("another step for this tenant is in flight; retry this batch")
	}
	return apierr.New(http.StatusInternalServerError, "progress_update_failed", err)
}

// The hook's effect is idempotent cache eviction, which compensates for the
// lack of a strict exactly-once guarantee under concurrent steps.
func (s *Service) fireCompletionHook(ctx context.Context, tenantID uuid.UUID) {
	if s.cache == nil {
		return
	}
	evicted, err := s.cache.Invalidate(ctx, tenantID.String())
	if err != nil {
		s.log.Warn("completion hook failed", "tenant_id", tenantID.String(), "error", err)
		return
	}
	s.log.Info("completion hook fired", "tenant_id", tenantID.String(), "evicted", evicted)
}

func progressPercent(processed, total int) float64 {
	if total <= 0 {
		return 0
	}
	p := float64(processed) / float64(total) * 100
	return math.Round(p*10) / 10
}

type StartRequest struct {
	TenantID  uuid.UUID
	BatchSize int
	Context   BusinessContext
}

type StartResult struct {
	TotalTransactions int
	EstimatedCostUSD  float64
	PollURL           string
}

// Start validates a push-driver job and prices it. The background loop is
// launched by the Runner after Start succeeds.
func (s *Service) Start(ctx context.Context, req StartRequest) (*StartResult, error) {
	if req.TenantID == uuid.Nil {
		return nil, apierr.New(http.StatusBadRequest, "missing_tenant", fmt.Errorf("tenantId is required"))
	}
	count, err := s.txns.CountByTenant(ctx, nil, req.TenantID)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "transaction_load_failed", err)
	}
	if count == 0 {
		return nil, apierr.New(http.StatusBadRequest, "no_cached_transactions",
			fmt.Errorf("no cached transactions for tenant; run a Xero sync first"))
	}

	est := EstimateCost(int(count))
	return &StartResult{
		TotalTransactions: int(count),
		EstimatedCostUSD:  est.EstimatedCostUSD,
		PollURL:           "/api/analysis/status?tenantId=" + req.TenantID.String(),
	}, nil
}

type StatusResult struct {
	Status               string
	Progress             float64
	TransactionsAnalyzed int
	TotalTransactions    int
	LastUpdate           *time.Time
	LastError            string
}

// Status reports the durable job state. No row means idle.
func (s *Service) Status(ctx context.Context, tenantID uuid.UUID) (*StatusResult, error) {
	if tenantID == uuid.Nil {
		return nil, apierr.New(http.StatusBadRequest, "missing_tenant", fmt.Errorf("tenantId is required"))
	}
	job, err := s.tracker.Get(ctx, tenantID)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "status_load_failed", err)
	}
	if job == nil {
		return &StatusResult{Status: "idle"}, nil
	}

	status := job.Status
	if status == types.JobStatusSyncing {
		// Wire name for the in-flight state.
		status = "analyzing"
	}
	updated := job.UpdatedAt
	return &StatusResult{
		Status:               status,
		Progress:             progressPercent(job.ProcessedCount, job.TotalItems),
		TransactionsAnalyzed: job.ProcessedCount,
		TotalTransactions:    job.TotalItems,
		LastUpdate:           &updated,
		LastError:            job.LastError,
	}, nil
}

// FailJob records a background-loop failure in the job row.
func (s *Service) FailJob(ctx context.Context, tenantID uuid.UUID, summary string) error {
	return s.tracker.Fail(ctx, tenantID, summary)
}
