package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/CleanExpo/ATO-sub007/internal/analysis"
	"github.com/CleanExpo/ATO-sub007/internal/platform/apierr"
	"github.com/CleanExpo/ATO-sub007/internal/platform/logger"
	"github.com/CleanExpo/ATO-sub007/internal/platform/openai"
	"github.com/CleanExpo/ATO-sub007/internal/ratelimit"
)

type AnalysisHandler struct {
	svc     *analysis.Service
	runner  *analysis.Runner
	limiter *ratelimit.Limiter
	log     *logger.Logger
}

func NewAnalysisHandler(svc *analysis.Service, runner *analysis.Runner, limiter *ratelimit.Limiter, baseLog *logger.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		svc:     svc,
		runner:  runner,
		limiter: limiter,
		log:     baseLog.With("handler", "AnalysisHandler"),
	}
}

type startAnalysisRequest struct {
	TenantID     string `json:"tenantId" binding:"required"`
	BusinessName string `json:"businessName"`
	Industry     string `json:"industry"`
	ABN          string `json:"abn"`
	BatchSize    int    `json:"batchSize"`
}

// POST /api/analysis/start
func (h *AnalysisHandler) StartAnalysis(c *gin.Context) {
	var req startAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	tenantID, err := uuid.Parse(req.TenantID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_tenant_id", err)
		return
	}

	if !h.admit(c, req.TenantID, "analysis:start") {
		return
	}

	bc := analysis.BusinessContext{
		BusinessName: req.BusinessName,
		Industry:     req.Industry,
		ABN:          req.ABN,
	}
	res, err := h.svc.Start(c.Request.Context(), analysis.StartRequest{
		TenantID:  tenantID,
		BatchSize: req.BatchSize,
		Context:   bc,
	})
	if err != nil {
		RespondAPIError(c, err)
		return
	}

	h.runner.Launch(tenantID, req.BatchSize, bc)

	RespondOK(c, gin.H{
		"status":            "analyzing",
		"totalTransactions": res.TotalTransactions,
		"estimatedCostUSD":  res.EstimatedCostUSD,
		"pollUrl":           res.PollURL,
	})
}

type analyzeBatchRequest struct {
	TenantID     string `json:"tenantId" binding:"required"`
	Batch        int    `json:"batch"`
	BatchSize    int    `json:"batchSize"`
	BusinessName string `json:"businessName"`
	Industry     string `json:"industry"`
	ABN          string `json:"abn"`
}

// POST /api/analysis/batch
func (h *AnalysisHandler) AnalyzeBatch(c *gin.Context) {
	var req analyzeBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	tenantID, err := uuid.Parse(req.TenantID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_tenant_id", err)
		return
	}

	if !h.admit(c, req.TenantID, "analysis:batch") {
		return
	}

	res, err := h.svc.Step(c.Request.Context(), analysis.StepRequest{
		TenantID:  tenantID,
		Batch:     req.Batch,
		BatchSize: req.BatchSize,
		Context: analysis.BusinessContext{
			BusinessName: req.BusinessName,
			Industry:     req.Industry,
			ABN:          req.ABN,
		},
	})
	if err != nil {
		RespondAPIError(c, withClassifierHint(err))
		return
	}

	RespondOK(c, gin.H{
		"success":           true,
		"analyzed":          res.Analyzed,
		"totalAnalyzed":     res.TotalAnalyzed,
		"totalTransactions": res.TotalTransactions,
		"hasMore":           res.HasMore,
		"nextBatch":         res.NextBatch,
		"allComplete":       res.AllComplete,
		"progress":          res.Progress,
		"cost": gin.H{
			"batchCostUSD": res.Cost.EstimatedCostUSD,
			"inputTokens":  res.Cost.InputTokens,
			"outputTokens": res.Cost.OutputTokens,
		},
		"timing": gin.H{
			"analyzeMs": res.AnalyzeMs,
			"totalMs":   res.TotalMs,
		},
	})
}

// GET /api/analysis/status?tenantId=
func (h *AnalysisHandler) GetStatus(c *gin.Context) {
	tenantID, err := uuid.Parse(c.Query("tenantId"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_tenant_id", err)
		return
	}

	res, err := h.svc.Status(c.Request.Context(), tenantID)
	if err != nil {
		RespondAPIError(c, err)
		return
	}

	var lastUpdate any
	if res.LastUpdate != nil {
		lastUpdate = res.LastUpdate.UTC().Format(time.RFC3339)
	}
	payload := gin.H{
		"status":               res.Status,
		"progress":             res.Progress,
		"transactionsAnalyzed": res.TransactionsAnalyzed,
		"totalTransactions":    res.TotalTransactions,
		"lastUpdate":           lastUpdate,
	}
	if res.LastError != "" {
		payload["lastError"] = res.LastError
	}
	RespondOK(c, payload)
}

func (h *AnalysisHandler) admit(c *gin.Context, tenant, route string) bool {
	ok, retryAfter := h.limiter.Allow(tenant, route, time.Now())
	if ok {
		return true
	}
	c.Header("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
	RespondError(c, http.StatusTooManyRequests, "rate_limited",
		fmt.Errorf("too many analysis requests; retry in %s", retryAfter))
	return false
}

// withClassifierHint maps the upstream error kind, classified at the point
// of the OpenAI call, to an actionable hint for the caller.
func withClassifierHint(err error) error {
	var ae *apierr.Error
	if !errors.As(err, &ae) || ae.Code != "classification_failed" {
		return err
	}
	switch openai.ClassifyError(ae.Err) {
	case openai.KindCredential:
		ae.Hint = "classifier rejected the API credentials; check OPENAI_API_KEY"
	case openai.KindQuota:
		ae.Hint = "classifier quota exhausted; retry this batch later"
	case openai.KindModelUnavailable:
		ae.Hint = "configured model is unavailable; check OPENAI_MODEL"
	case openai.KindTransient:
		ae.Hint = "transient upstream failure; retry the same batch"
	}
	return ae
}
