package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/CleanExpo/ATO-sub007/internal/platform/apierr"
	"github.com/CleanExpo/ATO-sub007/internal/platform/logger"
	"github.com/CleanExpo/ATO-sub007/internal/platform/openai"
	"github.com/CleanExpo/ATO-sub007/internal/ratelimit"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testContext(t *testing.T) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/analysis/batch", strings.NewReader("{}"))
	return c, rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorEnvelope {
	t.Helper()
	var env ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("bad error body %q: %v", rec.Body.String(), err)
	}
	return env
}

func TestRespondAPIErrorHidesDetailByDefault(t *testing.T) {
	c, rec := testContext(t)
	RespondAPIError(c, apierr.New(http.StatusBadGateway, "classification_failed",
		fmt.Errorf("api key sk-secret was rejected")))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status=%d", rec.Code)
	}
	env := decodeError(t, rec)
	if env.Error.Code != "classification_failed" {
		t.Fatalf("code=%q", env.Error.Code)
	}
	if env.Error.Message != "request failed" {
		t.Fatalf("upstream detail leaked: %q", env.Error.Message)
	}
}

func TestRespondAPIErrorDiagnosticMode(t *testing.T) {
	t.Setenv("API_DIAGNOSTIC_ERRORS", "true")

	c, rec := testContext(t)
	RespondAPIError(c, apierr.New(http.StatusConflict, "concurrent_step",
		errors.New("lock version moved")).WithHint("retry this batch"))

	if rec.Code != http.StatusConflict {
		t.Fatalf("status=%d", rec.Code)
	}
	env := decodeError(t, rec)
	if !strings.Contains(env.Error.Message, "lock version moved") {
		t.Fatalf("diagnostic detail missing: %q", env.Error.Message)
	}
	if env.Error.Hint != "retry this batch" {
		t.Fatalf("hint=%q", env.Error.Hint)
	}
}

func TestRespondAPIErrorWrapsPlainErrors(t *testing.T) {
	c, rec := testContext(t)
	RespondAPIError(c, errors.New("boom"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", rec.Code)
	}
	if env := decodeError(t, rec); env.Error.Code != "internal_error" {
		t.Fatalf("code=%q", env.Error.Code)
	}
}

func TestWithClassifierHint(t *testing.T) {
	cases := []struct {
		name string
		kind openai.Kind
		want string
	}{
		{"credential", openai.KindCredential, "OPENAI_API_KEY"},
		{"quota", openai.KindQuota, "quota"},
		{"model_unavailable", openai.KindModelUnavailable, "OPENAI_MODEL"},
		{"transient", openai.KindTransient, "retry the same batch"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			upstream := &openai.UpstreamError{Kind: tc.kind, StatusCode: 500}
			in := apierr.New(http.StatusBadGateway, "classification_failed",
				fmt.Errorf("chunk failed: %w", upstream))

			out := withClassifierHint(in)
			var ae *apierr.Error
			if !errors.As(out, &ae) {
				t.Fatalf("got %T", out)
			}
			if !strings.Contains(ae.Hint, tc.want) {
				t.Fatalf("hint %q does not mention %q", ae.Hint, tc.want)
			}
		})
	}
}

func TestWithClassifierHintLeavesOtherErrorsAlone(t *testing.T) {
	in := apierr.New(http.StatusInternalServerError, "persistence_failed", errors.New("disk full"))
	out := withClassifierHint(in)
	var ae *apierr.Error
	if !errors.As(out, &ae) || ae.Hint != "" {
		t.Fatalf("hint attached to non-classifier error: %+v", out)
	}

	plain := errors.New("not an api error")
	if got := withClassifierHint(plain); got != plain {
		t.Fatalf("plain error rewritten: %v", got)
	}
}

func TestAdmitSetsRetryAfter(t *testing.T) {
	log, err := logger.New("development")
	if err != nil {
		t.Fatal(err)
	}
	h := &AnalysisHandler{
		limiter: ratelimit.New(1, 0, time.Minute),
		log:     log,
	}

	c, _ := testContext(t)
	if !h.admit(c, "tenant-a", "analysis:batch") {
		t.Fatal("first request rejected")
	}

	c2, rec2 := testContext(t)
	if h.admit(c2, "tenant-a", "analysis:batch") {
		t.Fatal("second request admitted over limit")
	}
	if rec2.Code != http.StatusTooManyRequests {
		t.Fatalf("status=%d", rec2.Code)
	}
	if rec2.Header().Get("Retry-After") == "" {
		t.Fatal("Retry-After header missing")
	}
	if env := decodeError(t, rec2); env.Error.Code != "rate_limited" {
		t.Fatalf("code=%q", env.Error.Code)
	}
}
