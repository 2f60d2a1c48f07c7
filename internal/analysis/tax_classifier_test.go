package analysis

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/CleanExpo/ATO-sub007/internal/types"
)

type fakeOpenAI struct {
	lastSystem string
	lastUser   string
	verdict    map[string]any
	err        error
}

func (f *fakeOpenAI) GenerateJSON(_ context.Context, system, user, _ string, _ map[string]any) (map[string]any, error) {
	f.lastSystem = system
	f.lastUser = user
	if f.err != nil {
		return nil, f.err
	}
	return f.verdict, nil
}

func baseVerdict() map[string]any {
	return map[string]any{
		"primary_category":       "Software & Subscriptions",
		"category_confidence":    float64(92),
		"deduction_type":         "operating_expense",
		"claimable_amount":       149.99,
		"is_fully_deductible":    true,
		"is_rnd_candidate":       false,
		"rnd_confidence":         float64(5),
		"rnd_reasoning":          "routine subscription",
		"fbt_implications":       false,
		"division7a_risk":        false,
		"requires_documentation": false,
		"compliance_notes":       []any{"GST included"},
	}
}

func TestTaxClassifierParsesVerdict(t *testing.T) {
	fake := &fakeOpenAI{verdict: baseVerdict()}
	tc := NewTaxClassifier(fake, testLogger(t))

	txn := types.CachedTransaction{
		TransactionID: "xero-123",
		TxnDate:       time.Date(2024, 9, 10, 0, 0, 0, 0, time.UTC),
		SupplierName:  "Adobe",
		Description:   "Creative Cloud subscription",
		Amount:        149.99,
	}
	got, err := tc.ClassifyTransaction(context.Background(), txn, BusinessContext{
		BusinessName: "Acme Restorations",
		Industry:     "Building services",
	})
	if err != nil {
		t.Fatal(err)
	}

	if got.TransactionID != "xero-123" {
		t.Fatalf("TransactionID=%q", got.TransactionID)
	}
	if got.FinancialYear != "FY2024-25" {
		t.Fatalf("FinancialYear=%q, want FY2024-25", got.FinancialYear)
	}
	if got.PrimaryCategory != "Software & Subscriptions" || got.CategoryConfidence != 92 {
		t.Fatalf("category=%q confidence=%v", got.PrimaryCategory, got.CategoryConfidence)
	}
	if !got.FullyDeductible || got.ClaimableAmount != 149.99 {
		t.Fatalf("deduction fields wrong: %+v", got)
	}
	if len(got.ComplianceNotes) != 1 || got.ComplianceNotes[0] != "GST included" {
		t.Fatalf("ComplianceNotes=%v", got.ComplianceNotes)
	}

	if !strings.Contains(fake.lastUser, "Acme Restorations") {
		t.Fatal("business name missing from prompt")
	}
	if !strings.Contains(fake.lastUser, "Adobe") {
		t.Fatal("supplier missing from prompt")
	}
}

func TestTaxClassifierFallbackKey(t *testing.T) {
	fake := &fakeOpenAI{verdict: baseVerdict()}
	tc := NewTaxClassifier(fake, testLogger(t))

	txn := types.CachedTransaction{
		TransactionID: "   ",
		TxnDate:       time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	got, err := tc.ClassifyTransaction(context.Background(), txn, BusinessContext{})
	if err != nil {
		t.Fatal(err)
	}
	if got.TransactionID != fallbackTransactionKey {
		t.Fatalf("TransactionID=%q, want %q", got.TransactionID, fallbackTransactionKey)
	}
	if got.FinancialYear != "FY2022-23" {
		t.Fatalf("FinancialYear=%q, want FY2022-23", got.FinancialYear)
	}
}

func TestTaxClassifierClampsConfidence(t *testing.T) {
	verdict := baseVerdict()
	verdict["category_confidence"] = float64(140)
	verdict["rnd_confidence"] = float64(-12)
	fake := &fakeOpenAI{verdict: verdict}
	tc := NewTaxClassifier(fake, testLogger(t))

	got, err := tc.ClassifyTransaction(context.Background(), types.CachedTransaction{
		TransactionID: "t1",
		TxnDate:       time.Now(),
	}, BusinessContext{})
	if err != nil {
		t.Fatal(err)
	}
	if got.CategoryConfidence != 100 {
		t.Fatalf("CategoryConfidence=%v, want clamped to 100", got.CategoryConfidence)
	}
	if got.RnDConfidence != 0 {
		t.Fatalf("RnDConfidence=%v, want clamped to 0", got.RnDConfidence)
	}
}
