package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/CleanExpo/ATO-sub007/internal/platform/logger"
	"github.com/CleanExpo/ATO-sub007/internal/platform/openai"
	"github.com/CleanExpo/ATO-sub007/internal/types"
)

// fallbackTransactionKey is used when a source transaction carries no natural
// identifier. Two such transactions collapse to one stored record; the
// persister logs the collapse so the loss is visible.
const fallbackTransactionKey = "unknown"

const classifierSystemPrompt = `You are an Australian tax accountant classifying business bank transactions for ATO compliance.
For each transaction, determine the expense category, deduction treatment, R&D (Division 355) eligibility, and any FBT or Division 7A exposure.
Confidence values are percentages from 0 to 100. Be conservative: flag anything uncertain as requiring documentation.`

// TaxClassifier classifies one transaction per call through the OpenAI
// structured-output endpoint.
type TaxClassifier struct {
	client openai.Client
	log    *logger.Logger
}

func NewTaxClassifier(client openai.Client, baseLog *logger.Logger) *TaxClassifier {
	return &TaxClassifier{
		client: client,
		log:    baseLog.With("component", "TaxClassifier"),
	}
}

type taxVerdict struct {
	PrimaryCategory       string   `json:"primary_category"`
	CategoryConfidence    float64  `json:"category_confidence"`
	DeductionType         string   `json:"deduction_type"`
	ClaimableAmount       float64  `json:"claimable_amount"`
	FullyDeductible       bool     `json:"is_fully_deductible"`
	RnDCandidate          bool     `json:"is_rnd_candidate"`
	RnDConfidence         float64  `json:"rnd_confidence"`
	RnDReasoning          string   `json:"rnd_reasoning"`
	FBTImplications       bool     `json:"fbt_implications"`
	Division7ARisk        bool     `json:"division7a_risk"`
	RequiresDocumentation bool     `json:"requires_documentation"`
	ComplianceNotes       []string `json:"compliance_notes"`
}

func (tc *TaxClassifier) ClassifyTransaction(ctx context.Context, txn types.CachedTransaction, bc BusinessContext) (Classification, error) {
	user := buildTransactionPrompt(txn, bc)

	obj, err := tc.client.GenerateJSON(ctx, classifierSystemPrompt, user, "transaction_classification", verdictSchema())
	if err != nil {
		return Classification{}, fmt.Errorf("classify transaction %q: %w", transactionKey(txn), err)
	}

	raw, err := json.Marshal(obj)
	if err != nil {
		return Classification{}, err
	}
	var v taxVerdict
	if err := json.Unmarshal(raw, &v); err != nil {
		return Classification{}, fmt.Errorf("malformed classifier output: %w", err)
	}

	return Classification{
		TransactionID:         transactionKey(txn),
		FinancialYear:         FinancialYear(txn.TxnDate),
		PrimaryCategory:       v.PrimaryCategory,
		CategoryConfidence:    clampConfidence(v.CategoryConfidence),
		DeductionType:         v.DeductionType,
		ClaimableAmount:       v.ClaimableAmount,
		FullyDeductible:       v.FullyDeductible,
		RnDCandidate:          v.RnDCandidate,
		RnDConfidence:         clampConfidence(v.RnDConfidence),
		RnDReasoning:          v.RnDReasoning,
		FBTImplications:       v.FBTImplications,
		Division7ARisk:        v.Division7ARisk,
		RequiresDocumentation: v.RequiresDocumentation,
		ComplianceNotes:       v.ComplianceNotes,
	}, nil
}

func transactionKey(txn types.CachedTransaction) string {
	if id := strings.TrimSpace(txn.TransactionID); id != "" {
		return id
	}
	return fallbackTransactionKey
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func buildTransactionPrompt(txn types.CachedTransaction, bc BusinessContext) string {
	var b strings.Builder
	if bc.BusinessName != "" {
		fmt.Fprintf(&b, "Business: %s\n", bc.BusinessName)
	}
	if bc.Industry != "" {
		fmt.Fprintf(&b, "Industry: %s\n", bc.Industry)
	}
	if bc.ABN != "" {
		fmt.Fprintf(&b, "ABN: %s\n", bc.ABN)
	}
	fmt.Fprintf(&b, "Financial year: %s\n\n", FinancialYear(txn.TxnDate))
	fmt.Fprintf(&b, "Transaction:\n")
	fmt.Fprintf(&b, "  Date: %s\n", txn.TxnDate.Format("2006-01-02"))
	fmt.Fprintf(&b, "  Supplier: %s\n", txn.SupplierName)
	fmt.Fprintf(&b, "  Amount: %.2f AUD\n", txn.Amount)
	if txn.AccountCode != "" {
		fmt.Fprintf(&b, "  Account code: %s\n", txn.AccountCode)
	}
	fmt.Fprintf(&b, "  Description: %s\n", txn.Description)
	return b.String()
}

func verdictSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"primary_category":       map[string]any{"type": "string"},
			"category_confidence":    map[string]any{"type": "number"},
			"deduction_type":         map[string]any{"type": "string"},
			"claimable_amount":       map[string]any{"type": "number"},
			"is_fully_deductible":    map[string]any{"type": "boolean"},
			"is_rnd_candidate":       map[string]any{"type": "boolean"},
			"rnd_confidence":         map[string]any{"type": "number"},
			"rnd_reasoning":          map[string]any{"type": "string"},
			"fbt_implications":       map[string]any{"type": "boolean"},
			"division7a_risk":        map[string]any{"type": "boolean"},
			"requires_documentation": map[string]any{"type": "boolean"},
			"compliance_notes":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required": []string{
			"primary_category", "category_confidence", "deduction_type",
			"claimable_amount", "is_fully_deductible", "is_rnd_candidate",
			"rnd_confidence", "rnd_reasoning", "fbt_implications",
			"division7a_risk", "requires_documentation", "compliance_notes",
		},
		"additionalProperties": false,
	}
}
