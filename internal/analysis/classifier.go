package analysis

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/CleanExpo/ATO-sub007/internal/platform/logger"
	"github.com/CleanExpo/ATO-sub007/internal/types"
)

// Classification is one transaction's parsed classifier verdict.
type Classification struct {
	TransactionID         string
	FinancialYear         string
	PrimaryCategory       string
	CategoryConfidence    float64
	DeductionType         string
	ClaimableAmount       float64
	FullyDeductible       bool
	RnDCandidate          bool
	RnDConfidence         float64
	RnDReasoning          string
	FBTImplications       bool
	Division7ARisk        bool
	RequiresDocumentation bool
	ComplianceNotes       []string
}

// BusinessContext is the tenant profile threaded into the classifier prompt.
type BusinessContext struct {
	BusinessName string
	Industry     string
	ABN          string
}

// Classifier produces a verdict for a single transaction.
type Classifier interface {
	ClassifyTransaction(ctx context.Context, txn types.CachedTransaction, bc BusinessContext) (Classification, error)
}

// DefaultConcurrency bounds the classifier fan-out per chunk.
const DefaultConcurrency = 5

// Invoker runs bounded-concurrency classification over one chunk.
// Whole-chunk-or-nothing: if any item fails, the chunk fails and no partial
// results escape. A retried step re-plans the same window and starts over.
type Invoker struct {
	classifier  Classifier
	concurrency int
	log         *logger.Logger
}

func NewInvoker(classifier Classifier, concurrency int, baseLog *logger.Logger) *Invoker {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Invoker{
		classifier:  classifier,
		concurrency: concurrency,
		log:         baseLog.With("component", "Invoker"),
	}
}

// Classify returns results in the same order as txns, or an error with no
// results at all. onProgress is observational only; it is called after each
// completion with (completed, total) and may be nil.
func (inv *Invoker) Classify(ctx context.Context, txns []types.CachedTransaction, bc BusinessContext, onProgress func(completed, total int)) ([]Classification, error) {
	if len(txns) == 0 {
		return []Classification{}, nil
	}

	results := make([]Classification, len(txns))
	var mu sync.Mutex
	completed := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(inv.concurrency)
	for i := range txns {
		g.Go(func() error {
			res, err := inv.classifier.ClassifyTransaction(gctx, txns[i], bc)
			if err != nil {
				return err
			}
			results[i] = res

			mu.Lock()
			completed++
			done := completed
			mu.Unlock()
			if onProgress != nil {
				onProgress(done, len(txns))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
