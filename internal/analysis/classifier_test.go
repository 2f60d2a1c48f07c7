package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/CleanExpo/ATO-sub007/internal/platform/logger"
	"github.com/CleanExpo/ATO-sub007/internal/types"
)

type funcClassifier struct {
	fn func(ctx context.Context, txn types.CachedTransaction) (Classification, error)
}

func (f *funcClassifier) ClassifyTransaction(ctx context.Context, txn types.CachedTransaction, _ BusinessContext) (Classification, error) {
	return f.fn(ctx, txn)
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatal(err)
	}
	return log
}

func makeTxns(n int) []types.CachedTransaction {
	txns := make([]types.CachedTransaction, n)
	for i := range txns {
		txns[i] = types.CachedTransaction{
			ID:            uuid.New(),
			TransactionID: fmt.Sprintf("txn-%03d", i),
			TxnDate:       time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
			Amount:        float64(i) + 0.5,
		}
	}
	return txns
}

func TestInvokerPreservesOrder(t *testing.T) {
	cl := &funcClassifier{fn: func(_ context.Context, txn types.CachedTransaction) (Classification, error) {
		return Classification{TransactionID: txn.TransactionID, PrimaryCategory: "Software"}, nil
	}}
	inv := NewInvoker(cl, 5, testLogger(t))

	txns := makeTxns(17)
	results, err := inv.Classify(context.Background(), txns, BusinessContext{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != len(txns) {
		t.Fatalf("got %d results, want %d", len(results), len(txns))
	}
	for i, r := range results {
		if r.TransactionID != txns[i].TransactionID {
			t.Fatalf("result %d has key %q, want %q", i, r.TransactionID, txns[i].TransactionID)
		}
	}
}

func TestInvokerBoundsConcurrency(t *testing.T) {
	const limit = 3
	var inFlight, peak int64
	cl := &funcClassifier{fn: func(_ context.Context, txn types.CachedTransaction) (Classification, error) {
		cur := atomic.AddInt64(&inFlight, 1)
		for {
			prev := atomic.LoadInt64(&peak)
			if cur <= prev || atomic.CompareAndSwapInt64(&peak, prev, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt64(&inFlight, -1)
		return Classification{TransactionID: txn.TransactionID}, nil
	}}
	inv := NewInvoker(cl, limit, testLogger(t))

	if _, err := inv.Classify(context.Background(), makeTxns(20), BusinessContext{}, nil); err != nil {
		t.Fatal(err)
	}
	if got := atomic.LoadInt64(&peak); got > limit {
		t.Fatalf("peak concurrency %d exceeded limit %d", got, limit)
	}
}

func TestInvokerWholeChunkOrNothing(t *testing.T) {
	boom := errors.New("quota exhausted")
	cl := &funcClassifier{fn: func(_ context.Context, txn types.CachedTransaction) (Classification, error) {
		if txn.TransactionID == "txn-007" {
			return Classification{}, boom
		}
		return Classification{TransactionID: txn.TransactionID}, nil
	}}
	inv := NewInvoker(cl, 5, testLogger(t))

	results, err := inv.Classify(context.Background(), makeTxns(15), BusinessContext{}, nil)
	if err == nil {
		t.Fatal("expected error when one item fails")
	}
	if !errors.Is(err, boom) {
		t.Fatalf("error %v does not wrap the item failure", err)
	}
	if results != nil {
		t.Fatalf("expected no partial results, got %d", len(results))
	}
}

func TestInvokerProgressCallback(t *testing.T) {
	cl := &funcClassifier{fn: func(_ context.Context, txn types.CachedTransaction) (Classification, error) {
		return Classification{TransactionID: txn.TransactionID}, nil
	}}
	inv := NewInvoker(cl, 4, testLogger(t))

	var mu sync.Mutex
	var calls []int
	_, err := inv.Classify(context.Background(), makeTxns(9), BusinessContext{}, func(completed, total int) {
		mu.Lock()
		defer mu.Unlock()
		if total != 9 {
			t.Errorf("callback total=%d, want 9", total)
		}
		calls = append(calls, completed)
	})
	if err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(calls) != 9 {
		t.Fatalf("callback fired %d times, want 9", len(calls))
	}
	seen := map[int]bool{}
	for _, c := range calls {
		seen[c] = true
	}
	for i := 1; i <= 9; i++ {
		if !seen[i] {
			t.Fatalf("callback never reported completed=%d", i)
		}
	}
}

func TestInvokerEmptyChunk(t *testing.T) {
	cl := &funcClassifier{fn: func(_ context.Context, _ types.CachedTransaction) (Classification, error) {
		t.Fatal("classifier must not be called for an empty chunk")
		return Classification{}, nil
	}}
	inv := NewInvoker(cl, 5, testLogger(t))

	results, err := inv.Classify(context.Background(), nil, BusinessContext{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Fatalf("got %d results for empty chunk", len(results))
	}
}
