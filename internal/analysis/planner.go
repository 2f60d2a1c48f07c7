// Package analysis drives a tenant's transaction classification job to
// completion in bounded, idempotent chunks. The planner is the only source
// of window determinism; everything downstream relies on it to make caller
// retries safe.
package analysis

// Chunk sizing. The default keeps a serial worst case well inside the
// compute-backend time budget; the cap is a hard ceiling.
const (
	DefaultChunkSize = 25
	MaxChunkSize     = 50
)

// Window is a half-open index range [Start, End) over the tenant's ordered
// transaction list.
type Window struct {
	Start int
	End   int
}

func (w Window) Empty() bool {
	return w.Start >= w.End
}

func (w Window) Len() int {
	if w.Empty() {
		return 0
	}
	return w.End - w.Start
}

// ClampChunkSize normalizes a requested chunk size to [1, MaxChunkSize],
// defaulting when unset.
func ClampChunkSize(size int) int {
	if size <= 0 {
		return DefaultChunkSize
	}
	if size > MaxChunkSize {
		return MaxChunkSize
	}
	return size
}

// Plan maps (totalItems, chunkIndex, chunkSize) to a window. Pure: identical
// inputs always yield the identical window, which is what makes a retried
// chunk target exactly the same transactions. An empty window is the
// completion signal, not an error.
func Plan(totalItems, chunkIndex, chunkSize int) Window {
	if totalItems < 0 {
		totalItems = 0
	}
	if chunkIndex < 0 {
		chunkIndex = 0
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	// Any index past totalItems/chunkSize starts at or beyond the end;
	// comparing before multiplying keeps a huge index from overflowing
	// into a negative window.
	if chunkIndex > totalItems/chunkSize {
		return Window{Start: totalItems, End: totalItems}
	}

	start := chunkIndex * chunkSize
	if start > totalItems {
		start = totalItems
	}
	end := start + chunkSize
	if end > totalItems {
		end = totalItems
	}
	return Window{Start: start, End: end}
}
