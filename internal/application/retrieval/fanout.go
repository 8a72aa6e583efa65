package retrieval

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/voiceops-ai/callground/internal/domain/knowledge"
)

// CategorySpec is one category to retrieve with its result-count limit.
type CategorySpec struct {
	Category knowledge.Category
	Limit    int
}

// CategoryResult is the total outcome of one category's retrieval.
// A timeout or store error degrades the category to an empty result
// instead of failing the join.
type CategoryResult struct {
	Category knowledge.Category
	Results  []knowledge.Result
	TimedOut bool
	Err      error
}

// FanOut issues one similarity query per category concurrently and joins
// them. The join blocks on the slowest category, bounded by the
// per-category timeout. Categories are retrieved independently; there is
// no cross-category re-ranking.
func FanOut(ctx context.Context, store knowledge.Store, embedding []float32, specs []CategorySpec, timeout time.Duration) map[knowledge.Category]CategoryResult {
	out := make(map[knowledge.Category]CategoryResult, len(specs))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, spec := range specs {
		wg.Add(1)
		go func(spec CategorySpec) {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			res := CategoryResult{Category: spec.Category}
			docs, err := store.Search(cctx, spec.Category, embedding, spec.Limit)
			switch {
			case err == nil:
				res.Results = docs
			case errors.Is(err, context.DeadlineExceeded):
				res.TimedOut = true
			default:
				res.Err = err
			}

			mu.Lock()
			out[spec.Category] = res
			mu.Unlock()
		}(spec)
	}

	wg.Wait()
	return out
}
