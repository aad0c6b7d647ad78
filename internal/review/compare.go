package review

import (
	"context"
	"sync"

	"github.com/reviewkit/reviewkit/internal/models"
)

// Compare fans the same review out to every available model and collects the
// results keyed by model ID. Each model's failure becomes its own Error
// result; goroutines write to disjoint slice slots, so no lock is needed.
func (r *Reviewer) Compare(ctx context.Context, code, language string, technique models.Technique) map[string]*models.ReviewResult {
	ids := availableIDs(ctx, r.source)
	if len(ids) == 0 {
		return map[string]*models.ReviewResult{}
	}

	results := make([]*models.ReviewResult, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			results[i] = r.Review(ctx, code, language, technique, id)
		}(i, id)
	}
	wg.Wait()

	out := make(map[string]*models.ReviewResult, len(ids))
	for i, id := range ids {
		out[id] = results[i]
	}
	return out
}

func availableIDs(ctx context.Context, source ModelSource) []string {
	avail := source.Available(ctx)
	ids := make([]string, 0, len(avail))
	for id := range avail {
		ids = append(ids, id)
	}
	return ids
}

// FirstAvailable picks a default model when the caller did not name one.
func FirstAvailable(ctx context.Context, source ModelSource) (string, bool) {
	ids := availableIDs(ctx, source)
	if len(ids) == 0 {
		return "", false
	}
	min := ids[0]
	for _, id := range ids[1:] {
		if id < min {
			min = id
		}
	}
	return min, true
}
