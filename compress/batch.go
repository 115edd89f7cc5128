package compress

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/contextfit/types"
)

// BatchItem is one independent compression job.
type BatchItem struct {
	Strategy types.Strategy
	Content  string
	Target   int
}

// Batch compresses independent items concurrently, at most limit at a time
// (0 means unbounded). Results come back in input order; the first error
// cancels the remaining jobs and fails the whole batch.
func (r *Registry) Batch(ctx context.Context, items []BatchItem, limit int) ([]*Result, error) {
	results := make([]*Result, len(items))

	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, item := range items {
		g.Go(func() error {
			res, err := r.Reduce(gctx, item.Strategy, item.Content, item.Target)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
