package engine

import (
	"context"

	"github.com/couchcryptid/storm-hazard-routing/internal/domain"
	"golang.org/x/sync/errgroup"
)

// BatchResult is the outcome of one report in a batch. Exactly one of
// Result and Err is meaningful.
type BatchResult struct {
	Index  int
	Result domain.IngestResult
	Err    error
}

// SubmitBatch ingests reports concurrently, at most Workers at a time. A
// rejected report does not stop the others; results are returned in input
// order.
func (e *Engine) SubmitBatch(ctx context.Context, reports []domain.Report) []BatchResult {
	results := make([]BatchResult, len(reports))
	var g errgroup.Group
	g.SetLimit(e.opts.Workers)
	for i, r := range reports {
		g.Go(func() error {
			res, err := e.SubmitReport(ctx, r)
			results[i] = BatchResult{Index: i, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Accepted counts the results without an error.
func Accepted(results []BatchResult) int {
	n := 0
	for _, r := range results {
		if r.Err == nil {
			n++
		}
	}
	return n
}
