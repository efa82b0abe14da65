// Package aggregate pages through a learner listing until it is exhausted.
package aggregate

import (
	"context"
	"errors"
	"fmt"

	"github.com/verte-zerg/figexport/internal/model"
)

// MaxRunningProgress is the highest progress value reported before the
// aggregation has finished.
const MaxRunningProgress = 0.99

// maxPrealloc caps the capacity taken from the server-reported count.
const maxPrealloc = 100_000

// ErrPageLimit is returned when Options.MaxPages requests were issued
// without reaching an empty page.
var ErrPageLimit = errors.New("page limit reached before an empty page")

// AggregationError reports that a full-set aggregation was abandoned.
type AggregationError struct {
	Page   int
	Offset int
	Err    error
}

// Error implements the error interface.
func (e *AggregationError) Error() string {
	return fmt.Sprintf("aggregation aborted at page %d (offset %d): %v", e.Page, e.Offset, e.Err)
}

// Unwrap returns the page failure.
func (e *AggregationError) Unwrap() error {
	return e.Err
}

// PageFetcher fetches one window of the learner listing.
type PageFetcher interface {
	FetchPage(ctx context.Context, q model.Query, limit, offset int) (model.Page[model.Learner], error)
}

// ProgressFunc receives progress fractions in [0, 1].
type ProgressFunc func(float64)

// Options configures an aggregation run.
type Options struct {
	Query    model.Query
	PageSize int
	// MaxPages bounds the number of requests. Zero means unlimited.
	MaxPages int
	Progress ProgressFunc
}

// Result is the outcome of a successful aggregation.
type Result struct {
	Learners []model.Learner
	// Requests counts page requests issued, including the final empty page.
	Requests int
	// ReportedCount is the count returned with the first page.
	ReportedCount int
}

// All fetches pages at offsets 0, pageSize, 2*pageSize, ... one at a time
// and stops at the first empty page. The count reported by the server is
// only used for progress, so records added while the export runs are still
// picked up. Any failure discards everything fetched so far.
func All(ctx context.Context, fetcher PageFetcher, opts Options) (Result, error) {
	if opts.PageSize <= 0 {
		return Result{}, fmt.Errorf("page size must be greater than 0")
	}
	progress := tracker{fn: opts.Progress}

	var learners []model.Learner
	total := 0
	for page := 0; ; page++ {
		offset := page * opts.PageSize
		if err := ctx.Err(); err != nil {
			return Result{}, &AggregationError{Page: page, Offset: offset, Err: err}
		}
		if opts.MaxPages > 0 && page >= opts.MaxPages {
			return Result{}, &AggregationError{Page: page, Offset: offset, Err: ErrPageLimit}
		}

		resp, err := fetcher.FetchPage(ctx, opts.Query, opts.PageSize, offset)
		if err != nil {
			return Result{}, &AggregationError{Page: page, Offset: offset, Err: err}
		}
		if page == 0 {
			total = resp.Count
			learners = make([]model.Learner, 0, min(max(total, 0), maxPrealloc))
		}
		if len(resp.Results) == 0 {
			progress.finish()
			return Result{Learners: learners, Requests: page + 1, ReportedCount: total}, nil
		}
		learners = append(learners, resp.Results...)
		progress.report(fraction(page+1, opts.PageSize, total))
	}
}

func fraction(pages, pageSize, total int) float64 {
	if total <= 0 {
		return MaxRunningProgress
	}
	return float64(pages*pageSize) / float64(total)
}

type tracker struct {
	fn   ProgressFunc
	last float64
}

func (t *tracker) report(v float64) {
	if t.fn == nil {
		return
	}
	if v > MaxRunningProgress {
		v = MaxRunningProgress
	}
	if v < t.last {
		v = t.last
	}
	t.last = v
	t.fn(v)
}

func (t *tracker) finish() {
	if t.fn == nil {
		return
	}
	t.last = 1
	t.fn(1)
}
