// Package listing keeps the state of the paginated learner list view.
package listing

import (
	"context"
	"fmt"

	"github.com/verte-zerg/figexport/internal/aggregate"
	"github.com/verte-zerg/figexport/internal/model"
	"github.com/verte-zerg/figexport/internal/query"
)

// DefaultPerPage matches the list view's initial page size.
const DefaultPerPage = 20

// Lister drives one page request at a time and remembers the last good page.
type Lister struct {
	fetcher aggregate.PageFetcher
	query   model.Query
	perPage int

	learners    []model.Learner
	count       int
	pages       int
	currentPage int
	err         error
}

// New constructs a Lister for q.
func New(fetcher aggregate.PageFetcher, q model.Query, perPage int) *Lister {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if q.Ordering == "" {
		q.Ordering = query.DefaultOrdering
	}
	return &Lister{fetcher: fetcher, query: q.Clone(), perPage: perPage, currentPage: 1}
}

// Query returns a copy of the current filter and sort state.
func (l *Lister) Query() model.Query {
	return l.query.Clone()
}

// Active reports whether a search term or course filter is set. The list
// stays empty until one is.
func (l *Lister) Active() bool {
	return l.query.Active()
}

// Learners returns the learners of the last successful page.
func (l *Lister) Learners() []model.Learner {
	return l.learners
}

// Count returns the total number of matching learners.
func (l *Lister) Count() int {
	return l.count
}

// Pages returns the number of pages for the current filter.
func (l *Lister) Pages() int {
	return l.pages
}

// CurrentPage returns the 1-based page shown.
func (l *Lister) CurrentPage() int {
	return l.currentPage
}

// PerPage returns the page size.
func (l *Lister) PerPage() int {
	return l.perPage
}

// Err returns the error of the last load, if any.
func (l *Lister) Err() error {
	return l.err
}

// Load fetches page (1-based). On failure the previous page stays in place
// and Err reports the failure.
func (l *Lister) Load(ctx context.Context, page int) error {
	if page < 1 {
		page = 1
	}
	if l.pages > 0 && page > l.pages {
		page = l.pages
	}
	resp, err := l.fetcher.FetchPage(ctx, l.query, l.perPage, query.PageOffset(page, l.perPage))
	if err != nil {
		l.err = fmt.Errorf("failed to load page %d: %w", page, err)
		return l.err
	}
	l.err = nil
	l.learners = resp.Results
	l.count = resp.Count
	l.pages = query.PageCount(resp.Count, l.perPage)
	l.currentPage = page
	return nil
}

// Refresh reloads from page 1 when the list is active and clears it otherwise.
func (l *Lister) Refresh(ctx context.Context) error {
	if !l.Active() {
		l.learners = nil
		l.count = 0
		l.pages = 0
		l.currentPage = 1
		l.err = nil
		return nil
	}
	return l.Load(ctx, 1)
}

// Next loads the following page, if any.
func (l *Lister) Next(ctx context.Context) error {
	if l.currentPage >= l.pages {
		return nil
	}
	return l.Load(ctx, l.currentPage+1)
}

// Prev loads the preceding page, if any.
func (l *Lister) Prev(ctx context.Context) error {
	if l.currentPage <= 1 {
		return nil
	}
	return l.Load(ctx, l.currentPage-1)
}

// SetSearch changes the search term and reloads.
func (l *Lister) SetSearch(ctx context.Context, search string) error {
	l.query.Search = search
	return l.Refresh(ctx)
}

// SetCourses changes the course filter and reloads.
func (l *Lister) SetCourses(ctx context.Context, ids []model.ID) error {
	l.query.CourseIDs = append([]model.ID(nil), ids...)
	return l.Refresh(ctx)
}

// SetOrdering changes the ordering and reloads.
func (l *Lister) SetOrdering(ctx context.Context, ordering string) error {
	l.query.Ordering = ordering
	return l.Refresh(ctx)
}

// ToggleOrdering flips the sort on field and reloads.
func (l *Lister) ToggleOrdering(ctx context.Context, field string) error {
	return l.SetOrdering(ctx, query.ToggleOrdering(l.query.Ordering, field))
}

// SetPerPage changes the page size and reloads.
func (l *Lister) SetPerPage(ctx context.Context, perPage int) error {
	if perPage <= 0 {
		return fmt.Errorf("per-page must be greater than 0")
	}
	l.perPage = perPage
	return l.Refresh(ctx)
}
