package listing

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/figexport/internal/model"
)

type call struct {
	query  model.Query
	limit  int
	offset int
}

type stubFetcher struct {
	total int
	fail  bool
	calls []call
}

func (s *stubFetcher) FetchPage(_ context.Context, q model.Query, limit, offset int) (model.Page[model.Learner], error) {
	s.calls = append(s.calls, call{query: q, limit: limit, offset: offset})
	if s.fail {
		return model.Page[model.Learner]{}, errors.New("unreachable")
	}
	page := model.Page[model.Learner]{Count: s.total}
	for i := offset; i < s.total && i < offset+limit; i++ {
		page.Results = append(page.Results, model.Learner{ID: model.ID(fmt.Sprint(i))})
	}
	return page, nil
}

func TestInactiveListDoesNotFetch(t *testing.T) {
	f := &stubFetcher{total: 50}
	l := New(f, model.Query{}, 0)
	require.NoError(t, l.Refresh(context.Background()))
	require.Empty(t, f.calls)
	require.Equal(t, DefaultPerPage, l.PerPage())
	require.Equal(t, "profile__name", l.Query().Ordering)
}

func TestSearchLoadsFirstPage(t *testing.T) {
	f := &stubFetcher{total: 45}
	l := New(f, model.Query{}, 20)
	require.NoError(t, l.SetSearch(context.Background(), "jo"))
	require.Len(t, l.Learners(), 20)
	require.Equal(t, 45, l.Count())
	require.Equal(t, 3, l.Pages())
	require.Equal(t, 1, l.CurrentPage())
	require.Equal(t, call{query: model.Query{Search: "jo", Ordering: "profile__name"}, limit: 20, offset: 0}, f.calls[0])
}

func TestPaging(t *testing.T) {
	ctx := context.Background()
	f := &stubFetcher{total: 45}
	l := New(f, model.Query{Search: "x"}, 20)
	require.NoError(t, l.Refresh(ctx))
	require.NoError(t, l.Next(ctx))
	require.NoError(t, l.Next(ctx))
	require.Equal(t, 3, l.CurrentPage())
	require.Len(t, l.Learners(), 5)
	require.NoError(t, l.Next(ctx))
	require.Len(t, f.calls, 3)
	require.NoError(t, l.Prev(ctx))
	require.Equal(t, 2, l.CurrentPage())
	require.Equal(t, 20, f.calls[len(f.calls)-1].offset)
}

func TestErrorKeepsPreviousPage(t *testing.T) {
	ctx := context.Background()
	f := &stubFetcher{total: 30}
	l := New(f, model.Query{Search: "x"}, 10)
	require.NoError(t, l.Refresh(ctx))
	before := l.Learners()

	f.fail = true
	err := l.Next(ctx)
	require.Error(t, err)
	require.Equal(t, err, l.Err())
	require.Equal(t, before, l.Learners())
	require.Equal(t, 1, l.CurrentPage())

	f.fail = false
	require.NoError(t, l.Next(ctx))
	require.NoError(t, l.Err())
	require.Equal(t, 2, l.CurrentPage())
}

func TestToggleOrderingAndFilters(t *testing.T) {
	ctx := context.Background()
	f := &stubFetcher{total: 3}
	l := New(f, model.Query{Search: "x"}, 10)
	require.NoError(t, l.ToggleOrdering(ctx, "profile__name"))
	require.Equal(t, "-profile__name", l.Query().Ordering)
	require.NoError(t, l.ToggleOrdering(ctx, "email"))
	require.Equal(t, "email", l.Query().Ordering)

	require.NoError(t, l.SetCourses(ctx, []model.ID{"C1"}))
	require.Equal(t, []model.ID{"C1"}, f.calls[len(f.calls)-1].query.CourseIDs)

	require.NoError(t, l.SetPerPage(ctx, 2))
	require.Equal(t, 2, l.Pages())
	require.Error(t, l.SetPerPage(ctx, 0))

	require.NoError(t, l.SetSearch(ctx, ""))
	require.True(t, l.Active())
	require.NoError(t, l.SetCourses(ctx, nil))
	require.False(t, l.Active())
	require.Empty(t, l.Learners())
}
