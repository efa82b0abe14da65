package browseui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/figexport/internal/listing"
	"github.com/verte-zerg/figexport/internal/model"
)

type stubFetcher struct {
	total   int
	fail    bool
	queries []model.Query
}

func (s *stubFetcher) FetchPage(_ context.Context, q model.Query, limit, offset int) (model.Page[model.Learner], error) {
	s.queries = append(s.queries, q)
	if s.fail {
		return model.Page[model.Learner]{}, errors.New("status 502")
	}
	page := model.Page[model.Learner]{Count: s.total}
	for i := offset; i < s.total && i < offset+limit; i++ {
		page.Results = append(page.Results, model.Learner{
			ID:       model.ID(fmt.Sprint(i)),
			Fullname: fmt.Sprintf("Learner %d", i),
			Username: fmt.Sprintf("l%d", i),
		})
	}
	return page, nil
}

var courses = []model.Course{
	{ID: "course-v1:Org+CS101+2020", Name: "Intro", Number: "CS101"},
	{ID: "course-v1:Org+MA201+2020", Name: "Algebra", Number: "MA201"},
}

func newTestModel(f *stubFetcher, q model.Query, perPage int) *Model {
	m := NewModel(context.Background(), listing.New(f, q, perPage), courses)
	m.Update(tea.WindowSizeMsg{Width: 200, Height: 40})
	return m
}

func keys(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func typeText(m *Model, s string) {
	for _, r := range s {
		m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

func TestInactiveBrowserShowsHint(t *testing.T) {
	f := &stubFetcher{total: 5}
	m := newTestModel(f, model.Query{}, 0)

	require.Empty(t, f.queries)
	require.Contains(t, m.View(), "Enter a search term")

	m.Update(keys("e"))
	require.False(t, m.ExportRequested())
	require.Contains(t, m.View(), "before exporting")
}

func TestSearchInputLoadsLearners(t *testing.T) {
	f := &stubFetcher{total: 3}
	m := newTestModel(f, model.Query{}, 0)

	m.Update(keys("/"))
	typeText(m, "lea")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	require.Len(t, f.queries, 1)
	require.Equal(t, "lea", f.queries[0].Search)
	view := m.View()
	require.Contains(t, view, "Learner 0")
	require.Contains(t, view, "Page 1/1 (3 learners")
	require.Contains(t, view, "CS101")
}

func TestCourseFilterByNumber(t *testing.T) {
	f := &stubFetcher{total: 1}
	m := newTestModel(f, model.Query{}, 0)

	m.Update(keys("c"))
	typeText(m, "ma201")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	require.Equal(t, []model.ID{"course-v1:Org+MA201+2020"}, m.Query().CourseIDs)
	require.Len(t, m.columns, 1)
}

func TestEscapeCancelsInput(t *testing.T) {
	f := &stubFetcher{total: 1}
	m := newTestModel(f, model.Query{Search: "a"}, 0)
	calls := len(f.queries)

	m.Update(keys("/"))
	typeText(m, "zzz")
	m.Update(tea.KeyMsg{Type: tea.KeyEsc})

	require.Len(t, f.queries, calls)
	require.Equal(t, "a", m.Query().Search)
}

func TestSortPagingAndExport(t *testing.T) {
	f := &stubFetcher{total: 45}
	m := newTestModel(f, model.Query{Search: "l"}, 20)

	m.Update(keys("2"))
	require.Equal(t, "username", m.Query().Ordering)
	m.Update(keys("2"))
	require.Equal(t, "-username", m.Query().Ordering)

	m.Update(keys("n"))
	require.Contains(t, m.View(), "Page 2/3")
	m.Update(keys("p"))
	require.Contains(t, m.View(), "Page 1/3")

	m.Update(keys("+"))
	require.Contains(t, m.View(), "Page 1/1 (45 learners, 50 per page)")

	_, cmd := m.Update(keys("e"))
	require.NotNil(t, cmd)
	require.True(t, m.ExportRequested())
	require.Equal(t, "l", m.Query().Search)
}

func TestLoadErrorIsShown(t *testing.T) {
	f := &stubFetcher{fail: true}
	m := newTestModel(f, model.Query{Search: "x"}, 0)
	view := m.View()
	require.Contains(t, view, "Failed to load learners.")
	require.True(t, strings.Contains(view, "status 502"))
}

func TestParseCourseFilter(t *testing.T) {
	got := ParseCourseFilter("CS101, course-v1:Org+MA201+2020 C9 cs101", courses)
	require.Equal(t, []model.ID{"course-v1:Org+CS101+2020", "course-v1:Org+MA201+2020", "C9"}, got)
	require.Nil(t, ParseCourseFilter("  ", courses))
}

func TestStepPerPage(t *testing.T) {
	require.Equal(t, 50, stepPerPage(20, 1))
	require.Equal(t, 10, stepPerPage(20, -1))
	require.Equal(t, 10, stepPerPage(10, -1))
	require.Equal(t, 100, stepPerPage(100, 1))
}
