// Package browseui provides the Bubble Tea learner progress browser.
package browseui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/figexport/internal/listing"
	"github.com/verte-zerg/figexport/internal/model"
	"github.com/verte-zerg/figexport/internal/query"
	"github.com/verte-zerg/figexport/internal/reshape"
	txttable "github.com/verte-zerg/figexport/internal/table"
)

const (
	maxCourseColumns = 8
	maxCellWidth     = 32
)

type inputMode int

const (
	modeNone inputMode = iota
	modeSearch
	modeCourses
)

var perPageSteps = []int{10, 20, 50, 100}

var (
	headerStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	tableMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
)

// Model implements the Bubble Tea browse UI.
type Model struct {
	ctx     context.Context
	lister  *listing.Lister
	courses []model.Course
	columns []model.Course

	table table.Model

	width  int
	height int

	mode       inputMode
	input      textinput.Model
	inputError string
	notice     string

	exportRequested bool
}

// NewModel constructs a browse model over lister. courses is the course
// index used for column labels and course filter lookups.
func NewModel(ctx context.Context, lister *listing.Lister, courses []model.Course) *Model {
	m := &Model{
		ctx:     ctx,
		lister:  lister,
		courses: courses,
		input:   newInput(),
		table: table.New(
			table.WithFocused(true),
			table.WithHeight(10),
			table.WithStyles(tableStyles()),
		),
	}
	m.apply(lister.Refresh(ctx))
	return m
}

// ExportRequested reports whether the user left the browser to export.
func (m *Model) ExportRequested() bool {
	return m.exportRequested
}

// Query returns the filter and sort state the browser ended with.
func (m *Model) Query() model.Query {
	return m.lister.Query()
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.mode != modeNone {
			return m.updateInput(msg)
		}
		m.notice = ""
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "/":
			return m.startInput(modeSearch, m.lister.Query().Search)
		case "c":
			return m.startInput(modeCourses, joinIDs(m.lister.Query().CourseIDs))
		case "1":
			m.apply(m.lister.ToggleOrdering(m.ctx, query.OrderByName))
		case "2":
			m.apply(m.lister.ToggleOrdering(m.ctx, query.OrderByUsername))
		case "3":
			m.apply(m.lister.ToggleOrdering(m.ctx, query.OrderByEmail))
		case "n", "right":
			m.apply(m.lister.Next(m.ctx))
		case "p", "left":
			m.apply(m.lister.Prev(m.ctx))
		case "+", "=":
			m.apply(m.lister.SetPerPage(m.ctx, stepPerPage(m.lister.PerPage(), 1)))
		case "-":
			m.apply(m.lister.SetPerPage(m.ctx, stepPerPage(m.lister.PerPage(), -1)))
		case "e":
			if !m.lister.Active() {
				m.notice = "Set a search term or course filter before exporting."
				return m, nil
			}
			m.exportRequested = true
			return m, tea.Quit
		default:
			var cmd tea.Cmd
			m.table, cmd = m.table.Update(msg)
			return m, cmd
		}
		return m, nil
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	lines := []string{m.renderSummary()}
	if m.mode != modeNone {
		lines = append(lines, m.input.View())
		if m.inputError != "" {
			lines = append(lines, errorStyle.Render(m.inputError))
		}
	}
	lines = append(lines, m.renderBody())
	lines = append(lines, m.renderFooter())
	return strings.Join(lines, "\n")
}

func newInput() textinput.Model {
	input := textinput.New()
	input.CharLimit = 0
	input.Cursor.SetMode(cursor.CursorBlink)
	return input
}

func (m *Model) startInput(mode inputMode, value string) (tea.Model, tea.Cmd) {
	m.mode = mode
	m.inputError = ""
	switch mode {
	case modeSearch:
		m.input.Prompt = "Search: "
		m.input.Placeholder = "name, username or email"
	case modeCourses:
		m.input.Prompt = "Courses: "
		m.input.Placeholder = "course IDs or numbers, comma separated"
	}
	m.input.SetValue(value)
	m.input.CursorEnd()
	return m, m.input.Focus()
}

func (m *Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = modeNone
		m.inputError = ""
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		value := strings.TrimSpace(m.input.Value())
		var err error
		switch m.mode {
		case modeSearch:
			err = m.lister.SetSearch(m.ctx, value)
		case modeCourses:
			err = m.lister.SetCourses(m.ctx, ParseCourseFilter(value, m.courses))
		}
		m.mode = modeNone
		m.inputError = ""
		m.input.Blur()
		m.apply(err)
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// apply shows the outcome of a lister call. Load failures are kept on the
// lister; anything else becomes a notice.
func (m *Model) apply(err error) {
	if err != nil && m.lister.Err() == nil {
		m.notice = err.Error()
	}
	m.reload()
}

func (m *Model) reload() {
	selected, _ := reshape.SelectCourses(m.lister.Query().CourseIDs, m.courses)
	m.columns = reshape.ColumnCourses(selected, m.courses)
	shown := m.columns
	if len(shown) > maxCourseColumns {
		shown = shown[:maxCourseColumns]
	}

	headers := reshape.ListHeaders(shown)
	rows := make([][]string, 0, len(m.lister.Learners()))
	for _, l := range m.lister.Learners() {
		rows = append(rows, reshape.ListRow(l, shown))
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = txttable.DisplayWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], min(txttable.DisplayWidth(cell), maxCellWidth))
		}
	}

	columns := make([]table.Column, len(headers))
	for i, h := range headers {
		columns[i] = table.Column{Title: h, Width: widths[i]}
	}
	tableRows := make([]table.Row, len(rows))
	for i, row := range rows {
		for j := range row {
			row[j] = txttable.Truncate(row[j], maxCellWidth)
		}
		tableRows[i] = table.Row(row)
	}
	// Rows must be cleared before columns shrink or the table indexes past them.
	m.table.SetRows(nil)
	m.table.SetColumns(columns)
	m.table.SetRows(tableRows)
	m.table.GotoTop()
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	m.table.SetWidth(m.width)
	// Summary, footer and an optional error line.
	m.table.SetHeight(max(1, m.height-4))
	m.input.Width = max(10, m.width-lipgloss.Width(m.input.Prompt)-2)
}

func (m *Model) renderSummary() string {
	q := m.lister.Query()
	search := q.Search
	if search == "" {
		search = "none"
	}
	courses := "none"
	if len(q.CourseIDs) > 0 {
		courses = joinIDs(q.CourseIDs)
	}
	summary := fmt.Sprintf("Search: %s  Courses: %s  Order: %s  Page %d/%d (%d learners, %d per page)",
		search, courses, q.Ordering, m.lister.CurrentPage(), max(1, m.lister.Pages()), m.lister.Count(), m.lister.PerPage())
	if hidden := len(m.columns) - maxCourseColumns; hidden > 0 {
		summary += fmt.Sprintf("  +%d courses not shown", hidden)
	}
	if m.width > 0 {
		summary = txttable.Truncate(summary, m.width)
	}
	return headerStyle.Render(summary)
}

func (m *Model) renderBody() string {
	switch {
	case !m.lister.Active():
		return "Enter a search term (/) or a course filter (c) to list learners."
	case len(m.lister.Learners()) == 0 && m.lister.Err() == nil:
		return "No learners found."
	case len(m.lister.Learners()) == 0:
		return "Failed to load learners."
	default:
		return tableMutedStyle.Render(m.table.View())
	}
}

func (m *Model) renderFooter() string {
	help := "Search: /  Courses: c  Sort: 1 name 2 username 3 email  Page: n/p  Per page: -/+  Export: e  Quit: q"
	if m.mode != modeNone {
		help = "enter: apply  esc: cancel"
	}
	footer := headerStyle.Render(help)
	switch {
	case m.lister.Err() != nil:
		footer += "\n" + errorStyle.Render(m.lister.Err().Error())
	case m.notice != "":
		footer += "\n" + errorStyle.Render(m.notice)
	}
	return footer
}

func tableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}

// ParseCourseFilter turns comma or space separated tokens into course IDs.
// A token matching a course number in courses selects that course; any
// other token is taken as an ID. Duplicates are dropped.
func ParseCourseFilter(input string, courses []model.Course) []model.ID {
	fields := strings.FieldsFunc(input, func(r rune) bool { return r == ',' || r == ' ' })
	if len(fields) == 0 {
		return nil
	}
	byID := make(map[model.ID]struct{}, len(courses))
	byNumber := make(map[string]model.ID, len(courses))
	for _, c := range courses {
		byID[c.ID] = struct{}{}
		if c.Number != "" {
			byNumber[strings.ToLower(c.Number)] = c.ID
		}
	}
	seen := map[model.ID]struct{}{}
	var ids []model.ID
	for _, field := range fields {
		id := model.ID(field)
		if _, ok := byID[id]; !ok {
			if match, ok := byNumber[strings.ToLower(field)]; ok {
				id = match
			}
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

func joinIDs(ids []model.ID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return strings.Join(parts, ",")
}

func stepPerPage(current, delta int) int {
	idx := 0
	for i, step := range perPageSteps {
		if step <= current {
			idx = i
		}
	}
	idx += delta
	if idx < 0 {
		idx = 0
	}
	if idx >= len(perPageSteps) {
		idx = len(perPageSteps) - 1
	}
	return perPageSteps[idx]
}
