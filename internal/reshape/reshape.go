// Package reshape flattens nested learner progress into export rows.
package reshape

import (
	"fmt"
	"strconv"

	"github.com/verte-zerg/figexport/internal/model"
)

// Missing is the cell value for absent progress data.
const Missing = "-"

// Fixed identity columns, in output order.
const (
	ColumnName       = "name"
	ColumnEmail      = "email"
	ColumnUsername   = "username"
	ColumnDateJoined = "date_joined"
)

// IdentityColumns lists the columns that precede the course columns.
var IdentityColumns = []string{ColumnName, ColumnEmail, ColumnUsername, ColumnDateJoined}

// Columns returns the export column set for the given courses: the identity
// columns followed by one column per distinct course ID.
func Columns(courses []model.Course) []string {
	cols := make([]string, 0, len(IdentityColumns)+len(courses))
	cols = append(cols, IdentityColumns...)
	seen := make(map[model.ID]struct{}, len(courses))
	for _, c := range courses {
		if _, ok := seen[c.ID]; ok {
			continue
		}
		seen[c.ID] = struct{}{}
		cols = append(cols, c.ID.String())
	}
	return cols
}

// ColumnCourses picks the courses that become columns: the selection when
// there is one, otherwise every known course.
func ColumnCourses(selected, known []model.Course) []model.Course {
	if len(selected) > 0 {
		return selected
	}
	return known
}

// SelectCourses maps ids onto the course index, keeping selection order.
// IDs missing from the index become ID-only courses and are also returned
// in unknown.
func SelectCourses(ids []model.ID, index []model.Course) (selected []model.Course, unknown []model.ID) {
	if len(ids) == 0 {
		return nil, nil
	}
	byID := make(map[model.ID]model.Course, len(index))
	for _, c := range index {
		byID[c.ID] = c
	}
	selected = make([]model.Course, 0, len(ids))
	for _, id := range ids {
		c, ok := byID[id]
		if !ok {
			unknown = append(unknown, id)
			c = model.Course{ID: id}
		}
		selected = append(selected, c)
	}
	return selected, unknown
}

// Flatten produces one row per learner with a stable column set.
func Flatten(learners []model.Learner, selected, known []model.Course) model.Table {
	courses := ColumnCourses(selected, known)
	table := model.Table{
		Columns: Columns(courses),
		Rows:    make([]model.Row, 0, len(learners)),
	}
	for _, l := range learners {
		table.Rows = append(table.Rows, flattenLearner(l, courses, len(table.Columns)))
	}
	return table
}

func flattenLearner(l model.Learner, courses []model.Course, width int) model.Row {
	row := model.NewRow(width)
	row.Set(ColumnName, l.Fullname)
	row.Set(ColumnEmail, l.Email)
	row.Set(ColumnUsername, l.Username)
	row.Set(ColumnDateJoined, l.DateJoined)

	index := l.EnrollmentIndex()
	for _, c := range courses {
		key := c.ID.String()
		if _, done := row.Get(key); done {
			continue
		}
		e, ok := index[c.ID]
		if !ok {
			row.Set(key, Missing)
			continue
		}
		row.Set(key, Summary(e))
	}
	return row
}

// Summary formats an enrollment as
// "Progress: 0.50/1 | Sections: 3.0/6.0 | Points: 10.0/20.0".
func Summary(e model.Enrollment) string {
	var d model.ProgressDetails
	if e.ProgressDetails != nil {
		d = *e.ProgressDetails
	}
	return fmt.Sprintf("Progress: %s/1 | Sections: %s/%s | Points: %s/%s",
		formatOrMissing(e.ProgressPercent, 2),
		formatOrMissing(d.SectionsWorked, 1),
		formatOrMissing(d.SectionsPossible, 1),
		formatOrMissing(d.PointsEarned, 1),
		formatOrMissing(d.PointsPossible, 1),
	)
}

// ProgressCell renders an enrollment compactly for terminal tables,
// e.g. "3.0/6.0 · 10.0/20.0 · 50%". A nil enrollment renders Missing.
func ProgressCell(e *model.Enrollment) string {
	if e == nil {
		return Missing
	}
	var d model.ProgressDetails
	if e.ProgressDetails != nil {
		d = *e.ProgressDetails
	}
	percent := Missing
	if e.ProgressPercent != nil {
		percent = strconv.FormatFloat(*e.ProgressPercent*100, 'f', 0, 64) + "%"
	}
	return fmt.Sprintf("%s/%s · %s/%s · %s",
		formatOrMissing(d.SectionsWorked, 1),
		formatOrMissing(d.SectionsPossible, 1),
		formatOrMissing(d.PointsEarned, 1),
		formatOrMissing(d.PointsPossible, 1),
		percent,
	)
}

func formatOrMissing(v *float64, decimals int) string {
	if v == nil {
		return Missing
	}
	return strconv.FormatFloat(*v, 'f', decimals, 64)
}

// ListHeaders returns the headers of the terminal learner list: identity
// columns followed by one column per course, labelled by course number.
func ListHeaders(courses []model.Course) []string {
	headers := []string{"Name", "Username", "Email"}
	for _, c := range courses {
		label := c.Number
		if label == "" {
			label = c.ID.String()
		}
		headers = append(headers, label)
	}
	return headers
}

// ListRow renders one learner for the terminal list, aligned with ListHeaders.
func ListRow(l model.Learner, courses []model.Course) []string {
	row := []string{l.Fullname, l.Username, l.Email}
	index := l.EnrollmentIndex()
	for _, c := range courses {
		e, ok := index[c.ID]
		if !ok {
			row = append(row, Missing)
			continue
		}
		row = append(row, ProgressCell(&e))
	}
	return row
}
