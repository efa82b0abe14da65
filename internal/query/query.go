// Package query builds listing URLs from filter and sort state.
package query

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/verte-zerg/figexport/internal/model"
)

// Sortable columns of the learner listing.
const (
	OrderByName     = "profile__name"
	OrderByUsername = "username"
	OrderByEmail    = "email"
)

// DefaultOrdering is the ordering used when none is configured.
const DefaultOrdering = OrderByName

// ListURL builds the learner listing URL for one page. Parameters are
// written in a fixed order (search, course, ordering, limit, offset) so the
// same state always yields the same URL.
func ListURL(base string, q model.Query, limit, offset int) (string, error) {
	if limit <= 0 {
		return "", fmt.Errorf("limit must be greater than 0")
	}
	if offset < 0 {
		return "", fmt.Errorf("offset must be >= 0")
	}
	u, err := parseBase(base)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(u.RawQuery)
	writeParam(&b, "search", q.Search)
	for _, id := range q.CourseIDs {
		writeParam(&b, "course", id.String())
	}
	if q.Ordering != "" {
		writeParam(&b, "ordering", q.Ordering)
	}
	writeParam(&b, "limit", strconv.Itoa(limit))
	writeParam(&b, "offset", strconv.Itoa(offset))
	u.RawQuery = b.String()
	return u.String(), nil
}

// IndexURL builds the course index URL.
func IndexURL(base string, limit int) (string, error) {
	if limit <= 0 {
		return "", fmt.Errorf("limit must be greater than 0")
	}
	u, err := parseBase(base)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(u.RawQuery)
	writeParam(&b, "limit", strconv.Itoa(limit))
	u.RawQuery = b.String()
	return u.String(), nil
}

// ToggleOrdering returns the ordering after clicking field: ascending
// first, descending when field is already the ascending ordering.
func ToggleOrdering(current, field string) string {
	if current == field {
		return "-" + field
	}
	return field
}

// PageOffset converts a 1-based page number into a result offset.
func PageOffset(page, perPage int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * perPage
}

// PageCount returns the number of pages needed for count results.
func PageCount(count, perPage int) int {
	if count <= 0 || perPage <= 0 {
		return 0
	}
	return (count + perPage - 1) / perPage
}

func parseBase(base string) (*url.URL, error) {
	if strings.TrimSpace(base) == "" {
		return nil, fmt.Errorf("base url is empty")
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	return u, nil
}

func writeParam(b *strings.Builder, key, value string) {
	if b.Len() > 0 {
		b.WriteByte('&')
	}
	b.WriteString(url.QueryEscape(key))
	b.WriteByte('=')
	b.WriteString(url.QueryEscape(value))
}
