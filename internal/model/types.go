// Package model defines shared data structures.
package model

import (
	"slices"
	"time"
)

// Query describes the filter and sort state of a learner listing.
type Query struct {
	Search    string
	CourseIDs []ID
	Ordering  string
}

// Active reports whether the query narrows the listing at all.
func (q Query) Active() bool {
	return q.Search != "" || len(q.CourseIDs) > 0
}

// Clone returns a copy that shares no memory with q.
func (q Query) Clone() Query {
	q.CourseIDs = slices.Clone(q.CourseIDs)
	return q
}

// APIConfig defines how to reach the metrics API.
type APIConfig struct {
	BaseURL           string
	LearnersPath      string
	CoursesPath       string
	Token             string
	Timeout           time.Duration
	RequestsPerSecond float64
	CourseLimit       int
}

// ExportConfig defines export settings.
type ExportConfig struct {
	Query     Query
	PageSize  int
	OutputDir string
	Output    string
	Title     string
	BOM       bool
	MaxPages  int
}

// Row is a flat export record whose keys keep insertion order.
type Row struct {
	keys   []string
	values map[string]string
}

// NewRow allocates a row sized for n columns.
func NewRow(n int) Row {
	return Row{
		keys:   make([]string, 0, n),
		values: make(map[string]string, n),
	}
}

// Set stores value under key. A new key is appended to the key order.
func (r *Row) Set(key, value string) {
	if r.values == nil {
		r.values = map[string]string{}
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Get returns the value stored under key.
func (r Row) Get(key string) (string, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (r Row) Keys() []string {
	return slices.Clone(r.keys)
}

// Len returns the number of columns.
func (r Row) Len() int {
	return len(r.keys)
}

// Values returns the values in key order.
func (r Row) Values() []string {
	out := make([]string, len(r.keys))
	for i, k := range r.keys {
		out[i] = r.values[k]
	}
	return out
}

// Table is a set of rows sharing one declared column set.
type Table struct {
	Columns []string
	Rows    []Row
}

// RunStatus is the outcome of an export run.
type RunStatus string

// Export run outcomes.
const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// ExportRun records one export invocation.
type ExportRun struct {
	ID        string
	StartedAt time.Time
	EndedAt   time.Time
	BaseURL   string
	Query     Query
	PageSize  int
	Pages     int
	Learners  int
	Columns   int
	Status    RunStatus
	Error     string
	Location  string
}
