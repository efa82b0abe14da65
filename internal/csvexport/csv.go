// Package csvexport serializes export tables as CSV documents.
package csvexport

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"slices"

	"github.com/verte-zerg/figexport/internal/model"
)

// BOM is the UTF-8 byte order mark written at the start of a document.
const BOM = "\ufeff"

// Options tunes CSV output.
type Options struct {
	// NoBOM omits the byte order mark.
	NoBOM bool
	// Title, when set, is written as a single line ahead of the header.
	Title string
}

// SerializationError reports rows that do not fit the header.
type SerializationError struct {
	Row    int
	Reason string
}

// Error implements the error interface.
func (e *SerializationError) Error() string {
	if e.Row < 0 {
		return "csv: " + e.Reason
	}
	return fmt.Sprintf("csv: row %d: %s", e.Row, e.Reason)
}

// Header returns the header row for t: the first row's keys, or the declared
// columns when there are no rows.
func Header(t model.Table) []string {
	if len(t.Rows) > 0 {
		return t.Rows[0].Keys()
	}
	return slices.Clone(t.Columns)
}

// Validate checks that every row carries exactly the header's keys, in order.
func Validate(t model.Table) error {
	header := Header(t)
	if len(header) == 0 {
		return &SerializationError{Row: -1, Reason: "table has no columns"}
	}
	for i, row := range t.Rows {
		if keys := row.Keys(); !slices.Equal(keys, header) {
			return &SerializationError{Row: i, Reason: fmt.Sprintf("columns %v do not match header %v", keys, header)}
		}
	}
	return nil
}

// Write validates t and writes it to w. Nothing is written when the
// table is inconsistent.
func Write(w io.Writer, t model.Table, opts Options) error {
	if err := Validate(t); err != nil {
		return err
	}
	if !opts.NoBOM {
		if _, err := io.WriteString(w, BOM); err != nil {
			return fmt.Errorf("write csv bom: %w", err)
		}
	}
	writer := csv.NewWriter(w)
	if opts.Title != "" {
		if err := writer.Write([]string{opts.Title}); err != nil {
			return fmt.Errorf("write csv title: %w", err)
		}
	}
	if err := writer.Write(Header(t)); err != nil {
		return fmt.Errorf("write csv headers: %w", err)
	}
	for _, row := range t.Rows {
		if err := writer.Write(row.Values()); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// Render produces the CSV document in memory.
func Render(t model.Table, opts Options) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := Write(buf, t, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
