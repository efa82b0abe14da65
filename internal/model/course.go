package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ID is an opaque identifier. The API sends course keys as strings and
// user or enrollment keys as numbers; both decode to the same string form.
type ID string

// UnmarshalJSON accepts a JSON string, number, or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// String returns the identifier text.
func (id ID) String() string {
	return string(id)
}

// Course is an entry of the course index.
type Course struct {
	ID     ID     `json:"id"`
	Name   string `json:"name"`
	Number string `json:"number"`
	Org    string `json:"org"`
}

// Label renders the course the way the course filter lists it.
func (c Course) Label() string {
	return fmt.Sprintf("%s | %s | %s", c.Name, c.Number, c.ID)
}

// Page is the paginated listing envelope.
type Page[T any] struct {
	Results []T     `json:"results"`
	Count   int     `json:"count"`
	Next    *string `json:"next"`
}
