package collab

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Records API tables
const (
	TableSteps    = "tutorial_step"
	TableProgress = "user_progress"
)

// OperatorExactMatch is the only where operator the client issues
const OperatorExactMatch = "ExactMatch"

// FetchParams is the body of POST /api/records/{table}/fetch
type FetchParams struct {
	Fields     []FieldSpec `json:"Fields"`
	OrderBy    []OrderBy   `json:"orderBy,omitempty"`
	Where      []Condition `json:"where,omitempty"`
	PagingInfo *PagingInfo `json:"pagingInfo,omitempty"`
}

// FieldSpec selects one field
type FieldSpec struct {
	Field FieldName `json:"Field"`
}

// FieldName names a field
type FieldName struct {
	Name string `json:"Name"`
}

// OrderBy sorts the fetched records
type OrderBy struct {
	Field     string `json:"field"`
	Direction string `json:"direction"`
}

// Condition filters the fetched records
type Condition struct {
	FieldName string `json:"fieldName"`
	Operator  string `json:"Operator"`
	Values    []any  `json:"values"`
}

// PagingInfo limits the result size
type PagingInfo struct {
	Limit int `json:"limit"`
}

// Fields builds a field selection
func Fields(names ...string) []FieldSpec {
	specs := make([]FieldSpec, len(names))
	for i, n := range names {
		specs[i] = FieldSpec{Field: FieldName{Name: n}}
	}
	return specs
}

// ExactMatch builds an equality condition
func ExactMatch(field string, values ...any) Condition {
	return Condition{FieldName: field, Operator: OperatorExactMatch, Values: values}
}

type fetchResponse[T any] struct {
	Data []T `json:"data"`
}

type writeParams[T any] struct {
	Records []T `json:"records"`
}

type writeResult[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    T      `json:"data"`
}

type writeResponse[T any] struct {
	Success bool             `json:"success"`
	Message string           `json:"message,omitempty"`
	Results []writeResult[T] `json:"results"`
}

// RecordID is the records API primary key. The API issues numeric ids; the
// value is kept as text and sent back as a number when it is one.
type RecordID string

// UnmarshalJSON accepts numbers, strings and null
func (id *RecordID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*id = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = RecordID(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("record id: %w", err)
		}
		*id = RecordID(n.String())
	}
	return nil
}

// MarshalJSON writes integer ids as numbers
func (id RecordID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// flexInt decodes integers that may arrive as numbers or numeric strings
type flexInt int

func (n *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*n = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*n = 0
			return nil
		}
		b = []byte(s)
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("integer field: %w", err)
	}
	*n = flexInt(f)
	return nil
}
