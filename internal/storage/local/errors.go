package local

import "errors"

var (
	// ErrNotFound is returned when a key has no stored value
	ErrNotFound = errors.New("not found")
)
