package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestTypedErrors_Is(t *testing.T) {
	cause := errors.New("connection refused")

	tests := []struct {
		name   string
		err    error
		target error
	}{
		{"fetch", &FetchError{Op: "tutorial_step", Err: cause}, ErrFetch},
		{"persist", &PersistError{Op: "update", RecordID: "rec-1", Err: cause}, ErrPersist},
		{"execution", &ExecutionError{Message: "boom"}, ErrExecution},
		{"wrapped fetch", fmt.Errorf("load steps: %w", &FetchError{Op: "tutorial_step", Err: cause}), ErrFetch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.target) {
				t.Errorf("errors.Is(%v, %v) = false; want true", tt.err, tt.target)
			}
		})
	}

	if !errors.Is(&FetchError{Op: "x", Err: cause}, cause) {
		t.Error("FetchError should unwrap to its cause")
	}
	if errors.Is(&FetchError{Op: "x"}, ErrPersist) {
		t.Error("FetchError should not match ErrPersist")
	}
}

func TestPersistError_Error(t *testing.T) {
	err := &PersistError{Op: "update", RecordID: "rec-1", Err: errors.New("timeout")}
	if got := err.Error(); got != "persist update rec-1: timeout" {
		t.Errorf("Error() = %q", got)
	}
}

func TestNotice(t *testing.T) {
	if Notice(nil) != "" {
		t.Error("Notice(nil) should be empty")
	}
	if got := Notice(&FetchError{Op: "tutorial_step"}); !strings.Contains(got, "built-in") {
		t.Errorf("Notice(FetchError) = %q", got)
	}
	if got := Notice(&PersistError{Op: "update"}); !strings.Contains(got, "not be saved") {
		t.Errorf("Notice(PersistError) = %q", got)
	}
}
