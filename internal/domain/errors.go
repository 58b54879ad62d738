package domain

import (
	"errors"
	"fmt"
)

// -----------------------------------------------------------------------------
// Domain Errors
// Sentinels are matched with errors.Is; the typed errors below carry the
// operation that failed and unwrap to the underlying cause.
// -----------------------------------------------------------------------------

var (
	// ErrFetch marks a failed read from the remote collaborator.
	ErrFetch = errors.New("fetch failed")
	// ErrPersist marks a failed write to the remote collaborator.
	ErrPersist = errors.New("persist failed")
	// ErrExecution marks learner code that raised or threw.
	ErrExecution = errors.New("execution error")
)

// Lookup errors
var (
	ErrStepNotFound     = errors.New("step not found")
	ErrProgressNotFound = errors.New("progress record not found")
	ErrUserNotFound     = errors.New("user not found")
	ErrSessionNotFound  = errors.New("session not found")
)

// Identity errors
var (
	ErrEmailExists        = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrSessionExpired     = errors.New("session expired")
)

// General errors
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
)

// FetchError is returned when the remote collaborator is unreachable or
// answers with a malformed response.
type FetchError struct {
	Op  string
	Err error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return "fetch " + e.Op
	}
	return fmt.Sprintf("fetch %s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is matches ErrFetch.
func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// PersistError is returned when a write to the remote collaborator fails.
type PersistError struct {
	Op       string
	RecordID string
	Err      error
}

func (e *PersistError) Error() string {
	msg := "persist " + e.Op
	if e.RecordID != "" {
		msg += " " + e.RecordID
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PersistError) Unwrap() error { return e.Err }

// Is matches ErrPersist.
func (e *PersistError) Is(target error) bool { return target == ErrPersist }

// ExecutionError describes learner code that raised during a run.
type ExecutionError struct {
	Message string
	Timeout bool
}

func (e *ExecutionError) Error() string { return e.Message }

// Is matches ErrExecution.
func (e *ExecutionError) Is(target error) bool { return target == ErrExecution }

// Notice converts a non-fatal error into the short text shown to the learner.
func Notice(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrFetch):
		return "Could not reach the tutorial service; showing built-in content."
	case errors.Is(err, ErrPersist):
		return "Your progress could not be saved. It will be kept for this session."
	default:
		return "Something went wrong: " + err.Error()
	}
}
