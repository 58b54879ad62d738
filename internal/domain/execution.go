package domain

import (
	"strings"
	"time"
)

// NoOutputPlaceholder is reported when a successful run logged nothing.
const NoOutputPlaceholder = "no output"

// ErrorOutputPrefix prefixes the output text of a failed run.
const ErrorOutputPrefix = "Error: "

// ExecutionResult is the transient outcome of running a snippet.
type ExecutionResult struct {
	OutputText      string        `json:"output"`
	Succeeded       bool          `json:"succeeded"`
	MatchedExpected *bool         `json:"matched_expected"`
	Duration        time.Duration `json:"duration_ns"`
}

// NewSuccessResult builds the result of a run that terminated normally.
// lines are the captured log lines in call order. The placeholder stands in
// only when nothing was logged; a logged empty line stays "".
func NewSuccessResult(lines []string) ExecutionResult {
	if len(lines) == 0 {
		return ExecutionResult{OutputText: NoOutputPlaceholder, Succeeded: true}
	}
	return ExecutionResult{OutputText: strings.Join(lines, "\n"), Succeeded: true}
}

// NewFailureResult builds the result of a run that raised an error.
func NewFailureResult(message string) ExecutionResult {
	return ExecutionResult{OutputText: ErrorOutputPrefix + message}
}

// ApplyVerdict sets MatchedExpected against the step's expected output.
// Steps without an expected output get no verdict.
func (r *ExecutionResult) ApplyVerdict(step *TutorialStep) {
	if !step.HasExpectedOutput() {
		r.MatchedExpected = nil
		return
	}
	matched := Matches(r.OutputText, *step.ExpectedOutput)
	r.MatchedExpected = &matched
}

// Matches compares OutputText with an expected string exactly. OutputText
// has already lost the buffer's single trailing line break, so any further
// line breaks are significant.
func Matches(output, expected string) bool {
	return output == expected
}
