package runner

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/codeburst/internal/domain"
)

// resultMarker prefixes the single JSON line the harness writes to stdout.
const resultMarker = "__CODEBURST__:"

// ErrMalformedOutput is returned when harness output cannot be parsed.
var ErrMalformedOutput = errors.New("malformed harness output")

// HarnessOutput is what the harness reports for one run.
type HarnessOutput struct {
	// Output is the raw log buffer, one line break after every console.log call
	Output string `json:"output"`
	// Error is the message of the value the snippet threw, if any
	Error *string `json:"error"`
	// TimedOut is set when the vm timeout interrupted the snippet
	TimedOut bool `json:"timeout"`
}

// ParseHarnessOutput extracts the result line from harness stdout. Other
// lines (node warnings, for instance) are ignored.
func ParseHarnessOutput(stdout string) (*HarnessOutput, error) {
	lines := strings.Split(stdout, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(line, resultMarker) {
			continue
		}
		var out HarnessOutput
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, resultMarker)), &out); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
		}
		return &out, nil
	}
	return nil, fmt.Errorf("%w: no result line in %q", ErrMalformedOutput, truncate(stdout, 256))
}

// LearnerError returns the error the snippet raised, or nil when it
// terminated normally.
func (o *HarnessOutput) LearnerError(timeout time.Duration) error {
	switch {
	case o.TimedOut:
		return timeoutError(timeout)
	case o.Error != nil:
		return &domain.ExecutionError{Message: *o.Error}
	default:
		return nil
	}
}

// Result classifies the harness output. The buffer's final line break is
// dropped so OutputText is the logged lines joined by "\n". This is the only
// trim applied before the verdict.
func (o *HarnessOutput) Result(timeout time.Duration) domain.ExecutionResult {
	if err := o.LearnerError(timeout); err != nil {
		return domain.NewFailureResult(err.Error())
	}
	if o.Output == "" {
		return domain.NewSuccessResult(nil)
	}
	buf := strings.TrimSuffix(o.Output, "\n")
	return domain.NewSuccessResult(strings.Split(buf, "\n"))
}

func timeoutError(timeout time.Duration) *domain.ExecutionError {
	return &domain.ExecutionError{
		Message: fmt.Sprintf("execution timed out after %s", timeout),
		Timeout: true,
	}
}
