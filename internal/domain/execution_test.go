package domain

import (
	"testing"

	"pgregory.net/rapid"
)

func TestNewSuccessResult(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  string
	}{
		{"single line", []string{"Hello, World!"}, "Hello, World!"},
		{"multiple lines", []string{"a", "b c"}, "a\nb c"},
		{"nothing logged", nil, NoOutputPlaceholder},
		{"empty line logged", []string{""}, ""},
		{"empty lines logged", []string{"", ""}, "\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewSuccessResult(tt.lines)
			if r.OutputText != tt.want {
				t.Errorf("OutputText = %q; want %q", r.OutputText, tt.want)
			}
			if !r.Succeeded {
				t.Error("Succeeded = false; want true")
			}
		})
	}
}

func TestNewFailureResult(t *testing.T) {
	r := NewFailureResult("boom")
	if r.OutputText != "Error: boom" {
		t.Errorf("OutputText = %q; want %q", r.OutputText, "Error: boom")
	}
	if r.Succeeded {
		t.Error("Succeeded = true; want false")
	}
}

func TestExecutionResult_ApplyVerdict(t *testing.T) {
	hello := &TutorialStep{ID: "hello-world", ExpectedOutput: strPtr("Hello, World!")}
	intro := &TutorialStep{ID: "intro"}

	tests := []struct {
		name   string
		result ExecutionResult
		step   *TutorialStep
		want   *bool
	}{
		{"match", NewSuccessResult([]string{"Hello, World!"}), hello, boolPtr(true)},
		{"mismatch", NewSuccessResult([]string{"hello"}), hello, boolPtr(false)},
		{"failure never matches", NewFailureResult("boom"), hello, boolPtr(false)},
		{"no expected output", NewSuccessResult([]string{"x"}), intro, nil},
		{"nil step", NewSuccessResult([]string{"x"}), nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.result
			r.ApplyVerdict(tt.step)
			switch {
			case tt.want == nil && r.MatchedExpected != nil:
				t.Errorf("MatchedExpected = %v; want nil", *r.MatchedExpected)
			case tt.want != nil && r.MatchedExpected == nil:
				t.Errorf("MatchedExpected = nil; want %v", *tt.want)
			case tt.want != nil && *r.MatchedExpected != *tt.want:
				t.Errorf("MatchedExpected = %v; want %v", *r.MatchedExpected, *tt.want)
			}
		})
	}
}

func TestMatches(t *testing.T) {
	tests := []struct {
		output, expected string
		want             bool
	}{
		{"5", "5", true},
		{"5\n", "5", false},
		{"5\r", "5", false},
		{"5\n\n", "5", false},
		{" 5", "5", false},
		{"", "", true},
	}

	for _, tt := range tests {
		if got := Matches(tt.output, tt.expected); got != tt.want {
			t.Errorf("Matches(%q, %q) = %v; want %v", tt.output, tt.expected, got, tt.want)
		}
	}
}

func TestProperty_SuccessOutputJoinsLines(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		lines := rapid.SliceOfN(rapid.StringMatching(`[A-Za-z0-9 ,!]{1,12}`), 1, 6).Draw(rt, "lines")

		r := NewSuccessResult(lines)

		want := lines[0]
		for _, l := range lines[1:] {
			want += "\n" + l
		}
		if r.OutputText != want {
			rt.Errorf("OutputText = %q; want %q", r.OutputText, want)
		}
		if !Matches(r.OutputText, want) {
			rt.Errorf("Matches(%q, %q) = false; want true", r.OutputText, want)
		}
		if Matches(r.OutputText+"\n", want) {
			rt.Errorf("Matches should not trim a line break OutputText kept")
		}
	})
}

func boolPtr(b bool) *bool { return &b }
