package domain

import (
	"sort"
	"strings"
)

// TutorialStep is one unit of tutorial content. Steps are immutable once
// fetched for a session.
type TutorialStep struct {
	ID             string  `json:"id" yaml:"id"`
	Title          string  `json:"title" yaml:"title"`
	Description    string  `json:"description" yaml:"description"`
	Content        string  `json:"content,omitempty" yaml:"content,omitempty"`
	CodeExample    string  `json:"code_example,omitempty" yaml:"code_example,omitempty"`
	ExpectedOutput *string `json:"expected_output,omitempty" yaml:"expected_output,omitempty"`
	Order          int     `json:"order" yaml:"order"`
	Active         bool    `json:"active" yaml:"active"`
}

// DefaultStarterCode is shown in the editor when a step has no code example.
const DefaultStarterCode = "// Write your code here"

// HasExpectedOutput reports whether runs of this step receive a verdict.
func (s *TutorialStep) HasExpectedOutput() bool {
	return s != nil && s.ExpectedOutput != nil
}

// StarterCode returns the code the editor is seeded with.
func (s *TutorialStep) StarterCode() string {
	if s == nil || strings.TrimSpace(s.CodeExample) == "" {
		return DefaultStarterCode
	}
	return s.CodeExample
}

// SortSteps orders steps by Order ascending, breaking ties by ID so the
// sequence is deterministic.
func SortSteps(steps []TutorialStep) {
	sort.SliceStable(steps, func(i, j int) bool {
		if steps[i].Order != steps[j].Order {
			return steps[i].Order < steps[j].Order
		}
		return steps[i].ID < steps[j].ID
	})
}

// StepIDs returns the ids of steps in sequence order.
func StepIDs(steps []TutorialStep) []string {
	ids := make([]string, len(steps))
	for i, s := range steps {
		ids[i] = s.ID
	}
	return ids
}

// IndexOf returns the position of the step with the given id, or -1.
func IndexOf(steps []TutorialStep, id string) int {
	for i, s := range steps {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// FallbackSteps is the built-in sequence served when the remote
// collaborator has no step records.
func FallbackSteps() []TutorialStep {
	hello := "Hello, World!"
	sum := "5"
	greeting := "Hi, Ada"
	return []TutorialStep{
		{
			ID:          "intro",
			Title:       "Introduction to JavaScript",
			Description: "JavaScript is a programming language that powers the dynamic behavior on websites. Let's start with the classic 'Hello World' example.",
			Content:     "JavaScript is a versatile programming language that runs in web browsers. It allows you to create interactive websites and applications.",
			Order:       1,
			Active:      true,
		},
		{
			ID:             "hello-world",
			Title:          "Hello World",
			Description:    "The traditional first program in any language. We'll use console.log() to output text to the console.",
			CodeExample:    "console.log('Hello, World!');",
			ExpectedOutput: &hello,
			Order:          2,
			Active:         true,
		},
		{
			ID:             "variables",
			Title:          "Variables",
			Description:    "Store values with let and const, then combine them.",
			Content:        "Use const for values that never change and let for values you reassign.",
			CodeExample:    "const a = 2;\nlet b = 3;\nconsole.log(a + b);",
			ExpectedOutput: &sum,
			Order:          3,
			Active:         true,
		},
		{
			ID:             "functions",
			Title:          "Functions",
			Description:    "Wrap reusable logic in a function and call it with arguments.",
			CodeExample:    "function greet(name) {\n  return 'Hi, ' + name;\n}\n\nconsole.log(greet('Ada'));",
			ExpectedOutput: &greeting,
			Order:          4,
			Active:         true,
		},
	}
}
