// Package view builds the view models of the HTML front end and renders
// them with html/template.
package view

import (
	"fmt"
	"time"

	"github.com/felixgeelhaar/codeburst/internal/domain"
)

// DateLayout formats the last-accessed date
const DateLayout = "Jan 2, 2006"

// Marker is the sidebar state of a step
type Marker string

const (
	MarkerCurrent   Marker = "current"
	MarkerCompleted Marker = "completed"
	MarkerNone      Marker = "none"
)

// StepEntry is one row of the step sidebar
type StepEntry struct {
	Index  int    `json:"index"`
	Number int    `json:"number"`
	ID     string `json:"id"`
	Title  string `json:"title"`
	Marker Marker `json:"marker"`
}

// Dashboard is the view model of the dashboard page
type Dashboard struct {
	UserName       string               `json:"user_name"`
	Steps          []StepEntry          `json:"steps"`
	CompletedCount int                  `json:"completed_count"`
	Total          int                  `json:"total"`
	Percent        float64              `json:"percent"`
	CurrentIndex   int                  `json:"current_index"`
	Current        *domain.TutorialStep `json:"current,omitempty"`
	StarterCode    string               `json:"starter_code,omitempty"`
	Finished       bool                 `json:"finished"`
	RecordID       string               `json:"record_id,omitempty"`
	LastAccessed   string               `json:"last_accessed,omitempty"`
	Notices        []string             `json:"notices,omitempty"`
}

// PercentLabel is the rounded completion percentage for display
func (d Dashboard) PercentLabel() string {
	return fmt.Sprintf("%.0f%%", d.Percent)
}

// BuildDashboard derives the dashboard from the loaded steps and progress.
// The current step takes precedence over the completed marker. A nil
// record renders the tutorial from the first step with nothing completed.
func BuildDashboard(user *domain.User, steps []domain.TutorialStep, rec *domain.ProgressRecord, notices []string) Dashboard {
	d := Dashboard{
		UserName: user.DisplayName(),
		Steps:    make([]StepEntry, len(steps)),
		Total:    len(steps),
		Notices:  notices,
	}

	var completed map[string]bool
	if rec != nil {
		d.CurrentIndex = clamp(rec.CurrentStepIndex, 0, len(steps))
		d.RecordID = rec.RecordID
		completed = rec.CompletedStepIDs
		d.LastAccessed = FormatLastAccessed(rec.LastAccessedAt)
	}

	for i, step := range steps {
		marker := MarkerNone
		switch {
		case i == d.CurrentIndex:
			marker = MarkerCurrent
		case completed[step.ID]:
			marker = MarkerCompleted
		}
		if completed[step.ID] {
			d.CompletedCount++
		}
		d.Steps[i] = StepEntry{
			Index:  i,
			Number: i + 1,
			ID:     step.ID,
			Title:  step.Title,
			Marker: marker,
		}
	}

	d.Percent = domain.CompletionPercent(d.CompletedCount, d.Total)

	if d.CurrentIndex < len(steps) {
		current := steps[d.CurrentIndex]
		d.Current = &current
		d.StarterCode = current.StarterCode()
	} else {
		d.Finished = true
	}

	return d
}

// FormatLastAccessed formats t for display, empty for the zero time
func FormatLastAccessed(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
