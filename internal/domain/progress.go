package domain

import (
	"sort"
	"strings"
	"time"
)

// ProgressRecord is the persisted per-user state of tutorial advancement.
// There is at most one record per user.
type ProgressRecord struct {
	RecordID         string          `json:"record_id"`
	UserID           string          `json:"user_id"`
	CurrentStepIndex int             `json:"current_step"`
	CompletedStepIDs map[string]bool `json:"-"`
	LastAccessedAt   time.Time       `json:"last_accessed"`
}

// NewProgressRecord creates the initial record for a user. The first step of
// the sequence, when there is one, starts out completed.
func NewProgressRecord(recordID, userID, firstStepID string, now time.Time) *ProgressRecord {
	rec := &ProgressRecord{
		RecordID:         recordID,
		UserID:           userID,
		CompletedStepIDs: make(map[string]bool),
		LastAccessedAt:   now,
	}
	if firstStepID != "" {
		rec.CompletedStepIDs[firstStepID] = true
	}
	return rec
}

// Completed returns the completed step ids in lexical order.
func (r *ProgressRecord) Completed() []string {
	ids := make([]string, 0, len(r.CompletedStepIDs))
	for id := range r.CompletedStepIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// IsCompleted reports whether the step is in the completed set.
func (r *ProgressRecord) IsCompleted(stepID string) bool {
	return r.CompletedStepIDs[stepID]
}

// MarkComplete adds stepID to the completed set. It returns false when the
// id was already present.
func (r *ProgressRecord) MarkComplete(stepID string, now time.Time) bool {
	if r.CompletedStepIDs == nil {
		r.CompletedStepIDs = make(map[string]bool)
	}
	if r.CompletedStepIDs[stepID] {
		return false
	}
	r.CompletedStepIDs[stepID] = true
	r.LastAccessedAt = now
	return true
}

// SetStep moves the current index. Indexes outside [0, stepCount) are
// rejected and leave the record untouched.
func (r *ProgressRecord) SetStep(index, stepCount int, now time.Time) bool {
	if index < 0 || index >= stepCount {
		return false
	}
	r.CurrentStepIndex = index
	r.LastAccessedAt = now
	return true
}

// IsFinished reports whether the record points past the last step.
func (r *ProgressRecord) IsFinished(stepCount int) bool {
	return r.CurrentStepIndex >= stepCount
}

// Reconcile binds the record to a step sequence: the index is clamped into
// [0, len(steps)] and completed ids that are not part of the sequence are
// dropped.
func (r *ProgressRecord) Reconcile(steps []TutorialStep) {
	if r.CurrentStepIndex < 0 {
		r.CurrentStepIndex = 0
	}
	if r.CurrentStepIndex > len(steps) {
		r.CurrentStepIndex = len(steps)
	}

	known := make(map[string]bool, len(steps))
	for _, s := range steps {
		known[s.ID] = true
	}
	for id := range r.CompletedStepIDs {
		if !known[id] {
			delete(r.CompletedStepIDs, id)
		}
	}
}

// Clone returns a deep copy safe to hand to another goroutine.
func (r *ProgressRecord) Clone() *ProgressRecord {
	c := *r
	c.CompletedStepIDs = make(map[string]bool, len(r.CompletedStepIDs))
	for id := range r.CompletedStepIDs {
		c.CompletedStepIDs[id] = true
	}
	return &c
}

// CompletionPercent returns completed/total*100, and 0 for an empty tutorial.
func CompletionPercent(completed, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(completed) / float64(total) * 100
}

// CompletedList encodes the completed set the way the records backends store
// it: ids in lexical order joined by commas.
func (r *ProgressRecord) CompletedList() string {
	return strings.Join(r.Completed(), ",")
}

// ParseCompletedList decodes a comma-separated completed list. Blank entries
// are skipped.
func ParseCompletedList(s string) map[string]bool {
	ids := make(map[string]bool)
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids[id] = true
		}
	}
	return ids
}
