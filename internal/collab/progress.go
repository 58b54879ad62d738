package collab

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/felixgeelhaar/codeburst/internal/domain"
)

// isoMillis matches the timestamps the records API stores
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

var progressFields = []string{"Id", "user_id", "current_step", "completed_steps", "last_accessed"}

type progressRecord struct {
	RecordID       RecordID `json:"Id"`
	UserID         string   `json:"user_id"`
	CurrentStep    flexInt  `json:"current_step"`
	CompletedSteps string   `json:"completed_steps"`
	LastAccessed   string   `json:"last_accessed"`
}

func (r progressRecord) toDomain() (*domain.ProgressRecord, error) {
	rec := &domain.ProgressRecord{
		RecordID:         string(r.RecordID),
		UserID:           r.UserID,
		CurrentStepIndex: int(r.CurrentStep),
		CompletedStepIDs: domain.ParseCompletedList(r.CompletedSteps),
	}
	if r.LastAccessed != "" {
		t, err := time.Parse(time.RFC3339Nano, r.LastAccessed)
		if err != nil {
			return nil, fmt.Errorf("parse last_accessed: %w", err)
		}
		rec.LastAccessedAt = t
	}
	return rec, nil
}

type progressCreate struct {
	Name           string `json:"Name"`
	UserID         string `json:"user_id"`
	CurrentStep    int    `json:"current_step"`
	CompletedSteps string `json:"completed_steps"`
	LastAccessed   string `json:"last_accessed"`
}

type progressUpdate struct {
	RecordID       RecordID `json:"Id"`
	CurrentStep    int      `json:"current_step"`
	CompletedSteps string   `json:"completed_steps"`
	LastAccessed   string   `json:"last_accessed"`
}

// ProgressRepository stores progress records in the records API
type ProgressRepository struct {
	client *Client
}

// NewProgressRepository creates a progress repository over client
func NewProgressRepository(client *Client) *ProgressRepository {
	return &ProgressRepository{client: client}
}

// FindByUser fetches the single record of userID. It returns
// domain.ErrProgressNotFound when the user has none and *domain.FetchError
// when the API cannot be read.
func (r *ProgressRepository) FindByUser(ctx context.Context, userID string) (*domain.ProgressRecord, error) {
	params := FetchParams{
		Fields: Fields(progressFields...),
		Where: []Condition{
			ExactMatch("user_id", userID),
			ExactMatch("IsDeleted", false),
		},
		PagingInfo: &PagingInfo{Limit: 1},
	}

	var resp fetchResponse[progressRecord]
	if err := r.client.fetch(ctx, TableProgress, params, &resp); err != nil {
		return nil, &domain.FetchError{Op: TableProgress, Err: err}
	}
	if len(resp.Data) == 0 {
		return nil, domain.ErrProgressNotFound
	}

	rec, err := resp.Data[0].toDomain()
	if err != nil {
		return nil, &domain.FetchError{Op: TableProgress, Err: err}
	}
	return rec, nil
}

// Create inserts rec and sets its RecordID to the id issued by the API
func (r *ProgressRepository) Create(ctx context.Context, rec *domain.ProgressRecord) error {
	params := writeParams[progressCreate]{Records: []progressCreate{{
		Name:           "Progress for " + rec.UserID,
		UserID:         rec.UserID,
		CurrentStep:    rec.CurrentStepIndex,
		CompletedSteps: rec.CompletedList(),
		LastAccessed:   formatTime(rec.LastAccessedAt),
	}}}

	body, err := r.client.call(ctx, http.MethodPost, "/api/records/"+TableProgress, params)
	if err != nil {
		return &domain.PersistError{Op: "create", Err: err}
	}

	var resp writeResponse[progressRecord]
	if err := decode(body, &resp); err != nil {
		return &domain.PersistError{Op: "create", Err: err}
	}
	if !resp.Success || len(resp.Results) == 0 {
		return &domain.PersistError{Op: "create", Err: rejected(resp.Message)}
	}
	if id := resp.Results[0].Data.RecordID; id != "" {
		rec.RecordID = string(id)
	}
	return nil
}

// Update writes index, completed set and last access time of rec
func (r *ProgressRepository) Update(ctx context.Context, rec *domain.ProgressRecord) error {
	params := writeParams[progressUpdate]{Records: []progressUpdate{{
		RecordID:       RecordID(rec.RecordID),
		CurrentStep:    rec.CurrentStepIndex,
		CompletedSteps: rec.CompletedList(),
		LastAccessed:   formatTime(rec.LastAccessedAt),
	}}}

	body, err := r.client.call(ctx, http.MethodPut, "/api/records/"+TableProgress, params)
	if err != nil {
		return &domain.PersistError{Op: "update", RecordID: rec.RecordID, Err: err}
	}

	var resp writeResponse[progressRecord]
	if err := decode(body, &resp); err != nil {
		return &domain.PersistError{Op: "update", RecordID: rec.RecordID, Err: err}
	}
	if !resp.Success {
		return &domain.PersistError{Op: "update", RecordID: rec.RecordID, Err: rejected(resp.Message)}
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(isoMillis)
}

func rejected(message string) error {
	if message == "" {
		return errors.New("request rejected")
	}
	return errors.New("request rejected: " + message)
}
