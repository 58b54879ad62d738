package collab

import (
	"context"

	"github.com/felixgeelhaar/codeburst/internal/domain"
)

var stepFields = []string{
	"Id", "id", "title", "description", "active", "order",
	"content", "code_example", "expected_output",
}

type stepRecord struct {
	RecordID       RecordID `json:"Id"`
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Active         bool     `json:"active"`
	Order          flexInt  `json:"order"`
	Content        string   `json:"content"`
	CodeExample    string   `json:"code_example"`
	ExpectedOutput *string  `json:"expected_output"`
}

func (r stepRecord) toDomain() domain.TutorialStep {
	id := r.ID
	if id == "" {
		id = string(r.RecordID)
	}
	return domain.TutorialStep{
		ID:             id,
		Title:          r.Title,
		Description:    r.Description,
		Content:        r.Content,
		CodeExample:    r.CodeExample,
		ExpectedOutput: r.ExpectedOutput,
		Order:          int(r.Order),
		Active:         r.Active,
	}
}

// StepRepository reads tutorial steps from the records API
type StepRepository struct {
	client *Client
}

// NewStepRepository creates a step repository over client
func NewStepRepository(client *Client) *StepRepository {
	return &StepRepository{client: client}
}

// ListSteps fetches the non-deleted steps ordered by "order" ascending.
// Transport and decoding failures are returned as *domain.FetchError.
func (r *StepRepository) ListSteps(ctx context.Context) ([]domain.TutorialStep, error) {
	params := FetchParams{
		Fields:  Fields(stepFields...),
		OrderBy: []OrderBy{{Field: "order", Direction: "ASC"}},
		Where:   []Condition{ExactMatch("IsDeleted", false)},
	}

	var resp fetchResponse[stepRecord]
	if err := r.client.fetch(ctx, TableSteps, params, &resp); err != nil {
		return nil, &domain.FetchError{Op: TableSteps, Err: err}
	}

	steps := make([]domain.TutorialStep, 0, len(resp.Data))
	for _, rec := range resp.Data {
		steps = append(steps, rec.toDomain())
	}
	return steps, nil
}
