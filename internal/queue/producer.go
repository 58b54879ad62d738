package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/codeburst/internal/progress"
)

// Publisher abstracts the connection for the producer
type Publisher interface {
	PublishJSON(ctx context.Context, queue string, data any) error
}

// Producer publishes progress updates to the queue. It is a progress.Sink,
// so a progress.Writer in front of it keeps publishing off the request path.
type Producer struct {
	conn Publisher
	now  func() time.Time
}

// NewProducer creates a new queue producer
func NewProducer(conn Publisher) *Producer {
	return &Producer{conn: conn, now: time.Now}
}

// Apply publishes u to the progress queue
func (p *Producer) Apply(ctx context.Context, u progress.Update) error {
	msg := &ProgressMessage{
		ID:          uuid.New(),
		Update:      u,
		PublishedAt: p.now(),
	}

	if err := p.conn.PublishJSON(ctx, ProgressQueueName, msg); err != nil {
		return fmt.Errorf("failed to publish progress update: %w", err)
	}

	slog.Debug("published progress update",
		"message_id", msg.ID,
		"record_id", u.RecordID,
		"current_step", u.CurrentStep,
	)
	return nil
}
