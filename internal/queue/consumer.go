package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/felixgeelhaar/codeburst/internal/domain"
	"github.com/felixgeelhaar/codeburst/internal/progress"
)

// UpdateHandler applies one progress update
type UpdateHandler func(ctx context.Context, u progress.Update) error

// Consumer consumes progress updates from the queue
type Consumer struct {
	conn       *Connection
	handler    UpdateHandler
	workers    int
	prefetch   int
	timeout    time.Duration
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	Workers  int           // Number of concurrent workers
	Prefetch int           // Prefetch count per worker
	Timeout  time.Duration // Bound on a single handler call
}

// DefaultConsumerConfig returns sensible defaults
func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Workers:  2,
		Prefetch: 1, // Process one at a time per worker for fairness
		Timeout:  10 * time.Second,
	}
}

// NewConsumer creates a new queue consumer
func NewConsumer(conn *Connection, handler UpdateHandler, cfg ConsumerConfig) *Consumer {
	defaults := DefaultConsumerConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = defaults.Workers
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = defaults.Prefetch
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}

	return &Consumer{
		conn:     conn,
		handler:  handler,
		workers:  cfg.Workers,
		prefetch: cfg.Prefetch,
		timeout:  cfg.Timeout,
	}
}

// Start begins consuming messages
func (c *Consumer) Start(ctx context.Context) error {
	ctx, c.cancelFunc = context.WithCancel(ctx)

	ch := c.conn.Channel()

	if err := ch.Qos(c.prefetch*c.workers, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := ch.Consume(
		ProgressQueueName,
		"",    // consumer tag (auto-generated)
		false, // auto-ack (manual ack for reliability)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	slog.Info("starting progress queue consumer", "workers", c.workers, "prefetch", c.prefetch)

	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go c.worker(ctx, i, msgs)
	}

	return nil
}

// worker processes messages from the queue
func (c *Consumer) worker(ctx context.Context, id int, msgs <-chan amqp.Delivery) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("worker stopping", "worker_id", id)
			return

		case msg, ok := <-msgs:
			if !ok {
				slog.Info("message channel closed", "worker_id", id)
				return
			}

			c.processMessage(ctx, id, msg)
		}
	}
}

// processMessage applies a single update and settles the delivery.
// Malformed messages and updates for records that no longer exist are
// rejected; other failures are requeued once.
func (c *Consumer) processMessage(ctx context.Context, workerID int, msg amqp.Delivery) {
	start := time.Now()

	var pm ProgressMessage
	if err := json.Unmarshal(msg.Body, &pm); err != nil || pm.Update.RecordID == "" {
		slog.Error("failed to unmarshal progress message",
			"worker_id", workerID,
			"error", err,
		)
		_ = msg.Reject(false)
		return
	}

	updateCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.handler(updateCtx, pm.Update)
	duration := time.Since(start)

	if err == nil {
		slog.Debug("progress update applied",
			"worker_id", workerID,
			"message_id", pm.ID,
			"record_id", pm.Update.RecordID,
			"duration", duration,
		)
		if err := msg.Ack(false); err != nil {
			slog.Error("failed to ack message", "worker_id", workerID, "message_id", pm.ID, "error", err)
		}
		return
	}

	requeue := !msg.Redelivered && !errors.Is(err, domain.ErrProgressNotFound)
	slog.Error("progress update failed",
		"worker_id", workerID,
		"message_id", pm.ID,
		"record_id", pm.Update.RecordID,
		"requeue", requeue,
		"error", err,
		"duration", duration,
	)
	if err := msg.Nack(false, requeue); err != nil {
		slog.Error("failed to nack message", "worker_id", workerID, "message_id", pm.ID, "error", err)
	}
}

// Stop gracefully stops the consumer
func (c *Consumer) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
	c.wg.Wait()
	slog.Info("consumer stopped")
}
