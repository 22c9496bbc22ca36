package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/spotsng/discovery-be/internal/dedup"
	"github.com/spotsng/discovery-be/shared/rabbitmq"
)

// BatchMessage is the wire format for candidate batches published by
// discovery sources.
type BatchMessage struct {
	BatchID     string            `json:"batch_id"`
	Source      string            `json:"source"`
	PreApproved bool              `json:"pre_approved,omitempty"`
	Candidates  []dedup.Candidate `json:"candidates"`
}

// BatchProcessor runs a candidate batch through the discovery pipeline
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, candidates []dedup.Candidate, opts BatchOptions) (*BatchResult, error)
}

// Consumer drains candidate batch messages from RabbitMQ and feeds them
// through the orchestrator.
type Consumer struct {
	rabbitClient  *rabbitmq.Client
	processor     BatchProcessor
	logger        *slog.Logger
	consumerTag   string
	prefetchCount int
}

// NewConsumer creates a discovery batch consumer
func NewConsumer(rabbitClient *rabbitmq.Client, processor BatchProcessor, logger *slog.Logger, consumerTag string, prefetchCount int) *Consumer {
	if prefetchCount <= 0 {
		prefetchCount = 1
	}

	return &Consumer{
		rabbitClient:  rabbitClient,
		processor:     processor,
		logger:        logger,
		consumerTag:   consumerTag,
		prefetchCount: prefetchCount,
	}
}

// Run consumes batch messages until the context is canceled or the
// delivery channel closes. Successful batches are acked; malformed
// messages are nacked without requeue, processing failures are nacked
// with requeue so another worker can pick them up.
func (c *Consumer) Run(ctx context.Context) error {
	channel := c.rabbitClient.GetChannel()
	if channel == nil {
		return fmt.Errorf("rabbitmq channel is nil")
	}

	if err := channel.Qos(c.prefetchCount, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	deliveries, err := c.rabbitClient.Consume(c.consumerTag)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("Discovery batch consumer started",
		slog.String("consumer_tag", c.consumerTag),
		slog.Int("prefetch_count", c.prefetchCount),
	)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Discovery batch consumer stopped - context canceled")
			return nil

		case delivery, ok := <-deliveries:
			if !ok {
				c.logger.Warn("RabbitMQ delivery channel closed")
				return fmt.Errorf("delivery channel closed")
			}

			c.handleDelivery(ctx, delivery)
		}
	}
}

func (c *Consumer) handleDelivery(ctx context.Context, delivery amqp.Delivery) {
	var msg BatchMessage
	if err := json.Unmarshal(delivery.Body, &msg); err != nil {
		c.logger.Error("Failed to parse batch message JSON",
			slog.String("error", err.Error()),
			slog.String("body", string(delivery.Body)),
		)
		// Malformed messages will never parse; do not requeue.
		if nackErr := delivery.Nack(false, false); nackErr != nil {
			c.logger.Error("Failed to NACK malformed message",
				slog.String("error", nackErr.Error()),
			)
		}
		return
	}

	if len(msg.Candidates) == 0 {
		c.logger.Warn("Batch message has no candidates",
			slog.String("batch_id", msg.BatchID),
			slog.String("source", msg.Source),
		)
		if nackErr := delivery.Nack(false, false); nackErr != nil {
			c.logger.Error("Failed to NACK empty batch",
				slog.String("error", nackErr.Error()),
			)
		}
		return
	}

	// A batch-level source fills in candidates that did not name one.
	for i := range msg.Candidates {
		if msg.Candidates[i].Source == "" {
			msg.Candidates[i].Source = msg.Source
		}
	}

	result, err := c.processor.ProcessBatch(ctx, msg.Candidates, BatchOptions{
		Enrich:      true,
		PreApproved: msg.PreApproved,
	})
	if err != nil {
		c.logger.Error("Failed to process batch message",
			slog.String("batch_id", msg.BatchID),
			slog.String("error", err.Error()),
		)
		// Processing failures are usually transient (database down); requeue.
		if nackErr := delivery.Nack(false, true); nackErr != nil {
			c.logger.Error("Failed to NACK batch message",
				slog.String("error", nackErr.Error()),
			)
		}
		return
	}

	if err := delivery.Ack(false); err != nil {
		c.logger.Error("Failed to ACK batch message",
			slog.String("batch_id", msg.BatchID),
			slog.String("error", err.Error()),
		)
		return
	}

	c.logger.Info("Batch message processed",
		slog.String("batch_id", msg.BatchID),
		slog.String("source", msg.Source),
		slog.Int("saved", result.Saved),
		slog.Int("skipped", len(result.Skipped)),
		slog.Int("errors", len(result.Errors)),
	)
}
