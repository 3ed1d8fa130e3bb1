package queue

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"ingestion-service/internal/models"
	"ingestion-service/internal/worker"
)

// Consumer pulls jobs off the topic and feeds the worker pool. Offsets are
// committed only after the pool reports a terminal outcome, so an unclean
// shutdown redelivers in-flight jobs (at-least-once).
type Consumer struct {
	reader *kafka.Reader
	pool   *worker.Pool
	logger *logrus.Logger
}

func NewConsumer(broker, topic, groupID string, pool *worker.Pool, logger *logrus.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{broker},
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 1 << 20,
	})
	return &Consumer{reader: reader, pool: pool, logger: logger}
}

// Run fetches until ctx is cancelled. Submission blocks while all workers
// are busy, which is the consumer's backpressure.
func (c *Consumer) Run(ctx context.Context) {
	c.logger.Info("queue consumer started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				c.logger.Info("queue consumer stopped")
				return
			}
			c.logger.Errorf("fetch message failed: %v", err)
			continue
		}

		var job models.IngestionJob
		if err := json.Unmarshal(msg.Value, &job); err != nil {
			// A payload that does not parse will never parse; commit and
			// move on rather than wedging the partition.
			c.logger.Errorf("unmarshal job failed, skipping message: %v", err)
			c.commit(ctx, msg)
			continue
		}

		message := msg
		err = c.pool.Submit(ctx, worker.Task{
			Job: job,
			Ack: func(ackCtx context.Context) error {
				return c.reader.CommitMessages(ackCtx, message)
			},
		})
		if err != nil {
			// Shutting down; the uncommitted message is redelivered later.
			c.logger.Infof("queue consumer stopping: %v", err)
			return
		}
	}
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.Errorf("commit failed: %v", err)
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
