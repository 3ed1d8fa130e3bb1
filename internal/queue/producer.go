package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"ingestion-service/internal/models"
)

// Producer is the durable enqueue side of the job queue. WriteMessages does
// not return before the broker acknowledges the full ISR, so a nil error
// means the job will be processed.
type Producer struct {
	writer *kafka.Writer
	logger *logrus.Logger
}

func NewProducer(broker, topic string, logger *logrus.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(broker),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}
	return &Producer{writer: writer, logger: logger}
}

// Enqueue serializes and durably appends one job. The key routes all jobs of
// the same sensor or device to the same partition, keeping per-sensor
// delivery roughly ordered.
func (p *Producer) Enqueue(ctx context.Context, job models.IngestionJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	key := job.SensorID
	if key == "" {
		key = job.DeviceCode
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
