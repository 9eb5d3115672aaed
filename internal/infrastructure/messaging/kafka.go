// internal/infrastructure/messaging/kafka.go
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/drinksharbour/drinksharbour-api/internal/config"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// KafkaPublisher publishes events to Kafka, one topic per event type
type KafkaPublisher struct {
	writer *kafka.Writer
	cfg    *config.Config
	logger *logrus.Entry
}

// NewKafkaPublisher creates a publisher for the configured brokers
func NewKafkaPublisher(cfg *config.Config, logger *logrus.Entry) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Kafka.Brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
		WriteTimeout:           10 * time.Second,
		MaxAttempts:            3,
		Transport: &kafka.Transport{
			ClientID: cfg.Kafka.ClientID,
		},
	}

	return &KafkaPublisher{
		writer: writer,
		cfg:    cfg,
		logger: logger,
	}
}

// Publish writes the event keyed by key, so events for one order stay ordered
func (p *KafkaPublisher) Publish(ctx context.Context, eventType, key string, payload interface{}) error {
	env, err := NewEnvelope(eventType, payload)
	if err != nil {
		return err
	}

	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}

	msg := kafka.Message{
		Topic: p.cfg.Topic(eventType),
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
			{Key: "event_id", Value: []byte(env.ID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.WithError(err).WithField("event_type", eventType).Error("failed to publish event")
		return fmt.Errorf("failed to publish %s: %w", eventType, err)
	}
	return nil
}

// Close flushes and closes the writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NewPublisher selects Kafka when brokers are configured, logging otherwise
func NewPublisher(cfg *config.Config, logger *logrus.Logger) Publisher {
	entry := logger.WithField("component", "events")
	if len(cfg.Kafka.Brokers) == 0 {
		entry.Info("no kafka brokers configured, events will be logged only")
		return NewLogPublisher(entry)
	}
	entry.WithField("brokers", cfg.Kafka.Brokers).Info("kafka publisher configured")
	return NewKafkaPublisher(cfg, entry)
}
