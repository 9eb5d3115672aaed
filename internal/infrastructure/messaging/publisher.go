// internal/infrastructure/messaging/publisher.go
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Event names published by the API
const (
	EventOrderCreated       = "order.created"
	EventOrderPaid          = "order.paid"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderCancelled     = "order.cancelled"
	EventFlashSaleStarted   = "flash_sale.started"
	EventFlashSaleEnded     = "flash_sale.ended"
)

// Envelope wraps every published payload
type Envelope struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// Publisher emits domain events
type Publisher interface {
	Publish(ctx context.Context, eventType, key string, payload interface{}) error
	Close() error
}

// NewEnvelope encodes payload into an envelope
func NewEnvelope(eventType string, payload interface{}) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", eventType, err)
	}
	return &Envelope{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}, nil
}

// LogPublisher writes events to the log. Used when no broker is configured.
type LogPublisher struct {
	logger *logrus.Entry
}

// NewLogPublisher creates a log-only publisher
func NewLogPublisher(logger *logrus.Entry) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish logs the event
func (p *LogPublisher) Publish(ctx context.Context, eventType, key string, payload interface{}) error {
	env, err := NewEnvelope(eventType, payload)
	if err != nil {
		return err
	}
	p.logger.WithFields(logrus.Fields{
		"event_id":   env.ID,
		"event_type": eventType,
		"key":        key,
	}).Debug("event published")
	return nil
}

// Close is a no-op
func (p *LogPublisher) Close() error { return nil }

// RecordingPublisher keeps published envelopes in memory
type RecordingPublisher struct {
	mu     sync.Mutex
	Events []Envelope
}

// Publish records the event. Like a broker write it fails once ctx is done.
func (p *RecordingPublisher) Publish(ctx context.Context, eventType, key string, payload interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	env, err := NewEnvelope(eventType, payload)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, *env)
	return nil
}

// Types returns the recorded event types in order
func (p *RecordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.Events))
	for _, e := range p.Events {
		types = append(types, e.Type)
	}
	return types
}

// Close is a no-op
func (p *RecordingPublisher) Close() error { return nil }
