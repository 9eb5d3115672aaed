package messaging

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/drinksharbour/drinksharbour-api/internal/config"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvelopeEncodesPayload(t *testing.T) {
	env, err := NewEnvelope(EventOrderCreated, map[string]any{"order_number": "DH-20260101-AAAAAA"})
	require.NoError(t, err)

	assert.NotEmpty(t, env.ID)
	assert.Equal(t, EventOrderCreated, env.Type)

	var data map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "DH-20260101-AAAAAA", data["order_number"])
}

func TestNewPublisherWithoutBrokersLogsOnly(t *testing.T) {
	cfg := &config.Config{}
	pub := NewPublisher(cfg, logging.Discard())

	_, ok := pub.(*LogPublisher)
	assert.True(t, ok)
	assert.NoError(t, pub.Publish(context.Background(), EventOrderPaid, "1", struct{}{}))
	assert.NoError(t, pub.Close())
}

func TestNewPublisherWithBrokersUsesKafka(t *testing.T) {
	cfg := &config.Config{Kafka: config.KafkaConfig{Brokers: []string{"localhost:9092"}, TopicPrefix: "dh"}}
	pub := NewPublisher(cfg, logging.Discard())

	kp, ok := pub.(*KafkaPublisher)
	require.True(t, ok)
	assert.Equal(t, "dh.order.paid", kp.cfg.Topic(EventOrderPaid))
	assert.NoError(t, pub.Close())
}

func TestRecordingPublisher(t *testing.T) {
	rec := &RecordingPublisher{}
	require.NoError(t, rec.Publish(context.Background(), EventOrderCreated, "1", nil))
	require.NoError(t, rec.Publish(context.Background(), EventOrderPaid, "1", nil))
	assert.Equal(t, []string{EventOrderCreated, EventOrderPaid}, rec.Types())
}
