package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/drinksharbour/drinksharbour-api/internal/config"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/apperrors"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"
)

func newTestGateway() *StripeGateway {
	return NewStripeGateway(config.StripeConfig{
		WebhookSecret:      "whsec_test",
		Currency:           "USD",
		BreakerTimeout:     time.Minute,
		BreakerMaxRequests: 1,
	}, nil, logging.Component(logging.Discard(), "payment"))
}

func TestCreateAndConfirmMapsIntent(t *testing.T) {
	g := newTestGateway()
	var captured *stripe.PaymentIntentParams
	g.newIntent = func(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
		captured = params
		return &stripe.PaymentIntent{
			ID:       "pi_123",
			Status:   stripe.PaymentIntentStatusSucceeded,
			Amount:   *params.Amount,
			Currency: stripe.Currency(*params.Currency),
			Metadata: params.Metadata,
		}, nil
	}

	in, err := g.CreateAndConfirm(context.Background(), CreateParams{OrderID: 9, OrderNumber: "DH-20260101-ABC123", Amount: 4599, PaymentMethodID: "pm_card_visa"})
	require.NoError(t, err)
	assert.True(t, in.Succeeded())
	assert.Equal(t, "usd", in.Currency)
	assert.Equal(t, uint(9), in.OrderID())
	assert.Equal(t, "pm_card_visa", *captured.PaymentMethod)
	assert.True(t, *captured.Confirm)
}

func TestDeclinesDoNotTripBreaker(t *testing.T) {
	g := newTestGateway()
	g.newIntent = func(*stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
		return nil, &stripe.Error{Type: stripe.ErrorTypeCard, Msg: "Your card was declined."}
	}

	for i := 0; i < 5; i++ {
		_, err := g.CreateAndConfirm(context.Background(), CreateParams{Amount: 100})
		assert.True(t, apperrors.Is(err, apperrors.CodeUnprocessable))
	}
}

func TestOutagesOpenBreaker(t *testing.T) {
	g := newTestGateway()
	calls := 0
	g.getIntent = func(string, *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
		calls++
		return nil, errors.New("connection reset")
	}

	for i := 0; i < 3; i++ {
		_, err := g.Retrieve(context.Background(), "pi_1")
		assert.True(t, apperrors.Is(err, apperrors.CodeDependency))
	}

	_, err := g.Retrieve(context.Background(), "pi_1")
	assert.True(t, apperrors.Is(err, apperrors.CodeDependency))
	assert.Equal(t, 3, calls)
}

func TestParseWebhook(t *testing.T) {
	g := newTestGateway()
	payload := []byte(`{"id":"evt_1","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":"pi_9","object":"payment_intent","amount":2500,"currency":"usd","status":"succeeded","metadata":{"order_id":"12"}}}}`)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    "whsec_test",
		Timestamp: time.Now(),
	})

	event, err := g.ParseWebhook(payload, signed.Header)
	require.NoError(t, err)
	assert.Equal(t, EventIntentSucceeded, event.Type)
	require.NotNil(t, event.Intent)
	assert.Equal(t, "pi_9", event.Intent.ID)
	assert.Equal(t, int64(2500), event.Intent.Amount)
	assert.Equal(t, uint(12), event.Intent.OrderID())

	_, err = g.ParseWebhook(payload, "t=1,v1=bad")
	assert.True(t, apperrors.Is(err, apperrors.CodeUnauthorized))
}

func TestDisabledGateway(t *testing.T) {
	g := NewGateway(config.StripeConfig{}, nil, logging.Component(logging.Discard(), "payment"))
	_, err := g.Retrieve(context.Background(), "pi_1")
	assert.True(t, apperrors.Is(err, apperrors.CodeDependency))
	assert.Equal(t, "disabled", g.Name())
}
