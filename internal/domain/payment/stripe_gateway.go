// internal/domain/payment/stripe_gateway.go
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/drinksharbour/drinksharbour-api/internal/config"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/apperrors"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/metrics"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/paymentintent"
	"github.com/stripe/stripe-go/v84/webhook"
)

const breakerName = "stripe"

// StripeGateway confirms card payments through Stripe PaymentIntents
type StripeGateway struct {
	webhookSecret string
	currency      string
	breaker       *gobreaker.CircuitBreaker[*stripe.PaymentIntent]
	logger        *logrus.Entry

	newIntent func(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	getIntent func(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// NewGateway returns a Stripe gateway, or a disabled one when no key is configured
func NewGateway(cfg config.StripeConfig, m *metrics.Metrics, logger *logrus.Entry) Gateway {
	if strings.TrimSpace(cfg.SecretKey) == "" {
		logger.Warn("stripe secret key not configured, payments disabled")
		return DisabledGateway{}
	}
	stripe.Key = cfg.SecretKey
	return NewStripeGateway(cfg, m, logger)
}

// NewStripeGateway creates a Stripe gateway guarded by a circuit breaker
func NewStripeGateway(cfg config.StripeConfig, m *metrics.Metrics, logger *logrus.Entry) *StripeGateway {
	timeout := cfg.BreakerTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: cfg.BreakerMaxRequests,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		// Declines and bad requests are answers, not outages.
		IsSuccessful: func(err error) bool {
			return err == nil || isClientError(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			m.BreakerState(name, int(to))
			logger.WithFields(logrus.Fields{"breaker": name, "from": from.String(), "to": to.String()}).Warn("circuit breaker state changed")
		},
	}

	return &StripeGateway{
		webhookSecret: cfg.WebhookSecret,
		currency:      strings.ToLower(cfg.Currency),
		breaker:       gobreaker.NewCircuitBreaker[*stripe.PaymentIntent](settings),
		logger:        logger,
		newIntent:     paymentintent.New,
		getIntent:     paymentintent.Get,
	}
}

// Name identifies the provider on stored transactions
func (g *StripeGateway) Name() string {
	return "stripe"
}

// CreateAndConfirm creates a PaymentIntent for the order and confirms it with the given method
func (g *StripeGateway) CreateAndConfirm(ctx context.Context, p CreateParams) (*Intent, error) {
	currency := strings.ToLower(p.Currency)
	if currency == "" {
		currency = g.currency
	}

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(p.Amount),
		Currency:      stripe.String(currency),
		PaymentMethod: stripe.String(p.PaymentMethodID),
		Confirm:       stripe.Bool(true),
		Description:   stripe.String("Order " + p.OrderNumber),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	if p.Email != "" {
		params.ReceiptEmail = stripe.String(p.Email)
	}
	params.Context = ctx
	params.AddMetadata("order_id", strconv.FormatUint(uint64(p.OrderID), 10))
	params.AddMetadata("order_number", p.OrderNumber)
	if p.IdempotencyKey != "" {
		params.SetIdempotencyKey(p.IdempotencyKey)
	}

	pi, err := g.breaker.Execute(func() (*stripe.PaymentIntent, error) {
		return g.newIntent(params)
	})
	if err != nil {
		return nil, g.translate(err, "failed to create payment")
	}
	return toIntent(pi), nil
}

// Retrieve fetches a PaymentIntent by id
func (g *StripeGateway) Retrieve(ctx context.Context, intentID string) (*Intent, error) {
	if intentID == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "payment_intent_id is required")
	}
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := g.breaker.Execute(func() (*stripe.PaymentIntent, error) {
		return g.getIntent(intentID, params)
	})
	if err != nil {
		return nil, g.translate(err, "failed to retrieve payment")
	}
	return toIntent(pi), nil
}

// ParseWebhook verifies the Stripe-Signature header and decodes payment intent events
func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	if g.webhookSecret == "" {
		return nil, apperrors.New(apperrors.CodeDependency, "webhook secret not configured")
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeUnauthorized, err, "invalid webhook signature")
	}

	out := &WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if strings.HasPrefix(out.Type, "payment_intent.") && event.Data != nil {
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeValidation, err, "failed to decode payment intent")
		}
		out.Intent = toIntent(&pi)
	}
	return out, nil
}

func (g *StripeGateway) translate(err error, message string) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return apperrors.Wrap(apperrors.CodeDependency, err, "payment provider temporarily unavailable")
	}

	var se *stripe.Error
	if errors.As(err, &se) {
		switch se.Type {
		case stripe.ErrorTypeCard:
			return apperrors.Wrap(apperrors.CodeUnprocessable, err, "payment declined: "+se.Msg)
		case stripe.ErrorTypeInvalidRequest:
			return apperrors.Wrap(apperrors.CodeValidation, err, message+": "+se.Msg)
		}
	}

	g.logger.WithError(err).Error(message)
	return apperrors.Wrap(apperrors.CodeDependency, err, message)
}

func isClientError(err error) bool {
	var se *stripe.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Type == stripe.ErrorTypeCard || se.Type == stripe.ErrorTypeInvalidRequest
}

func toIntent(pi *stripe.PaymentIntent) *Intent {
	if pi == nil {
		return nil
	}
	in := &Intent{
		ID:           pi.ID,
		Status:       string(pi.Status),
		Amount:       pi.Amount,
		Currency:     strings.ToLower(string(pi.Currency)),
		ClientSecret: pi.ClientSecret,
		Metadata:     pi.Metadata,
	}
	if pi.LastPaymentError != nil {
		in.FailureReason = pi.LastPaymentError.Msg
	}
	return in
}

// DisabledGateway rejects every payment call
type DisabledGateway struct{}

// Name identifies the provider on stored transactions
func (DisabledGateway) Name() string { return "disabled" }

// CreateAndConfirm always fails
func (DisabledGateway) CreateAndConfirm(context.Context, CreateParams) (*Intent, error) {
	return nil, errPaymentsDisabled
}

// Retrieve always fails
func (DisabledGateway) Retrieve(context.Context, string) (*Intent, error) {
	return nil, errPaymentsDisabled
}

// ParseWebhook always fails
func (DisabledGateway) ParseWebhook([]byte, string) (*WebhookEvent, error) {
	return nil, errPaymentsDisabled
}

var errPaymentsDisabled = apperrors.New(apperrors.CodeDependency, "payments are not configured")
