// internal/domain/order/payment.go
package order

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/drinksharbour/drinksharbour-api/internal/domain/payment"
	"github.com/drinksharbour/drinksharbour-api/internal/infrastructure/messaging"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/apperrors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ConfirmPaymentRequest pays an order with a payment method or reconciles an existing intent
type ConfirmPaymentRequest struct {
	PaymentIntentID string `json:"payment_intent_id" binding:"omitempty,max=255"`
	PaymentMethodID string `json:"payment_method_id" binding:"omitempty,max=255"`
	Email           string `json:"email" binding:"omitempty,email"` // Guests prove ownership with the order email
}

// ConfirmPayment charges or verifies the payment of a pending order.
// Paying an order that is already paid returns it unchanged.
func (s *Service) ConfirmPayment(ctx context.Context, viewer Viewer, id uint, req *ConfirmPaymentRequest) (*Order, error) {
	if viewer.Email == "" {
		viewer.Email = req.Email
	}
	o, err := s.GetOrder(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	if o.IsPaid() {
		return o, nil
	}
	if o.Status != OrderStatusPending {
		return nil, apperrors.Newf(apperrors.CodeUnprocessable, "order is %s and cannot be paid", o.Status)
	}

	var intent *payment.Intent
	switch {
	case req.PaymentIntentID != "":
		intent, err = s.gateway.Retrieve(ctx, req.PaymentIntentID)
	case req.PaymentMethodID != "":
		intent, err = s.gateway.CreateAndConfirm(ctx, payment.CreateParams{
			OrderID:         o.ID,
			OrderNumber:     o.OrderNumber,
			Amount:          o.TotalAmount,
			Currency:        o.Currency,
			PaymentMethodID: req.PaymentMethodID,
			Email:           o.Email,
			IdempotencyKey:  "order-" + strconv.FormatUint(uint64(o.ID), 10),
		})
	default:
		return nil, apperrors.New(apperrors.CodeValidation, "payment_intent_id or payment_method_id is required")
	}
	if err != nil {
		return nil, err
	}

	if err := matchIntent(o, intent); err != nil {
		return nil, err
	}

	switch {
	case intent.Succeeded():
		if err := s.markPaid(ctx, o.ID, intent); err != nil {
			return nil, err
		}
		return s.load(ctx, o.ID)
	case intent.Status == payment.StatusProcessing:
		return nil, apperrors.New(apperrors.CodeConflict, "payment is still processing")
	case intent.Status == payment.StatusRequiresAction:
		return nil, apperrors.New(apperrors.CodeUnprocessable, "payment requires additional authentication")
	default:
		if err := s.markFailed(ctx, o, intent); err != nil {
			return nil, err
		}
		reason := intent.FailureReason
		if reason == "" {
			reason = "payment was not completed"
		}
		return nil, apperrors.New(apperrors.CodeUnprocessable, reason)
	}
}

// HandleWebhook reconciles orders with verified gateway events.
// Unknown events and orders are acknowledged so the gateway stops retrying.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	ev, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		return err
	}

	logger := s.logger.WithFields(logrus.Fields{"event_id": ev.ID, "event_type": ev.Type})
	if ev.Type != payment.EventIntentSucceeded && ev.Type != payment.EventIntentFailed {
		logger.Debug("ignoring payment event")
		return nil
	}

	o, err := s.findByIntent(ctx, ev.Intent)
	if apperrors.Is(err, apperrors.CodeNotFound) {
		logger.WithField("payment_intent_id", ev.Intent.ID).Warn("payment event for unknown order")
		return nil
	}
	if err != nil {
		return err
	}
	if err := matchIntent(o, ev.Intent); err != nil {
		logger.WithError(err).WithField("order_number", o.OrderNumber).Error("payment event does not match order")
		return nil
	}

	if ev.Type == payment.EventIntentSucceeded {
		return s.markPaid(ctx, o.ID, ev.Intent)
	}
	if o.IsPaid() {
		return nil
	}
	return s.markFailed(ctx, o, ev.Intent)
}

func (s *Service) findByIntent(ctx context.Context, intent *payment.Intent) (*Order, error) {
	if id := intent.OrderID(); id > 0 {
		return s.load(ctx, id)
	}
	var o Order
	if err := s.db.WithContext(ctx).Where("payment_intent_id = ?", intent.ID).First(&o).Error; err != nil {
		return nil, apperrors.FromGorm(err, "order")
	}
	return &o, nil
}

// matchIntent rejects intents created for another order or amount.
// Intents must carry the order id this service stamps into their metadata.
func matchIntent(o *Order, intent *payment.Intent) error {
	if intent == nil {
		return apperrors.New(apperrors.CodeDependency, "payment gateway returned no intent")
	}
	if intent.OrderID() != o.ID {
		return apperrors.New(apperrors.CodeUnprocessable, "payment belongs to a different order")
	}
	if intent.Amount != o.TotalAmount || !strings.EqualFold(intent.Currency, o.Currency) {
		return apperrors.New(apperrors.CodeUnprocessable, "payment amount does not match order total").
			WithDetails(map[string]interface{}{
				"expected": o.TotalAmount,
				"received": intent.Amount,
				"currency": intent.Currency,
			})
	}
	return nil
}

// markPaid moves a pending order to paid/confirmed exactly once
func (s *Service) markPaid(ctx context.Context, orderID uint, intent *payment.Intent) error {
	now := s.now()
	changed := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&Order{}).
			Where("id = ? AND payment_status <> ? AND status = ?", orderID, PaymentStatusPaid, OrderStatusPending).
			Updates(map[string]interface{}{
				"payment_status":    PaymentStatusPaid,
				"status":            OrderStatusConfirmed,
				"payment_intent_id": intent.ID,
				"paid_at":           now,
				"confirmed_at":      now,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to mark order paid: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return nil
		}
		changed = true

		if err := tx.Create(&PaymentTransaction{
			OrderID:     orderID,
			Provider:    s.gateway.Name(),
			ProviderRef: intent.ID,
			Amount:      intent.Amount,
			Currency:    strings.ToUpper(intent.Currency),
			Status:      TransactionSucceeded,
		}).Error; err != nil {
			return fmt.Errorf("failed to record payment: %w", err)
		}
		return addHistory(tx, orderID, OrderStatusConfirmed, "Payment received", nil)
	})
	if err != nil {
		return err
	}

	o, err := s.load(ctx, orderID)
	if err != nil {
		return err
	}
	if !changed {
		if o.Status == OrderStatusCancelled {
			s.logger.WithFields(logrus.Fields{
				"order_number":      o.OrderNumber,
				"payment_intent_id": intent.ID,
			}).Error("payment captured for cancelled order, refund required")
		}
		return nil
	}

	s.metrics.PaymentOutcome("succeeded")
	s.publish(ctx, messaging.EventOrderPaid, o)
	s.sendPaymentSuccess(o, intent)

	s.logger.WithFields(logrus.Fields{
		"order_number":      o.OrderNumber,
		"payment_intent_id": intent.ID,
	}).Info("order paid")
	return nil
}

// markFailed records a failed attempt. The order stays pending so the customer can retry.
func (s *Service) markFailed(ctx context.Context, o *Order, intent *payment.Intent) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&Order{}).
			Where("id = ? AND payment_status <> ?", o.ID, PaymentStatusPaid).
			Updates(map[string]interface{}{
				"payment_status":    PaymentStatusFailed,
				"payment_intent_id": intent.ID,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to mark payment failed: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return nil
		}
		if err := tx.Create(&PaymentTransaction{
			OrderID:       o.ID,
			Provider:      s.gateway.Name(),
			ProviderRef:   intent.ID,
			Amount:        intent.Amount,
			Currency:      strings.ToUpper(intent.Currency),
			Status:        TransactionFailed,
			FailureReason: truncate(intent.FailureReason, 500),
		}).Error; err != nil {
			return fmt.Errorf("failed to record payment attempt: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.PaymentOutcome("failed")
	s.sendPaymentFailed(o, intent)

	s.logger.WithFields(logrus.Fields{
		"order_number":      o.OrderNumber,
		"payment_intent_id": intent.ID,
		"reason":            intent.FailureReason,
	}).Warn("order payment failed")
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
