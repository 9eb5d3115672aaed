// internal/domain/order/status.go
package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/drinksharbour/drinksharbour-api/internal/domain/coupon"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/flashsale"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/inventory"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/product"
	"github.com/drinksharbour/drinksharbour-api/internal/infrastructure/messaging"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/apperrors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// UpdateStatusRequest represents an admin status change
type UpdateStatusRequest struct {
	Status         OrderStatus `json:"status" binding:"required,oneof=confirmed processing shipped delivered cancelled refunded"`
	Comment        string      `json:"comment" binding:"max=500"`
	TrackingNumber string      `json:"tracking_number" binding:"max=100"`
	Carrier        string      `json:"carrier" binding:"max=50"`
}

// CancelOrderRequest is the body of a cancellation
type CancelOrderRequest struct {
	Reason string `json:"reason" binding:"max=500"`
	Email  string `json:"email" binding:"omitempty,email"`
}

var statusTimestamps = map[OrderStatus]string{
	OrderStatusConfirmed:  "confirmed_at",
	OrderStatusProcessing: "processing_at",
	OrderStatusShipped:    "shipped_at",
	OrderStatusDelivered:  "delivered_at",
	OrderStatusCancelled:  "cancelled_at",
}

// CancelOrder cancels an order for its customer or an admin and returns stock
func (s *Service) CancelOrder(ctx context.Context, viewer Viewer, id uint, reason string) (*Order, error) {
	o, err := s.GetOrder(ctx, viewer, id)
	if err != nil {
		return nil, err
	}

	allowed := o.CanBeCancelled()
	if viewer.IsAdmin {
		allowed = CanTransition(o.Status, OrderStatusCancelled)
	}
	if !allowed {
		return nil, apperrors.Newf(apperrors.CodeUnprocessable, "order is %s and can no longer be cancelled", o.Status)
	}

	if reason == "" {
		reason = "Cancelled by customer"
	}
	var actor *uint
	if viewer.IsAdmin {
		actor = viewer.UserID
	}
	if err := s.cancel(ctx, o, reason, actor); err != nil {
		return nil, err
	}
	return s.load(ctx, o.ID)
}

// UpdateOrderStatus moves an order along its lifecycle on behalf of an admin
func (s *Service) UpdateOrderStatus(ctx context.Context, actorID uint, id uint, req *UpdateStatusRequest) (*Order, error) {
	o, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(o.Status, req.Status) {
		return nil, apperrors.Newf(apperrors.CodeUnprocessable, "cannot change order status from %s to %s", o.Status, req.Status)
	}

	if req.Status == OrderStatusCancelled {
		reason := req.Comment
		if reason == "" {
			reason = "Cancelled by store"
		}
		if err := s.cancel(ctx, o, reason, &actorID); err != nil {
			return nil, err
		}
		return s.load(ctx, o.ID)
	}

	now := s.now()
	updates := map[string]interface{}{"status": req.Status}
	if col, ok := statusTimestamps[req.Status]; ok {
		updates[col] = now
	}
	if req.Status == OrderStatusShipped {
		if req.TrackingNumber != "" {
			updates["tracking_number"] = req.TrackingNumber
		}
		if req.Carrier != "" {
			updates["carrier"] = req.Carrier
		}
	}
	if req.Status == OrderStatusRefunded && o.IsPaid() {
		updates["payment_status"] = PaymentStatusRefunded
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&Order{}).Where("id = ? AND status = ?", o.ID, o.Status).Updates(updates)
		if result.Error != nil {
			return fmt.Errorf("failed to update order status: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return apperrors.New(apperrors.CodeConflict, "order was modified concurrently, please retry")
		}
		return addHistory(tx, o.ID, req.Status, req.Comment, &actorID)
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.load(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, messaging.EventOrderStatusChanged, updated)
	s.sendStatusUpdate(updated, req.Comment)

	s.logger.WithFields(logrus.Fields{
		"order_number": updated.OrderNumber,
		"from":         o.Status,
		"to":           updated.Status,
		"actor_id":     actorID,
	}).Info("order status updated")
	return updated, nil
}

// cancel marks o cancelled and returns stock, flash allocation and coupon usage
func (s *Service) cancel(ctx context.Context, o *Order, reason string, actor *uint) error {
	now := s.now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&Order{}).
			Where("id = ? AND status = ?", o.ID, o.Status).
			Updates(map[string]interface{}{
				"status":        OrderStatusCancelled,
				"cancel_reason": truncate(reason, 500),
				"cancelled_at":  now,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to cancel order: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return apperrors.New(apperrors.CodeConflict, "order was modified concurrently, please retry")
		}

		for _, it := range o.Items {
			if err := product.RestoreStock(tx, product.StockChange{
				SizeID:        it.SizeID,
				Quantity:      it.Quantity,
				Reason:        inventory.ReasonCancellation,
				ReferenceType: "order",
				ReferenceID:   o.ID,
				ActorID:       actor,
			}); err != nil {
				return err
			}
			if it.FlashSaleItemID != nil {
				if err := flashsale.RevertSold(tx, *it.FlashSaleItemID, it.Quantity); err != nil {
					return err
				}
			}
			if err := product.AdjustSalesCount(tx, it.ProductID, -it.Quantity); err != nil {
				return err
			}
		}

		if err := coupon.ReleaseRedemption(tx, o.ID); err != nil {
			return err
		}
		return addHistory(tx, o.ID, OrderStatusCancelled, reason, actor)
	})
	if err != nil {
		return err
	}

	if s.flash != nil {
		for _, it := range o.Items {
			if it.FlashSaleItemID != nil {
				s.flash.Release(ctx, *it.FlashSaleItemID, it.Quantity)
			}
		}
	}

	o.Status = OrderStatusCancelled
	o.CancelReason = reason
	o.CancelledAt = &now

	logger := s.logger.WithFields(logrus.Fields{"order_number": o.OrderNumber, "reason": reason})
	if o.IsPaid() {
		logger.Warn("paid order cancelled, refund required")
	} else {
		logger.Info("order cancelled")
	}

	s.publish(ctx, messaging.EventOrderCancelled, o)
	s.sendStatusUpdate(o, reason)
	return nil
}

// ExpireStalePending cancels unpaid orders older than olderThan
func (s *Service) ExpireStalePending(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := s.now().Add(-olderThan)

	var stale []Order
	if err := s.db.WithContext(ctx).
		Preload("Items").
		Where("status = ? AND payment_status <> ? AND created_at < ?", OrderStatusPending, PaymentStatusPaid, cutoff).
		Order("created_at ASC").
		Limit(500).
		Find(&stale).Error; err != nil {
		return 0, fmt.Errorf("failed to find stale orders: %w", err)
	}

	var (
		expired int
		errs    []error
	)
	for i := range stale {
		if err := s.cancel(ctx, &stale[i], "Payment not received", nil); err != nil {
			if apperrors.Is(err, apperrors.CodeConflict) {
				continue
			}
			errs = append(errs, fmt.Errorf("order %s: %w", stale[i].OrderNumber, err))
			continue
		}
		expired++
	}
	return expired, errors.Join(errs...)
}
