// internal/domain/order/notify.go
package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/drinksharbour/drinksharbour-api/internal/domain/payment"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/tenant"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/email"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/money"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/pdf"
)

const publishTimeout = 5 * time.Second

// Event is the payload published for order lifecycle events
type Event struct {
	OrderID       uint          `json:"order_id"`
	OrderNumber   string        `json:"order_number"`
	UserID        *uint         `json:"user_id,omitempty"`
	Status        OrderStatus   `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	Total         int64         `json:"total"`
	PlatformFee   int64         `json:"platform_fee"`
	Currency      string        `json:"currency"`
	Items         []EventItem   `json:"items"`
}

// EventItem is one line of an order event
type EventItem struct {
	TenantID     uint  `json:"tenant_id"`
	ProductID    uint  `json:"product_id"`
	SubProductID uint  `json:"sub_product_id"`
	Quantity     int   `json:"quantity"`
	TenantAmount int64 `json:"tenant_amount"`
}

func newEvent(o *Order) Event {
	ev := Event{
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		UserID:        o.UserID,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		Total:         o.TotalAmount,
		PlatformFee:   o.PlatformFeeTotal,
		Currency:      o.Currency,
		Items:         make([]EventItem, 0, len(o.Items)),
	}
	for _, it := range o.Items {
		ev.Items = append(ev.Items, EventItem{
			TenantID:     it.TenantID,
			ProductID:    it.ProductID,
			SubProductID: it.SubProductID,
			Quantity:     it.Quantity,
			TenantAmount: it.TenantAmount,
		})
	}
	return ev
}

// publish runs after the commit, so it outlives a cancelled request but not publishTimeout
func (s *Service) publish(ctx context.Context, eventType string, o *Order) {
	if s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := s.publisher.Publish(ctx, eventType, o.OrderNumber, newEvent(o)); err != nil {
		s.logger.WithError(err).WithField("event", eventType).Warn("failed to publish order event")
	}
}

func (s *Service) orderURL(o *Order) string {
	return strings.TrimRight(s.config.App.FrontendURL, "/") + "/orders/" + o.OrderNumber
}

func (s *Service) sendConfirmation(o *Order) {
	data := email.OrderConfirmationData{
		EmailTemplateData: email.EmailTemplateData{UserName: o.ShippingAddress.FullName, UserEmail: o.Email},
		OrderNumber:       o.OrderNumber,
		OrderDate:         o.CreatedAt.Format("January 2, 2006"),
		Subtotal:          money.Format(o.SubtotalAmount, o.Currency),
		Discount:          money.Format(o.DiscountAmount, o.Currency),
		Shipping:          money.Format(o.ShippingAmount, o.Currency),
		Tax:               money.Format(o.TaxAmount, o.Currency),
		OrderTotal:        money.Format(o.TotalAmount, o.Currency),
		CouponCode:        o.CouponCode,
		OrderURL:          s.orderURL(o),
		ShippingAddress:   email.Address(o.ShippingAddress),
	}
	for _, it := range o.Items {
		data.Items = append(data.Items, email.OrderItem{
			Name:     it.ProductName,
			SKU:      it.SKU,
			Size:     it.Size,
			Quantity: it.Quantity,
			Price:    money.Format(it.UnitPrice, o.Currency),
			Total:    money.Format(it.TotalPrice, o.Currency),
			ImageURL: it.Image,
		})
	}
	s.emails.Async(email.EmailTypeOrderConfirmation, func(ctx context.Context) error {
		return s.emails.SendOrderConfirmationEmail(ctx, data)
	})
}

func (s *Service) paymentData(o *Order, intent *payment.Intent) email.PaymentNotificationData {
	return email.PaymentNotificationData{
		EmailTemplateData: email.EmailTemplateData{UserName: o.ShippingAddress.FullName, UserEmail: o.Email},
		OrderNumber:       o.OrderNumber,
		Amount:            money.Format(intent.Amount, strings.ToUpper(intent.Currency)),
		TransactionID:     intent.ID,
		OrderURL:          s.orderURL(o),
		Date:              s.now().Format("January 2, 2006 15:04 MST"),
		Reason:            intent.FailureReason,
	}
}

func (s *Service) sendPaymentSuccess(o *Order, intent *payment.Intent) {
	data := s.paymentData(o, intent)
	s.emails.Async(email.EmailTypePaymentSuccess, func(ctx context.Context) error {
		return s.emails.SendPaymentSuccessEmail(ctx, data)
	})
}

func (s *Service) sendPaymentFailed(o *Order, intent *payment.Intent) {
	data := s.paymentData(o, intent)
	s.emails.Async(email.EmailTypePaymentFailed, func(ctx context.Context) error {
		return s.emails.SendPaymentFailedEmail(ctx, data)
	})
}

var statusMessages = map[OrderStatus]string{
	OrderStatusConfirmed:  "Your order has been confirmed and is being prepared.",
	OrderStatusProcessing: "Your order is being packed by our vendors.",
	OrderStatusShipped:    "Your order is on its way.",
	OrderStatusDelivered:  "Your order has been delivered. Enjoy responsibly!",
	OrderStatusCancelled:  "Your order has been cancelled.",
	OrderStatusRefunded:   "Your order has been refunded.",
}

func (s *Service) sendStatusUpdate(o *Order, comment string) {
	msg := statusMessages[o.Status]
	if comment != "" {
		msg = strings.TrimSpace(msg + " " + comment)
	}
	data := email.OrderStatusUpdateData{
		EmailTemplateData: email.EmailTemplateData{UserName: o.ShippingAddress.FullName, UserEmail: o.Email},
		OrderNumber:       o.OrderNumber,
		Status:            string(o.Status),
		StatusMessage:     msg,
		TrackingNumber:    o.TrackingNumber,
		Carrier:           o.Carrier,
		OrderURL:          s.orderURL(o),
	}
	s.emails.Async(email.EmailTypeOrderStatusUpdate, func(ctx context.Context) error {
		return s.emails.SendOrderStatusUpdateEmail(ctx, data)
	})
}

// Invoice builds the printable invoice of an order visible to the viewer
func (s *Service) Invoice(ctx context.Context, viewer Viewer, id uint) (*pdf.Invoice, error) {
	o, err := s.GetOrder(ctx, viewer, id)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(o.Items))
	for _, it := range o.Items {
		ids = append(ids, it.TenantID)
	}
	var tenants []tenant.Tenant
	if len(ids) > 0 {
		if err := s.db.WithContext(ctx).Unscoped().Select("id", "name").Where("id IN ?", ids).Find(&tenants).Error; err != nil {
			return nil, fmt.Errorf("failed to load vendors: %w", err)
		}
	}
	names := make(map[uint]string, len(tenants))
	for _, t := range tenants {
		names[t.ID] = t.Name
	}

	inv := &pdf.Invoice{
		OrderNumber:     o.OrderNumber,
		OrderDate:       o.CreatedAt,
		Status:          string(o.Status),
		PaymentStatus:   string(o.PaymentStatus),
		Currency:        o.Currency,
		CustomerEmail:   o.Email,
		CouponCode:      o.CouponCode,
		ShippingAddress: pdf.Address(o.ShippingAddress),
		Subtotal:        o.SubtotalAmount,
		Discount:        o.DiscountAmount,
		Shipping:        o.ShippingAmount,
		Tax:             o.TaxAmount,
		Total:           o.TotalAmount,
	}
	for _, it := range o.Items {
		inv.Items = append(inv.Items, pdf.InvoiceItem{
			Name:      it.ProductName,
			SKU:       it.SKU,
			Size:      it.Size,
			Vendor:    names[it.TenantID],
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Total:     it.TotalPrice,
		})
	}
	return inv, nil
}
