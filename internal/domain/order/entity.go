// internal/domain/order/entity.go
package order

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/drinksharbour/drinksharbour-api/internal/domain/tenant"
	"gorm.io/gorm"
)

// OrderStatus represents the order status
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

// PaymentStatus represents payment status
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Order represents the order entity
type Order struct {
	ID            uint          `gorm:"primaryKey" json:"id"`
	OrderNumber   string        `gorm:"uniqueIndex;not null;size:30" json:"order_number"`
	UserID        *uint         `gorm:"index" json:"user_id"` // Nullable for guest orders
	Email         string        `gorm:"not null;size:255;index" json:"email"`
	Phone         string        `gorm:"size:30" json:"phone"`
	Status        OrderStatus   `gorm:"size:20;not null;default:'pending';index" json:"status"`
	PaymentStatus PaymentStatus `gorm:"size:20;not null;default:'pending';index" json:"payment_status"`

	// Financial Information, in cents
	SubtotalAmount   int64 `gorm:"not null" json:"subtotal_amount"`
	DiscountAmount   int64 `gorm:"default:0" json:"discount_amount"`
	ShippingAmount   int64 `gorm:"default:0" json:"shipping_amount"`
	TaxAmount        int64 `gorm:"default:0" json:"tax_amount"`
	TotalAmount      int64 `gorm:"not null" json:"total_amount"`
	PlatformFeeTotal int64 `gorm:"default:0" json:"platform_fee_total"`

	Currency   string `gorm:"size:3;default:'USD'" json:"currency"`
	CouponCode string `gorm:"size:50" json:"coupon_code,omitempty"`

	// Addresses
	ShippingAddress Address `gorm:"embedded;embeddedPrefix:shipping_" json:"shipping_address"`
	BillingAddress  Address `gorm:"embedded;embeddedPrefix:billing_" json:"billing_address"`

	Notes        string `gorm:"type:text" json:"notes"`
	CancelReason string `gorm:"size:500" json:"cancel_reason,omitempty"`

	// Shipping Information
	TrackingNumber string `gorm:"size:100" json:"tracking_number,omitempty"`
	Carrier        string `gorm:"size:50" json:"carrier,omitempty"`

	PaymentIntentID string `gorm:"size:255;index" json:"payment_intent_id,omitempty"`

	// Timestamps
	PaidAt       *time.Time     `json:"paid_at"`
	ConfirmedAt  *time.Time     `json:"confirmed_at"`
	ProcessingAt *time.Time     `json:"processing_at"`
	ShippedAt    *time.Time     `json:"shipped_at"`
	DeliveredAt  *time.Time     `json:"delivered_at"`
	CancelledAt  *time.Time     `json:"cancelled_at"`
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Items         []OrderItem          `gorm:"foreignKey:OrderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"items"`
	Payments      []PaymentTransaction `gorm:"foreignKey:OrderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"payments,omitempty"`
	StatusHistory []OrderStatusHistory `gorm:"foreignKey:OrderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"status_history,omitempty"`
}

// OrderItem is a snapshot of one purchased line and its revenue split
type OrderItem struct {
	ID           uint    `gorm:"primaryKey" json:"id"`
	OrderID      uint    `gorm:"not null;index" json:"order_id"`
	ProductID    uint    `gorm:"not null;index" json:"product_id"`
	SubProductID uint    `gorm:"not null;index" json:"sub_product_id"`
	SizeID       uint    `gorm:"not null" json:"size_id"`
	TenantID     uint    `gorm:"not null;index" json:"tenant_id"`
	ProductName  string  `gorm:"not null;size:255" json:"product_name"`
	SKU          string  `gorm:"not null;size:100" json:"sku"`
	Size         string  `gorm:"size:50" json:"size"`
	Color        string  `gorm:"size:50" json:"color,omitempty"`
	Image        string  `gorm:"size:500" json:"image,omitempty"`
	ABV          float64 `gorm:"type:decimal(5,2)" json:"abv"`
	VolumeML     int     `json:"volume_ml"`
	Quantity     int     `gorm:"not null" json:"quantity"`
	RegularPrice int64   `gorm:"not null" json:"regular_price"`
	UnitPrice    int64   `gorm:"not null" json:"unit_price"`  // Price per unit in cents
	TotalPrice   int64   `gorm:"not null" json:"total_price"` // Quantity * UnitPrice

	RevenueModel   tenant.RevenueModel `gorm:"size:20;not null" json:"revenue_model"`
	Rate           float64             `gorm:"type:decimal(5,4)" json:"rate"`
	PlatformAmount int64               `gorm:"not null" json:"platform_amount"`
	TenantAmount   int64               `gorm:"not null" json:"tenant_amount"`

	FlashSaleItemID *uint     `gorm:"index" json:"flash_sale_item_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// TransactionStatus is the outcome of a payment attempt
type TransactionStatus string

const (
	TransactionSucceeded TransactionStatus = "succeeded"
	TransactionFailed    TransactionStatus = "failed"
)

// PaymentTransaction records a payment attempt against an order
type PaymentTransaction struct {
	ID            uint              `gorm:"primaryKey" json:"id"`
	OrderID       uint              `gorm:"not null;index" json:"order_id"`
	Provider      string            `gorm:"not null;size:30" json:"provider"`
	ProviderRef   string            `gorm:"size:255;index" json:"provider_ref"`
	Amount        int64             `gorm:"not null" json:"amount"`
	Currency      string            `gorm:"size:3" json:"currency"`
	Status        TransactionStatus `gorm:"size:20;not null" json:"status"`
	FailureReason string            `gorm:"size:500" json:"failure_reason,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// OrderStatusHistory tracks order status changes
type OrderStatusHistory struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	OrderID   uint        `gorm:"not null;index" json:"order_id"`
	Status    OrderStatus `gorm:"size:20;not null" json:"status"`
	Comment   string      `gorm:"type:text" json:"comment"`
	CreatedBy *uint       `gorm:"index" json:"created_by"` // nil for customers and jobs
	CreatedAt time.Time   `json:"created_at"`
}

// Address is an address snapshot embedded in Order
type Address struct {
	FullName     string `gorm:"size:150" json:"full_name" binding:"required,max=150"`
	AddressLine1 string `gorm:"size:255" json:"address_line1" binding:"required,max=255"`
	AddressLine2 string `gorm:"size:255" json:"address_line2" binding:"max=255"`
	City         string `gorm:"size:100" json:"city" binding:"required,max=100"`
	State        string `gorm:"size:100" json:"state" binding:"max=100"`
	PostalCode   string `gorm:"size:20" json:"postal_code" binding:"required,max=20"`
	Country      string `gorm:"size:2" json:"country" binding:"required,len=2"`
	Phone        string `gorm:"size:30" json:"phone" binding:"max=30"`
}

// TableName overrides
func (Order) TableName() string              { return "orders" }
func (OrderItem) TableName() string          { return "order_items" }
func (PaymentTransaction) TableName() string { return "payment_transactions" }
func (OrderStatusHistory) TableName() string { return "order_status_history" }

const orderNumberAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateOrderNumber returns a number in the form DH-YYYYMMDD-XXXXXX
func GenerateOrderNumber(now time.Time) string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	var sb strings.Builder
	sb.WriteString("DH-")
	sb.WriteString(now.UTC().Format("20060102"))
	sb.WriteByte('-')
	for _, b := range buf {
		sb.WriteByte(orderNumberAlphabet[int(b)%len(orderNumberAlphabet)])
	}
	return sb.String()
}

// CanBeCancelled checks if order can be cancelled by its customer
func (o *Order) CanBeCancelled() bool {
	return o.Status == OrderStatusPending || o.Status == OrderStatusConfirmed
}

// IsPaid reports whether funds were captured
func (o *Order) IsPaid() bool {
	return o.PaymentStatus == PaymentStatusPaid
}

// IsGuest reports whether the order was placed without an account
func (o *Order) IsGuest() bool {
	return o.UserID == nil
}

var validTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
	OrderStatusDelivered:  {OrderStatusRefunded},
}

// CanTransition reports whether from -> to is an allowed status change
func CanTransition(from, to OrderStatus) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
