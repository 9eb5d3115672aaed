// internal/pkg/email/types.go
package email

import (
	"time"
)

// EmailType represents the type of email being sent
type EmailType string

const (
	EmailTypeWelcome             EmailType = "welcome"
	EmailTypeOrderConfirmation   EmailType = "order_confirmation"
	EmailTypeOrderStatusUpdate   EmailType = "order_status_update"
	EmailTypePaymentSuccess      EmailType = "payment_success"
	EmailTypePaymentFailed       EmailType = "payment_failed"
	EmailTypeVendorRevenueReport EmailType = "vendor_revenue_report"
)

// Email represents an email message
type Email struct {
	To          []string               `json:"to"`
	CC          []string               `json:"cc,omitempty"`
	BCC         []string               `json:"bcc,omitempty"`
	Subject     string                 `json:"subject"`
	HTMLContent string                 `json:"html_content"`
	TextContent string                 `json:"text_content,omitempty"`
	Type        EmailType              `json:"type"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// EmailTemplateData contains common data for all email templates
type EmailTemplateData struct {
	SiteName   string `json:"site_name"`
	SiteURL    string `json:"site_url"`
	SupportURL string `json:"support_url"`
	UserName   string `json:"user_name"`
	UserEmail  string `json:"user_email"`
	Year       int    `json:"year"`
}

// WelcomeEmailData contains data for welcome email
type WelcomeEmailData struct {
	EmailTemplateData
	ShopURL string `json:"shop_url"`
}

// OrderConfirmationData contains data for order confirmation email
type OrderConfirmationData struct {
	EmailTemplateData
	OrderNumber     string      `json:"order_number"`
	OrderDate       string      `json:"order_date"`
	Subtotal        string      `json:"subtotal"`
	Discount        string      `json:"discount"`
	Shipping        string      `json:"shipping"`
	Tax             string      `json:"tax"`
	OrderTotal      string      `json:"order_total"`
	CouponCode      string      `json:"coupon_code"`
	OrderURL        string      `json:"order_url"`
	Items           []OrderItem `json:"items"`
	ShippingAddress Address     `json:"shipping_address"`
}

// OrderItem represents an item in the order
type OrderItem struct {
	Name     string `json:"name"`
	SKU      string `json:"sku"`
	Size     string `json:"size"`
	Quantity int    `json:"quantity"`
	Price    string `json:"price"`
	Total    string `json:"total"`
	ImageURL string `json:"image_url"`
}

// Address represents a shipping address
type Address struct {
	FullName     string `json:"full_name"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postal_code"`
	Country      string `json:"country"`
	Phone        string `json:"phone"`
}

// PaymentNotificationData contains data for payment notifications
type PaymentNotificationData struct {
	EmailTemplateData
	OrderNumber   string `json:"order_number"`
	Amount        string `json:"amount"`
	TransactionID string `json:"transaction_id"`
	OrderURL      string `json:"order_url"`
	Date          string `json:"date"`
	Reason        string `json:"reason,omitempty"` // For failed payments
}

// OrderStatusUpdateData contains data for order status updates
type OrderStatusUpdateData struct {
	EmailTemplateData
	OrderNumber    string `json:"order_number"`
	Status         string `json:"status"`
	StatusMessage  string `json:"status_message"`
	TrackingNumber string `json:"tracking_number,omitempty"`
	Carrier        string `json:"carrier,omitempty"`
	OrderURL       string `json:"order_url"`
}

// VendorRevenueRow is one tenant line of the revenue report
type VendorRevenueRow struct {
	TenantName   string `json:"tenant_name"`
	Orders       int64  `json:"orders"`
	Units        int64  `json:"units"`
	Gross        string `json:"gross"`
	PlatformFee  string `json:"platform_fee"`
	TenantPayout string `json:"tenant_payout"`
}

// VendorRevenueReportData contains data for the periodic revenue report
type VendorRevenueReportData struct {
	EmailTemplateData
	From          string             `json:"from"`
	To            string             `json:"to"`
	Rows          []VendorRevenueRow `json:"rows"`
	TotalGross    string             `json:"total_gross"`
	TotalPlatform string             `json:"total_platform"`
}

// GetBaseTemplateData returns common template data
func GetBaseTemplateData(siteName, siteURL, userName, userEmail string) EmailTemplateData {
	return EmailTemplateData{
		SiteName:   siteName,
		SiteURL:    siteURL,
		SupportURL: siteURL + "/support",
		UserName:   userName,
		UserEmail:  userEmail,
		Year:       time.Now().Year(),
	}
}
