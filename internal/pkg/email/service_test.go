package email

import (
	"context"
	"errors"
	"testing"

	"github.com/drinksharbour/drinksharbour-api/internal/config"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, adminTo ...string) (*EmailService, *MemorySender) {
	t.Helper()

	cfg := &config.Config{
		App:      config.AppConfig{Name: "drinksharbour-api", CompanyName: "DrinksHarbour", FrontendURL: "https://shop.example.com/"},
		External: config.ExternalConfig{Email: config.EmailConfig{AdminTo: adminTo}},
	}
	sender := &MemorySender{}
	svc, err := NewEmailService(cfg, sender, logging.Component(logging.Discard(), "email"))
	require.NoError(t, err)
	return svc, sender
}

func TestOrderConfirmationRendersItems(t *testing.T) {
	svc, sender := newTestService(t)

	err := svc.SendOrderConfirmationEmail(context.Background(), OrderConfirmationData{
		EmailTemplateData: EmailTemplateData{UserName: "Ada", UserEmail: "ada@example.com"},
		OrderNumber:       "DH-20260101-ABC123",
		OrderTotal:        "$54.99",
		CouponCode:        "WINE10",
		Discount:          "$5.00",
		Items:             []OrderItem{{Name: "Rioja <Reserva>", Size: "750ml", Quantity: 2, Total: "$40.00"}},
	})
	require.NoError(t, err)

	sent := sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"ada@example.com"}, sent[0].To)
	assert.Equal(t, "Order Confirmation - DH-20260101-ABC123", sent[0].Subject)
	assert.Contains(t, sent[0].HTMLContent, "Rioja &lt;Reserva&gt;")
	assert.Contains(t, sent[0].HTMLContent, "Discount (WINE10)")
	assert.Contains(t, sent[0].HTMLContent, "https://shop.example.com/support")
}

func TestRevenueReportNeedsRecipients(t *testing.T) {
	svc, sender := newTestService(t)
	require.NoError(t, svc.SendVendorRevenueReport(context.Background(), VendorRevenueReportData{From: "2026-01-01", To: "2026-01-02"}))
	assert.Empty(t, sender.Sent())

	svc, sender = newTestService(t, "finance@example.com")
	require.NoError(t, svc.SendVendorRevenueReport(context.Background(), VendorRevenueReportData{
		From: "2026-01-01", To: "2026-01-02",
		Rows: []VendorRevenueRow{{TenantName: "Cellar Co", Orders: 3, Gross: "$90.00"}},
	}))
	require.Len(t, sender.Sent(), 1)
	assert.Contains(t, sender.Sent()[0].HTMLContent, "Cellar Co")
}

func TestAsyncWaitsForSends(t *testing.T) {
	svc, sender := newTestService(t)

	svc.Async(EmailTypeWelcome, func(ctx context.Context) error {
		return svc.SendWelcomeEmail(ctx, "new@example.com", "New")
	})
	svc.Async(EmailTypeWelcome, func(ctx context.Context) error {
		return errors.New("smtp down")
	})
	svc.Wait()

	require.Len(t, sender.Sent(), 1)
	assert.Equal(t, EmailTypeWelcome, sender.Sent()[0].Type)

	var nilSvc *EmailService
	nilSvc.Async(EmailTypeWelcome, func(context.Context) error { return nil })
	nilSvc.Wait()
}
