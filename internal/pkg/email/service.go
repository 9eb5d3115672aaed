// internal/pkg/email/service.go
package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"sync"
	"time"

	"github.com/drinksharbour/drinksharbour-api/internal/config"
	"github.com/sirupsen/logrus"
)

const asyncSendTimeout = 30 * time.Second

// EmailService renders and sends transactional email
type EmailService struct {
	config    *config.Config
	sender    Sender
	templates map[EmailType]*template.Template
	logger    *logrus.Entry
	wg        sync.WaitGroup
}

// NewEmailService creates a new email service
func NewEmailService(cfg *config.Config, sender Sender, logger *logrus.Entry) (*EmailService, error) {
	templates, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	return &EmailService{
		config:    cfg,
		sender:    sender,
		templates: templates,
		logger:    logger,
	}, nil
}

// SendEmail sends an email using the configured sender
func (s *EmailService) SendEmail(ctx context.Context, email *Email) error {
	return s.sender.Send(ctx, email)
}

// Async runs a send in the background and logs failures.
// The caller's request context is not used so the send outlives the request.
func (s *EmailService) Async(kind EmailType, fn func(ctx context.Context) error) {
	if s == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), asyncSendTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			s.logger.WithError(err).WithField("type", kind).Error("failed to send email")
		}
	}()
}

// Wait blocks until background sends finish
func (s *EmailService) Wait() {
	if s == nil {
		return
	}
	s.wg.Wait()
}

// SendWelcomeEmail sends a welcome email to new users
func (s *EmailService) SendWelcomeEmail(ctx context.Context, userEmail, userName string) error {
	data := WelcomeEmailData{
		EmailTemplateData: s.base(userName, userEmail),
		ShopURL:           s.config.App.FrontendURL + "/shop",
	}
	return s.render(ctx, EmailTypeWelcome, []string{userEmail}, fmt.Sprintf("Welcome to %s!", data.SiteName), data)
}

// SendOrderConfirmationEmail sends order confirmation email
func (s *EmailService) SendOrderConfirmationEmail(ctx context.Context, data OrderConfirmationData) error {
	data.EmailTemplateData = s.base(data.UserName, data.UserEmail)
	return s.render(ctx, EmailTypeOrderConfirmation, []string{data.UserEmail},
		fmt.Sprintf("Order Confirmation - %s", data.OrderNumber), data)
}

// SendOrderStatusUpdateEmail sends order status update notification
func (s *EmailService) SendOrderStatusUpdateEmail(ctx context.Context, data OrderStatusUpdateData) error {
	data.EmailTemplateData = s.base(data.UserName, data.UserEmail)
	return s.render(ctx, EmailTypeOrderStatusUpdate, []string{data.UserEmail},
		fmt.Sprintf("Order Update - %s", data.OrderNumber), data)
}

// SendPaymentSuccessEmail sends payment success notification
func (s *EmailService) SendPaymentSuccessEmail(ctx context.Context, data PaymentNotificationData) error {
	data.EmailTemplateData = s.base(data.UserName, data.UserEmail)
	return s.render(ctx, EmailTypePaymentSuccess, []string{data.UserEmail},
		fmt.Sprintf("Payment Successful - %s", data.OrderNumber), data)
}

// SendPaymentFailedEmail sends payment failure notification
func (s *EmailService) SendPaymentFailedEmail(ctx context.Context, data PaymentNotificationData) error {
	data.EmailTemplateData = s.base(data.UserName, data.UserEmail)
	return s.render(ctx, EmailTypePaymentFailed, []string{data.UserEmail},
		fmt.Sprintf("Payment Failed - %s", data.OrderNumber), data)
}

// SendVendorRevenueReport mails the revenue report to the configured admin recipients
func (s *EmailService) SendVendorRevenueReport(ctx context.Context, data VendorRevenueReportData) error {
	to := s.config.External.Email.AdminTo
	if len(to) == 0 {
		s.logger.Debug("no admin recipients configured, skipping revenue report")
		return nil
	}
	data.EmailTemplateData = s.base("", "")
	return s.render(ctx, EmailTypeVendorRevenueReport, to,
		fmt.Sprintf("Vendor revenue %s - %s", data.From, data.To), data)
}

func (s *EmailService) base(userName, userEmail string) EmailTemplateData {
	siteName := s.config.App.CompanyName
	if siteName == "" {
		siteName = s.config.App.Name
	}
	return GetBaseTemplateData(siteName, strings.TrimRight(s.config.App.FrontendURL, "/"), userName, userEmail)
}

func (s *EmailService) render(ctx context.Context, kind EmailType, to []string, subject string, data interface{}) error {
	html, err := s.renderTemplate(kind, data)
	if err != nil {
		return err
	}
	return s.SendEmail(ctx, &Email{
		To:          to,
		Subject:     subject,
		HTMLContent: html,
		Type:        kind,
	})
}

// renderTemplate renders an email template with data
func (s *EmailService) renderTemplate(kind EmailType, data interface{}) (string, error) {
	tmpl, exists := s.templates[kind]
	if !exists {
		return "", fmt.Errorf("template %s not found", kind)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", kind, err)
	}
	return buf.String(), nil
}
