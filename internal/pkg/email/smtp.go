// internal/pkg/email/smtp.go
package email

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/drinksharbour/drinksharbour-api/internal/config"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// Sender delivers a rendered email
type Sender interface {
	Send(ctx context.Context, email *Email) error
}

// SMTPSender sends mail through an SMTP relay
type SMTPSender struct {
	dialer    *gomail.Dialer
	fromEmail string
	fromName  string
}

// NewSMTPSender creates an SMTP sender from config
func NewSMTPSender(cfg config.EmailConfig) *SMTPSender {
	return &SMTPSender{
		dialer:    gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass),
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
	}
}

// Send builds a MIME message and delivers it
func (s *SMTPSender) Send(ctx context.Context, email *Email) error {
	if len(email.To) == 0 {
		return fmt.Errorf("email has no recipients")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.fromEmail, s.fromName)
	m.SetHeader("To", email.To...)
	if len(email.CC) > 0 {
		m.SetHeader("Cc", email.CC...)
	}
	if len(email.BCC) > 0 {
		m.SetHeader("Bcc", email.BCC...)
	}
	m.SetHeader("Subject", email.Subject)
	m.SetBody("text/html", email.HTMLContent)
	if email.TextContent != "" {
		m.AddAlternative("text/plain", email.TextContent)
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email via SMTP: %w", err)
	}
	return nil
}

// LogSender writes emails to the log instead of sending them
type LogSender struct {
	logger *logrus.Entry
}

// NewLogSender creates a log-only sender
func NewLogSender(logger *logrus.Entry) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs the email envelope
func (s *LogSender) Send(_ context.Context, email *Email) error {
	s.logger.WithFields(logrus.Fields{
		"to":      strings.Join(email.To, ","),
		"subject": email.Subject,
		"type":    email.Type,
	}).Info("email suppressed")
	return nil
}

// MemorySender keeps sent emails in memory
type MemorySender struct {
	mu   sync.Mutex
	sent []Email
}

// Send records the email
func (s *MemorySender) Send(_ context.Context, email *Email) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, *email)
	return nil
}

// Sent returns a copy of the recorded emails
func (s *MemorySender) Sent() []Email {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Email, len(s.sent))
	copy(out, s.sent)
	return out
}

// NewSender picks the SMTP sender when email is enabled
func NewSender(cfg config.EmailConfig, logger *logrus.Entry) Sender {
	if cfg.Enabled && cfg.SMTPHost != "" {
		return NewSMTPSender(cfg)
	}
	return NewLogSender(logger)
}
