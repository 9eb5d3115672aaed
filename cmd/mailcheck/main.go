// cmd/mailcheck/main.go
package main

import (
	"context"
	"flag"
	"time"

	"github.com/drinksharbour/drinksharbour-api/internal/config"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/email"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/logging"
	"github.com/sirupsen/logrus"
)

// Sends one message through the configured sender to verify SMTP settings
func main() {
	to := flag.String("to", "", "recipient address")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	logger := logging.New(cfg)

	if *to == "" {
		logger.Fatal("usage: mailcheck -to someone@example.com")
	}
	if !cfg.External.Email.Enabled {
		logger.Warn("EMAIL_ENABLED is false, the message will only be logged")
	}

	sender := email.NewSender(cfg.External.Email, logging.Component(logger, "email"))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err = sender.Send(ctx, &email.Email{
		To:          []string{*to},
		Subject:     cfg.App.Name + " mail check",
		HTMLContent: "<h1>It works</h1><p>SMTP delivery from " + cfg.App.Name + " is configured.</p>",
		TextContent: "SMTP delivery from " + cfg.App.Name + " is configured.",
	})
	if err != nil {
		logger.Fatalf("SMTP failed: %v", err)
	}

	logger.WithField("to", *to).Info("test email sent")
}
