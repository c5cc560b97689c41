package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/phishing-report-relay/internal/adapters/mailer"
	"github.com/mikey/phishing-report-relay/internal/config"
	"github.com/mikey/phishing-report-relay/internal/core"
	"github.com/mikey/phishing-report-relay/internal/logging"
	"github.com/mikey/phishing-report-relay/internal/validate"
)

var (
	inputFile = flag.String("file", "", "Input report JSON file (use stdin if not specified)")
	send      = flag.Bool("send", false, "Deliver the rendered notification through the configured SMTP relay")
	verbose   = flag.Bool("verbose", false, "Enable verbose logging")
	jsonLog   = flag.Bool("json-log", false, "Output logs in JSON format")
)

func main() {
	flag.Parse()

	// Initialize logger
	logger, err := logging.InitConsoleLogger(*verbose, *jsonLog)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Read the report from file or stdin
	var input io.Reader = os.Stdin
	if *inputFile != "" {
		f, err := os.Open(*inputFile)
		if err != nil {
			logger.Fatal("Failed to open input file", zap.Error(err))
		}
		defer f.Close()
		input = f
	}

	payload, err := validate.Report(input)
	if err != nil {
		logger.Fatal("Report failed validation", zap.Error(err))
	}

	body := core.Render(payload, time.Now().UTC())

	fmt.Println("=== Rendered notification ===")
	fmt.Print(body)

	if !*send {
		return
	}

	cfg, err := config.New()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	smtpCfg := cfg.GetSMTP()
	notification := core.Notification{
		MessageID: payload.MessageID,
		From:      smtpCfg.EffectiveSender(),
		To:        cfg.GetSecurity().Mailbox,
		Subject:   core.NotificationSubject,
		Body:      body,
	}

	m := mailer.NewSMTPMailer(smtpCfg, logger)
	ctx, cancel := context.WithTimeout(context.Background(), smtpCfg.Timeout)
	defer cancel()

	if err := m.Send(ctx, notification); err != nil {
		logger.Fatal("Failed to deliver notification", zap.Error(err))
	}

	logger.Info("Notification delivered",
		zap.String("message_id", notification.MessageID),
		zap.String("to", notification.To))
}
