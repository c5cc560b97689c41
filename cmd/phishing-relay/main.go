package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/phishing-report-relay/internal/adapters/dedup"
	"github.com/mikey/phishing-report-relay/internal/adapters/httpapi"
	"github.com/mikey/phishing-report-relay/internal/config"
	"github.com/mikey/phishing-report-relay/internal/delivery"
	"github.com/mikey/phishing-report-relay/internal/di"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	logger *zap.Logger,
	cfg *config.Config,
	server *httpapi.Server,
	dispatcher *delivery.Dispatcher,
	store *dedup.MemoryStore,
) error {
	defer logger.Sync()

	// Confirm which SMTP settings are active without leaking secrets
	smtpCfg := cfg.GetSMTP()
	logger.Info("SMTP configuration",
		zap.String("host", smtpCfg.Host),
		zap.Int("port", smtpCfg.Port),
		zap.Bool("use_tls", smtpCfg.UseTLS),
		zap.Bool("starttls", smtpCfg.StartTLS),
		zap.String("sender", smtpCfg.EffectiveSender()),
		zap.Bool("user_set", smtpCfg.Username != ""),
		zap.String("mailbox", cfg.GetSecurity().Mailbox))

	dispatcher.Start()

	if err := server.Start(); err != nil {
		logger.Fatal("Failed to start intake server", zap.Error(err))
		return err
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")

	// Drain the HTTP server first so no new submissions arrive
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		logger.Error("Failed to stop intake server", zap.Error(err))
	}

	// Then let queued deliveries finish and stop the dedup sweep
	dispatcher.Stop()
	store.Stop()

	logger.Info("Shutdown complete")
	return nil
}
