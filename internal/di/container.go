package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/phishing-report-relay/internal/adapters/dedup"
	"github.com/mikey/phishing-report-relay/internal/adapters/httpapi"
	"github.com/mikey/phishing-report-relay/internal/adapters/mailer"
	"github.com/mikey/phishing-report-relay/internal/allowlist"
	"github.com/mikey/phishing-report-relay/internal/config"
	"github.com/mikey/phishing-report-relay/internal/core"
	"github.com/mikey/phishing-report-relay/internal/delivery"
	"github.com/mikey/phishing-report-relay/internal/logging"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register allowlist guard
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) (*allowlist.Guard, error) {
		return allowlist.NewGuard(cfg.GetServer().AllowlistCIDRs, logger)
	}); err != nil {
		return nil, err
	}

	// Register dedup store
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) *dedup.MemoryStore {
		dedupCfg := cfg.GetDedup()
		return dedup.NewMemoryStore(logger, dedupCfg.Window, dedupCfg.SweepFrequency)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(store *dedup.MemoryStore) core.DedupStore {
		return store
	}); err != nil {
		return nil, err
	}

	// Register mailer
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) *mailer.SMTPMailer {
		return mailer.NewSMTPMailer(cfg.GetSMTP(), logger)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(m *mailer.SMTPMailer) core.Mailer {
		return m
	}); err != nil {
		return nil, err
	}

	// Register delivery dispatcher
	if err := container.Provide(func(m core.Mailer, cfg *config.Config, logger *zap.Logger) *delivery.Dispatcher {
		deliveryCfg := cfg.GetDelivery()
		return delivery.NewDispatcher(m, logger, delivery.DispatcherConfig{
			QueueSize:      deliveryCfg.QueueSize,
			MaxConcurrent:  deliveryCfg.MaxConcurrent,
			AttemptTimeout: cfg.GetSMTP().Timeout,
		})
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(d *delivery.Dispatcher) core.DeliveryQueue {
		return d
	}); err != nil {
		return nil, err
	}

	// Register report service
	if err := container.Provide(func(
		store core.DedupStore,
		queue core.DeliveryQueue,
		cfg *config.Config,
		logger *zap.Logger,
	) *core.ReportService {
		return core.NewReportService(
			store,
			queue,
			logger,
			cfg.GetSMTP().EffectiveSender(),
			cfg.GetSecurity().Mailbox,
		)
	}); err != nil {
		return nil, err
	}

	// Register intake server
	if err := container.Provide(func(
		cfg *config.Config,
		service *core.ReportService,
		guard *allowlist.Guard,
		logger *zap.Logger,
	) *httpapi.Server {
		return httpapi.NewServer(cfg.GetServer(), service, guard, logger)
	}); err != nil {
		return nil, err
	}

	return container, nil
}
