package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/mikey/phishing-report-relay/internal/allowlist"
	"github.com/mikey/phishing-report-relay/internal/config"
	"github.com/mikey/phishing-report-relay/internal/core"
)

// Server is the HTTP intake surface for report submissions
type Server struct {
	service    *core.ReportService
	guard      *allowlist.Guard
	logger     *zap.Logger
	listenAddr string
	origin     string
	httpServer *http.Server
}

// NewServer creates a new intake server
func NewServer(
	cfg config.ServerConfig,
	service *core.ReportService,
	guard *allowlist.Guard,
	logger *zap.Logger,
) *Server {
	return &Server{
		service:    service,
		guard:      guard,
		logger:     logger,
		listenAddr: cfg.ListenAddress,
		origin:     cfg.AllowedOrigin,
	}
}

// Handler builds the router: CORS for the configured origin, then the
// allowlist-guarded report endpoint and an open liveness endpoint.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{s.origin},
		AllowedMethods:   []string{http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
	}))

	r.With(s.requireAllowlisted).Post("/report-phishing", s.handleReport)
	r.Get("/healthz", s.handleHealthz)

	return r
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.listenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.logger.Info("Intake server starting", zap.String("address", s.listenAddr))

	// Start the server in a goroutine
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error("HTTP server error", zap.Error(err))
			}
		}
	}()

	return nil
}

// Stop drains and stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
