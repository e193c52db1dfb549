// Package server assembles the gateway: routes, middleware, and the
// shared collaborators every call session uses.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/voicelane/frontdesk/pkg/core/dialog"
	"github.com/voicelane/frontdesk/pkg/core/voice/stt"
	"github.com/voicelane/frontdesk/pkg/core/voice/tts"
	"github.com/voicelane/frontdesk/pkg/gateway/audit"
	"github.com/voicelane/frontdesk/pkg/gateway/call/session"
	"github.com/voicelane/frontdesk/pkg/gateway/config"
	"github.com/voicelane/frontdesk/pkg/gateway/handlers"
	"github.com/voicelane/frontdesk/pkg/gateway/mw"
	"github.com/voicelane/frontdesk/pkg/gateway/tools"
)

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	mux    *http.ServeMux

	gate      *mw.CallGate
	sink      audit.Sink
	registry  *tools.Registry
	directory session.Directory
	deps      session.Deps
}

// New builds the server and all of its collaborators. The context covers
// startup work only (database connection and migrations).
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	sink, err := newSink(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("audit sink: %w", err)
	}

	registry, err := tools.NewRegistry(logger, tools.Builtins(officeFrom(cfg.Office))...)
	if err != nil {
		return nil, fmt.Errorf("tool registry: %w", err)
	}

	extractor, err := newExtractor(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("extractor: %w", err)
	}

	if cfg.CartesiaAPIKey == "" {
		logger.Warn("no speech provider key configured, calls will degrade to fallback replies")
	}

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		mux:       http.NewServeMux(),
		gate:      mw.NewCallGate(cfg.MaxConcurrentCalls),
		sink:      sink,
		registry:  registry,
		directory: session.LocalDirectory{},
		deps: session.Deps{
			STT:          stt.NewCartesia(cfg.CartesiaAPIKey),
			TTS:          tts.NewCartesia(cfg.CartesiaAPIKey),
			Orchestrator: dialog.NewOrchestrator(extractor, registry, cfg.PolicyExtractor, logger),
			Audit:        sink,
			Logger:       logger,
		},
	}

	s.routes()
	return s, nil
}

func newSink(ctx context.Context, cfg config.Config, logger *slog.Logger) (audit.Sink, error) {
	if cfg.DatabaseURL != "" {
		logger.Info("call records go to postgres")
		return audit.NewPostgresSink(ctx, cfg.DatabaseURL)
	}
	logger.Info("call records go to file", "path", cfg.AuditFilePath)
	return audit.NewFileSink(cfg.AuditFilePath)
}

func newExtractor(ctx context.Context, cfg config.Config, logger *slog.Logger) (dialog.Extractor, error) {
	if cfg.GeminiAPIKey != "" {
		logger.Info("using model extractor", "model", cfg.GeminiModel)
		return dialog.NewGeminiExtractor(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	}
	logger.Info("using rule extractor")
	return dialog.NewRuleExtractor(), nil
}

func officeFrom(c config.OfficeConfig) tools.Office {
	office := tools.DefaultOffice()
	if c.Name != "" {
		office.Name = c.Name
	}
	if c.Hours != "" {
		office.Hours = c.Hours
	}
	if c.Address != "" {
		office.Address = c.Address
	}
	if c.Phone != "" {
		office.Phone = c.Phone
	}
	if len(c.AcceptedPayers) > 0 {
		office.AcceptedPayers = c.AcceptedPayers
	}
	return office
}

func (s *Server) routes() {
	s.mux.Handle("GET /healthz", handlers.HealthHandler{})
	s.mux.Handle("GET /readyz", handlers.ReadyHandler{Config: s.cfg})

	s.mux.Handle("GET /v1/call", mw.LimitCalls(s.gate, handlers.CallHandler{
		Config:    s.cfg,
		Deps:      s.deps,
		Directory: s.directory,
		Logger:    s.logger,
	}))

	s.mux.Handle("POST /v1/tools/{name}", tools.Handler{
		Registry: s.registry,
		Logger:   s.logger,
	})

	s.mux.Handle("/", handlers.NotFoundHandler{})
}

// Handler returns the full middleware chain.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.Auth(s.cfg, h)
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}

// InFlightCalls reports how many sessions are currently live.
func (s *Server) InFlightCalls() int {
	return s.gate.InFlight()
}

// Close releases the audit sink. Call it after the HTTP server has
// drained so no session is mid-write.
func (s *Server) Close(ctx context.Context) error {
	return s.sink.Close(ctx)
}
