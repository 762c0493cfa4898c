// Package api implements app.Runner for the orchestrator API process.
package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/chainsafe/anchor-orchestrator/internal/metrics"
	apphttp "github.com/chainsafe/anchor-orchestrator/pkg/app/http"
	"github.com/chainsafe/anchor-orchestrator/pkg/app/orchestrator"
	"github.com/chainsafe/anchor-orchestrator/pkg/auth"
	"github.com/chainsafe/anchor-orchestrator/pkg/config"
	ctrlservice "github.com/chainsafe/anchor-orchestrator/pkg/controller/service"
)

const defaultRequestTimeout = 60

// Server holds cfg to init the api server.
type Server struct {
	cfg *config.Config
}

// NewServer initializes new api server.
func NewServer(cfg *config.Config) *Server {
	return &Server{cfg: cfg}
}

func (s *Server) Run() error {
	if s.cfg == nil {
		return fmt.Errorf("api server config is nil")
	}
	cfg := s.cfg

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting orchestrator API server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("horizon_url", cfg.Ledger.HorizonURL),
		zap.String("asset_code", cfg.Workflow.AssetCode),
	)

	// commands outlive requests; they are only cancelled at shutdown
	components, err := orchestrator.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := components.Close(); err != nil {
			logger.Warn("Failed to release components", zap.Error(err))
		}
	}()

	svc := ctrlservice.NewLog(ctrlservice.NewService(components.Controller, components.Store, logger), logger)

	router, err := NewRouter(cfg, svc, logger)
	if err != nil {
		return err
	}
	return apphttp.ServeAndWait(ctx, router, logger, &cfg.Server)
}

// NewRouter builds the API handler: health and metrics endpoints plus the
// controller routes under /api/v1, behind bearer auth when enabled.
func NewRouter(cfg *config.Config, svc ctrlservice.Service, logger *zap.Logger) (chi.Router, error) {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(time.Second * defaultRequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	if cfg.Monitoring.Enabled {
		r.Use(metrics.HTTPMiddleware)
		r.Handle(cfg.Monitoring.MetricsPath, promhttp.Handler())
	}

	// Health check
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	var validator *auth.JWTValidator
	if cfg.Auth.Enabled {
		v, err := auth.NewJWTValidator(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.Audience)
		if err != nil {
			return nil, fmt.Errorf("create jwt validator: %w", err)
		}
		validator = v
		logger.Info("Bearer authentication enabled for /api/v1")
	}

	r.Route("/api/v1", func(r chi.Router) {
		if validator != nil {
			r.Use(auth.Middleware(validator, logger))
		}
		ctrlservice.RegisterRoutes(r, svc, logger)
	})

	return r, nil
}
