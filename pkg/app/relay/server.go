// Package relay implements app.Runner for the conversion relay process.
package relay

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apphttp "github.com/chainsafe/anchor-orchestrator/pkg/app/http"
	"github.com/chainsafe/anchor-orchestrator/pkg/config"
	convrelay "github.com/chainsafe/anchor-orchestrator/pkg/conversion/relay"
)

// Server holds configuration for the relay process.
type Server struct {
	cfg *config.Config
}

// NewServer initializes a new relay Server.
func NewServer(cfg *config.Config) *Server {
	return &Server{cfg: cfg}
}

// Run starts the relay HTTP server.
// It blocks until an OS shutdown signal is received or a fatal server error occurs.
func (s *Server) Run() error {
	if s.cfg == nil {
		return fmt.Errorf("nil config")
	}
	cfg := s.cfg

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting conversion relay",
		zap.String("exchange_url", cfg.Relay.ExchangeURL),
		zap.String("product_id", cfg.Relay.ProductID),
	)

	handler, err := NewHandler(cfg, logger)
	if err != nil {
		return err
	}

	serverCfg := listenConfig(cfg)
	return apphttp.ServeAndWait(ctx, handler, logger, &serverCfg)
}

// NewHandler builds the relay router with the exchange client from cfg.
func NewHandler(cfg *config.Config, logger *zap.Logger) (http.Handler, error) {
	signer, err := convrelay.NewSigner(convrelay.Credentials{
		Key:        cfg.Relay.APIKey,
		Secret:     cfg.Relay.APISecret,
		Passphrase: cfg.Relay.APIPassphrase,
	})
	if err != nil {
		return nil, fmt.Errorf("relay credentials: %w", err)
	}

	exchange, err := convrelay.NewExchange(cfg.Relay.ExchangeURL, signer,
		convrelay.WithLogger(logger.Named("exchange")),
		convrelay.WithHTTPClient(&http.Client{Timeout: cfg.Relay.Timeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("create exchange client: %w", err)
	}

	r := convrelay.NewRouter(exchange, cfg.Relay.ProductID, cfg.Server.AllowedOrigins, logger)
	if cfg.Monitoring.Enabled {
		r.Handle(cfg.Monitoring.MetricsPath, promhttp.Handler())
		logger.Info("Metrics enabled", zap.String("path", cfg.Monitoring.MetricsPath))
	}
	return r, nil
}

// listenConfig reuses the server timeouts on the relay address.
func listenConfig(cfg *config.Config) config.ServerConfig {
	out := cfg.Server
	out.Host = cfg.Relay.Host
	out.Port = cfg.Relay.Port
	return out
}
