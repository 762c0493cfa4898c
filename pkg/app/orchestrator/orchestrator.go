// Package orchestrator assembles the engine, controller and their
// collaborators from configuration.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/chainsafe/anchor-orchestrator/internal/metrics"
	"github.com/chainsafe/anchor-orchestrator/pkg/config"
	"github.com/chainsafe/anchor-orchestrator/pkg/controller"
	"github.com/chainsafe/anchor-orchestrator/pkg/conversion"
	"github.com/chainsafe/anchor-orchestrator/pkg/keys"
	"github.com/chainsafe/anchor-orchestrator/pkg/ledger/horizon"
	"github.com/chainsafe/anchor-orchestrator/pkg/observer"
	"github.com/chainsafe/anchor-orchestrator/pkg/observer/rabbitmq"
	"github.com/chainsafe/anchor-orchestrator/pkg/oracle"
	"github.com/chainsafe/anchor-orchestrator/pkg/pgutil"
	"github.com/chainsafe/anchor-orchestrator/pkg/runstore"
	"github.com/chainsafe/anchor-orchestrator/pkg/workflow"
)

// Components are the assembled runtime pieces. Close releases them.
type Components struct {
	Engine     *workflow.Engine
	Controller *controller.Controller
	// Store is nil when the database is disabled.
	Store runstore.Store

	closers []func() error
}

// Close releases the components in reverse order of construction.
func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Build wires every component described by cfg. ctx is the controller's base
// context and should live until shutdown.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger, extra ...workflow.Observer) (*Components, error) {
	c := &Components{}
	ok := false
	defer func() {
		if !ok {
			_ = c.Close()
		}
	}()

	ledgerClient, err := horizon.New(horizon.Config{
		URL:               cfg.Ledger.HorizonURL,
		Friendbot:         cfg.Ledger.Friendbot,
		NetworkPassphrase: cfg.Ledger.NetworkPassphrase,
		BaseFee:           cfg.Ledger.BaseFee,
		FundingRate:       cfg.Ledger.FundingRate,
		FundingBurst:      cfg.Ledger.FundingBurst,
	},
		horizon.WithLogger(logger.Named("horizon")),
		horizon.WithHTTPClient(&http.Client{Timeout: cfg.Ledger.RequestTimeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("create ledger client: %w", err)
	}

	conversionClient, err := conversion.NewClient(cfg.Conversion.URL,
		conversion.WithLogger(logger.Named("conversion")),
		conversion.WithHTTPClient(&http.Client{Timeout: cfg.Conversion.Timeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("create conversion client: %w", err)
	}

	priceOracle, err := oracle.New(oracle.Config{
		URL:        cfg.Oracle.URL,
		CoinID:     cfg.Oracle.CoinID,
		VsCurrency: cfg.Oracle.VsCurrency,
		RateLimit:  cfg.Oracle.RateLimit,
		Burst:      cfg.Oracle.Burst,
	},
		oracle.WithLogger(logger.Named("oracle")),
		oracle.WithHTTPClient(&http.Client{Timeout: cfg.Oracle.Timeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("create price oracle: %w", err)
	}

	engineOpts := []workflow.Option{workflow.WithLogger(logger.Named("workflow"))}
	observers := append([]workflow.Observer{observer.NewLog(logger.Named("events"))}, extra...)
	if cfg.Monitoring.Enabled {
		engineOpts = append(engineOpts, workflow.WithMetrics(metrics.Workflow{}))
		observers = append(observers, metrics.Observer{})
	}

	c.Engine = workflow.NewEngine(ledgerClient, conversionClient, priceOracle, workflow.Config{
		FeeReserve:        cfg.Workflow.FeeReserveAmount(),
		FallbackRate:      cfg.Oracle.FallbackRateAmount(),
		SubmissionTimeout: cfg.Workflow.SubmissionTimeout,
		TxTimeout:         cfg.Workflow.TxTimeout,
		Settlement: workflow.SettlementConfig{
			Interval:    cfg.Workflow.Settlement.Interval,
			MaxInterval: cfg.Workflow.Settlement.MaxInterval,
			MaxAttempts: cfg.Workflow.Settlement.MaxAttempts,
		},
	}, engineOpts...)

	if cfg.Events.RabbitMQ.Enabled {
		pub, err := rabbitmq.Dial(rabbitmq.Config{
			URL:         cfg.Events.RabbitMQ.URL,
			Exchange:    cfg.Events.RabbitMQ.Exchange,
			Buffer:      cfg.Events.RabbitMQ.Buffer,
			DialTimeout: cfg.Events.RabbitMQ.DialTimeout,
		}, logger.Named("rabbitmq"))
		if err != nil {
			return nil, fmt.Errorf("connect event publisher: %w", err)
		}
		c.closers = append(c.closers, pub.Close)
		observers = append(observers, pub)
		logger.Info("Publishing step events", zap.String("exchange", cfg.Events.RabbitMQ.Exchange))
	}

	ctrlOpts := []controller.Option{
		controller.WithLogger(logger.Named("controller")),
		controller.WithBaseContext(ctx),
		controller.WithObservers(observers...),
	}

	if cfg.Database.Enabled {
		db, err := pgutil.ConnectDB(ctx, &cfg.Database)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, db.Close)
		c.Store = runstore.NewStore(db)
		ctrlOpts = append(ctrlOpts, controller.WithStore(c.Store))
		logger.Info("Connected to database",
			zap.String("host", cfg.Database.Host),
			zap.String("database", cfg.Database.Database),
		)
	}

	if cfg.Workflow.Mnemonic != "" {
		seed, err := keys.MasterSeedFromMnemonic(cfg.Workflow.Mnemonic, cfg.Workflow.MnemonicPassphrase)
		if err != nil {
			return nil, fmt.Errorf("workflow mnemonic: %w", err)
		}
		ctrlOpts = append(ctrlOpts, controller.WithRegistryFactory(controller.DerivedRegistry(seed)))
		logger.Info("Deriving party keys from the configured mnemonic")
	}

	c.Controller = controller.New(c.Engine, cfg.Workflow.AssetCode, ctrlOpts...)
	// wait for in-flight commands before the store and publisher close
	c.closers = append(c.closers, func() error {
		c.Controller.Wait()
		return nil
	})

	ok = true
	return c, nil
}
