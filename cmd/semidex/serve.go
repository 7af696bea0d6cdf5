package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"semidex-go/internal/api"
	"semidex-go/internal/config"
	"semidex-go/internal/database"
	"semidex-go/internal/ledger"
	"semidex-go/internal/logger"
	"semidex-go/internal/metrics"
	"semidex-go/internal/registry"
	"semidex-go/internal/swap"
)

const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the command that runs the registry, the swap engine and the HTTP API.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the swap service",
		Long: `Load the configuration, restore stored pairs and serve the HTTP API until SIGINT or SIGTERM.

Example:
  $ semidex serve --config ./configs`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := cmd.Flags().GetString(flagConfig)
			if err != nil {
				return err
			}
			cfg, err := config.LoadConfig(path)
			if err != nil {
				return fmt.Errorf("could not load config: %w", err)
			}

			log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck
			log.Info("Configuration loaded")

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, cfg, log)
		},
	}
}

func runServe(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	db, err := database.NewDatabase(cfg.Database.DSN)
	if err != nil {
		return err
	}
	log.Info("Database connection successful and schema migrated.")

	led, err := newLedger(cfg, log)
	if err != nil {
		return err
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(promReg)

	reg, err := registry.New(ctx, registry.Options{
		Admin:   ledger.Address(cfg.Registry.Admin),
		Ledger:  led,
		Store:   database.NewPairStore(db),
		Logger:  log,
		Metrics: m,
	})
	if err != nil {
		return fmt.Errorf("could not restore registry: %w", err)
	}
	reg.Subscribe(func(ev registry.NewPairEvent) {
		log.Debug("NewPair",
			zap.Uint64("pair_id", uint64(ev.PairID)),
			zap.String("token_a", ev.TokenA.String()),
			zap.String("token_b", ev.TokenB.String()),
			zap.String("rate_a_to_b", ev.RateAtoB.String()),
		)
	})

	if err := bootstrapPairs(ctx, reg, cfg.Pairs, log); err != nil {
		return err
	}

	journal := database.NewTradeJournal(db)
	engine, err := swap.NewEngine(swap.Options{
		Address:           ledger.Address(cfg.Engine.Address),
		Registry:          reg,
		Ledger:            led,
		Journal:           journal,
		Logger:            log,
		Metrics:           m,
		SettlementTimeout: cfg.Engine.SettlementTimeout,
	})
	if err != nil {
		return err
	}

	handler := api.NewHandler(log, reg, engine, journal, promReg)
	server := api.NewServer(cfg.Server.Port, handler.Routes(), log)
	errCh := server.Start()

	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received, gracefully shutting down...")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop API server: %w", err)
	}

	log.Info("SemiDex has been shut down.")
	return nil
}
