package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meridian-lab/project-meridian/internal/attribution"
	"github.com/meridian-lab/project-meridian/internal/core/channel"
	corecfg "github.com/meridian-lab/project-meridian/internal/core/config"
	"github.com/meridian-lab/project-meridian/internal/core/journey"
	"github.com/meridian-lab/project-meridian/internal/core/storage/postgres"
	"github.com/meridian-lab/project-meridian/internal/ingestion"
	"github.com/meridian-lab/project-meridian/internal/migrations"
	"github.com/meridian-lab/project-meridian/internal/reporting"
	"github.com/meridian-lab/project-meridian/internal/server"
)

func main() {
	configPath := flag.String("config", "meridian.yaml", "Path to configuration file")
	flag.Parse()

	// 0. Initialize Logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 1. Load Configuration
	cfg, err := corecfg.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded config", "config", cfg)

	cronInterval, err := time.ParseDuration(cfg.Attribution.CronInterval)
	if err != nil {
		slog.Error("Invalid attribution interval", "value", cfg.Attribution.CronInterval, "error", err)
		os.Exit(1)
	}
	horizon, err := journey.ParseHorizon(cfg.Attribution.InactivityHorizon)
	if err != nil {
		slog.Error("Invalid inactivity horizon", "value", cfg.Attribution.InactivityHorizon, "error", err)
		os.Exit(1)
	}

	// 2. Initialize Storage (PostgreSQL)
	dbAdapter, err := postgres.NewAdapter(
		cfg.Database.DSN,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
	)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer dbAdapter.Close()

	// 2.1. Run Database Migrations
	if err := migrations.RunMigrations(dbAdapter.DB(), cfg.Database.AutoMigrate); err != nil {
		slog.Error("Failed to run database migrations", "error", err)
		os.Exit(1)
	}

	reportStore := postgres.NewReportAdapter(dbAdapter.DB())

	// 3. Initialize Channel Resolution
	resolver := channel.NewResolver(cfg.AliasRules)
	normalizer := journey.NewNormalizer(resolver, horizon)
	slog.Info("Channel resolver initialized", "alias_rules", len(cfg.AliasRules))

	// 4. Initialize Attribution (Cron-based batch recompute)
	runner := attribution.NewRunner(
		dbAdapter,
		reportStore,
		normalizer,
		cfg.Attribution.BatchSize,
		attribution.Options{
			WorkerCount:         cfg.Attribution.WorkerCount,
			SolverTolerance:     cfg.Attribution.SolverTolerance,
			SolverMaxIterations: cfg.Attribution.SolverMaxIterations,
		},
	)
	scheduler := attribution.NewScheduler(cronInterval, runner)

	slog.Info("Attribution scheduler initialized",
		"interval", cronInterval,
		"enabled", cfg.Attribution.Enabled,
		"inactivity_horizon", horizon,
		"batch_size", cfg.Attribution.BatchSize,
		"worker_count", cfg.Attribution.WorkerCount,
	)

	// 5. Initialize Ingestion (no buffering - just write to DB)
	ingestionSvc := ingestion.NewService(dbAdapter, resolver, cfg.Server.MaxBodySizeMB)

	// 6. Initialize Reporting (query API)
	reportingSvc := reporting.NewService(reportStore, runner)

	// 7. Initialize Server
	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), dbAdapter.DB(), cfg.Server.Mode)
	ingestionSvc.RegisterRoutes(srv.Engine)
	reportingSvc.RegisterRoutes(srv.Engine)

	// 8. Start Services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Attribution.Enabled {
		go func() {
			if err := scheduler.Start(ctx); err != nil {
				slog.Error("Scheduler stopped with error", "error", err)
			}
		}()
	} else {
		slog.Info("Attribution scheduler disabled by config")
	}

	// Signal handler triggers the shutdown sequence below.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	// HTTP server blocks until ctx is cancelled.
	if err := srv.Run(ctx); err != nil {
		slog.Error("Server stopped with error", "error", err)
	}

	slog.Info("Shutdown complete")
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
