package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/remedyd/internal/config"
	"github.com/fyrsmithlabs/remedyd/internal/coordinator"
	"github.com/fyrsmithlabs/remedyd/internal/logging"
	"github.com/fyrsmithlabs/remedyd/internal/priority"
	"github.com/fyrsmithlabs/remedyd/internal/remedy"
	"github.com/fyrsmithlabs/remedyd/internal/stats"
	"github.com/fyrsmithlabs/remedyd/internal/telemetry"
	"github.com/fyrsmithlabs/remedyd/internal/tracker"
)

// app holds the wired service graph shared by the run and loop
// commands.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	tel    *telemetry.Telemetry

	store     *stats.Store
	registry  *remedy.Registry
	reportLog *coordinator.ReportLog
	coord     *coordinator.Coordinator
}

// loadConfig loads and validates configuration. A validation failure is
// the one condition that aborts before any remediation work starts.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// newApp builds the full coordinator stack from configuration.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	tel, err := telemetry.New(ctx, cfg.Telemetry, version, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing telemetry: %w", err)
	}

	store := stats.NewStore(cfg.Stats.Path, logger,
		stats.WithHistoryCap(cfg.Stats.HistoryCap),
		stats.WithRetryThreshold(cfg.Stats.RetryThreshold),
	)

	ranker, err := priority.NewRanker(cfg.Priority)
	if err != nil {
		return nil, fmt.Errorf("initializing ranker: %w", err)
	}

	registry := remedy.NewRegistry()
	for _, rc := range cfg.Remediators {
		registry.Register(rc.Pattern, remedy.NewCommandRemediator(rc.Command, rc.Dir))
	}

	runner, err := remedy.NewRunner(registry, store, logger,
		remedy.WithFixTimeout(cfg.Coordinator.FixTimeout.Duration()),
	)
	if err != nil {
		return nil, fmt.Errorf("initializing runner: %w", err)
	}

	var issues tracker.Tracker = tracker.Noop{}
	if cfg.Tracker.Enabled {
		gh, err := tracker.NewGitHub(ctx, cfg.Tracker.Token, cfg.Tracker.Owner, cfg.Tracker.Repo, logger)
		if err != nil {
			return nil, fmt.Errorf("initializing tracker: %w", err)
		}
		issues = gh
	}

	reportLog := coordinator.NewReportLog(cfg.Coordinator.ReportLog)

	coord, err := coordinator.New(coordinator.Config{
		MaxAttempts:    cfg.Coordinator.MaxAttempts,
		Interval:       cfg.Coordinator.Interval.Duration(),
		MaxFixesPerRun: cfg.Coordinator.MaxFixesPerRun,
		TicketTitle:    cfg.Tracker.TicketTitle,
		TicketLabels:   cfg.Tracker.Labels,
	}, ranker, runner, store, issues, reportLog, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing coordinator: %w", err)
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		tel:       tel,
		store:     store,
		registry:  registry,
		reportLog: reportLog,
		coord:     coord,
	}, nil
}

// Close flushes telemetry and logs. Safe to call on a partially built
// app.
func (a *app) Close(ctx context.Context) {
	if a == nil {
		return
	}
	if a.tel != nil {
		if err := a.tel.Shutdown(ctx); err != nil && a.logger != nil {
			a.logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}
