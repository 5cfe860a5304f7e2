// Package config provides configuration loading for remedyd.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/remedyd/internal/priority"
)

// ErrFatalConfig marks configuration errors that must abort startup.
// Everything else in the system degrades gracefully; missing or invalid
// required configuration is the one exception.
var ErrFatalConfig = errors.New("fatal configuration error")

// Config is the root remedyd configuration.
type Config struct {
	Logging     LoggingConfig      `koanf:"logging"`
	Telemetry   TelemetryConfig    `koanf:"telemetry"`
	Stats       StatsConfig        `koanf:"stats"`
	Priority    priority.Weights   `koanf:"priority"`
	Coordinator CoordinatorConfig  `koanf:"coordinator"`
	Tracker     TrackerConfig      `koanf:"tracker"`
	Remediators []RemediatorConfig `koanf:"remediators"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `koanf:"level"`
	// Format is json or console.
	Format string `koanf:"format"`
}

// TelemetryConfig controls OpenTelemetry export.
type TelemetryConfig struct {
	Enabled bool `koanf:"enabled"`
	// Endpoint is the OTLP collector endpoint, e.g. localhost:4318.
	Endpoint string `koanf:"endpoint"`
	// Protocol is http or grpc.
	Protocol string `koanf:"protocol"`
	Insecure bool   `koanf:"insecure"`
	// ServiceName overrides the resource service.name.
	ServiceName string `koanf:"service_name"`
}

// StatsConfig controls the fix-outcome ledger.
type StatsConfig struct {
	// Path is the ledger file location.
	Path string `koanf:"path"`
	// HistoryCap bounds the persisted attempt history.
	HistoryCap int `koanf:"history_cap"`
	// RetryThreshold is the circuit-breaker success-rate floor.
	RetryThreshold float64 `koanf:"retry_threshold"`
}

// CoordinatorConfig controls the remediation loop.
type CoordinatorConfig struct {
	// MaxAttempts bounds the number of detect/remediate cycles.
	MaxAttempts int `koanf:"max_attempts"`
	// Interval is the cooldown between cycles.
	Interval Duration `koanf:"interval"`
	// MaxFixesPerRun bounds remediation attempts within one cycle.
	MaxFixesPerRun int `koanf:"max_fixes_per_run"`
	// FixTimeout bounds one remediator call.
	FixTimeout Duration `koanf:"fix_timeout"`
	// ReportLog is the JSONL cycle-report file.
	ReportLog string `koanf:"report_log"`
	// DropDir is the failure-drop directory scanned by the detector.
	DropDir string `koanf:"drop_dir"`
}

// TrackerConfig controls the issue-tracker adapter.
type TrackerConfig struct {
	Enabled bool   `koanf:"enabled"`
	Owner   string `koanf:"owner"`
	Repo    string `koanf:"repo"`
	Token   Secret `koanf:"token"`
	// TicketTitle overrides the tracking ticket title.
	TicketTitle string   `koanf:"ticket_title"`
	Labels      []string `koanf:"labels"`
}

// RemediatorConfig binds a failure pattern to a shell command.
type RemediatorConfig struct {
	Pattern string `koanf:"pattern"`
	Command string `koanf:"command"`
	Dir     string `koanf:"dir"`
}

// applyDefaults fills unset fields.
func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "http"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "remedyd"
	}
	if cfg.Stats.Path == "" {
		cfg.Stats.Path = defaultStatePath("stats.json")
	}
	if cfg.Stats.HistoryCap == 0 {
		cfg.Stats.HistoryCap = 200
	}
	if cfg.Stats.RetryThreshold == 0 {
		cfg.Stats.RetryThreshold = 0.3
	}
	if cfg.Priority == (priority.Weights{}) {
		cfg.Priority = priority.DefaultWeights()
	}
	if cfg.Coordinator.MaxAttempts == 0 {
		cfg.Coordinator.MaxAttempts = 5
	}
	if cfg.Coordinator.Interval == 0 {
		cfg.Coordinator.Interval = Duration(5 * time.Minute)
	}
	if cfg.Coordinator.MaxFixesPerRun == 0 {
		cfg.Coordinator.MaxFixesPerRun = 10
	}
	if cfg.Coordinator.FixTimeout == 0 {
		cfg.Coordinator.FixTimeout = Duration(5 * time.Second)
	}
	if cfg.Coordinator.ReportLog == "" {
		cfg.Coordinator.ReportLog = defaultStatePath("reports.jsonl")
	}
	if cfg.Tracker.TicketTitle == "" {
		cfg.Tracker.TicketTitle = "CI auto-remediation status"
	}
}

// Validate checks the configuration. Violations are ErrFatalConfig:
// the process must not start with them.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: invalid logging.level %q", ErrFatalConfig, c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("%w: invalid logging.format %q", ErrFatalConfig, c.Logging.Format)
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			return fmt.Errorf("%w: telemetry.endpoint required when telemetry is enabled", ErrFatalConfig)
		}
		switch c.Telemetry.Protocol {
		case "http", "grpc":
		default:
			return fmt.Errorf("%w: invalid telemetry.protocol %q", ErrFatalConfig, c.Telemetry.Protocol)
		}
	}

	if c.Stats.RetryThreshold < 0 || c.Stats.RetryThreshold > 1 {
		return fmt.Errorf("%w: stats.retry_threshold must be in [0,1], got %v", ErrFatalConfig, c.Stats.RetryThreshold)
	}
	if c.Stats.HistoryCap < 0 {
		return fmt.Errorf("%w: stats.history_cap must not be negative", ErrFatalConfig)
	}

	if err := c.Priority.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrFatalConfig, err)
	}

	if c.Coordinator.MaxAttempts < 1 {
		return fmt.Errorf("%w: coordinator.max_attempts must be at least 1", ErrFatalConfig)
	}
	if c.Coordinator.MaxFixesPerRun < 1 {
		return fmt.Errorf("%w: coordinator.max_fixes_per_run must be at least 1", ErrFatalConfig)
	}

	if c.Tracker.Enabled {
		if c.Tracker.Owner == "" || c.Tracker.Repo == "" {
			return fmt.Errorf("%w: tracker.owner and tracker.repo required when tracker is enabled", ErrFatalConfig)
		}
		if !c.Tracker.Token.IsSet() {
			return fmt.Errorf("%w: tracker.token required when tracker is enabled", ErrFatalConfig)
		}
	}

	seen := make(map[string]bool, len(c.Remediators))
	for i, r := range c.Remediators {
		if r.Pattern == "" {
			return fmt.Errorf("%w: remediators[%d].pattern must not be empty", ErrFatalConfig, i)
		}
		if r.Command == "" {
			return fmt.Errorf("%w: remediators[%d].command must not be empty", ErrFatalConfig, i)
		}
		if seen[r.Pattern] {
			return fmt.Errorf("%w: duplicate remediator for pattern %q", ErrFatalConfig, r.Pattern)
		}
		seen[r.Pattern] = true
	}

	return nil
}
