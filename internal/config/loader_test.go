package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadWithFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 5, cfg.Coordinator.MaxAttempts)
	assert.Equal(t, 5*time.Minute, cfg.Coordinator.Interval.Duration())
	assert.Equal(t, 10, cfg.Coordinator.MaxFixesPerRun)
	assert.Equal(t, 5*time.Second, cfg.Coordinator.FixTimeout.Duration())
	assert.Equal(t, 200, cfg.Stats.HistoryCap)
	assert.InDelta(t, 0.3, cfg.Stats.RetryThreshold, 1e-9)
	assert.Equal(t, 100.0, cfg.Priority.BasePipeline)
	assert.False(t, cfg.Tracker.Enabled)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestLoadYAMLFile(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
  format: console
coordinator:
  max_attempts: 3
  interval: 90s
  max_fixes_per_run: 4
stats:
  path: /tmp/remedyd-test/ledger.json
  retry_threshold: 0.5
remediators:
  - pattern: build-cache
    command: "make clean"
  - pattern: deps-stale
    command: "npm ci"
    dir: /srv/app
`)

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, 3, cfg.Coordinator.MaxAttempts)
	assert.Equal(t, 90*time.Second, cfg.Coordinator.Interval.Duration())
	assert.Equal(t, 4, cfg.Coordinator.MaxFixesPerRun)
	assert.Equal(t, "/tmp/remedyd-test/ledger.json", cfg.Stats.Path)
	assert.InDelta(t, 0.5, cfg.Stats.RetryThreshold, 1e-9)
	require.Len(t, cfg.Remediators, 2)
	assert.Equal(t, "deps-stale", cfg.Remediators[1].Pattern)
	assert.Equal(t, "/srv/app", cfg.Remediators[1].Dir)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: debug\n")
	t.Setenv("REMEDYD_LOGGING_LEVEL", "warn")
	t.Setenv("REMEDYD_COORDINATOR_MAX_ATTEMPTS", "7")

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 7, cfg.Coordinator.MaxAttempts)
}

func TestLoadMalformedFileIsFatal(t *testing.T) {
	path := writeConfig(t, "logging: [not a mapping")
	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFatalConfig)
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "bad level", yaml: "logging:\n  level: loud\n"},
		{name: "bad format", yaml: "logging:\n  format: xml\n"},
		{name: "zero attempts", yaml: "coordinator:\n  max_attempts: -1\n"},
		{name: "threshold out of range", yaml: "stats:\n  retry_threshold: 1.5\n"},
		{name: "tracker without repo", yaml: "tracker:\n  enabled: true\n  token: t\n"},
		{name: "tracker without token", yaml: "tracker:\n  enabled: true\n  owner: o\n  repo: r\n"},
		{name: "telemetry without endpoint", yaml: "telemetry:\n  enabled: true\n"},
		{name: "remediator without command", yaml: "remediators:\n  - pattern: p\n"},
		{name: "duplicate remediator", yaml: "remediators:\n  - pattern: p\n    command: a\n  - pattern: p\n    command: b\n"},
		{name: "inverted priority bands", yaml: "priority:\n  base_pipeline: 10\n  base_functional: 20\n  base_quality: 30\n  base_cosmetic: 40\n  blocking_bonus: 50\n  frequency_bonus: 15\n  frequency_floor: 5\n  history_floor: 0.7\n  critical_cutoff: 100\n  high_cutoff: 75\n  medium_cutoff: 50\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadWithFile(writeConfig(t, tt.yaml))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrFatalConfig)
		})
	}
}

func TestSecretRedaction(t *testing.T) {
	s := Secret("ghp_very_secret")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.Equal(t, "Secret([REDACTED])", fmt.Sprintf("%#v", s))
	assert.Equal(t, "ghp_very_secret", s.Value())
	assert.True(t, s.IsSet())

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Equal(t, `"[REDACTED]"`, string(data))

	assert.False(t, Secret("").IsSet())
	assert.Empty(t, Secret("").String())
}

func TestSecretLoadedFromEnv(t *testing.T) {
	path := writeConfig(t, "tracker:\n  enabled: true\n  owner: fyrsmithlabs\n  repo: app\n")
	t.Setenv("REMEDYD_TRACKER_TOKEN", "ghp_token")

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ghp_token", cfg.Tracker.Token.Value())
}

func TestDurationParsing(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("2m30s")))
	assert.Equal(t, 150*time.Second, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("-5s")))
	assert.Error(t, d.UnmarshalText([]byte("soon")))
}
