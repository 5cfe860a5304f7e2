package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "REMEDYD_"

// LoadWithFile loads configuration from a YAML file, then overrides with
// environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (REMEDYD_STATS_PATH, REMEDYD_TRACKER_TOKEN, ...)
//  2. YAML config file (~/.config/remedyd/config.yaml by default)
//  3. Hardcoded defaults
//
// A missing config file is not an error; the defaults plus environment
// are used. A file that exists but cannot be parsed, or a configuration
// that fails validation, is an ErrFatalConfig.
//
// Environment variables use underscore separators and the REMEDYD_
// prefix. The first underscore after the prefix splits section from
// field: REMEDYD_COORDINATOR_MAX_ATTEMPTS -> coordinator.max_attempts.
func LoadWithFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("%w: resolving home directory: %v", ErrFatalConfig, err)
		}
		configPath = filepath.Join(home, ".config", "remedyd", "config.yaml")
	}

	if content, err := os.ReadFile(configPath); err == nil {
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: parsing config file %s: %v", ErrFatalConfig, configPath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: reading config file %s: %v", ErrFatalConfig, configPath, err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		// REMEDYD_STATS_PATH -> stats.path
		// REMEDYD_COORDINATOR_MAX_ATTEMPTS -> coordinator.max_attempts
		trimmed := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		parts := strings.SplitN(trimmed, "_", 2)
		if len(parts) == 1 {
			return trimmed
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("%w: loading environment variables: %v", ErrFatalConfig, err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("%w: unmarshaling config: %v", ErrFatalConfig, err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// defaultStatePath places state files under ~/.local/state/remedyd,
// falling back to the working directory when home is unavailable.
func defaultStatePath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return name
	}
	return filepath.Join(home, ".local", "state", "remedyd", name)
}
