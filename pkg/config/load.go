package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any
// errors. Environment variables are not consulted; use
// LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	// Boolean fields that default to true must be set before unmarshaling
	// so an absent key keeps the default while an explicit false wins.
	cfg := Config{
		History: HistoryConfig{Enabled: DefaultHistoryEnabled},
		Metrics: MetricsConfig{Enabled: DefaultMetricsEnabled},
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention ANVIL_SECTION_FIELD (e.g. ANVIL_RULES_STORE_PATH) and always
// take precedence over file-based configuration.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault behaves like LoadConfigWithEnvOverrides, except that a
// missing configuration file is not an error: defaults plus environment
// overrides are used instead.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := NewDefaultConfig()
		applyEnvOverrides(cfg)
		if err := Validate(cfg); err != nil {
			return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
		}
		return cfg, nil
	}
	return LoadConfigWithEnvOverrides(path)
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Variables use the format ANVIL_SECTION_FIELD.
func applyEnvOverrides(cfg *Config) {
	// Rules overrides
	if val := os.Getenv("ANVIL_RULES_BUILTIN_PATH"); val != "" {
		cfg.Rules.BuiltinPath = val
	}
	if val := os.Getenv("ANVIL_RULES_STORE_PATH"); val != "" {
		cfg.Rules.StorePath = val
	}
	if val := os.Getenv("ANVIL_RULES_MASK_SECRETS"); val != "" {
		cfg.Rules.MaskSecrets = val
	}
	if val := os.Getenv("ANVIL_RULES_WATCH_BUILTIN"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Rules.WatchBuiltin = b
		}
	}

	// API call overrides
	if val := os.Getenv("ANVIL_API_CALL_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.APICall.Timeout = d
		}
	}
	if val := os.Getenv("ANVIL_API_CALL_RETRIES"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.APICall.Retries = i
		}
	}

	// Server overrides
	if val := os.Getenv("ANVIL_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if val := os.Getenv("ANVIL_SERVER_READ_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if val := os.Getenv("ANVIL_SERVER_WRITE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}

	// History overrides
	if val := os.Getenv("ANVIL_HISTORY_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.History.Enabled = b
		}
	}
	if val := os.Getenv("ANVIL_HISTORY_PATH"); val != "" {
		cfg.History.Path = val
	}
	if val := os.Getenv("ANVIL_HISTORY_RETENTION"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.History.Retention = d
		}
	}
	if val := os.Getenv("ANVIL_HISTORY_PRUNE_SCHEDULE"); val != "" {
		cfg.History.PruneSchedule = val
	}

	// Logging overrides
	if val := os.Getenv("ANVIL_LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if val := os.Getenv("ANVIL_LOG_FORMAT"); val != "" {
		cfg.Logging.Format = val
	}

	// Metrics overrides
	if val := os.Getenv("ANVIL_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Metrics.Enabled = b
		}
	}
}
