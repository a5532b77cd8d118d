// Package config defines the application configuration structures and
// the loading, defaulting, and validation logic for them. Configuration
// is read from a YAML file and may be overridden with ANVIL_* environment
// variables.
package config

import "time"

// Config is the root configuration structure for the anvil daemon and CLI.
type Config struct {
	// Rules configures rule storage and evaluation.
	Rules RulesConfig `yaml:"rules"`

	// APICall configures the api-call rule action.
	APICall APICallConfig `yaml:"api_call"`

	// Server configures the HTTP API server.
	Server ServerConfig `yaml:"server"`

	// History configures the batch application history store.
	History HistoryConfig `yaml:"history"`

	// Logging configures structured logging output.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics configures the Prometheus metrics endpoint.
	Metrics MetricsConfig `yaml:"metrics"`
}

// RulesConfig configures where rules come from and how they are applied.
type RulesConfig struct {
	// BuiltinPath is the path to the built-in rules YAML file. Empty
	// disables built-in rules.
	BuiltinPath string `yaml:"builtin_path"`

	// StorePath is the path to the SQLite database holding operator rules.
	StorePath string `yaml:"store_path"`

	// MaskSecrets controls masking of sensitive inventory fields during
	// rule evaluation. One of "always", "sensitive", or "never".
	MaskSecrets string `yaml:"mask_secrets"`

	// SensitiveFields lists inventory field names treated as sensitive.
	SensitiveFields []string `yaml:"sensitive_fields"`

	// WatchBuiltin enables reloading of built-in rules when the file changes.
	WatchBuiltin bool `yaml:"watch_builtin"`

	// WatchDebounce is the quiet period after a file event before the
	// built-in rules cache is invalidated.
	WatchDebounce time.Duration `yaml:"watch_debounce"`
}

// APICallConfig configures outbound HTTP requests made by rule actions.
type APICallConfig struct {
	// Timeout is the default per-request timeout.
	Timeout time.Duration `yaml:"timeout"`

	// Retries is the default number of retry attempts on server errors.
	Retries int `yaml:"retries"`
}

// ServerConfig configures the HTTP API server that accepts batch
// application requests.
type ServerConfig struct {
	// ListenAddress is the address the API server binds to.
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout bounds reading of a request.
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout bounds writing of a response.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// HistoryConfig configures the batch application history store.
type HistoryConfig struct {
	// Enabled turns history recording on or off.
	Enabled bool `yaml:"enabled"`

	// Path is the path to the SQLite database holding history records.
	Path string `yaml:"path"`

	// Retention is how long history records are kept before pruning.
	Retention time.Duration `yaml:"retention"`

	// PruneSchedule is a cron expression controlling when pruning runs.
	// Empty disables scheduled pruning.
	PruneSchedule string `yaml:"prune_schedule"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, or error.
	Level string `yaml:"level"`

	// Format selects the output encoding: json, text, or console.
	Format string `yaml:"format"`

	// AddSource includes source file and line in log records.
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig configures the Prometheus metrics endpoint, served on
// the API server's /metrics route.
type MetricsConfig struct {
	// Enabled turns the metrics endpoint on or off.
	Enabled bool `yaml:"enabled"`
}
