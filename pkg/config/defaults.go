package config

import "time"

// Default values for configuration fields.
const (
	// Rules defaults
	DefaultRulesStorePath     = "data/rules.db"
	DefaultRulesMaskSecrets   = "sensitive"
	DefaultRulesWatchDebounce = 100 * time.Millisecond

	// API call defaults
	DefaultAPICallTimeout = 30 * time.Second
	DefaultAPICallRetries = 3

	// Server defaults
	DefaultServerListenAddress   = "127.0.0.1:8080"
	DefaultServerReadTimeout     = 30 * time.Second
	DefaultServerWriteTimeout    = 60 * time.Second
	DefaultServerShutdownTimeout = 10 * time.Second

	// History defaults
	DefaultHistoryEnabled       = true
	DefaultHistoryPath          = "data/history.db"
	DefaultHistoryRetention     = 30 * 24 * time.Hour
	DefaultHistoryPruneSchedule = "0 3 * * *"

	// Logging defaults
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	// Metrics defaults
	DefaultMetricsEnabled = true
)

// DefaultSensitiveFields is the default set of inventory field names
// masked during rule evaluation.
var DefaultSensitiveFields = []string{
	"password",
	"auth_token",
	"bmc_password",
	"ipmi_password",
	"redfish_password",
	"snmp_community",
}

// ApplyDefaults fills in default values for any configuration fields
// that were not set. It only modifies zero-valued fields.
func ApplyDefaults(cfg *Config) {
	if cfg.Rules.StorePath == "" {
		cfg.Rules.StorePath = DefaultRulesStorePath
	}
	if cfg.Rules.MaskSecrets == "" {
		cfg.Rules.MaskSecrets = DefaultRulesMaskSecrets
	}
	if cfg.Rules.SensitiveFields == nil {
		cfg.Rules.SensitiveFields = append([]string(nil), DefaultSensitiveFields...)
	}
	if cfg.Rules.WatchDebounce == 0 {
		cfg.Rules.WatchDebounce = DefaultRulesWatchDebounce
	}

	if cfg.APICall.Timeout == 0 {
		cfg.APICall.Timeout = DefaultAPICallTimeout
	}
	if cfg.APICall.Retries == 0 {
		cfg.APICall.Retries = DefaultAPICallRetries
	}

	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultServerListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultServerReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultServerWriteTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultServerShutdownTimeout
	}

	if cfg.History.Path == "" {
		cfg.History.Path = DefaultHistoryPath
	}
	if cfg.History.Retention == 0 {
		cfg.History.Retention = DefaultHistoryRetention
	}
	if cfg.History.PruneSchedule == "" {
		cfg.History.PruneSchedule = DefaultHistoryPruneSchedule
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}
}

// NewDefaultConfig returns a configuration populated with default values.
func NewDefaultConfig() *Config {
	cfg := &Config{
		History: HistoryConfig{Enabled: DefaultHistoryEnabled},
		Metrics: MetricsConfig{Enabled: DefaultMetricsEnabled},
	}
	ApplyDefaults(cfg)
	return cfg
}
