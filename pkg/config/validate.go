package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g. "rules.mask_secrets").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

var maskPolicies = map[string]bool{
	"always":    true,
	"sensitive": true,
	"never":     true,
}

var logLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var logFormats = map[string]bool{
	"json":    true,
	"text":    true,
	"console": true,
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	if cfg.Rules.StorePath == "" {
		errs = append(errs, FieldError{"rules.store_path", "must not be empty"})
	}
	if !maskPolicies[cfg.Rules.MaskSecrets] {
		errs = append(errs, FieldError{"rules.mask_secrets",
			fmt.Sprintf("unknown mask policy %q, must be one of: always, sensitive, never", cfg.Rules.MaskSecrets)})
	}
	if cfg.Rules.WatchBuiltin && cfg.Rules.BuiltinPath == "" {
		errs = append(errs, FieldError{"rules.watch_builtin", "requires rules.builtin_path to be set"})
	}
	if cfg.Rules.WatchDebounce < 0 {
		errs = append(errs, FieldError{"rules.watch_debounce", "must not be negative"})
	}

	if cfg.APICall.Timeout <= 0 {
		errs = append(errs, FieldError{"api_call.timeout", "must be positive"})
	}
	if cfg.APICall.Retries < 0 {
		errs = append(errs, FieldError{"api_call.retries", "must not be negative"})
	}

	if cfg.Server.ListenAddress == "" {
		errs = append(errs, FieldError{"server.listen_address", "must not be empty"})
	}
	if cfg.Server.ReadTimeout <= 0 {
		errs = append(errs, FieldError{"server.read_timeout", "must be positive"})
	}
	if cfg.Server.WriteTimeout <= 0 {
		errs = append(errs, FieldError{"server.write_timeout", "must be positive"})
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		errs = append(errs, FieldError{"server.shutdown_timeout", "must be positive"})
	}

	if cfg.History.Enabled {
		if cfg.History.Path == "" {
			errs = append(errs, FieldError{"history.path", "must not be empty"})
		}
		if cfg.History.Retention <= 0 {
			errs = append(errs, FieldError{"history.retention", "must be positive"})
		}
		if cfg.History.PruneSchedule != "" {
			if _, err := cron.ParseStandard(cfg.History.PruneSchedule); err != nil {
				errs = append(errs, FieldError{"history.prune_schedule",
					fmt.Sprintf("invalid cron expression: %v", err)})
			}
		}
	}

	if !logLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{"logging.level",
			fmt.Sprintf("unknown level %q, must be one of: debug, info, warn, error", cfg.Logging.Level)})
	}
	if !logFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{"logging.format",
			fmt.Sprintf("unknown format %q, must be one of: json, text, console", cfg.Logging.Format)})
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}
