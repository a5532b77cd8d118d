// Package logging builds the process-wide structured logger: log/slog
// with a configurable format and level, plus a redacting handler that
// blanks sensitive attribute values before they reach the output.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format selects the log output encoding.
type Format string

const (
	// FormatJSON outputs logs in JSON format.
	FormatJSON Format = "json"

	// FormatText outputs logs in logfmt-style text.
	FormatText Format = "text"

	// FormatConsole is human-readable text for interactive use.
	FormatConsole Format = "console"
)

// Config configures the logger.
type Config struct {
	// Level is the minimum log level: debug, info, warn/warning, error.
	Level string

	// Format is json, text, or console. Default: json.
	Format string

	// AddSource includes file and line positions in log records.
	AddSource bool

	// SensitiveKeys are attribute keys whose values are redacted.
	SensitiveKeys []string

	// Writer is the output destination. Default: os.Stdout.
	Writer io.Writer
}

// New creates a structured logger from the configuration.
func New(cfg Config) (*slog.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	format, err := parseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}

	writer := cfg.Writer
	if writer == nil {
		writer = os.Stdout
	}

	opts := &slog.HandlerOptions{
		Level:       level,
		AddSource:   cfg.AddSource,
		ReplaceAttr: redactAttrs(cfg.SensitiveKeys),
	}

	var handler slog.Handler
	switch format {
	case FormatJSON:
		handler = slog.NewJSONHandler(writer, opts)
	case FormatText, FormatConsole:
		handler = slog.NewTextHandler(writer, opts)
	}
	return slog.New(handler), nil
}

// RedactedValue replaces sensitive attribute values in log output.
const RedactedValue = "******"

// redactAttrs builds a ReplaceAttr hook that blanks the configured keys.
// Key comparison is case-insensitive.
func redactAttrs(keys []string) func(groups []string, a slog.Attr) slog.Attr {
	if len(keys) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[strings.ToLower(k)] = struct{}{}
	}
	return func(_ []string, a slog.Attr) slog.Attr {
		if _, sensitive := set[strings.ToLower(a.Key)]; sensitive {
			a.Value = slog.StringValue(RedactedValue)
		}
		return a
	}
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level: %q", s)
	}
}

func parseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "":
		return FormatJSON, nil
	case FormatJSON, FormatText, FormatConsole:
		return Format(strings.ToLower(s)), nil
	default:
		return "", fmt.Errorf("invalid log format: %q", s)
	}
}
