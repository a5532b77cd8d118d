// Package actions implements the mutating plugins of the rule DSL:
// terminal failure, logging, the attribute/port-attribute/plugin-data
// families, capability and trait edits, and the outbound api-call.
// Register wires them all into a plugin registry under their wire names.
package actions

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"time"

	"forgeline/anvil/pkg/inspection"
	"forgeline/anvil/pkg/rules/plugin"
)

// Config carries the knobs actions need beyond the execution context.
type Config struct {
	// HTTPClient performs api-call requests. Defaults to a fresh client;
	// the per-call timeout is applied via request context.
	HTTPClient *http.Client

	// HTTPTimeout bounds a single api-call attempt when the rule does
	// not set its own.
	HTTPTimeout time.Duration

	// HTTPRetries is the default retry budget for api-call.
	HTTPRetries int
}

func (c Config) withDefaults() Config {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{}
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 30 * time.Second
	}
	if c.HTTPRetries < 0 {
		c.HTTPRetries = 0
	}
	return c
}

// Register adds every action to the registry.
func Register(reg *plugin.Registry, cfg Config) {
	cfg = cfg.withDefaults()

	reg.RegisterAction("fail", &failAction{})
	reg.RegisterAction("log", &logAction{})

	reg.RegisterAction("set-attribute", &setAttributeAction{})
	reg.RegisterAction("extend-attribute", &extendAttributeAction{})
	reg.RegisterAction("del-attribute", &delAttributeAction{})
	reg.RegisterAction("set-port-attribute", &setPortAttributeAction{})
	reg.RegisterAction("extend-port-attribute", &extendPortAttributeAction{})
	reg.RegisterAction("del-port-attribute", &delPortAttributeAction{})

	reg.RegisterAction("set-capability", &setCapabilityAction{})
	reg.RegisterAction("unset-capability", &unsetCapabilityAction{})
	reg.RegisterAction("add-trait", &addTraitAction{})
	reg.RegisterAction("remove-trait", &removeTraitAction{})

	reg.RegisterAction("set-plugin-data", &setPluginDataAction{})
	reg.RegisterAction("extend-plugin-data", &extendPluginDataAction{})
	reg.RegisterAction("unset-plugin-data", &unsetPluginDataAction{})

	reg.RegisterAction("api-call", &apiCallAction{cfg: cfg})
}

// failAction raises a terminal inspection failure with a caller message.
type failAction struct{}

func (a *failAction) RequiredArgs() []string  { return []string{"msg"} }
func (a *failAction) OptionalArgs() []string  { return nil }
func (a *failAction) FormattedArgs() []string { return []string{"msg"} }

func (a *failAction) Validate(args map[string]interface{}) error {
	if _, ok := args["msg"].(string); !ok {
		return fmt.Errorf("msg must be a string, got %T", args["msg"])
	}
	return nil
}

func (a *failAction) Execute(_ context.Context, _ *plugin.ExecContext, args map[string]interface{}) error {
	return &inspection.FailError{Message: renderText(args["msg"])}
}

// logAction emits a message at a caller-chosen severity.
type logAction struct{}

var logLevels = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

func (a *logAction) RequiredArgs() []string  { return []string{"msg"} }
func (a *logAction) OptionalArgs() []string  { return []string{"level"} }
func (a *logAction) FormattedArgs() []string { return []string{"msg"} }

func (a *logAction) Validate(args map[string]interface{}) error {
	if level, ok := args["level"]; ok {
		s, isString := level.(string)
		if !isString {
			return fmt.Errorf("level must be a string, got %T", level)
		}
		if _, known := logLevels[s]; !known {
			return fmt.Errorf("unknown log level %q", s)
		}
	}
	return nil
}

func (a *logAction) Execute(ctx context.Context, ec *plugin.ExecContext, args map[string]interface{}) error {
	level := slog.LevelInfo
	if raw, ok := args["level"]; ok {
		s, _ := raw.(string)
		l, known := logLevels[s]
		if !known {
			return fmt.Errorf("unknown log level %q", s)
		}
		level = l
	}
	logger := ec.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Log(ctx, level, renderText(args["msg"]), "node_uuid", nodeUUID(ec))
	return nil
}

func nodeUUID(ec *plugin.ExecContext) string {
	if ec.Task != nil && ec.Task.Node != nil {
		return ec.Task.Node.UUID
	}
	return ""
}

func renderText(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// extendList appends value to a sequence target, tolerating a nil target
// by starting a fresh list. With unique set, a value already present is
// not appended again.
func extendList(target interface{}, value interface{}, unique bool) ([]interface{}, error) {
	var list []interface{}
	switch t := target.(type) {
	case nil:
		list = []interface{}{}
	case []interface{}:
		list = t
	default:
		return nil, fmt.Errorf("extend target must be a sequence, got %T", target)
	}

	if unique {
		for _, existing := range list {
			if reflect.DeepEqual(existing, value) {
				return list, nil
			}
		}
	}
	return append(list, value), nil
}

func boolArg(args map[string]interface{}, name string) bool {
	b, _ := args[name].(bool)
	return b
}

func stringArg(args map[string]interface{}, name string) (string, error) {
	s, ok := args[name].(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string, got %T", name, args[name])
	}
	return s, nil
}
