package plugin

import (
	"fmt"
	"regexp"
	"strings"

	"forgeline/anvil/pkg/inspection"
	"forgeline/anvil/pkg/rules/paths"
)

// placeholderRe matches {node...}, {inventory...} and {plugin_data...}
// placeholders with an optional dot-separated path.
var placeholderRe = regexp.MustCompile(`\{(node|inventory|plugin_data)((?:\.[A-Za-z0-9_-]+)+)?\}`)

// Interpolate substitutes namespace placeholders in string values,
// recursing through nested mappings and sequences. A value that is
// exactly one placeholder resolves to the referenced value with its type
// preserved; placeholders embedded in longer strings render as text.
//
// A failed lookup is non-fatal: the original text is kept and a
// diagnostic is logged.
func Interpolate(ec *ExecContext, value interface{}) interface{} {
	switch v := value.(type) {
	case string:
		return interpolateString(ec, v)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, item := range v {
			out[k] = Interpolate(ec, item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = Interpolate(ec, item)
		}
		return out
	default:
		return value
	}
}

func interpolateString(ec *ExecContext, s string) interface{} {
	// Exact single placeholder keeps the referenced value's type.
	if m := placeholderRe.FindStringSubmatch(s); m != nil && m[0] == s {
		resolved, err := resolvePlaceholder(ec, m[1], m[2])
		if err != nil {
			ec.logger().Debug("interpolation failed, keeping original value",
				"value", s,
				"error", err,
			)
			return s
		}
		return resolved
	}

	return placeholderRe.ReplaceAllStringFunc(s, func(match string) string {
		m := placeholderRe.FindStringSubmatch(match)
		resolved, err := resolvePlaceholder(ec, m[1], m[2])
		if err != nil {
			ec.logger().Debug("interpolation failed, keeping original value",
				"value", match,
				"error", err,
			)
			return match
		}
		return fmt.Sprintf("%v", resolved)
	})
}

func resolvePlaceholder(ec *ExecContext, namespace, dotPath string) (interface{}, error) {
	path := strings.TrimPrefix(dotPath, ".")

	switch namespace {
	case "node":
		if ec.Task == nil || ec.Task.Node == nil {
			return nil, fmt.Errorf("node not available")
		}
		if path == "" {
			return ec.Task.Node.UUID, nil
		}
		return inspection.GetNestedField(ec.Task.Node, path)

	case "inventory":
		if ec.Inventory == nil {
			return nil, fmt.Errorf("inventory not available")
		}
		if path == "" {
			return nil, fmt.Errorf("inventory placeholder requires a path")
		}
		return paths.Get(ec.Inventory, path)

	case "plugin_data":
		if ec.PluginDataView == nil {
			return nil, fmt.Errorf("plugin data not available")
		}
		if path == "" {
			return nil, fmt.Errorf("plugin_data placeholder requires a path")
		}
		return paths.Get(ec.PluginDataView, path)

	default:
		return nil, fmt.Errorf("unknown namespace %q", namespace)
	}
}

// interpolateArgs interpolates the values of an op's formatted args in
// place on a copy, leaving other args untouched.
func interpolateArgs(ec *ExecContext, spec ArgSpec, args map[string]interface{}) map[string]interface{} {
	formatted := spec.FormattedArgs()
	if len(formatted) == 0 {
		return args
	}
	out := make(map[string]interface{}, len(args))
	for k, v := range args {
		out[k] = v
	}
	for _, name := range formatted {
		if v, ok := out[name]; ok {
			out[name] = Interpolate(ec, v)
		}
	}
	return out
}
