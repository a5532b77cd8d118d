// Package operators implements the condition plugins of the rule DSL:
// comparisons, emptiness and boolean checks, subnet membership, regex
// matching, and collection membership. Register wires them all into a
// plugin registry under their wire names.
package operators

import (
	"context"
	"fmt"
	"net"
	"reflect"
	"regexp"
	"strings"

	"forgeline/anvil/pkg/rules/plugin"
)

// Register adds every condition operator to the registry.
func Register(reg *plugin.Registry) {
	reg.RegisterOperator("eq", &compareOperator{spec: twoValueSpec, compare: func(c int) bool { return c == 0 }})
	reg.RegisterOperator("lt", &compareOperator{spec: twoValueSpec, compare: func(c int) bool { return c < 0 }})
	reg.RegisterOperator("gt", &compareOperator{spec: twoValueSpec, compare: func(c int) bool { return c > 0 }})
	reg.RegisterOperator("is-empty", &isEmptyOperator{})
	reg.RegisterOperator("in-net", &inNetOperator{})
	reg.RegisterOperator("matches", &regexOperator{anchored: true})
	reg.RegisterOperator("contains", &regexOperator{anchored: false})
	reg.RegisterOperator("one-of", &oneOfOperator{})
	reg.RegisterOperator("is-none", &isNoneOperator{})
	reg.RegisterOperator("is-true", &boolOperator{want: true})
	reg.RegisterOperator("is-false", &boolOperator{want: false})
}

var twoValueSpec = plugin.Spec{
	Required:  []string{"values"},
	Optional:  []string{"force_strings"},
	Formatted: []string{"values"},
}

// compareOperator implements eq, lt and gt over a two-element values
// sequence, optionally coercing both sides to text first.
type compareOperator struct {
	spec    plugin.Spec
	compare func(int) bool
}

func (o *compareOperator) RequiredArgs() []string  { return o.spec.RequiredArgs() }
func (o *compareOperator) OptionalArgs() []string  { return o.spec.OptionalArgs() }
func (o *compareOperator) FormattedArgs() []string { return o.spec.FormattedArgs() }

func (o *compareOperator) Validate(args map[string]interface{}) error {
	if _, err := twoValues(args); err != nil {
		return err
	}
	return nil
}

func (o *compareOperator) Check(_ context.Context, _ *plugin.ExecContext, args map[string]interface{}) (bool, error) {
	values, err := twoValues(args)
	if err != nil {
		return false, err
	}
	left, right := values[0], values[1]

	if force, _ := args["force_strings"].(bool); force {
		return o.compare(strings.Compare(render(left), render(right))), nil
	}

	if ln, lok := toFloat(left); lok {
		if rn, rok := toFloat(right); rok {
			switch {
			case ln < rn:
				return o.compare(-1), nil
			case ln > rn:
				return o.compare(1), nil
			default:
				return o.compare(0), nil
			}
		}
	}
	return o.compare(strings.Compare(render(left), render(right))), nil
}

func twoValues(args map[string]interface{}) ([]interface{}, error) {
	values, ok := args["values"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("values must be a two-element sequence, got %T", args["values"])
	}
	if len(values) != 2 {
		return nil, fmt.Errorf("values must hold exactly two elements, got %d", len(values))
	}
	return values, nil
}

// isEmptyOperator is true when a value renders as one of the canonical
// empty forms: nil, empty text, empty collection, or the literals None
// and null.
type isEmptyOperator struct{}

func (o *isEmptyOperator) RequiredArgs() []string  { return []string{"value"} }
func (o *isEmptyOperator) OptionalArgs() []string  { return nil }
func (o *isEmptyOperator) FormattedArgs() []string { return []string{"value"} }

func (o *isEmptyOperator) Validate(map[string]interface{}) error { return nil }

func (o *isEmptyOperator) Check(_ context.Context, _ *plugin.ExecContext, args map[string]interface{}) (bool, error) {
	switch v := args["value"].(type) {
	case nil:
		return true, nil
	case string:
		s := strings.TrimSpace(strings.ToLower(v))
		return s == "" || s == "none" || s == "null" || s == "[]" || s == "{}", nil
	case []interface{}:
		return len(v) == 0, nil
	case map[string]interface{}:
		return len(v) == 0, nil
	default:
		return false, nil
	}
}

// inNetOperator is true when an address falls inside a CIDR subnet.
type inNetOperator struct{}

func (o *inNetOperator) RequiredArgs() []string  { return []string{"address", "subnet"} }
func (o *inNetOperator) OptionalArgs() []string  { return nil }
func (o *inNetOperator) FormattedArgs() []string { return []string{"address", "subnet"} }

func (o *inNetOperator) Validate(args map[string]interface{}) error {
	subnet, ok := args["subnet"].(string)
	if !ok {
		return fmt.Errorf("subnet must be a string, got %T", args["subnet"])
	}
	// Only literal subnets can be checked at authoring time; templated
	// ones resolve at evaluation.
	if strings.Contains(subnet, "{") {
		return nil
	}
	if _, _, err := net.ParseCIDR(subnet); err != nil {
		return fmt.Errorf("malformed subnet %q: %w", subnet, err)
	}
	return nil
}

func (o *inNetOperator) Check(_ context.Context, _ *plugin.ExecContext, args map[string]interface{}) (bool, error) {
	subnet := render(args["subnet"])
	_, network, err := net.ParseCIDR(subnet)
	if err != nil {
		return false, fmt.Errorf("malformed subnet %q: %w", subnet, err)
	}
	address := render(args["address"])
	ip := net.ParseIP(address)
	if ip == nil {
		return false, fmt.Errorf("malformed address %q", address)
	}
	return network.Contains(ip), nil
}

// regexOperator implements matches (anchored full match, with "$"
// auto-appended) and contains (unanchored search). Invalid patterns are
// reported as structured errors instead of raw compiler output.
type regexOperator struct {
	anchored bool
}

func (o *regexOperator) RequiredArgs() []string  { return []string{"value", "regex"} }
func (o *regexOperator) OptionalArgs() []string  { return nil }
func (o *regexOperator) FormattedArgs() []string { return []string{"value"} }

func (o *regexOperator) Validate(args map[string]interface{}) error {
	pattern, ok := args["regex"].(string)
	if !ok {
		return fmt.Errorf("regex must be a string, got %T", args["regex"])
	}
	_, err := o.compile(pattern)
	return err
}

func (o *regexOperator) Check(_ context.Context, _ *plugin.ExecContext, args map[string]interface{}) (bool, error) {
	pattern := render(args["regex"])
	re, err := o.compile(pattern)
	if err != nil {
		return false, err
	}
	return re.MatchString(render(args["value"])), nil
}

func (o *regexOperator) compile(pattern string) (*regexp.Regexp, error) {
	expr := pattern
	if o.anchored {
		if !strings.HasSuffix(expr, "$") {
			expr += "$"
		}
		expr = "^(?:" + expr + ")"
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid regular expression %q: %v", pattern, err)
	}
	return re, nil
}

// oneOfOperator is true when a value is a member of a literal collection.
// An empty or absent collection never matches.
type oneOfOperator struct{}

func (o *oneOfOperator) RequiredArgs() []string  { return []string{"value", "values"} }
func (o *oneOfOperator) OptionalArgs() []string  { return nil }
func (o *oneOfOperator) FormattedArgs() []string { return []string{"value"} }

func (o *oneOfOperator) Validate(args map[string]interface{}) error {
	if v, ok := args["values"]; ok && v != nil {
		if _, ok := v.([]interface{}); !ok {
			return fmt.Errorf("values must be a sequence, got %T", v)
		}
	}
	return nil
}

func (o *oneOfOperator) Check(_ context.Context, _ *plugin.ExecContext, args map[string]interface{}) (bool, error) {
	values, _ := args["values"].([]interface{})
	for _, candidate := range values {
		if looseEqual(args["value"], candidate) {
			return true, nil
		}
	}
	return false, nil
}

// isNoneOperator is true when a value is nil or renders as "None".
type isNoneOperator struct{}

func (o *isNoneOperator) RequiredArgs() []string  { return []string{"value"} }
func (o *isNoneOperator) OptionalArgs() []string  { return nil }
func (o *isNoneOperator) FormattedArgs() []string { return []string{"value"} }

func (o *isNoneOperator) Validate(map[string]interface{}) error { return nil }

func (o *isNoneOperator) Check(_ context.Context, _ *plugin.ExecContext, args map[string]interface{}) (bool, error) {
	v := args["value"]
	return v == nil || render(v) == "None", nil
}

// boolOperator implements is-true and is-false: boolean passthrough,
// numeric zero test, and the case-insensitive yes/true and no/false
// string sets. An absent value counts as false-like, so is-false accepts
// it and is-true rejects it.
type boolOperator struct {
	want bool
}

func (o *boolOperator) RequiredArgs() []string  { return []string{"value"} }
func (o *boolOperator) OptionalArgs() []string  { return nil }
func (o *boolOperator) FormattedArgs() []string { return []string{"value"} }

func (o *boolOperator) Validate(map[string]interface{}) error { return nil }

func (o *boolOperator) Check(_ context.Context, _ *plugin.ExecContext, args map[string]interface{}) (bool, error) {
	v, present := args["value"]
	if !present || v == nil {
		// Absent is false-like: is-false matches, is-true does not.
		return !o.want, nil
	}

	if b, ok := v.(bool); ok {
		return b == o.want, nil
	}
	if n, ok := toFloat(v); ok {
		return (n != 0) == o.want, nil
	}
	if s, ok := v.(string); ok {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "yes", "true":
			return o.want, nil
		case "no", "false":
			return !o.want, nil
		case "":
			// Empty text is false-like, same as absent.
			return !o.want, nil
		}
	}
	return false, nil
}

// render turns any value into its display text.
func render(v interface{}) string {
	if v == nil {
		return "None"
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// toFloat reports whether a value is numeric and returns it as float64.
// Numeric-looking strings do not qualify; only real numbers do.
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// looseEqual compares two values, treating numbers of different Go types
// as equal when their values match.
func looseEqual(a, b interface{}) bool {
	if an, ok := toFloat(a); ok {
		if bn, ok := toFloat(b); ok {
			return an == bn
		}
	}
	return reflect.DeepEqual(a, b)
}
