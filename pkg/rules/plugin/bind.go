package plugin

import (
	"fmt"
	"sort"
	"strings"

	ruleerrors "forgeline/anvil/pkg/rules/errors"
)

// BindArgs turns either argument form into the canonical named mapping.
// Sequence-form arguments zip against required names in declared order,
// then any remainder zips against optional names, also in declared order.
// Mapping-form arguments pass through as a copy.
func BindArgs(spec ArgSpec, args interface{}) (map[string]interface{}, error) {
	switch a := args.(type) {
	case nil:
		return map[string]interface{}{}, nil

	case map[string]interface{}:
		bound := make(map[string]interface{}, len(a))
		for k, v := range a {
			bound[k] = v
		}
		return bound, nil

	case []interface{}:
		required := spec.RequiredArgs()
		optional := spec.OptionalArgs()
		if len(a) > len(required)+len(optional) {
			return nil, fmt.Errorf("too many positional arguments: got %d, accept at most %d",
				len(a), len(required)+len(optional))
		}
		bound := make(map[string]interface{}, len(a))
		for i, v := range a {
			if i < len(required) {
				bound[required[i]] = v
			} else {
				bound[optional[i-len(required)]] = v
			}
		}
		return bound, nil

	default:
		return nil, fmt.Errorf("arguments must be a sequence or a mapping, got %T", args)
	}
}

// CheckArgs verifies bound arguments cover every required name and
// nothing outside required plus optional. Both kinds of violation are
// aggregated into one multi-part error rather than failing on the first.
func CheckArgs(op string, spec ArgSpec, bound map[string]interface{}) error {
	errs := ruleerrors.NewList()

	allowed := make(map[string]struct{})
	for _, name := range spec.RequiredArgs() {
		allowed[name] = struct{}{}
		if _, ok := bound[name]; !ok {
			errs.AddForOp(ruleerrors.TypePlugin, op, "missing required argument %q", name)
		}
	}
	for _, name := range spec.OptionalArgs() {
		allowed[name] = struct{}{}
	}

	var unknown []string
	for name := range bound {
		if _, ok := allowed[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		errs.AddForOp(ruleerrors.TypePlugin, op, "unexpected arguments: %s", strings.Join(unknown, ", "))
	}

	return errs.ToError()
}
