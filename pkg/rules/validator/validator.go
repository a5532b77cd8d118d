// Package validator checks inspection rules before they are stored or
// run. Validation happens in two passes: a schema pass over the raw
// mapping (shape and types), then a semantic pass over the assembled rule
// (known phase, priority bounds, resolvable ops, per-plugin argument
// checks). All problems found in a pass are reported together.
package validator

import (
	"sort"
	"strings"

	"forgeline/anvil/pkg/rules"
	ruleerrors "forgeline/anvil/pkg/rules/errors"
	"forgeline/anvil/pkg/rules/plugin"
)

var ruleKeys = map[string]struct{}{
	"uuid":        {},
	"priority":    {},
	"description": {},
	"phase":       {},
	"sensitive":   {},
	"conditions":  {},
	"actions":     {},
}

// Validate checks a raw rule mapping and returns the assembled rule. A
// schema failure aborts before the semantic pass, since a malformed rule
// cannot be meaningfully inspected further.
func Validate(reg *plugin.Registry, raw map[string]interface{}) (*rules.Rule, error) {
	if err := checkSchema(raw).ToError(); err != nil {
		return nil, err
	}

	rule, err := rules.FromMap(raw)
	if err != nil {
		errs := ruleerrors.NewList()
		errs.Add(ruleerrors.TypeSchema, "%s", err.Error())
		return nil, errs
	}

	if err := ValidateRule(reg, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// ValidateRule runs the semantic pass on an assembled rule. Built-in
// rules are exempt from the priority bounds.
func ValidateRule(reg *plugin.Registry, rule *rules.Rule) error {
	errs := ruleerrors.NewList()

	if !rules.KnownPhase(rule.Phase) {
		errs.Add(ruleerrors.TypeSemantic, "unknown phase %q, expected one of %s",
			rule.Phase, phaseNames())
	}
	if !rule.BuiltIn && (rule.Priority < rules.MinPriority || rule.Priority > rules.MaxPriority) {
		errs.Add(ruleerrors.TypeSemantic, "priority %d out of range [%d, %d]",
			rule.Priority, rules.MinPriority, rules.MaxPriority)
	}
	if len(rule.Actions) == 0 {
		errs.Add(ruleerrors.TypeSemantic, "rule has no actions")
	}

	for _, cond := range rule.Conditions {
		checkCondition(reg, cond, errs)
	}
	for _, act := range rule.Actions {
		checkAction(reg, act, errs)
	}

	return errs.ToError()
}

func checkSchema(raw map[string]interface{}) *ruleerrors.List {
	errs := ruleerrors.NewList()

	var unknown []string
	for key := range raw {
		if _, ok := ruleKeys[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	for _, key := range unknown {
		errs.Add(ruleerrors.TypeSchema, "unknown rule field %q", key)
	}

	checkType(errs, raw, "uuid", "a string", isString)
	checkType(errs, raw, "priority", "an integer", isInt)
	checkType(errs, raw, "description", "a string", isString)
	checkType(errs, raw, "phase", "a string", isString)
	checkType(errs, raw, "sensitive", "a boolean", isBool)

	checkSteps(errs, raw, "conditions", false)
	checkSteps(errs, raw, "actions", true)

	return errs
}

// checkSteps validates the common shape of the conditions and actions
// sequences. Conditions may be absent; actions must be present and
// non-empty.
func checkSteps(errs *ruleerrors.List, raw map[string]interface{}, field string, required bool) {
	v, ok := raw[field]
	if !ok || v == nil {
		if required {
			errs.Add(ruleerrors.TypeSchema, "rule %s must be a non-empty sequence", field)
		}
		return
	}
	seq, ok := v.([]interface{})
	if !ok {
		errs.Add(ruleerrors.TypeSchema, "rule %s must be a sequence, got %T", field, v)
		return
	}
	if required && len(seq) == 0 {
		errs.Add(ruleerrors.TypeSchema, "rule %s must be a non-empty sequence", field)
	}

	for i, item := range seq {
		m, ok := item.(map[string]interface{})
		if !ok {
			errs.Add(ruleerrors.TypeSchema, "%s[%d] must be a mapping, got %T", field, i, item)
			continue
		}
		op, ok := m["op"]
		if !ok || op == nil {
			errs.Add(ruleerrors.TypeSchema, "%s[%d] is missing op", field, i)
		} else if _, isStr := op.(string); !isStr {
			errs.Add(ruleerrors.TypeSchema, "%s[%d] op must be a string, got %T", field, i, op)
		}
		if args, ok := m["args"]; ok && args != nil {
			switch args.(type) {
			case []interface{}, map[string]interface{}:
			default:
				errs.Add(ruleerrors.TypeSchema,
					"%s[%d] args must be a sequence or a mapping, got %T", field, i, args)
			}
		}
	}
}

func checkCondition(reg *plugin.Registry, cond *rules.Condition, errs *ruleerrors.List) {
	opName, _, err := plugin.ParseInverted(cond.Op)
	if err != nil {
		errs.Append(err)
		return
	}
	if cond.Multiple != "" && !rules.KnownMultiple(cond.Multiple) {
		errs.AddForOp(ruleerrors.TypeSemantic, cond.Op, "unknown multiple mode %q", cond.Multiple)
	}

	op, ok := reg.Operator(opName)
	if !ok {
		errs.AddForOp(ruleerrors.TypeSemantic, cond.Op, "unknown condition op")
		return
	}
	checkPluginArgs(op, cond.Op, cond.Args, cond.Loop, op.Validate, errs)
}

func checkAction(reg *plugin.Registry, act *rules.Action, errs *ruleerrors.List) {
	op, ok := reg.Action(act.Op)
	if !ok {
		errs.AddForOp(ruleerrors.TypeSemantic, act.Op, "unknown action op")
		return
	}
	checkPluginArgs(op, act.Op, act.Args, act.Loop, op.Validate, errs)
}

// checkPluginArgs binds the declared arguments, expands the loop the way
// the execution driver does, and runs the spec and plugin checks on each
// iteration. The loop-bound item key is tolerated as an extra argument.
func checkPluginArgs(spec plugin.ArgSpec, opName string, args, loop interface{},
	validate func(map[string]interface{}) error, errs *ruleerrors.List) {

	base, err := plugin.BindArgs(spec, args)
	if err != nil {
		errs.AddForOp(ruleerrors.TypeSchema, opName, "%s", err.Error())
		return
	}

	iterations, err := plugin.LoopIterations(loop, base)
	if err != nil {
		errs.AddForOp(ruleerrors.TypeSchema, opName, "%s", err.Error())
		return
	}

	seen := make(map[string]struct{})
	for _, iter := range iterations {
		checked := iter
		if _, hasItem := iter["item"]; hasItem && !declaresArg(spec, "item") {
			checked = make(map[string]interface{}, len(iter))
			for k, v := range iter {
				if k != "item" {
					checked[k] = v
				}
			}
		}
		if err := plugin.CheckArgs(opName, spec, checked); err != nil {
			dedupe(errs, seen, err)
			continue
		}
		if err := validate(iter); err != nil {
			dedupe(errs, seen, wrapForOp(opName, err))
		}
	}
}

func declaresArg(spec plugin.ArgSpec, name string) bool {
	for _, arg := range spec.RequiredArgs() {
		if arg == name {
			return true
		}
	}
	for _, arg := range spec.OptionalArgs() {
		if arg == name {
			return true
		}
	}
	return false
}

// dedupe collapses identical per-iteration problems, which a loop over
// many elements would otherwise repeat.
func dedupe(errs *ruleerrors.List, seen map[string]struct{}, err error) {
	key := err.Error()
	if _, dup := seen[key]; dup {
		return
	}
	seen[key] = struct{}{}
	errs.Append(err)
}

func wrapForOp(opName string, err error) error {
	if _, ok := err.(*ruleerrors.Error); ok {
		return err
	}
	if _, ok := err.(*ruleerrors.List); ok {
		return err
	}
	return &ruleerrors.Error{Type: ruleerrors.TypePlugin, Op: opName, Message: err.Error()}
}

func phaseNames() string {
	names := make([]string, 0, len(rules.Phases))
	for _, p := range rules.Phases {
		names = append(names, string(p))
	}
	return strings.Join(names, ", ")
}

func checkType(errs *ruleerrors.List, raw map[string]interface{}, field, want string, ok func(interface{}) bool) {
	v, present := raw[field]
	if !present || v == nil {
		return
	}
	if !ok(v) {
		errs.Add(ruleerrors.TypeSchema, "rule %s must be %s, got %T", field, want, v)
	}
}

func isString(v interface{}) bool {
	_, ok := v.(string)
	return ok
}

func isBool(v interface{}) bool {
	_, ok := v.(bool)
	return ok
}

func isInt(v interface{}) bool {
	switch n := v.(type) {
	case int, int64:
		return true
	case float64:
		return n == float64(int(n))
	}
	return false
}
