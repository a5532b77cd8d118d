// Package rules defines the inspection-rule data model: the rule itself,
// its conditions and actions, and the phases at which rules run. Rules are
// read-only once assembled; the engine mutates node state, never rules.
package rules

import "fmt"

// Phase names a stage of inspection at which a rule is eligible to run.
type Phase string

const (
	// PhaseEarly runs before inventory post-processing.
	PhaseEarly Phase = "early"

	// PhaseMain is the default phase for ordinary rules.
	PhaseMain Phase = "main"

	// PhasePost runs after all main-phase processing completes.
	PhasePost Phase = "post"
)

// Phases lists the supported phases in execution order.
var Phases = []Phase{PhaseEarly, PhaseMain, PhasePost}

// KnownPhase reports whether p is a supported phase.
func KnownPhase(p Phase) bool {
	for _, known := range Phases {
		if p == known {
			return true
		}
	}
	return false
}

// Priority bounds for rules created through the management surface.
// Built-in rules are exempt.
const (
	MinPriority = 0
	MaxPriority = 9999
)

// Multiple selects how per-iteration condition verdicts aggregate when a
// condition carries a loop.
type Multiple string

const (
	// MultipleAny is true when any iteration is true (short-circuits).
	MultipleAny Multiple = "any"

	// MultipleAll is true when every iteration is true.
	MultipleAll Multiple = "all"

	// MultipleFirst short-circuits on the first true iteration.
	MultipleFirst Multiple = "first"

	// MultipleLast uses only the final iteration's verdict.
	MultipleLast Multiple = "last"
)

// KnownMultiple reports whether m is a supported aggregation mode.
func KnownMultiple(m Multiple) bool {
	switch m {
	case MultipleAny, MultipleAll, MultipleFirst, MultipleLast:
		return true
	}
	return false
}

// Condition is a boolean check guarding a rule's actions. The op may be
// prefixed with a single "!" to invert the verdict.
type Condition struct {
	// Op is the operator name, optionally "!"-prefixed.
	Op string

	// Args is either an ordered sequence bound positionally against the
	// operator's declared parameters, or a named mapping.
	Args interface{}

	// Multiple aggregates per-iteration verdicts; meaningful only with
	// Loop. Defaults to any.
	Multiple Multiple

	// Loop holds per-iteration argument overrides: a sequence runs the
	// operator once per element, a mapping is a single iteration with the
	// mapping bound as item.
	Loop interface{}
}

// Action is a mutating step executed when a rule's conditions hold.
type Action struct {
	// Op is the action name.
	Op string

	// Args has the same dual sequence/mapping form as Condition.Args.
	Args interface{}

	// Loop has the same shape as Condition.Loop; every iteration always
	// executes.
	Loop interface{}
}

// Rule applies configured actions to a node when its conditions hold.
type Rule struct {
	// UUID is the opaque rule id; empty before persistence and for
	// built-in rules.
	UUID string

	// Priority orders rules within a batch, highest first. Non-built-in
	// rules must stay within [MinPriority, MaxPriority].
	Priority int

	// Description is optional human-readable text.
	Description string

	// Phase gates when the rule is eligible. Defaults to main.
	Phase Phase

	// Sensitive exempts the rule from data masking and suppresses
	// argument detail when its failures are logged.
	Sensitive bool

	// BuiltIn marks filesystem-sourced rules, which are exempt from
	// priority bounds and never persisted.
	BuiltIn bool

	// Conditions guard the actions; an empty sequence always matches.
	Conditions []*Condition

	// Actions run in declared order on a match. Never empty for a valid
	// rule.
	Actions []*Action
}

// Ident returns a short identifier for logs: the UUID when present,
// otherwise the description, otherwise a placeholder.
func (r *Rule) Ident() string {
	if r.UUID != "" {
		return r.UUID
	}
	if r.Description != "" {
		return r.Description
	}
	return "<unnamed rule>"
}

// FromMap assembles a Rule from a rule-shaped mapping, applying defaults.
// It performs only the type coercion needed to build the struct; real
// validation belongs to the validator package.
func FromMap(raw map[string]interface{}) (*Rule, error) {
	rule := &Rule{Phase: PhaseMain}

	if v, ok := raw["uuid"]; ok && v != nil {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("rule uuid must be a string, got %T", v)
		}
		rule.UUID = s
	}
	if v, ok := raw["priority"]; ok && v != nil {
		p, err := toInt(v)
		if err != nil {
			return nil, fmt.Errorf("rule priority: %w", err)
		}
		rule.Priority = p
	}
	if v, ok := raw["description"]; ok && v != nil {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("rule description must be a string, got %T", v)
		}
		rule.Description = s
	}
	if v, ok := raw["phase"]; ok && v != nil {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("rule phase must be a string, got %T", v)
		}
		rule.Phase = Phase(s)
	}
	if v, ok := raw["sensitive"]; ok && v != nil {
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("rule sensitive must be a boolean, got %T", v)
		}
		rule.Sensitive = b
	}

	conditions, err := conditionsFromRaw(raw["conditions"])
	if err != nil {
		return nil, err
	}
	rule.Conditions = conditions

	actions, err := actionsFromRaw(raw["actions"])
	if err != nil {
		return nil, err
	}
	rule.Actions = actions

	return rule, nil
}

func conditionsFromRaw(raw interface{}) ([]*Condition, error) {
	if raw == nil {
		return nil, nil
	}
	seq, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("rule conditions must be a sequence, got %T", raw)
	}
	conditions := make([]*Condition, 0, len(seq))
	for i, item := range seq {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("condition %d must be a mapping, got %T", i, item)
		}
		cond := &Condition{Multiple: MultipleAny}
		if v, ok := m["op"]; ok {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("condition %d op must be a string, got %T", i, v)
			}
			cond.Op = s
		}
		cond.Args = m["args"]
		if v, ok := m["multiple"]; ok && v != nil {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("condition %d multiple must be a string, got %T", i, v)
			}
			cond.Multiple = Multiple(s)
		}
		cond.Loop = m["loop"]
		conditions = append(conditions, cond)
	}
	return conditions, nil
}

func actionsFromRaw(raw interface{}) ([]*Action, error) {
	if raw == nil {
		return nil, nil
	}
	seq, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("rule actions must be a sequence, got %T", raw)
	}
	actions := make([]*Action, 0, len(seq))
	for i, item := range seq {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("action %d must be a mapping, got %T", i, item)
		}
		act := &Action{}
		if v, ok := m["op"]; ok {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("action %d op must be a string, got %T", i, v)
			}
			act.Op = s
		}
		act.Args = m["args"]
		act.Loop = m["loop"]
		actions = append(actions, act)
	}
	return actions, nil
}

func toInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("expected an integer, got %v", n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("expected an integer, got %T", v)
	}
}
