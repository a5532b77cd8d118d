package plugin

import (
	"context"
	"fmt"

	"forgeline/anvil/pkg/rules"
)

// CheckCondition evaluates one rule condition: it resolves the operator
// (honoring the inversion marker), binds arguments, expands the loop, and
// aggregates per-iteration verdicts per the condition's multiple mode.
func CheckCondition(ctx context.Context, reg *Registry, ec *ExecContext, cond *rules.Condition) (bool, error) {
	opName, inverted, err := ParseInverted(cond.Op)
	if err != nil {
		return false, err
	}

	op, ok := reg.Operator(opName)
	if !ok {
		return false, fmt.Errorf("unknown condition op: %q", opName)
	}

	base, err := BindArgs(op, cond.Args)
	if err != nil {
		return false, fmt.Errorf("condition %q: %w", cond.Op, err)
	}

	iterations, err := LoopIterations(cond.Loop, base)
	if err != nil {
		return false, fmt.Errorf("condition %q: %w", cond.Op, err)
	}

	multiple := cond.Multiple
	if multiple == "" {
		multiple = rules.MultipleAny
	}

	result := false
	for _, iterArgs := range iterations {
		args := interpolateArgs(ec, op, iterArgs)
		if WantsPluginData(opName) {
			args["plugin_data"] = ec.PluginData
		}

		verdict, err := op.Check(ctx, ec, args)
		if err != nil {
			return false, fmt.Errorf("condition %q failed: %w", cond.Op, err)
		}

		switch multiple {
		case rules.MultipleAny, rules.MultipleFirst:
			if verdict {
				return invert(true, inverted), nil
			}
			result = false
		case rules.MultipleAll:
			if !verdict {
				return invert(false, inverted), nil
			}
			result = true
		case rules.MultipleLast:
			result = verdict
		default:
			return false, fmt.Errorf("condition %q: unknown multiple mode %q", cond.Op, multiple)
		}
	}

	return invert(result, inverted), nil
}

// ExecuteAction runs one rule action. Loop iterations all execute; a
// failing iteration aborts the rest and propagates its error.
func ExecuteAction(ctx context.Context, reg *Registry, ec *ExecContext, act *rules.Action) error {
	op, ok := reg.Action(act.Op)
	if !ok {
		return fmt.Errorf("unknown action op: %q", act.Op)
	}

	base, err := BindArgs(op, act.Args)
	if err != nil {
		return fmt.Errorf("action %q: %w", act.Op, err)
	}

	iterations, err := LoopIterations(act.Loop, base)
	if err != nil {
		return fmt.Errorf("action %q: %w", act.Op, err)
	}

	for _, iterArgs := range iterations {
		args := interpolateArgs(ec, op, iterArgs)
		if WantsPluginData(act.Op) {
			args["plugin_data"] = ec.PluginData
		}

		if err := op.Execute(ctx, ec, args); err != nil {
			return fmt.Errorf("action %q failed: %w", act.Op, err)
		}
	}
	return nil
}

// LoopIterations expands a loop into per-iteration argument maps. Without
// a loop the plugin runs once with the base args. A sequence loop runs
// once per element: mapping elements override the base args, any other
// element binds as item. A mapping loop is one iteration with the whole
// mapping bound as item.
func LoopIterations(loop interface{}, base map[string]interface{}) ([]map[string]interface{}, error) {
	switch l := loop.(type) {
	case nil:
		return []map[string]interface{}{base}, nil

	case map[string]interface{}:
		iter := copyArgs(base)
		iter["item"] = l
		return []map[string]interface{}{iter}, nil

	case []interface{}:
		iterations := make([]map[string]interface{}, 0, len(l))
		for _, elem := range l {
			iter := copyArgs(base)
			if m, ok := elem.(map[string]interface{}); ok {
				for k, v := range m {
					iter[k] = v
				}
			} else {
				iter["item"] = elem
			}
			iterations = append(iterations, iter)
		}
		return iterations, nil

	default:
		return nil, fmt.Errorf("loop must be a sequence or a mapping, got %T", loop)
	}
}

func copyArgs(args map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(args)+1)
	for k, v := range args {
		out[k] = v
	}
	return out
}

func invert(verdict, inverted bool) bool {
	if inverted {
		return !verdict
	}
	return verdict
}
