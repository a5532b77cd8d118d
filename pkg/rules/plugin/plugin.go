package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"forgeline/anvil/pkg/inspection"
	"forgeline/anvil/pkg/rules/paths"
)

// pluginDataSuffix marks ops that receive the plugin-data accumulator
// injected into their arguments at execution time.
const pluginDataSuffix = "-plugin-data"

// ArgSpec declares a plugin's parameters.
type ArgSpec interface {
	// RequiredArgs returns required parameter names in positional order.
	RequiredArgs() []string

	// OptionalArgs returns optional parameter names. The slice order is
	// the positional binding order for sequence-form arguments.
	OptionalArgs() []string

	// FormattedArgs returns the parameter names whose string values are
	// interpolated before invocation.
	FormattedArgs() []string
}

// Spec is the embeddable ArgSpec implementation used by every plugin.
type Spec struct {
	Required  []string
	Optional  []string
	Formatted []string
}

// RequiredArgs returns required parameter names in positional order.
func (s Spec) RequiredArgs() []string { return s.Required }

// OptionalArgs returns optional parameter names in positional order.
func (s Spec) OptionalArgs() []string { return s.Optional }

// FormattedArgs returns interpolation-eligible parameter names.
func (s Spec) FormattedArgs() []string { return s.Formatted }

// ExecContext bundles everything a plugin invocation may touch: the task
// being inspected, read views over inventory and plugin data (masked or
// not, per engine policy), and the raw plugin-data accumulator for
// writes.
type ExecContext struct {
	Task *inspection.Task

	// Inventory is the read view over hardware inventory. Read-only for
	// the whole pass.
	Inventory paths.Getter

	// PluginData is the raw accumulator actions mutate.
	PluginData map[string]interface{}

	// PluginDataView is the read view over PluginData, masked when the
	// engine's policy says so.
	PluginDataView paths.Getter

	Logger *slog.Logger
}

func (ec *ExecContext) logger() *slog.Logger {
	if ec.Logger == nil {
		return slog.Default()
	}
	return ec.Logger
}

// Operator is a boolean-valued condition plugin.
type Operator interface {
	ArgSpec

	// Validate performs plugin-specific checks on canonically bound args
	// at rule-authoring time. Shape checks (missing/unknown names) are
	// the binder's job, not the plugin's.
	Validate(args map[string]interface{}) error

	// Check evaluates the condition against the execution context.
	Check(ctx context.Context, ec *ExecContext, args map[string]interface{}) (bool, error)
}

// Action is a mutating or side-effecting plugin.
type Action interface {
	ArgSpec

	// Validate performs plugin-specific checks on canonically bound args.
	Validate(args map[string]interface{}) error

	// Execute applies the action's side effects.
	Execute(ctx context.Context, ec *ExecContext, args map[string]interface{}) error
}

// Registry maps op names to implementations. Registration happens at
// startup; lookups are read-only afterwards, so no locking.
type Registry struct {
	operators map[string]Operator
	actions   map[string]Action
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		operators: make(map[string]Operator),
		actions:   make(map[string]Action),
	}
}

// RegisterOperator adds a condition plugin. Duplicate names panic: two
// plugins claiming one name is a programming error caught at startup.
func (r *Registry) RegisterOperator(name string, op Operator) {
	if _, exists := r.operators[name]; exists {
		panic(fmt.Sprintf("operator %q registered twice", name))
	}
	r.operators[name] = op
}

// RegisterAction adds an action plugin. Duplicate names panic.
func (r *Registry) RegisterAction(name string, act Action) {
	if _, exists := r.actions[name]; exists {
		panic(fmt.Sprintf("action %q registered twice", name))
	}
	r.actions[name] = act
}

// Operator resolves a condition plugin by name.
func (r *Registry) Operator(name string) (Operator, bool) {
	op, ok := r.operators[name]
	return op, ok
}

// Action resolves an action plugin by name.
func (r *Registry) Action(name string) (Action, bool) {
	act, ok := r.actions[name]
	return act, ok
}

// OperatorNames returns all registered operator names, sorted.
func (r *Registry) OperatorNames() []string {
	names := make([]string, 0, len(r.operators))
	for name := range r.operators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ActionNames returns all registered action names, sorted.
func (r *Registry) ActionNames() []string {
	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WantsPluginData reports whether an op name follows the plugin-data
// convention and should receive the accumulator at execution time.
func WantsPluginData(name string) bool {
	return strings.HasSuffix(name, pluginDataSuffix)
}
