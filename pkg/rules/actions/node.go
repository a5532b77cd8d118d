package actions

import (
	"context"
	"log/slog"

	"forgeline/anvil/pkg/inspection"
	"forgeline/anvil/pkg/rules/plugin"
)

// Capability and trait actions edit node-level markers rather than
// arbitrary fields.

type setCapabilityAction struct{}

func (a *setCapabilityAction) RequiredArgs() []string  { return []string{"name", "value"} }
func (a *setCapabilityAction) OptionalArgs() []string  { return nil }
func (a *setCapabilityAction) FormattedArgs() []string { return []string{"value"} }

func (a *setCapabilityAction) Validate(args map[string]interface{}) error {
	_, err := stringArg(args, "name")
	return err
}

func (a *setCapabilityAction) Execute(ctx context.Context, ec *plugin.ExecContext, args map[string]interface{}) error {
	name, err := stringArg(args, "name")
	if err != nil {
		return err
	}
	return inspection.SetCapability(ctx, ec.Task.Node, name, renderText(args["value"]))
}

type unsetCapabilityAction struct{}

func (a *unsetCapabilityAction) RequiredArgs() []string  { return []string{"name"} }
func (a *unsetCapabilityAction) OptionalArgs() []string  { return nil }
func (a *unsetCapabilityAction) FormattedArgs() []string { return nil }

func (a *unsetCapabilityAction) Validate(args map[string]interface{}) error {
	_, err := stringArg(args, "name")
	return err
}

func (a *unsetCapabilityAction) Execute(ctx context.Context, ec *plugin.ExecContext, args map[string]interface{}) error {
	name, err := stringArg(args, "name")
	if err != nil {
		return err
	}
	return inspection.UnsetCapability(ctx, ec.Task.Node, name)
}

type addTraitAction struct{}

func (a *addTraitAction) RequiredArgs() []string  { return []string{"name"} }
func (a *addTraitAction) OptionalArgs() []string  { return nil }
func (a *addTraitAction) FormattedArgs() []string { return nil }

func (a *addTraitAction) Validate(args map[string]interface{}) error {
	_, err := stringArg(args, "name")
	return err
}

func (a *addTraitAction) Execute(ctx context.Context, ec *plugin.ExecContext, args map[string]interface{}) error {
	name, err := stringArg(args, "name")
	if err != nil {
		return err
	}
	ec.Task.Node.AddTrait(name)
	return ec.Task.Node.Save(ctx)
}

type removeTraitAction struct{}

func (a *removeTraitAction) RequiredArgs() []string  { return []string{"name"} }
func (a *removeTraitAction) OptionalArgs() []string  { return nil }
func (a *removeTraitAction) FormattedArgs() []string { return nil }

func (a *removeTraitAction) Validate(args map[string]interface{}) error {
	_, err := stringArg(args, "name")
	return err
}

func (a *removeTraitAction) Execute(ctx context.Context, ec *plugin.ExecContext, args map[string]interface{}) error {
	name, err := stringArg(args, "name")
	if err != nil {
		return err
	}
	if !ec.Task.Node.RemoveTrait(name) {
		logger := ec.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("trait not present on node, nothing to remove",
			"trait", name,
			"node_uuid", ec.Task.Node.UUID,
		)
		return nil
	}
	return ec.Task.Node.Save(ctx)
}
