package actions

import (
	"context"
	"errors"
	"fmt"

	"forgeline/anvil/pkg/inspection"
	"forgeline/anvil/pkg/rules/paths"
	"forgeline/anvil/pkg/rules/plugin"
)

// The attribute family mutates (possibly nested) node fields through the
// path resolver; the port-scoped family does the same against a port
// record resolved by its id.

type setAttributeAction struct{}

func (a *setAttributeAction) RequiredArgs() []string  { return []string{"path", "value"} }
func (a *setAttributeAction) OptionalArgs() []string  { return nil }
func (a *setAttributeAction) FormattedArgs() []string { return []string{"value"} }

func (a *setAttributeAction) Validate(args map[string]interface{}) error {
	_, err := stringArg(args, "path")
	return err
}

func (a *setAttributeAction) Execute(ctx context.Context, ec *plugin.ExecContext, args map[string]interface{}) error {
	path, err := stringArg(args, "path")
	if err != nil {
		return err
	}
	return inspection.SetNestedField(ctx, ec.Task.Node, path, args["value"])
}

type extendAttributeAction struct{}

func (a *extendAttributeAction) RequiredArgs() []string  { return []string{"path", "value"} }
func (a *extendAttributeAction) OptionalArgs() []string  { return []string{"unique"} }
func (a *extendAttributeAction) FormattedArgs() []string { return []string{"value"} }

func (a *extendAttributeAction) Validate(args map[string]interface{}) error {
	if _, err := stringArg(args, "path"); err != nil {
		return err
	}
	if unique, ok := args["unique"]; ok {
		if _, isBool := unique.(bool); !isBool {
			return fmt.Errorf("unique must be a boolean, got %T", unique)
		}
	}
	return nil
}

func (a *extendAttributeAction) Execute(ctx context.Context, ec *plugin.ExecContext, args map[string]interface{}) error {
	return extendRecordField(ctx, ec.Task.Node, args)
}

type delAttributeAction struct{}

func (a *delAttributeAction) RequiredArgs() []string  { return []string{"path"} }
func (a *delAttributeAction) OptionalArgs() []string  { return nil }
func (a *delAttributeAction) FormattedArgs() []string { return nil }

func (a *delAttributeAction) Validate(args map[string]interface{}) error {
	_, err := stringArg(args, "path")
	return err
}

func (a *delAttributeAction) Execute(ctx context.Context, ec *plugin.ExecContext, args map[string]interface{}) error {
	path, err := stringArg(args, "path")
	if err != nil {
		return err
	}
	return inspection.DeleteNestedField(ctx, ec.Task.Node, path)
}

type setPortAttributeAction struct{}

func (a *setPortAttributeAction) RequiredArgs() []string {
	return []string{"port_id", "path", "value"}
}
func (a *setPortAttributeAction) OptionalArgs() []string  { return nil }
func (a *setPortAttributeAction) FormattedArgs() []string { return []string{"value"} }

func (a *setPortAttributeAction) Validate(args map[string]interface{}) error {
	return validatePortArgs(args)
}

func (a *setPortAttributeAction) Execute(ctx context.Context, ec *plugin.ExecContext, args map[string]interface{}) error {
	port, path, err := resolvePort(ec, args)
	if err != nil {
		return err
	}
	return inspection.SetNestedField(ctx, port, path, args["value"])
}

type extendPortAttributeAction struct{}

func (a *extendPortAttributeAction) RequiredArgs() []string {
	return []string{"port_id", "path", "value"}
}
func (a *extendPortAttributeAction) OptionalArgs() []string  { return []string{"unique"} }
func (a *extendPortAttributeAction) FormattedArgs() []string { return []string{"value"} }

func (a *extendPortAttributeAction) Validate(args map[string]interface{}) error {
	return validatePortArgs(args)
}

func (a *extendPortAttributeAction) Execute(ctx context.Context, ec *plugin.ExecContext, args map[string]interface{}) error {
	port, _, err := resolvePort(ec, args)
	if err != nil {
		return err
	}
	return extendRecordField(ctx, port, args)
}

type delPortAttributeAction struct{}

func (a *delPortAttributeAction) RequiredArgs() []string  { return []string{"port_id", "path"} }
func (a *delPortAttributeAction) OptionalArgs() []string  { return nil }
func (a *delPortAttributeAction) FormattedArgs() []string { return nil }

func (a *delPortAttributeAction) Validate(args map[string]interface{}) error {
	return validatePortArgs(args)
}

func (a *delPortAttributeAction) Execute(ctx context.Context, ec *plugin.ExecContext, args map[string]interface{}) error {
	port, path, err := resolvePort(ec, args)
	if err != nil {
		return err
	}
	return inspection.DeleteNestedField(ctx, port, path)
}

func validatePortArgs(args map[string]interface{}) error {
	if _, err := stringArg(args, "port_id"); err != nil {
		return err
	}
	_, err := stringArg(args, "path")
	return err
}

func resolvePort(ec *plugin.ExecContext, args map[string]interface{}) (*inspection.Port, string, error) {
	portID, err := stringArg(args, "port_id")
	if err != nil {
		return nil, "", err
	}
	path, err := stringArg(args, "path")
	if err != nil {
		return nil, "", err
	}
	port, err := ec.Task.Port(portID)
	if err != nil {
		return nil, "", err
	}
	return port, path, nil
}

func extendRecordField(ctx context.Context, rec inspection.Record, args map[string]interface{}) error {
	path, err := stringArg(args, "path")
	if err != nil {
		return err
	}

	current, err := inspection.GetNestedField(rec, path)
	if err != nil {
		var nf *paths.NotFoundError
		if !errors.As(err, &nf) {
			return err
		}
		current = nil
	}

	list, err := extendList(current, args["value"], boolArg(args, "unique"))
	if err != nil {
		return fmt.Errorf("path %q: %w", path, err)
	}
	return inspection.SetNestedField(ctx, rec, path, list)
}
