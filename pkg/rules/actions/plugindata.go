package actions

import (
	"context"
	"errors"
	"fmt"

	"forgeline/anvil/pkg/rules/paths"
	"forgeline/anvil/pkg/rules/plugin"
)

// The plugin-data family mirrors the attribute family but targets the
// ephemeral accumulator instead of the node record. Per the plugin-data
// naming convention the accumulator arrives injected as the plugin_data
// argument at execution time.

func accumulator(ec *plugin.ExecContext, args map[string]interface{}) (map[string]interface{}, error) {
	if pd, ok := args["plugin_data"].(map[string]interface{}); ok {
		return pd, nil
	}
	if ec.PluginData != nil {
		return ec.PluginData, nil
	}
	return nil, fmt.Errorf("plugin data not available")
}

type setPluginDataAction struct{}

func (a *setPluginDataAction) RequiredArgs() []string  { return []string{"path", "value"} }
func (a *setPluginDataAction) OptionalArgs() []string  { return nil }
func (a *setPluginDataAction) FormattedArgs() []string { return []string{"value"} }

func (a *setPluginDataAction) Validate(args map[string]interface{}) error {
	_, err := stringArg(args, "path")
	return err
}

func (a *setPluginDataAction) Execute(_ context.Context, ec *plugin.ExecContext, args map[string]interface{}) error {
	pd, err := accumulator(ec, args)
	if err != nil {
		return err
	}
	path, err := stringArg(args, "path")
	if err != nil {
		return err
	}
	return paths.Set(pd, path, args["value"])
}

type extendPluginDataAction struct{}

func (a *extendPluginDataAction) RequiredArgs() []string  { return []string{"path", "value"} }
func (a *extendPluginDataAction) OptionalArgs() []string  { return []string{"unique"} }
func (a *extendPluginDataAction) FormattedArgs() []string { return []string{"value"} }

func (a *extendPluginDataAction) Validate(args map[string]interface{}) error {
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

func (a *extendPluginDataAction) Execute(_ context.Context, ec *plugin.ExecContext, args map[string]interface{}) error {
	pd, err := accumulator(ec, args)
	if err != nil {
		return err
	}
	path, err := stringArg(args, "path")
	if err != nil {
		return err
	}

	current, err := paths.Get(paths.MapGetter(pd), path)
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
	// The extended list is always written back, so a fresh default list
	// created on a miss lands in the tree too.
	return paths.Set(pd, path, list)
}

type unsetPluginDataAction struct{}

func (a *unsetPluginDataAction) RequiredArgs() []string  { return []string{"path"} }
func (a *unsetPluginDataAction) OptionalArgs() []string  { return nil }
func (a *unsetPluginDataAction) FormattedArgs() []string { return nil }

func (a *unsetPluginDataAction) Validate(args map[string]interface{}) error {
	_, err := stringArg(args, "path")
	return err
}

func (a *unsetPluginDataAction) Execute(_ context.Context, ec *plugin.ExecContext, args map[string]interface{}) error {
	pd, err := accumulator(ec, args)
	if err != nil {
		return err
	}
	path, err := stringArg(args, "path")
	if err != nil {
		return err
	}
	return paths.Delete(pd, path)
}
