package engine

import (
	"forgeline/anvil/pkg/rules/actions"
	"forgeline/anvil/pkg/rules/operators"
	"forgeline/anvil/pkg/rules/plugin"
)

// NewDefaultRegistry returns a registry preloaded with every built-in
// operator and action.
func NewDefaultRegistry(cfg actions.Config) *plugin.Registry {
	reg := plugin.NewRegistry()
	operators.Register(reg)
	actions.Register(reg, cfg)
	return reg
}
