// Package plugin defines the shared contract every rule operator and
// action implements: declared argument names, positional/named argument
// binding, string interpolation against the node/inventory/plugin_data
// namespaces, loop execution, and condition inversion.
//
// Operators and actions live in their own registries, populated at
// startup. The engine and the validator both resolve op names through a
// Registry; an unresolvable name is always an error, never a silent skip.
package plugin
