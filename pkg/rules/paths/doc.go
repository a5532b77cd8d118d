// Package paths implements dot- and slash-separated path resolution over
// nested map data, as used by rule operators and actions to address fields
// inside node records, inventory, and plugin data.
//
// Paths come in two equivalent spellings:
//
//	properties.capabilities.boot_mode
//	/properties/capabilities/boot_mode
//
// A path containing a slash is split on slashes (leading and trailing
// slashes are ignored); otherwise it is split on dots. Reads fail when an
// intermediate segment is missing; writes create missing intermediate maps
// on the way down.
package paths
