// Package inspection defines the node-side collaborators the rule engine
// acts on: the task bundle handed to an engine invocation, the node and
// port records it mutates, and helpers for nested field access and the
// delimiter-encoded capability string.
//
// The engine assumes the caller already holds an exclusive lock on the
// node; nothing in this package locks.
package inspection
