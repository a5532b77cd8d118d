// Package telemetry groups the observability packages for anvil.
//
// The subpackages implement structured logging with sensitive-value
// redaction (logging) and Prometheus metrics for rule evaluation and
// batch application (metrics). Both are wired up by the run command
// and injected into the engine.
package telemetry
