/*
Package server provides the HTTP API for applying inspection rules.

The server exposes three endpoints:

	POST /v1/apply   apply rules to a node's inventory
	GET  /health     liveness check
	GET  /metrics    Prometheus metrics (when a handler is configured)

An apply request carries the node record, its ports, the collected
inventory, and optional plugin data from earlier phases:

	{
	  "node": {"uuid": "...", "driver": "ipmi", ...},
	  "ports": [{"address": "aa:bb:cc:dd:ee:ff"}],
	  "inventory": {"memory_mb": 65536, ...},
	  "plugin_data": {},
	  "phase": "main"
	}

The response returns the mutated node, ports, and accumulated plugin
data. A rule failure aborts the batch and is reported with status 409;
the node's last_error field carries the failure detail.
*/
package server
