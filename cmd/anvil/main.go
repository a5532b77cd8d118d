// Anvil is a rule engine for bare-metal hardware inspection.
//
// It applies operator-defined and built-in rules to the inventory
// collected from a node, setting attributes, capabilities, and traits,
// accumulating plugin data, and failing inspection when hardware does
// not meet expectations.
//
// Usage:
//
//	# Start the daemon with default configuration
//	anvil run
//
//	# Start with a custom configuration file
//	anvil run --config /etc/anvil/config.yaml
//
//	# Validate a rules file before importing it
//	anvil validate --file rules.yaml
//
//	# Manage stored rules
//	anvil rules list
//	anvil rules import --file rules.yaml
//	anvil rules delete <uuid>
//
//	# Show version information
//	anvil version
package main

func main() {
	Execute()
}
