package inspection

import (
	"context"
	"fmt"
	"strings"
)

// The capability string lives in properties.capabilities as a
// comma-separated list of name:value pairs, e.g.
// "boot_mode:uefi,raid_level:1". Entry order is preserved across edits;
// new capabilities append.

const capabilitiesField = "capabilities"

type capability struct {
	name  string
	value string
}

func parseCapabilities(raw string) []capability {
	var caps []capability
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, _ := strings.Cut(part, ":")
		caps = append(caps, capability{name: name, value: value})
	}
	return caps
}

func formatCapabilities(caps []capability) string {
	parts := make([]string, 0, len(caps))
	for _, c := range caps {
		parts = append(parts, fmt.Sprintf("%s:%s", c.name, c.value))
	}
	return strings.Join(parts, ",")
}

func nodeCapabilities(n *Node) []capability {
	raw, _ := n.Properties[capabilitiesField].(string)
	return parseCapabilities(raw)
}

// SetCapability sets or replaces a named capability in the node's
// capability string and saves the node.
func SetCapability(ctx context.Context, n *Node, name, value string) error {
	caps := nodeCapabilities(n)
	found := false
	for i := range caps {
		if caps[i].name == name {
			caps[i].value = value
			found = true
			break
		}
	}
	if !found {
		caps = append(caps, capability{name: name, value: value})
	}
	return writeCapabilities(ctx, n, caps)
}

// UnsetCapability removes a named capability from the node's capability
// string and saves the node. Removing an absent capability is a no-op.
func UnsetCapability(ctx context.Context, n *Node, name string) error {
	caps := nodeCapabilities(n)
	kept := caps[:0]
	for _, c := range caps {
		if c.name != name {
			kept = append(kept, c)
		}
	}
	return writeCapabilities(ctx, n, kept)
}

// Capability returns the value of a named capability and whether it is
// present.
func Capability(n *Node, name string) (string, bool) {
	for _, c := range nodeCapabilities(n) {
		if c.name == name {
			return c.value, true
		}
	}
	return "", false
}

func writeCapabilities(ctx context.Context, n *Node, caps []capability) error {
	if len(caps) == 0 {
		delete(n.Properties, capabilitiesField)
	} else {
		if n.Properties == nil {
			n.Properties = make(map[string]interface{})
		}
		n.Properties[capabilitiesField] = formatCapabilities(caps)
	}
	if err := n.SetField("properties", n.Properties); err != nil {
		return err
	}
	return n.Save(ctx)
}
