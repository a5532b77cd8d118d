package inspection

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Port is a network-port record attached to a node.
type Port struct {
	UUID            string
	Address         string // MAC address
	Name            string
	PhysicalNetwork string

	Extra               map[string]interface{}
	LocalLinkConnection map[string]interface{}

	saver SaveFunc
}

// NewPort creates a port with a fresh UUID and the given MAC address.
func NewPort(address string) *Port {
	return &Port{
		UUID:                uuid.NewString(),
		Address:             address,
		Extra:               make(map[string]interface{}),
		LocalLinkConnection: make(map[string]interface{}),
	}
}

// SetSaver installs the persistence hook invoked by Save.
func (p *Port) SetSaver(fn SaveFunc) {
	p.saver = fn
}

// Save persists the port through the installed hook.
func (p *Port) Save(ctx context.Context) error {
	if p.saver == nil {
		return nil
	}
	return p.saver(ctx)
}

// Field returns a top-level port field by its wire name.
func (p *Port) Field(name string) (interface{}, bool) {
	switch name {
	case "uuid":
		return p.UUID, true
	case "address":
		return p.Address, true
	case "name":
		return p.Name, true
	case "physical_network":
		return p.PhysicalNetwork, true
	case "extra":
		return p.Extra, true
	case "local_link_connection":
		return p.LocalLinkConnection, true
	default:
		return nil, false
	}
}

// SetField assigns a top-level port field. The uuid is read-only.
func (p *Port) SetField(name string, value interface{}) error {
	switch name {
	case "address":
		return setString(&p.Address, name, value)
	case "name":
		return setString(&p.Name, name, value)
	case "physical_network":
		return setString(&p.PhysicalNetwork, name, value)
	case "extra":
		return setMap(&p.Extra, name, value)
	case "local_link_connection":
		return setMap(&p.LocalLinkConnection, name, value)
	case "uuid":
		return fmt.Errorf("port field %q is read-only", name)
	default:
		return fmt.Errorf("unknown port field: %q", name)
	}
}

// DeleteField clears a top-level port field.
func (p *Port) DeleteField(name string) error {
	switch name {
	case "address", "name", "physical_network":
		return p.SetField(name, "")
	case "extra", "local_link_connection":
		return p.SetField(name, map[string]interface{}{})
	default:
		return fmt.Errorf("cannot delete port field: %q", name)
	}
}
