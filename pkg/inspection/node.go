package inspection

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"
)

// Record is the field-addressable contract shared by nodes and ports.
// Top-level fields are accessed by name; nested values inside map-valued
// fields are reached through SetNestedField and friends.
type Record interface {
	// Field returns a top-level field value and whether the name is known.
	Field(name string) (interface{}, bool)

	// SetField assigns a top-level field. Unknown or read-only names fail.
	SetField(name string, value interface{}) error

	// DeleteField clears a top-level field to its zero value.
	DeleteField(name string) error

	// Save persists the record through the owning store.
	Save(ctx context.Context) error
}

// SaveFunc persists a record. A nil SaveFunc makes Save a no-op, which is
// what unit tests and dry runs want.
type SaveFunc func(ctx context.Context) error

// Node is the managed bare-metal node record the engine mutates.
type Node struct {
	UUID           string
	Name           string
	Driver         string
	ProvisionState string
	ResourceClass  string
	LastError      string

	Properties   map[string]interface{}
	Extra        map[string]interface{}
	DriverInfo   map[string]interface{}
	InstanceInfo map[string]interface{}

	Traits []string

	saver SaveFunc
}

// NewNode creates a node with a fresh UUID and initialized map fields.
func NewNode() *Node {
	return &Node{
		UUID:         uuid.NewString(),
		Properties:   make(map[string]interface{}),
		Extra:        make(map[string]interface{}),
		DriverInfo:   make(map[string]interface{}),
		InstanceInfo: make(map[string]interface{}),
	}
}

// SetSaver installs the persistence hook invoked by Save.
func (n *Node) SetSaver(fn SaveFunc) {
	n.saver = fn
}

// Save persists the node through the installed hook.
func (n *Node) Save(ctx context.Context) error {
	if n.saver == nil {
		return nil
	}
	return n.saver(ctx)
}

// Field returns a top-level node field by its wire name.
func (n *Node) Field(name string) (interface{}, bool) {
	switch name {
	case "uuid":
		return n.UUID, true
	case "name":
		return n.Name, true
	case "driver":
		return n.Driver, true
	case "provision_state":
		return n.ProvisionState, true
	case "resource_class":
		return n.ResourceClass, true
	case "last_error":
		return n.LastError, true
	case "properties":
		return n.Properties, true
	case "extra":
		return n.Extra, true
	case "driver_info":
		return n.DriverInfo, true
	case "instance_info":
		return n.InstanceInfo, true
	case "traits":
		return n.Traits, true
	default:
		return nil, false
	}
}

// SetField assigns a top-level node field. The uuid and traits fields are
// read-only here; traits change through AddTrait and RemoveTrait.
func (n *Node) SetField(name string, value interface{}) error {
	switch name {
	case "name":
		return setString(&n.Name, name, value)
	case "driver":
		return setString(&n.Driver, name, value)
	case "provision_state":
		return setString(&n.ProvisionState, name, value)
	case "resource_class":
		return setString(&n.ResourceClass, name, value)
	case "last_error":
		return setString(&n.LastError, name, value)
	case "properties":
		return setMap(&n.Properties, name, value)
	case "extra":
		return setMap(&n.Extra, name, value)
	case "driver_info":
		return setMap(&n.DriverInfo, name, value)
	case "instance_info":
		return setMap(&n.InstanceInfo, name, value)
	case "uuid", "traits":
		return fmt.Errorf("node field %q is read-only", name)
	default:
		return fmt.Errorf("unknown node field: %q", name)
	}
}

// DeleteField clears a top-level node field.
func (n *Node) DeleteField(name string) error {
	switch name {
	case "name", "driver", "provision_state", "resource_class", "last_error":
		return n.SetField(name, "")
	case "properties", "extra", "driver_info", "instance_info":
		return n.SetField(name, map[string]interface{}{})
	default:
		return fmt.Errorf("cannot delete node field: %q", name)
	}
}

// HasTrait reports whether the node carries the named trait.
func (n *Node) HasTrait(name string) bool {
	return slices.Contains(n.Traits, name)
}

// AddTrait attaches a trait to the node. Adding an existing trait is a
// no-op; the returned bool reports whether the trait was newly added.
func (n *Node) AddTrait(name string) bool {
	if n.HasTrait(name) {
		return false
	}
	n.Traits = append(n.Traits, name)
	return true
}

// RemoveTrait detaches a trait. The returned bool reports whether the
// trait was present.
func (n *Node) RemoveTrait(name string) bool {
	i := slices.Index(n.Traits, name)
	if i < 0 {
		return false
	}
	n.Traits = slices.Delete(n.Traits, i, i+1)
	return true
}

func setString(dst *string, name string, value interface{}) error {
	switch v := value.(type) {
	case string:
		*dst = v
	case nil:
		*dst = ""
	default:
		*dst = fmt.Sprintf("%v", v)
	}
	return nil
}

func setMap(dst *map[string]interface{}, name string, value interface{}) error {
	switch v := value.(type) {
	case map[string]interface{}:
		*dst = v
	case nil:
		*dst = map[string]interface{}{}
	default:
		return fmt.Errorf("field %q requires a mapping, got %T", name, value)
	}
	return nil
}
