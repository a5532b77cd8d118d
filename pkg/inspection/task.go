package inspection

import "fmt"

// Task bundles the node and its ports for one engine invocation. The
// caller acquired the node lock before building the task and forwards its
// request context to every persistence call.
type Task struct {
	Node  *Node
	Ports []*Port
}

// NewTask builds a task for a node and its ports.
func NewTask(node *Node, ports ...*Port) *Task {
	return &Task{Node: node, Ports: ports}
}

// PortNotFoundError indicates a port-scoped action referenced an unknown
// port id.
type PortNotFoundError struct {
	PortID string
}

// Error returns the error message.
func (e *PortNotFoundError) Error() string {
	return fmt.Sprintf("port not found: %q", e.PortID)
}

// Port looks a port up by UUID or MAC address.
func (t *Task) Port(id string) (*Port, error) {
	for _, p := range t.Ports {
		if p.UUID == id || p.Address == id {
			return p, nil
		}
	}
	return nil, &PortNotFoundError{PortID: id}
}
