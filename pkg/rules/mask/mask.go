// Package mask provides read-through views over mapping and sequence data
// that substitute a fixed redaction marker for configured sensitive keys.
//
// Views wrap nested containers lazily as they are accessed, so arbitrarily
// deep structures are masked without copying. Writes are applied to the
// underlying data unredacted, and masking can be toggled on a live view
// without rebuilding it.
package mask

import "sync"

// Marker is the fixed redaction marker substituted for sensitive values.
const Marker = "******"

// State is the shared on/off toggle for a family of views. All views
// created from the same State observe toggles immediately.
type State struct {
	mu      sync.RWMutex
	enabled bool
	fields  map[string]struct{}
}

// NewState creates a masking state for the given sensitive field names.
// Masking starts enabled.
func NewState(sensitiveFields []string) *State {
	fields := make(map[string]struct{}, len(sensitiveFields))
	for _, f := range sensitiveFields {
		fields[f] = struct{}{}
	}
	return &State{enabled: true, fields: fields}
}

// Enable turns masking on.
func (s *State) Enable() {
	s.mu.Lock()
	s.enabled = true
	s.mu.Unlock()
}

// Disable turns masking off. Underlying data is never modified either way.
func (s *State) Disable() {
	s.mu.Lock()
	s.enabled = false
	s.mu.Unlock()
}

// Enabled reports whether masking is currently on.
func (s *State) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

func (s *State) sensitive(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.enabled {
		return false
	}
	_, ok := s.fields[key]
	return ok
}

// Map is a read-through masking view over a map.
type Map struct {
	data  map[string]interface{}
	state *State
}

// NewMap wraps data in a masking view governed by state.
func NewMap(data map[string]interface{}, state *State) *Map {
	return &Map{data: data, state: state}
}

// Lookup returns the (possibly redacted) value for key and whether the key
// exists. Nested containers are wrapped lazily.
func (m *Map) Lookup(key string) (interface{}, bool) {
	v, ok := m.data[key]
	if !ok {
		return nil, false
	}
	if m.state.sensitive(key) {
		return Marker, true
	}
	return m.wrap(v), true
}

// Get returns the value for key, or nil when absent.
func (m *Map) Get(key string) interface{} {
	v, _ := m.Lookup(key)
	return v
}

// Contains reports whether the view has the given key.
func (m *Map) Contains(key string) bool {
	_, ok := m.data[key]
	return ok
}

// Len returns the number of entries.
func (m *Map) Len() int {
	return len(m.data)
}

// Keys returns the view's keys in unspecified order.
func (m *Map) Keys() []string {
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	return keys
}

// Iterate calls fn for every entry with the masked value. Iteration stops
// when fn returns false.
func (m *Map) Iterate(fn func(key string, value interface{}) bool) {
	for k := range m.data {
		v, _ := m.Lookup(k)
		if !fn(k, v) {
			return
		}
	}
}

// Set writes through to the underlying data, unredacted.
func (m *Map) Set(key string, value interface{}) {
	m.data[key] = value
}

// Unwrap returns the underlying, unmasked data.
func (m *Map) Unwrap() map[string]interface{} {
	return m.data
}

func (m *Map) wrap(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return &Map{data: t, state: m.state}
	case []interface{}:
		return &List{data: t, state: m.state}
	default:
		return v
	}
}

// List is a read-through masking view over a sequence. Sequences carry no
// keys of their own; the view exists so nested maps inside them are masked
// on access.
type List struct {
	data  []interface{}
	state *State
}

// NewList wraps data in a masking view governed by state.
func NewList(data []interface{}, state *State) *List {
	return &List{data: data, state: state}
}

// Len returns the number of elements.
func (l *List) Len() int {
	return len(l.data)
}

// Index returns the element at i, wrapping nested containers.
func (l *List) Index(i int) interface{} {
	return (&Map{state: l.state}).wrap(l.data[i])
}

// Iterate calls fn for every element. Iteration stops when fn returns
// false.
func (l *List) Iterate(fn func(i int, value interface{}) bool) {
	for i := range l.data {
		if !fn(i, l.Index(i)) {
			return
		}
	}
}

// Unwrap returns the underlying, unmasked data.
func (l *List) Unwrap() []interface{} {
	return l.data
}
