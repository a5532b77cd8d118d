// Package errors provides the aggregating error type used by rule
// validation. Validation reports every problem it finds in one pass
// instead of failing on the first, so a rule author can fix a rule in one
// round trip.
package errors

import (
	"fmt"
	"strings"
)

// Type categorizes a validation problem.
type Type string

const (
	// TypeSchema is a shape violation: wrong type, unknown key, missing
	// required field.
	TypeSchema Type = "schema"

	// TypeSemantic is a meaning violation: unknown phase, priority out of
	// range, unresolvable op.
	TypeSemantic Type = "semantic"

	// TypePlugin is a violation reported by an individual operator or
	// action, such as a malformed regex or subnet.
	TypePlugin Type = "plugin"
)

// Error is a single validation problem.
type Error struct {
	Type    Type
	Message string

	// Op names the condition or action plugin the problem belongs to,
	// when there is one.
	Op string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Type, e.Op, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// List accumulates validation problems.
type List struct {
	Errors []*Error
}

// NewList creates an empty error list.
func NewList() *List {
	return &List{}
}

// Add appends a problem to the list.
func (l *List) Add(t Type, format string, args ...interface{}) {
	l.Errors = append(l.Errors, &Error{Type: t, Message: fmt.Sprintf(format, args...)})
}

// AddForOp appends a problem attributed to a plugin.
func (l *List) AddForOp(t Type, op, format string, args ...interface{}) {
	l.Errors = append(l.Errors, &Error{Type: t, Op: op, Message: fmt.Sprintf(format, args...)})
}

// Append merges another error into the list. A *List argument is
// flattened; a *Error is appended; anything else becomes a plugin-typed
// entry.
func (l *List) Append(err error) {
	switch e := err.(type) {
	case nil:
	case *List:
		l.Errors = append(l.Errors, e.Errors...)
	case *Error:
		l.Errors = append(l.Errors, e)
	default:
		l.Errors = append(l.Errors, &Error{Type: TypePlugin, Message: err.Error()})
	}
}

// HasErrors reports whether any problem was recorded.
func (l *List) HasErrors() bool {
	return len(l.Errors) > 0
}

// HasType reports whether a problem of the given type was recorded.
func (l *List) HasType(t Type) bool {
	for _, e := range l.Errors {
		if e.Type == t {
			return true
		}
	}
	return false
}

// Error implements the error interface, rendering all problems.
func (l *List) Error() string {
	if len(l.Errors) == 1 {
		return l.Errors[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:", len(l.Errors))
	for _, e := range l.Errors {
		sb.WriteString("\n  - ")
		sb.WriteString(e.Error())
	}
	return sb.String()
}

// ToError returns the list as an error, or nil when it is empty.
func (l *List) ToError() error {
	if !l.HasErrors() {
		return nil
	}
	return l
}
