// Package source produces inspection rules for the engine: a persistent
// SQLite-backed store for operator-managed rules, a cached loader for the
// built-in rules file, a filesystem watcher that invalidates that cache,
// and an in-memory store for tests.
package source

import (
	"context"
	"fmt"
	"sort"

	"forgeline/anvil/pkg/rules"
)

// Sort keys accepted by Filters.SortKey.
const (
	SortByPriority  = "priority"
	SortByCreatedAt = "created_at"
	SortByUUID      = "uuid"
)

// Sort directions accepted by Filters.SortDir.
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// Filters narrows and orders a rule listing. The zero value lists every
// rule ordered by priority, highest first.
type Filters struct {
	// Phase keeps only rules of one phase. Empty keeps all.
	Phase rules.Phase

	// Limit caps the result count. Zero means no cap.
	Limit int

	// Marker resumes a paginated listing after the rule with this UUID.
	Marker string

	// SortKey is one of the SortBy constants. Empty means priority.
	SortKey string

	// SortDir is asc or desc. Empty means desc for priority, asc
	// otherwise.
	SortDir string
}

func (f Filters) normalize() (Filters, error) {
	if f.SortKey == "" {
		f.SortKey = SortByPriority
	}
	switch f.SortKey {
	case SortByPriority, SortByCreatedAt, SortByUUID:
	default:
		return f, fmt.Errorf("unknown sort key %q", f.SortKey)
	}
	if f.SortDir == "" {
		if f.SortKey == SortByPriority {
			f.SortDir = SortDesc
		} else {
			f.SortDir = SortAsc
		}
	}
	switch f.SortDir {
	case SortAsc, SortDesc:
	default:
		return f, fmt.Errorf("unknown sort direction %q", f.SortDir)
	}
	if f.Limit < 0 {
		return f, fmt.Errorf("limit must not be negative")
	}
	return f, nil
}

// Store is the management surface for operator-created rules.
type Store interface {
	// List returns rules matching the filters.
	List(ctx context.Context, f Filters) ([]*rules.Rule, error)

	// Get returns one rule by UUID.
	Get(ctx context.Context, uuid string) (*rules.Rule, error)

	// Create validates and persists a rule assembled from a rule-shaped
	// mapping, assigning a UUID when the mapping carries none.
	Create(ctx context.Context, raw map[string]interface{}) (*rules.Rule, error)

	// Update validates and replaces an existing rule.
	Update(ctx context.Context, uuid string, raw map[string]interface{}) (*rules.Rule, error)

	// Delete removes one rule by UUID.
	Delete(ctx context.Context, uuid string) error

	// DeleteAll removes every stored rule.
	DeleteAll(ctx context.Context) error

	// Close releases store resources.
	Close() error
}

// NotFoundError reports a rule UUID the store does not hold.
type NotFoundError struct {
	UUID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("rule %s not found", e.UUID)
}

// ConflictError reports a create with a UUID the store already holds.
type ConflictError struct {
	UUID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("rule %s already exists", e.UUID)
}

// applyFilters filters, orders, and paginates an in-memory rule slice.
// The SQLite store pushes the same semantics into SQL; the memory store
// and builtin listing use this directly.
func applyFilters(in []*rules.Rule, created map[string]int64, f Filters) ([]*rules.Rule, error) {
	f, err := f.normalize()
	if err != nil {
		return nil, err
	}

	out := make([]*rules.Rule, 0, len(in))
	for _, r := range in {
		if f.Phase != "" && r.Phase != f.Phase {
			continue
		}
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		less := false
		switch f.SortKey {
		case SortByPriority:
			if out[i].Priority != out[j].Priority {
				less = out[i].Priority < out[j].Priority
			} else {
				less = out[i].UUID < out[j].UUID
			}
		case SortByCreatedAt:
			ci, cj := created[out[i].UUID], created[out[j].UUID]
			if ci != cj {
				less = ci < cj
			} else {
				less = out[i].UUID < out[j].UUID
			}
		case SortByUUID:
			less = out[i].UUID < out[j].UUID
		}
		if f.SortDir == SortDesc {
			return !less && !equalByKey(out[i], out[j], created, f.SortKey)
		}
		return less
	})

	if f.Marker != "" {
		idx := -1
		for i, r := range out {
			if r.UUID == f.Marker {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, &NotFoundError{UUID: f.Marker}
		}
		out = out[idx+1:]
	}

	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func equalByKey(a, b *rules.Rule, created map[string]int64, key string) bool {
	switch key {
	case SortByPriority:
		return a.Priority == b.Priority && a.UUID == b.UUID
	case SortByCreatedAt:
		return created[a.UUID] == created[b.UUID] && a.UUID == b.UUID
	default:
		return a.UUID == b.UUID
	}
}
