package source

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"forgeline/anvil/pkg/rules"
	"forgeline/anvil/pkg/rules/plugin"
	"forgeline/anvil/pkg/rules/validator"
)

// MemoryStore is an in-memory Store for tests and ephemeral deployments.
type MemoryStore struct {
	reg *plugin.Registry

	mu      sync.RWMutex
	byUUID  map[string]*rules.Rule
	created map[string]int64
	clock   int64
}

// NewMemoryStore creates an empty in-memory rule store.
func NewMemoryStore(reg *plugin.Registry) *MemoryStore {
	return &MemoryStore{
		reg:     reg,
		byUUID:  make(map[string]*rules.Rule),
		created: make(map[string]int64),
	}
}

// List returns rules matching the filters.
func (s *MemoryStore) List(_ context.Context, f Filters) ([]*rules.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*rules.Rule, 0, len(s.byUUID))
	for _, r := range s.byUUID {
		all = append(all, r)
	}
	return applyFilters(all, s.created, f)
}

// Get returns one rule by UUID.
func (s *MemoryStore) Get(_ context.Context, id string) (*rules.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rule, ok := s.byUUID[id]
	if !ok {
		return nil, &NotFoundError{UUID: id}
	}
	return rule, nil
}

// Create validates and stores a new rule.
func (s *MemoryStore) Create(_ context.Context, raw map[string]interface{}) (*rules.Rule, error) {
	rule, err := validator.Validate(s.reg, raw)
	if err != nil {
		return nil, err
	}
	if rule.UUID == "" {
		rule.UUID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byUUID[rule.UUID]; exists {
		return nil, &ConflictError{UUID: rule.UUID}
	}
	s.byUUID[rule.UUID] = rule
	s.clock++
	s.created[rule.UUID] = time.Now().UnixNano() + s.clock
	return rule, nil
}

// Update validates and replaces an existing rule.
func (s *MemoryStore) Update(_ context.Context, id string, raw map[string]interface{}) (*rules.Rule, error) {
	rule, err := validator.Validate(s.reg, raw)
	if err != nil {
		return nil, err
	}
	rule.UUID = id

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byUUID[id]; !exists {
		return nil, &NotFoundError{UUID: id}
	}
	s.byUUID[id] = rule
	return rule, nil
}

// Delete removes one rule by UUID.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byUUID[id]; !exists {
		return &NotFoundError{UUID: id}
	}
	delete(s.byUUID, id)
	delete(s.created, id)
	return nil
}

// DeleteAll removes every stored rule.
func (s *MemoryStore) DeleteAll(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byUUID = make(map[string]*rules.Rule)
	s.created = make(map[string]int64)
	return nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}
