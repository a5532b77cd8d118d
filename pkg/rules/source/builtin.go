package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"forgeline/anvil/pkg/rules"
	ruleerrors "forgeline/anvil/pkg/rules/errors"
	"forgeline/anvil/pkg/rules/plugin"
	"forgeline/anvil/pkg/rules/validator"
)

// BuiltinLoader reads the operator-provided rules file shipped alongside
// the service. Loaded rules are tagged built-in, which exempts them from
// priority bounds and keeps them out of the management store.
//
// The parsed result is cached and invalidated on file modification time
// changes, so the engine can call Load on every batch without re-parsing.
type BuiltinLoader struct {
	path   string
	reg    *plugin.Registry
	logger *slog.Logger

	mu      sync.Mutex
	cached  []*rules.Rule
	modTime time.Time
	valid   bool
}

// NewBuiltinLoader creates a loader for the rules file at path. An empty
// path disables built-in rules; Load then always returns nil.
func NewBuiltinLoader(path string, reg *plugin.Registry, logger *slog.Logger) *BuiltinLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &BuiltinLoader{path: path, reg: reg, logger: logger}
}

// Path returns the watched rules file path.
func (l *BuiltinLoader) Path() string {
	return l.path
}

// Load returns the built-in rules, re-reading the file only when its
// modification time changed since the last load. A missing file is not
// an error; it simply yields no rules.
func (l *BuiltinLoader) Load(ctx context.Context) ([]*rules.Rule, error) {
	if l.path == "" {
		return nil, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	info, err := os.Stat(l.path)
	if os.IsNotExist(err) {
		l.cached, l.valid = nil, false
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat rules file %q: %w", l.path, err)
	}

	if l.valid && info.ModTime().Equal(l.modTime) {
		return l.cached, nil
	}

	loaded, err := l.loadFile()
	if err != nil {
		return nil, err
	}

	l.cached = loaded
	l.modTime = info.ModTime()
	l.valid = true
	l.logger.Info("loaded built-in rules",
		"path", l.path,
		"rule_count", len(loaded),
	)
	return loaded, nil
}

// Invalidate drops the cache, forcing the next Load to re-read the file.
func (l *BuiltinLoader) Invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.valid = false
}

func (l *BuiltinLoader) loadFile() ([]*rules.Rule, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file %q: %w", l.path, err)
	}

	var raw []map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse rules file %q: %w", l.path, err)
	}

	errs := ruleerrors.NewList()
	loaded := make([]*rules.Rule, 0, len(raw))
	for i, m := range raw {
		rule, err := rules.FromMap(m)
		if err != nil {
			errs.Add(ruleerrors.TypeSchema, "rule %d: %s", i, err.Error())
			continue
		}
		rule.BuiltIn = true
		if err := validator.ValidateRule(l.reg, rule); err != nil {
			errs.Add(ruleerrors.TypeSemantic, "rule %d (%s): %s", i, rule.Ident(), err.Error())
			continue
		}
		loaded = append(loaded, rule)
	}
	if errs.HasErrors() {
		return nil, fmt.Errorf("rules file %q: %w", l.path, errs)
	}
	return loaded, nil
}
