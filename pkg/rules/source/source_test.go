package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"forgeline/anvil/pkg/rules"
	"forgeline/anvil/pkg/rules/actions"
	"forgeline/anvil/pkg/rules/operators"
	"forgeline/anvil/pkg/rules/plugin"
)

func newRegistry() *plugin.Registry {
	reg := plugin.NewRegistry()
	operators.Register(reg)
	actions.Register(reg, actions.Config{})
	return reg
}

func rawRule(desc string, priority int, phase string) map[string]interface{} {
	raw := map[string]interface{}{
		"description": desc,
		"priority":    priority,
		"actions": []interface{}{
			map[string]interface{}{
				"op":   "set-attribute",
				"args": map[string]interface{}{"path": "/extra/checked", "value": true},
			},
		},
	}
	if phase != "" {
		raw["phase"] = phase
	}
	return raw
}

// Both store implementations must behave identically.
func testStores(t *testing.T, test func(t *testing.T, store Store)) {
	t.Run("memory", func(t *testing.T) {
		test(t, NewMemoryStore(newRegistry()))
	})
	t.Run("sqlite", func(t *testing.T) {
		store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "rules.db"), newRegistry())
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { store.Close() })
		test(t, store)
	})
}

func TestStoreCreateAndGet(t *testing.T) {
	testStores(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		created, err := store.Create(ctx, rawRule("first", 10, ""))
		if err != nil {
			t.Fatal(err)
		}
		if created.UUID == "" {
			t.Fatal("no uuid assigned")
		}
		if created.Phase != rules.PhaseMain {
			t.Errorf("phase = %q, want default main", created.Phase)
		}

		got, err := store.Get(ctx, created.UUID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Description != "first" || got.Priority != 10 {
			t.Errorf("got %q/%d", got.Description, got.Priority)
		}

		_, err = store.Get(ctx, "missing")
		var nf *NotFoundError
		if !errors.As(err, &nf) {
			t.Errorf("expected NotFoundError, got %v", err)
		}
	})
}

func TestStoreCreateRejectsInvalid(t *testing.T) {
	testStores(t, func(t *testing.T, store Store) {
		raw := rawRule("bad", 10, "")
		raw["actions"] = []interface{}{}
		if _, err := store.Create(context.Background(), raw); err == nil {
			t.Error("actionless rule stored")
		}
	})
}

func TestStoreCreateConflict(t *testing.T) {
	testStores(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		raw := rawRule("dup", 10, "")
		raw["uuid"] = "7f1a8f00-33cd-43a5-a3b1-63e2f1b6c001"

		if _, err := store.Create(ctx, raw); err != nil {
			t.Fatal(err)
		}
		_, err := store.Create(ctx, raw)
		var conflict *ConflictError
		if !errors.As(err, &conflict) {
			t.Errorf("expected ConflictError, got %v", err)
		}
	})
}

func TestStoreListFilters(t *testing.T) {
	testStores(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		for _, spec := range []struct {
			desc     string
			priority int
			phase    string
		}{
			{"low", 10, "main"},
			{"high", 100, "main"},
			{"mid", 50, "post"},
		} {
			if _, err := store.Create(ctx, rawRule(spec.desc, spec.priority, spec.phase)); err != nil {
				t.Fatal(err)
			}
		}

		// Default ordering is by priority, highest first.
		listed, err := store.List(ctx, Filters{})
		if err != nil {
			t.Fatal(err)
		}
		if len(listed) != 3 {
			t.Fatalf("listed %d rules", len(listed))
		}
		for i, want := range []int{100, 50, 10} {
			if listed[i].Priority != want {
				t.Errorf("listed[%d].Priority = %d, want %d", i, listed[i].Priority, want)
			}
		}

		mains, err := store.List(ctx, Filters{Phase: rules.PhaseMain})
		if err != nil {
			t.Fatal(err)
		}
		if len(mains) != 2 {
			t.Errorf("phase filter returned %d rules", len(mains))
		}

		page, err := store.List(ctx, Filters{Marker: listed[0].UUID, Limit: 1})
		if err != nil {
			t.Fatal(err)
		}
		if len(page) != 1 || page[0].Priority != 50 {
			t.Errorf("pagination returned %+v", page)
		}

		if _, err := store.List(ctx, Filters{SortKey: "color"}); err == nil {
			t.Error("unknown sort key accepted")
		}
	})
}

func TestStoreUpdateAndDelete(t *testing.T) {
	testStores(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		created, err := store.Create(ctx, rawRule("before", 10, ""))
		if err != nil {
			t.Fatal(err)
		}

		updated, err := store.Update(ctx, created.UUID, rawRule("after", 20, ""))
		if err != nil {
			t.Fatal(err)
		}
		if updated.UUID != created.UUID {
			t.Error("update changed the uuid")
		}
		got, err := store.Get(ctx, created.UUID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Description != "after" || got.Priority != 20 {
			t.Errorf("got %q/%d after update", got.Description, got.Priority)
		}

		var nf *NotFoundError
		if _, err := store.Update(ctx, "missing", rawRule("x", 1, "")); !errors.As(err, &nf) {
			t.Errorf("expected NotFoundError, got %v", err)
		}

		if err := store.Delete(ctx, created.UUID); err != nil {
			t.Fatal(err)
		}
		if err := store.Delete(ctx, created.UUID); !errors.As(err, &nf) {
			t.Errorf("expected NotFoundError, got %v", err)
		}

		if _, err := store.Create(ctx, rawRule("x", 1, "")); err != nil {
			t.Fatal(err)
		}
		if err := store.DeleteAll(ctx); err != nil {
			t.Fatal(err)
		}
		left, err := store.List(ctx, Filters{})
		if err != nil {
			t.Fatal(err)
		}
		if len(left) != 0 {
			t.Errorf("%d rules left after DeleteAll", len(left))
		}
	})
}

func TestSQLiteStorePersistence(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "rules.db")

	store, err := NewSQLiteStore(dbPath, newRegistry())
	if err != nil {
		t.Fatal(err)
	}
	created, err := store.Create(ctx, rawRule("durable", 42, "post"))
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewSQLiteStore(dbPath, newRegistry())
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	got, err := reopened.Get(ctx, created.UUID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Description != "durable" || got.Priority != 42 || got.Phase != rules.PhasePost {
		t.Errorf("reloaded rule %+v", got)
	}
}

const builtinRules = `
- description: flag virtual nodes
  priority: 100000
  conditions:
    - op: eq
      args:
        values: ["{node.driver}", "fake-hardware"]
  actions:
    - op: set-capability
      args:
        name: virtual
        value: "true"
- description: always log
  actions:
    - op: log
      args:
        msg: inspected
`

func writeRulesFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "rules.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBuiltinLoader(t *testing.T) {
	path := writeRulesFile(t, t.TempDir(), builtinRules)
	loader := NewBuiltinLoader(path, newRegistry(), nil)

	loaded, err := loader.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 2 {
		t.Fatalf("loaded %d rules", len(loaded))
	}
	for _, r := range loaded {
		if !r.BuiltIn {
			t.Errorf("rule %s not tagged built-in", r.Ident())
		}
	}
	// Built-in rules are exempt from priority bounds.
	if loaded[0].Priority != 100000 {
		t.Errorf("priority = %d", loaded[0].Priority)
	}

	// Cached result is returned while the file is unchanged.
	again, err := loader.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if again[0] != loaded[0] {
		t.Error("cache was not served for an unchanged file")
	}
}

func TestBuiltinLoaderInvalidate(t *testing.T) {
	dir := t.TempDir()
	path := writeRulesFile(t, dir, builtinRules)
	loader := NewBuiltinLoader(path, newRegistry(), nil)

	loaded, err := loader.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 2 {
		t.Fatalf("loaded %d rules", len(loaded))
	}

	writeRulesFile(t, dir, `
- description: only one now
  actions:
    - op: log
      args:
        msg: hello
`)
	loader.Invalidate()

	loaded, err = loader.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 1 {
		t.Errorf("loaded %d rules after invalidation", len(loaded))
	}
}

func TestBuiltinLoaderMissingFile(t *testing.T) {
	loader := NewBuiltinLoader(filepath.Join(t.TempDir(), "absent.yaml"), newRegistry(), nil)
	loaded, err := loader.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if loaded != nil {
		t.Errorf("missing file yielded rules: %v", loaded)
	}

	disabled := NewBuiltinLoader("", newRegistry(), nil)
	if loaded, err := disabled.Load(context.Background()); err != nil || loaded != nil {
		t.Errorf("disabled loader: %v, %v", loaded, err)
	}
}

func TestBuiltinLoaderRejectsInvalidFile(t *testing.T) {
	path := writeRulesFile(t, t.TempDir(), `
- description: broken
  actions:
    - op: no-such-action
      args:
        msg: hello
`)
	loader := NewBuiltinLoader(path, newRegistry(), nil)
	if _, err := loader.Load(context.Background()); err == nil {
		t.Error("invalid rules file loaded")
	}
}
