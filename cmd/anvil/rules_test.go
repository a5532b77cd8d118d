package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// useTempStore points the global config flag at a temp directory store.
func useTempStore(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf("rules:\n  store_path: %s\n", filepath.Join(dir, "rules.db"))
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	orig := cfgFile
	cfgFile = configPath
	t.Cleanup(func() { cfgFile = orig })
}

func TestRulesImportListDelete(t *testing.T) {
	useTempStore(t)

	rulesFlags.file = writeRuleFile(t, "rules.yaml", validRulesYAML)
	var buf bytes.Buffer
	rulesImportCmd.SetOut(&buf)
	defer rulesImportCmd.SetOut(nil)
	if err := importRules(rulesImportCmd, nil); err != nil {
		t.Fatalf("importRules: %v", err)
	}
	if !strings.Contains(buf.String(), "1 rules imported") {
		t.Errorf("import output = %q", buf.String())
	}

	buf.Reset()
	rulesFlags.phase = ""
	rulesFlags.format = "text"
	rulesListCmd.SetOut(&buf)
	defer rulesListCmd.SetOut(nil)
	if err := listRules(rulesListCmd, nil); err != nil {
		t.Fatalf("listRules: %v", err)
	}
	listing := buf.String()
	if !strings.Contains(listing, "tag ipmi nodes") {
		t.Errorf("listing = %q", listing)
	}

	// First listing field is the UUID.
	uuid := strings.Fields(listing)[0]

	buf.Reset()
	rulesDeleteCmd.SetOut(&buf)
	defer rulesDeleteCmd.SetOut(nil)
	if err := deleteRule(rulesDeleteCmd, []string{uuid}); err != nil {
		t.Fatalf("deleteRule: %v", err)
	}

	buf.Reset()
	rulesListCmd.SetOut(&buf)
	if err := listRules(rulesListCmd, nil); err != nil {
		t.Fatalf("listRules after delete: %v", err)
	}
	if !strings.Contains(buf.String(), "no rules stored") {
		t.Errorf("listing after delete = %q", buf.String())
	}
}

func TestRulesImportInvalidRule(t *testing.T) {
	useTempStore(t)

	rulesFlags.file = writeRuleFile(t, "rules.yaml", invalidRulesYAML)
	if err := importRules(rulesImportCmd, nil); err == nil {
		t.Error("importRules with invalid rule should return error")
	}
}

func TestRulesDeleteUnknown(t *testing.T) {
	useTempStore(t)

	if err := deleteRule(rulesDeleteCmd, []string{"b2d9f3a8-0000-0000-0000-000000000000"}); err == nil {
		t.Error("deleteRule for unknown uuid should return error")
	}
}
