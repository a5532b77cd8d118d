package main

import (
	"runtime"
	"testing"
)

func TestVersionCommandExists(t *testing.T) {
	if versionCmd == nil {
		t.Fatal("versionCmd is nil")
	}
	if versionCmd.Use != "version" {
		t.Errorf("versionCmd.Use = %q, want %q", versionCmd.Use, "version")
	}
	if versionCmd.Short == "" {
		t.Error("versionCmd.Short should not be empty")
	}
	if versionCmd.Run == nil {
		t.Error("versionCmd.Run should not be nil")
	}
}

func TestRootCommandWiring(t *testing.T) {
	names := make(map[string]bool)
	for _, sub := range rootCmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"version", "validate", "rules", "run"} {
		if !names[want] {
			t.Errorf("root command is missing subcommand %q", want)
		}
	}
}

func TestRuntimeInfo(t *testing.T) {
	if runtime.Version() == "" {
		t.Error("runtime.Version() should not be empty")
	}
}
