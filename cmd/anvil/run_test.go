package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRunDryRun(t *testing.T) {
	useTempStore(t)

	runFlags.dryRun = true
	defer func() { runFlags.dryRun = false }()

	var buf bytes.Buffer
	runCmd.SetOut(&buf)
	defer runCmd.SetOut(nil)

	if err := runDaemon(runCmd, nil); err != nil {
		t.Fatalf("runDaemon dry run: %v", err)
	}
	if !strings.Contains(buf.String(), "Configuration valid") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestRunBadConfig(t *testing.T) {
	useTempStore(t)

	runFlags.dryRun = true
	runFlags.logLevel = "loud"
	defer func() {
		runFlags.dryRun = false
		runFlags.logLevel = ""
	}()

	if err := runDaemon(runCmd, nil); err == nil {
		t.Error("runDaemon with bad log level should return error")
	}
}
