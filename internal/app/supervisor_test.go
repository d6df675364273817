package app

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// quietConfig keeps the runtime self-contained: no control listener, no
// persistence, and intervals long enough that no probe fires during a test.
const quietConfig = `
latency:
  targets: ["127.0.0.1"]
  interval: 1h
  timeout: 1s
throughput:
  urls: ["http://127.0.0.1:1/unused"]
  interval: 1h
control:
  enabled: false
`

func writeSupervisorConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestSupervisorRestartReloadsConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeSupervisorConfig(t, path, quietConfig)

	sup := NewSupervisor(path, testLogger())
	if err := sup.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !sup.Running() {
		t.Fatal("supervisor not running after Start")
	}

	// An edited config takes effect through Restart.
	writeSupervisorConfig(t, path, quietConfig+`
history:
  capacity: 0
`)
	if err := sup.Restart(); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if !sup.Running() {
		t.Fatal("supervisor not running after Restart")
	}
	sup.Stop()
	if sup.Running() {
		t.Fatal("supervisor still running after Stop")
	}
}

func TestSupervisorRestartRejectsBrokenConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeSupervisorConfig(t, path, quietConfig)

	sup := NewSupervisor(path, testLogger())
	if err := sup.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	writeSupervisorConfig(t, path, `
latency:
  interval: 1s
  timeout: 5s
`)
	if err := sup.Restart(); err == nil {
		t.Fatal("Restart accepted a broken config")
	}
	if sup.Running() {
		t.Fatal("supervisor running after failed Restart")
	}
	// Stop after a failed restart must be a clean no-op.
	sup.Stop()
}
