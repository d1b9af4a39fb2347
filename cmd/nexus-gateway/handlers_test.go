package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"

	gwconfig "github.com/haasonsaas/nexus/internal/config"
)

func writeTestConfig(t *testing.T, dbPath string) string {
	t.Helper()
	dir := t.TempDir()
	workspace := filepath.Join(dir, "workspace")
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		t.Fatalf("mkdir workspace: %v", err)
	}

	contents := `
database:
  path: ` + dbPath + `
  driver: sqlite
workspace:
  root: ` + workspace + `
providers:
  anthropic:
    enabled: true
    api_key: sk-test
observability:
  metrics_enabled: false
`
	path := filepath.Join(dir, "nexus-gateway.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func newTestCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	cmd.SetContext(context.Background())
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	return cmd
}

func TestRunMigrateOpensAndReportsStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "gateway.db")
	configPath := writeTestConfig(t, dbPath)

	cmd := newTestCmd()
	if err := runMigrate(cmd, configPath); err != nil {
		t.Fatalf("runMigrate failed: %v", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected database file to exist: %v", err)
	}
}

func TestRunDoctorReportsWiringSuccess(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "gateway.db")
	configPath := writeTestConfig(t, dbPath)

	cmd := newTestCmd()
	if err := runDoctor(cmd, configPath); err != nil {
		t.Fatalf("runDoctor failed: %v", err)
	}
}

func TestRunDoctorFailsOnMissingConfig(t *testing.T) {
	cmd := newTestCmd()
	if err := runDoctor(cmd, filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestBootstrapSessionCreatesDefaultGhostOnce(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "gateway.db")
	configPath := writeTestConfig(t, dbPath)
	cfg, err := gwconfig.Load(configPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	deps, err := buildGatewayDeps(context.Background(), cfg, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	if err != nil {
		t.Fatalf("buildGatewayDeps: %v", err)
	}
	defer deps.store.Close()
	defer deps.shutdown(context.Background())

	ghostID1, sessionID1, err := bootstrapSession(context.Background(), deps.store)
	if err != nil {
		t.Fatalf("bootstrapSession: %v", err)
	}
	if ghostID1 == "" || sessionID1 == "" {
		t.Fatal("expected non-empty ghost and session ids")
	}

	ghostID2, sessionID2, err := bootstrapSession(context.Background(), deps.store)
	if err != nil {
		t.Fatalf("second bootstrapSession: %v", err)
	}
	if ghostID1 != ghostID2 {
		t.Fatalf("expected repeated bootstrap to reuse ghost %q, got %q", ghostID1, ghostID2)
	}
	if sessionID1 != sessionID2 {
		t.Fatalf("expected repeated bootstrap to reuse active session %q, got %q", sessionID1, sessionID2)
	}
}
