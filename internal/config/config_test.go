package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "nexus-gateway.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, `
database:
  path: test.db
  extra: true
providers:
  anthropic:
    enabled: true
    api_key: sk-test
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoadAppliesDefaultsAndEnvOverride(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-env")
	path := writeConfig(t, `
providers:
  anthropic:
    enabled: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Providers.Anthropic.APIKey != "sk-env" {
		t.Fatalf("expected env override to win, got %q", cfg.Providers.Anthropic.APIKey)
	}
	if cfg.Database.Driver != "sqlite3" {
		t.Fatalf("expected default driver sqlite3, got %q", cfg.Database.Driver)
	}
	if cfg.Orchestration.MaxSteps != 25 {
		t.Fatalf("expected default max_steps 25, got %d", cfg.Orchestration.MaxSteps)
	}
	if len(cfg.Providers.DefaultChain) != 1 || cfg.Providers.DefaultChain[0] != cfg.Providers.Anthropic.Alias {
		t.Fatalf("expected default chain to include the enabled anthropic alias, got %v", cfg.Providers.DefaultChain)
	}
}

func TestLoadRequiresAtLeastOneProvider(t *testing.T) {
	path := writeConfig(t, `
database:
  path: test.db
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "at least one of anthropic or openai") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadRejectsUnknownChainAlias(t *testing.T) {
	path := writeConfig(t, `
providers:
  anthropic:
    enabled: true
    api_key: sk-test
  default_chain: ["nonexistent"]
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "unknown alias") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParsePort(t *testing.T) {
	port, err := ParsePort(":9090")
	if err != nil || port != 9090 {
		t.Fatalf("got (%d, %v), want (9090, nil)", port, err)
	}
}
