// Package main provides the CLI entry point for the Nexus conversational
// gateway: a single operator-facing chat loop brokering between human
// operators and hosted LLM providers, backed by an embedded knowledge store.
//
// # Basic Usage
//
// Start the gateway:
//
//	nexus-gateway start --config nexus-gateway.yaml
//
// Run (and report) pending database migrations:
//
//	nexus-gateway migrate
//
// Check configuration and environment health without starting anything:
//
//	nexus-gateway doctor --config nexus-gateway.yaml
//
// # Environment Variables
//
//   - NEXUS_GATEWAY_CONFIG: path to the configuration file (default: nexus-gateway.yaml)
//   - ANTHROPIC_API_KEY: Anthropic API key
//   - OPENAI_API_KEY: OpenAI API key
//   - NEXUS_GATEWAY_DB_PATH: overrides database.path
//   - NEXUS_GATEWAY_WORKSPACE: overrides workspace.root
//   - NEXUS_GATEWAY_METRICS_ADDR: overrides observability.metrics_addr
//   - NEXUS_GATEWAY_LOG_LEVEL: overrides logging.level
package main

import (
	"log/slog"
	"os"
)

// Build information, populated by ldflags during build:
//
//	go build -ldflags "-X main.version=v1.0.0 -X main.commit=$(git rev-parse HEAD) -X main.date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}
