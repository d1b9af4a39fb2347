package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

const defaultConfigPath = "nexus-gateway.yaml"

// buildRootCmd creates the root command with all subcommands attached.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "nexus-gateway",
		Short: "Nexus Gateway - conversational broker between operators and LLM providers",
		Long: `Nexus Gateway runs a single operator's chat session against a configured
LLM provider chain, with tool execution, prompt caching, and a hybrid
lexical+dense knowledge store backing every turn.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildStartCmd(),
		buildMigrateCmd(),
		buildDoctorCmd(),
	)
	return rootCmd
}

// buildStartCmd creates the "start" command that runs the gateway's operator
// REPL until interrupted.
func buildStartCmd() *cobra.Command {
	var configPath string
	var debug bool

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the gateway's operator session loop",
		Long: `Start the gateway.

The process will:
1. Load configuration from the specified file (or nexus-gateway.yaml).
2. Open the embedded store and run pending migrations.
3. Initialize the configured LLM provider chain and circuit breaker.
4. Initialize the knowledge engine and content registry.
5. Start the reflection scheduler.
6. Read operator turns from stdin until EOF or SIGINT/SIGTERM.`,
		Example: `  # Start with default config
  nexus-gateway start

  # Start with a custom config
  nexus-gateway start --config /etc/nexus-gateway/production.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd, resolveConfigPath(configPath), debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

// buildMigrateCmd creates the "migrate" command.
func buildMigrateCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and report schema status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd, resolveConfigPath(configPath))
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to YAML configuration file")
	return cmd
}

// buildDoctorCmd creates the "doctor" command.
func buildDoctorCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Validate configuration and environment without starting the gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd, resolveConfigPath(configPath))
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to YAML configuration file")
	return cmd
}

func resolveConfigPath(path string) string {
	if path != "" && path != defaultConfigPath {
		return path
	}
	if fromEnv := strings.TrimSpace(os.Getenv("NEXUS_GATEWAY_CONFIG")); fromEnv != "" {
		return fromEnv
	}
	if path == "" {
		return defaultConfigPath
	}
	return path
}
