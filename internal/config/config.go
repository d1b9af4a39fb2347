// Package config loads and validates the gateway's YAML configuration: a
// single root Config struct composed of per-concern nested structs,
// unmarshaled with gopkg.in/yaml.v3 and overridable by environment
// variables, following internal/config/config.go's Load/applyDefaults/
// applyEnvOverrides shape.
package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root gateway configuration.
type Config struct {
	Database     DatabaseConfig     `yaml:"database"`
	Workspace    WorkspaceConfig    `yaml:"workspace"`
	Providers    ProvidersConfig    `yaml:"providers"`
	Knowledge    KnowledgeConfig    `yaml:"knowledge"`
	Tools        ToolsConfig        `yaml:"tools"`
	Orchestration OrchestrationConfig `yaml:"orchestration"`
	Content      ContentConfig      `yaml:"content"`
	Logging      LoggingConfig      `yaml:"logging"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// DatabaseConfig configures the embedded SQLite store.
type DatabaseConfig struct {
	Path   string `yaml:"path"`
	Driver string `yaml:"driver"` // "sqlite3" (CGO) or "sqlite" (pure Go)
}

// WorkspaceConfig configures where a ghost's workspace files (inbox,
// private notes, reference imports) live on disk.
type WorkspaceConfig struct {
	Root string `yaml:"root"`
}

// ProvidersConfig configures every LLM provider adapter and the default
// failover chain used when a chat request doesn't override it.
type ProvidersConfig struct {
	Anthropic    AnthropicProviderConfig `yaml:"anthropic"`
	OpenAI       OpenAIProviderConfig    `yaml:"openai"`
	DefaultChain []string                `yaml:"default_chain"`
}

type AnthropicProviderConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Alias      string        `yaml:"alias"`
	APIKey     string        `yaml:"api_key"`
	BaseURL    string        `yaml:"base_url"`
	Model      string        `yaml:"model"`
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
	MaxTokens  int           `yaml:"max_tokens"`
}

type OpenAIProviderConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Alias      string        `yaml:"alias"`
	APIKey     string        `yaml:"api_key"`
	BaseURL    string        `yaml:"base_url"`
	Model      string        `yaml:"model"`
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
	MaxTokens  int           `yaml:"max_tokens"`
}

// KnowledgeConfig configures the hybrid search engine and its embedder.
type KnowledgeConfig struct {
	ReconcileInterval time.Duration   `yaml:"reconcile_interval"`
	Embedder          EmbedderConfig  `yaml:"embedder"`
}

type EmbedderConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Provider  string `yaml:"provider"` // "remote" or "local"
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
}

// ToolsConfig configures the chat and reflection tool managers.
type ToolsConfig struct {
	SkillPaths []string `yaml:"skill_paths"`
}

// OrchestrationConfig configures the control-command gateway and the
// reflection scheduler.
type OrchestrationConfig struct {
	MaxSteps         int           `yaml:"max_steps"`
	ExtraSteps       int           `yaml:"extra_steps"`
	ReflectionCron   string        `yaml:"reflection_cron"`
	ReflectionCooldown time.Duration `yaml:"reflection_cooldown"`
}

// ContentConfig configures the message/prompt bundle registry.
type ContentConfig struct {
	OverrideDir string `yaml:"override_dir"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug|info|warn|error
	Format string `yaml:"format"` // "json" or "text"
}

// ObservabilityConfig configures Prometheus metrics and OTel tracing.
type ObservabilityConfig struct {
	MetricsEnabled bool   `yaml:"metrics_enabled"`
	MetricsAddr    string `yaml:"metrics_addr"`

	TraceEndpoint  string  `yaml:"trace_endpoint"`
	TraceSampling  float64 `yaml:"trace_sampling"`
	TraceInsecure  bool    `yaml:"trace_insecure"`
}

// Load reads, parses, env-overrides, defaults, and validates the config file
// at path. Fails closed on anything malformed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	decoder := yaml.NewDecoder(strings.NewReader(expanded))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := decoder.Decode(new(struct{})); err != io.EOF {
		return nil, fmt.Errorf("config: %s: expected a single YAML document", path)
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite3"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "nexus-gateway.db"
	}
	if cfg.Workspace.Root == "" {
		cfg.Workspace.Root = "."
	}

	if cfg.Providers.Anthropic.Alias == "" {
		cfg.Providers.Anthropic.Alias = "anthropic-primary"
	}
	if cfg.Providers.Anthropic.Model == "" {
		cfg.Providers.Anthropic.Model = "claude-sonnet-4-5"
	}
	if cfg.Providers.OpenAI.Alias == "" {
		cfg.Providers.OpenAI.Alias = "openai-fallback"
	}
	if cfg.Providers.OpenAI.Model == "" {
		cfg.Providers.OpenAI.Model = "gpt-4o"
	}
	if len(cfg.Providers.DefaultChain) == 0 {
		var chain []string
		if cfg.Providers.Anthropic.Enabled {
			chain = append(chain, cfg.Providers.Anthropic.Alias)
		}
		if cfg.Providers.OpenAI.Enabled {
			chain = append(chain, cfg.Providers.OpenAI.Alias)
		}
		cfg.Providers.DefaultChain = chain
	}

	if cfg.Knowledge.ReconcileInterval == 0 {
		cfg.Knowledge.ReconcileInterval = 10 * time.Minute
	}

	if cfg.Orchestration.MaxSteps == 0 {
		cfg.Orchestration.MaxSteps = 25
	}
	if cfg.Orchestration.ExtraSteps == 0 {
		cfg.Orchestration.ExtraSteps = 5
	}
	if cfg.Orchestration.ReflectionCron == "" {
		cfg.Orchestration.ReflectionCron = "@every 30m"
	}
	if cfg.Orchestration.ReflectionCooldown == 0 {
		cfg.Orchestration.ReflectionCooldown = 30 * time.Minute
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Observability.MetricsAddr == "" {
		cfg.Observability.MetricsAddr = ":9090"
	}
	if cfg.Observability.TraceSampling == 0 {
		cfg.Observability.TraceSampling = 1.0
	}
}

func applyEnvOverrides(cfg *Config) {
	if value := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); value != "" {
		cfg.Providers.Anthropic.APIKey = value
	}
	if value := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); value != "" {
		cfg.Providers.OpenAI.APIKey = value
	}
	if value := strings.TrimSpace(os.Getenv("NEXUS_GATEWAY_DB_PATH")); value != "" {
		cfg.Database.Path = value
	}
	if value := strings.TrimSpace(os.Getenv("NEXUS_GATEWAY_WORKSPACE")); value != "" {
		cfg.Workspace.Root = value
	}
	if value := strings.TrimSpace(os.Getenv("NEXUS_GATEWAY_METRICS_ADDR")); value != "" {
		cfg.Observability.MetricsAddr = value
	}
	if value := strings.TrimSpace(os.Getenv("NEXUS_GATEWAY_LOG_LEVEL")); value != "" {
		cfg.Logging.Level = value
	}
}

// ValidationError collects every problem found in one validation pass, so a
// misconfigured file reports all its issues instead of just the first.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return "config: validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}

func validate(cfg *Config) error {
	var issues []string

	if cfg.Database.Driver != "sqlite3" && cfg.Database.Driver != "sqlite" {
		issues = append(issues, fmt.Sprintf("database.driver: unknown driver %q", cfg.Database.Driver))
	}
	if !cfg.Providers.Anthropic.Enabled && !cfg.Providers.OpenAI.Enabled {
		issues = append(issues, "providers: at least one of anthropic or openai must be enabled")
	}
	if cfg.Providers.Anthropic.Enabled && strings.TrimSpace(cfg.Providers.Anthropic.APIKey) == "" {
		issues = append(issues, "providers.anthropic: api_key is required when enabled")
	}
	if cfg.Providers.OpenAI.Enabled && strings.TrimSpace(cfg.Providers.OpenAI.APIKey) == "" {
		issues = append(issues, "providers.openai: api_key is required when enabled")
	}
	for _, alias := range cfg.Providers.DefaultChain {
		if alias != cfg.Providers.Anthropic.Alias && alias != cfg.Providers.OpenAI.Alias {
			issues = append(issues, fmt.Sprintf("providers.default_chain: unknown alias %q", alias))
		}
	}
	if cfg.Knowledge.Embedder.Enabled {
		if cfg.Knowledge.Embedder.Provider != "remote" && cfg.Knowledge.Embedder.Provider != "local" {
			issues = append(issues, fmt.Sprintf("knowledge.embedder.provider: unknown provider %q", cfg.Knowledge.Embedder.Provider))
		}
	}
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		issues = append(issues, fmt.Sprintf("logging.level: unknown level %q", cfg.Logging.Level))
	}

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}

// ParsePort extracts the numeric port from a ":port" or "host:port" address,
// used by the doctor command to report what it would bind.
func ParsePort(addr string) (int, error) {
	parts := strings.Split(addr, ":")
	return strconv.Atoi(parts[len(parts)-1])
}
