package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/haasonsaas/nexus/internal/chatloop"
	gwconfig "github.com/haasonsaas/nexus/internal/config"
	"github.com/haasonsaas/nexus/internal/content"
	"github.com/haasonsaas/nexus/internal/knowledge"
	"github.com/haasonsaas/nexus/internal/observability"
	"github.com/haasonsaas/nexus/internal/orchestration"
	"github.com/haasonsaas/nexus/internal/promptcache"
	"github.com/haasonsaas/nexus/internal/providers"
	"github.com/haasonsaas/nexus/internal/storage"
	"github.com/haasonsaas/nexus/internal/tools"
	"github.com/haasonsaas/nexus/pkg/models"
)

// defaultOperatorID and defaultGhostName bootstrap a single operator/ghost
// pair for the stdin REPL; a deployment fronting multiple operators would
// authenticate and resolve these per connection instead.
const (
	defaultOperatorID = "operator-default"
	defaultGhostName  = "Nexus"
)

// gatewayDeps holds every subsystem runStart wires together, split out so
// runDoctor can build (and discard) the same graph without starting the
// REPL loop.
type gatewayDeps struct {
	store      *storage.Store
	registry   *providers.Registry
	breaker    *providers.CircuitBreaker
	engine     *knowledge.Engine
	gateway    *orchestration.Gateway
	reflector  *orchestration.Reflector
	metrics    *observability.Metrics
	shutdown   func(context.Context) error
	workspace  string
}

func buildGatewayDeps(ctx context.Context, cfg *gwconfig.Config, logger *slog.Logger) (*gatewayDeps, error) {
	store, err := storage.Open(ctx, storage.Config{
		Path:   cfg.Database.Path,
		Driver: cfg.Database.Driver,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	registry, err := buildProviderRegistry(cfg)
	if err != nil {
		store.Close()
		return nil, err
	}
	breaker := providers.NewCircuitBreaker()

	contentReg := content.NewRegistry(content.Config{OverrideDir: cfg.Content.OverrideDir, Logger: logger})
	if err := contentReg.Load(); err != nil {
		store.Close()
		return nil, fmt.Errorf("load content bundle: %w", err)
	}

	var embedder knowledge.Embedder
	if cfg.Knowledge.Embedder.Enabled {
		embedder, err = knowledge.NewEmbedder(knowledge.EmbedderConfig{
			Provider:  cfg.Knowledge.Embedder.Provider,
			APIKey:    cfg.Knowledge.Embedder.APIKey,
			BaseURL:   cfg.Knowledge.Embedder.BaseURL,
			Model:     cfg.Knowledge.Embedder.Model,
			Dimension: cfg.Knowledge.Embedder.Dimension,
		})
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("build embedder: %w", err)
		}
	}
	knowledgeCfg := knowledge.DefaultConfig()
	knowledgeCfg.ReconcileInterval = cfg.Knowledge.ReconcileInterval
	knowledgeCfg.Logger = logger
	knowledgeCfg.Roots = map[models.Scope]string{
		models.ScopeShared:          cfg.Workspace.Root + "/shared",
		models.ScopeGhostPrivate:    cfg.Workspace.Root + "/" + defaultGhostName + "/private",
		models.ScopeGhostProjects:   cfg.Workspace.Root + "/" + defaultGhostName + "/projects",
		models.ScopeGhostDiary:      cfg.Workspace.Root + "/" + defaultGhostName + "/diary",
		models.ScopeSharedReference: cfg.Workspace.Root + "/reference",
	}
	engine := knowledge.NewEngine(store, embedder, knowledgeCfg)
	if embedder != nil {
		go func() {
			if err := engine.ReindexIfModelChanged(context.Background()); err != nil {
				logger.Error("knowledge reindex failed", "error", err)
			}
		}()
	}

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics()
	}
	tracer, shutdown, err := observability.NewTracer(ctx, observability.TraceConfig{
		ServiceName:    "nexus-gateway",
		ServiceVersion: version,
		Environment:    os.Getenv("NEXUS_GATEWAY_ENV"),
		Endpoint:       cfg.Observability.TraceEndpoint,
		SamplingRate:   cfg.Observability.TraceSampling,
		EnableInsecure: cfg.Observability.TraceInsecure,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("build tracer: %w", err)
	}

	chatLoop := newLoop(store, registry, breaker, contentReg, tools.NewChatToolManager(cfg.Tools.SkillPaths), logger, metrics, tracer)
	chatLoop.MaxSteps = cfg.Orchestration.MaxSteps
	chatLoop.ExtraSteps = cfg.Orchestration.ExtraSteps

	reflectionLoop := newLoop(store, registry, breaker, contentReg, tools.NewReflectionToolManager(cfg.Tools.SkillPaths), logger, metrics, tracer)

	gw := orchestration.New(chatLoop, logger)
	reflector := orchestration.NewReflector(reflectionLoop, gw)

	return &gatewayDeps{
		store:     store,
		registry:  registry,
		breaker:   breaker,
		engine:    engine,
		gateway:   gw,
		reflector: reflector,
		metrics:   metrics,
		shutdown:  shutdown,
		workspace: cfg.Workspace.Root,
	}, nil
}

func newLoop(store *storage.Store, registry *providers.Registry, breaker *providers.CircuitBreaker, contentReg *content.Registry, toolsMgr *tools.Manager, logger *slog.Logger, metrics *observability.Metrics, tracer *observability.Tracer) *chatloop.Loop {
	l := chatloop.New(store, registry, breaker, promptcache.New(store), contentReg, toolsMgr, logger)
	l.Metrics = metrics
	l.Tracer = tracer
	return l
}

func buildProviderRegistry(cfg *gwconfig.Config) (*providers.Registry, error) {
	var entries []providers.ModelEntry

	if cfg.Providers.Anthropic.Enabled {
		p, err := providers.NewAnthropicProvider(providers.AnthropicConfig{
			APIKey:     cfg.Providers.Anthropic.APIKey,
			BaseURL:    cfg.Providers.Anthropic.BaseURL,
			Model:      cfg.Providers.Anthropic.Model,
			MaxRetries: cfg.Providers.Anthropic.MaxRetries,
			RetryDelay: cfg.Providers.Anthropic.RetryDelay,
			MaxTokens:  cfg.Providers.Anthropic.MaxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("anthropic provider: %w", err)
		}
		entries = append(entries, providers.ModelEntry{
			Alias: cfg.Providers.Anthropic.Alias, Provider: p,
			ProviderName: "anthropic", Model: cfg.Providers.Anthropic.Model,
		})
	}
	if cfg.Providers.OpenAI.Enabled {
		p, err := providers.NewOpenAIProvider(providers.OpenAIConfig{
			APIKey:     cfg.Providers.OpenAI.APIKey,
			BaseURL:    cfg.Providers.OpenAI.BaseURL,
			Model:      cfg.Providers.OpenAI.Model,
			MaxRetries: cfg.Providers.OpenAI.MaxRetries,
			RetryDelay: cfg.Providers.OpenAI.RetryDelay,
			MaxTokens:  cfg.Providers.OpenAI.MaxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("openai provider: %w", err)
		}
		entries = append(entries, providers.ModelEntry{
			Alias: cfg.Providers.OpenAI.Alias, Provider: p,
			ProviderName: "openai", Model: cfg.Providers.OpenAI.Model,
		})
	}

	return providers.NewRegistry(entries, cfg.Providers.DefaultChain)
}

// bootstrapSession ensures a default operator, ghost, and active session
// exist, returning the ghost and session ids to chat against.
func bootstrapSession(ctx context.Context, store *storage.Store) (ghostID, sessionID string, err error) {
	ghost, err := store.GhostGetByName(ctx, defaultOperatorID, defaultGhostName)
	if err == nil {
		if sess, err := store.ActiveSessionForGhost(ctx, ghost.ID); err == nil {
			return ghost.ID, sess.ID, nil
		}
		sessionID, err = createSession(ctx, store, ghost.ID)
		return ghost.ID, sessionID, err
	}
	if err != storage.ErrNotFound {
		return "", "", fmt.Errorf("look up ghost: %w", err)
	}

	now := time.Now()
	if err := store.OperatorCreate(ctx, &models.Operator{
		ID: defaultOperatorID, DisplayName: "Default Operator",
		AccessLevel: models.AccessStandard, Status: models.OperatorApproved, CreatedAt: now,
	}); err != nil && err != storage.ErrAlreadyExists {
		return "", "", fmt.Errorf("create operator: %w", err)
	}

	newGhost := &models.Ghost{ID: uuid.NewString(), Name: defaultGhostName, OperatorID: defaultOperatorID, CreatedAt: now}
	if err := store.GhostCreate(ctx, newGhost); err != nil {
		return "", "", fmt.Errorf("create ghost: %w", err)
	}
	sessionID, err = createSession(ctx, store, newGhost.ID)
	return newGhost.ID, sessionID, err
}

func createSession(ctx context.Context, store *storage.Store, ghostID string) (string, error) {
	now := time.Now()
	sess := &models.Session{
		ID: uuid.NewString(), GhostID: ghostID, OperatorID: defaultOperatorID,
		CreatedAt: now, LastActiveAt: now, Active: true,
	}
	if err := store.SessionCreate(ctx, sess); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return sess.ID, nil
}

// runStart wires every subsystem together and runs the operator REPL until
// EOF or a shutdown signal.
func runStart(cmd *cobra.Command, configPath string, debug bool) error {
	if debug {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}
	logger := slog.Default()

	cfg, err := gwconfig.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	deps, err := buildGatewayDeps(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("wire gateway: %w", err)
	}
	defer deps.store.Close()
	defer deps.shutdown(context.Background())

	if cfg.Observability.MetricsEnabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: cfg.Observability.MetricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		logger.Info("metrics server listening", "addr", cfg.Observability.MetricsAddr)
	}

	ghostID, sessionID, err := bootstrapSession(ctx, deps.store)
	if err != nil {
		return fmt.Errorf("bootstrap session: %w", err)
	}

	sched := cron.New()
	if _, err := sched.AddFunc(cfg.Orchestration.ReflectionCron, func() {
		if err := deps.reflector.MaybeRun(ctx, defaultOperatorID, defaultGhostName, sessionID, deps.workspace, time.Now()); err != nil {
			logger.Warn("reflection run failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule reflection: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	logger.Info("nexus-gateway started", "session", sessionID, "workspace", deps.workspace)
	return runREPL(ctx, deps.gateway, deps.engine, ghostID, sessionID, deps.workspace, logger)
}

// runREPL reads operator turns from stdin, one per line, until EOF or ctx is
// canceled. Control commands ("approve", "deny", "steps N") resume a paused
// turn via orchestration.Gateway.HandleControlCommand; everything else is a
// new chat turn.
func runREPL(ctx context.Context, gw *orchestration.Gateway, engine *knowledge.Engine, ghostID, sessionID, workspaceRoot string, logger *slog.Logger) error {
	toolCtx := tools.NewToolContext(defaultGhostName, workspaceRoot)
	toolCtx.Knowledge = engine
	scanner := bufio.NewScanner(os.Stdin)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		res, handled, err := gw.HandleControlCommand(ctx, defaultOperatorID, defaultGhostName, sessionID, line)
		if err != nil {
			logger.Error("control command failed", "error", err)
			continue
		}
		if !handled {
			res, err = gw.Chat(ctx, chatloop.Request{
				GhostID:    ghostID,
				GhostName:  defaultGhostName,
				SessionID:  sessionID,
				OperatorID: defaultOperatorID,
				Content:    line,
				ToolCtx:    toolCtx,
			})
			if err != nil {
				logger.Error("chat turn failed", "error", err)
				continue
			}
		}

		if res.Pending != nil {
			fmt.Printf("[paused: %s] reply approve/deny or steps N\n", res.Pending.Kind)
			continue
		}
		fmt.Println(orchestration.FormatWithStatusline(res.Text, res))
	}
	return scanner.Err()
}

// runMigrate opens the store (which migrates forward-only on open) and
// reports the database path and driver once migrations have applied.
func runMigrate(cmd *cobra.Command, configPath string) error {
	cfg, err := gwconfig.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	store, err := storage.Open(cmd.Context(), storage.Config{Path: cfg.Database.Path, Driver: cfg.Database.Driver})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "database %s (%s): migrations applied\n", cfg.Database.Path, cfg.Database.Driver)
	return nil
}

// runDoctor validates configuration and reports readiness without
// starting anything durable.
func runDoctor(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()
	cfg, err := gwconfig.Load(configPath)
	if err != nil {
		fmt.Fprintf(out, "config: FAIL (%v)\n", err)
		return err
	}
	fmt.Fprintf(out, "config: OK (%s)\n", configPath)

	ctx := cmd.Context()
	deps, err := buildGatewayDeps(ctx, cfg, slog.Default())
	if err != nil {
		fmt.Fprintf(out, "wiring: FAIL (%v)\n", err)
		return err
	}
	defer deps.store.Close()
	defer deps.shutdown(context.Background())
	fmt.Fprintln(out, "storage: OK")
	fmt.Fprintln(out, "providers: OK")

	if port, err := gwconfig.ParsePort(cfg.Observability.MetricsAddr); err == nil {
		fmt.Fprintf(out, "metrics: would bind port %d\n", port)
	}
	return nil
}
