// Package content resolves opaque message and prompt identifiers to
// rendered strings. Every identifier has a shared variant and may have
// surface- or provider-scoped overrides; resolution prefers the narrowest
// variant that exists and falls back to shared.
//
// The registry ships a default bundle embedded at build time
// (bundled/messages, bundled/prompts) and layers an optional on-disk
// override directory on top, watched with fsnotify so an operator can
// tweak copy without a rebuild.
package content

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Config configures a Registry.
type Config struct {
	// OverrideDir, if set, is scanned for *.toml (messages) and *.md
	// (prompts) files that shadow or extend the embedded bundle.
	OverrideDir string
	Logger      *slog.Logger
}

// Registry is the loaded, queryable set of message and prompt templates.
type Registry struct {
	mu       sync.RWMutex
	messages map[string]*messageVariants
	prompts  map[string]*promptVariants

	overrideDir string
	logger      *slog.Logger

	watcher     *fsnotify.Watcher
	watchCancel context.CancelFunc
	debounce    time.Duration
}

// NewRegistry constructs an unloaded registry; call Load before use.
func NewRegistry(cfg Config) *Registry {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		messages:    map[string]*messageVariants{},
		prompts:     map[string]*promptVariants{},
		overrideDir: cfg.OverrideDir,
		logger:      logger.With("component", "content"),
		debounce:    250 * time.Millisecond,
	}
}

// Load parses the embedded bundle and, if configured, the override
// directory, replacing the registry's in-memory state. Load-time
// validation is fail-closed: any malformed template aborts the whole load
// and leaves the previous state (if any) untouched.
func (r *Registry) Load() error {
	next := &Registry{
		messages:    map[string]*messageVariants{},
		prompts:     map[string]*promptVariants{},
		overrideDir: r.overrideDir,
		logger:      r.logger,
	}
	if err := next.loadMessages(); err != nil {
		return err
	}
	if err := next.loadPrompts(); err != nil {
		return err
	}
	if next.overrideDir != "" {
		if err := next.loadOverrides(); err != nil {
			return err
		}
	}

	r.mu.Lock()
	r.messages = next.messages
	r.prompts = next.prompts
	r.mu.Unlock()
	return nil
}

func (r *Registry) loadOverrides() error {
	entries, err := os.ReadDir(r.overrideDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: read override dir: %v", ErrInvalid, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		full := filepath.Join(r.overrideDir, e.Name())
		data, err := os.ReadFile(full)
		if err != nil {
			return fmt.Errorf("%w: read %s: %v", ErrInvalid, full, err)
		}
		switch {
		case strings.HasSuffix(e.Name(), ".toml"):
			if err := r.loadMessageBytes(data, full, true); err != nil {
				return err
			}
		case strings.HasSuffix(e.Name(), ".md"):
			if err := r.loadPromptBytes(data, full, true); err != nil {
				return err
			}
		}
	}
	return nil
}

// Watch starts an fsnotify watch over the configured override directory,
// debouncing bursts of writes and reloading the whole registry on settle.
// It is a no-op if no override directory was configured. Cancel ctx (or
// call Close) to stop watching.
func (r *Registry) Watch(ctx context.Context) error {
	if r.overrideDir == "" {
		return nil
	}
	if err := os.MkdirAll(r.overrideDir, 0o755); err != nil {
		return fmt.Errorf("content: ensure override dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("content: new watcher: %w", err)
	}
	if err := watcher.Add(r.overrideDir); err != nil {
		watcher.Close()
		return fmt.Errorf("content: watch %s: %w", r.overrideDir, err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	r.watcher = watcher
	r.watchCancel = cancel

	go r.watchLoop(watchCtx, watcher)
	return nil
}

func (r *Registry) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	var timer *time.Timer
	reload := func() {
		if err := r.Load(); err != nil {
			r.logger.Warn("content reload failed", "error", err)
			return
		}
		r.logger.Info("content reloaded from override directory")
	}

	for {
		select {
		case <-ctx.Done():
			watcher.Close()
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(r.debounce, reload)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			r.logger.Warn("content watcher error", "error", err)
		}
	}
}

// Close stops the override-directory watcher, if one is running.
func (r *Registry) Close() error {
	if r.watchCancel != nil {
		r.watchCancel()
	}
	return nil
}

// MessageText resolves id for the given surface/provider selectors (either
// may be empty) and renders it with vars.
func (r *Registry) MessageText(id, surface, provider string, vars map[string]string) (string, error) {
	msg, err := r.Message(id, surface, provider, vars)
	if err != nil {
		return "", err
	}
	return msg.Text, nil
}

// Message resolves and renders id into a RenderedMessage.
func (r *Registry) Message(id, surface, provider string, vars map[string]string) (RenderedMessage, error) {
	r.mu.RLock()
	variants, ok := r.messages[id]
	r.mu.RUnlock()
	if !ok {
		return RenderedMessage{}, fmt.Errorf("%w: %s", ErrMissing, id)
	}
	tmpl, ok := variants.resolve(surface, provider)
	if !ok {
		return RenderedMessage{}, fmt.Errorf("%w: %s", ErrMissing, id)
	}
	return RenderedMessage{Text: render(tmpl.Text, vars), Style: tmpl.Style}, nil
}

// PromptText resolves and renders a system-prompt fragment for the given
// provider (may be empty for the shared variant).
func (r *Registry) PromptText(id, provider string, vars map[string]string) (string, error) {
	r.mu.RLock()
	variants, ok := r.prompts[id]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissing, id)
	}
	tmpl, ok := variants.resolve(provider)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissing, id)
	}
	return render(tmpl.Body, vars), nil
}
