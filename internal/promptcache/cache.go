// Package promptcache caches a session's rendered system prompt blocks so
// repeated turns within a short window send byte-identical system content,
// which is what lets providers with server-side prompt caching (Anthropic's
// ephemeral cache_control) actually hit their cache.
package promptcache

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/haasonsaas/nexus/internal/storage"
	"github.com/haasonsaas/nexus/pkg/models"
)

// defaultTTL is how long a cached entry is considered fresh; it mirrors the
// window providers themselves hold server-side prompt caches for.
const defaultTTL = 300 * time.Second

// Builder produces fresh system blocks when the cache misses.
type Builder func(ctx context.Context) (models.SystemPrompt, error)

type entry struct {
	blocks      models.SystemPrompt
	fingerprint uint64
	cachedAt    time.Time
}

func (e entry) valid(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.cachedAt) < ttl
}

// buildCall is one in-flight build(ctx) invocation that later concurrent
// callers for the same (sessionID, fingerprint) wait on instead of starting
// their own.
type buildCall struct {
	wg     sync.WaitGroup
	blocks models.SystemPrompt
	err    error
}

// Cache is the session-keyed, in-memory-plus-durable prompt cache. The
// in-memory map is the fast path; the storage-backed table survives a
// process restart as long as the recovered row is still within TTL.
type Cache struct {
	mu    sync.RWMutex
	store *storage.Store
	ttl   time.Duration

	entries map[string]entry

	inflightMu sync.Mutex
	inflight   map[string]*buildCall
}

// New builds an empty in-memory cache backed by store. There is no bulk
// recovery step: a session's durable row is looked up lazily on its first
// GetOrBuild after a restart, via durableHit.
func New(store *storage.Store) *Cache {
	return &Cache{
		store:    store,
		ttl:      defaultTTL,
		entries:  map[string]entry{},
		inflight: map[string]*buildCall{},
	}
}

// GetOrBuild returns the cached system blocks for sessionID if a valid
// in-memory or durable entry matches fingerprint; otherwise it invokes
// build, caches the result (memory + durable row), and returns it. Concurrent
// misses for the same (sessionID, fingerprint) coalesce into a single build
// call: the first caller to miss runs it, and every other caller that arrives
// before it finishes waits on that result instead of calling build itself.
func (c *Cache) GetOrBuild(ctx context.Context, sessionID, ghostID string, fingerprint uint64, build Builder) (models.SystemPrompt, error) {
	now := time.Now()

	if e, ok := c.memoryHit(sessionID, fingerprint, now); ok {
		return e.blocks, nil
	}

	if e, ok := c.durableHit(ctx, sessionID, fingerprint, now); ok {
		c.storeMemory(sessionID, e)
		return e.blocks, nil
	}

	return c.buildOnce(ctx, sessionID, ghostID, fingerprint, build)
}

// buildOnce runs build(ctx) at most once per in-flight (sessionID,
// fingerprint) key. The winning caller stores the result (memory + durable
// row) before releasing waiters, so a waiter that wakes up and re-checks
// GetOrBuild's memory path will already see the fresh entry.
func (c *Cache) buildOnce(ctx context.Context, sessionID, ghostID string, fingerprint uint64, build Builder) (models.SystemPrompt, error) {
	key := inflightKey(sessionID, fingerprint)

	c.inflightMu.Lock()
	if existing, ok := c.inflight[key]; ok {
		c.inflightMu.Unlock()
		existing.wg.Wait()
		return existing.blocks, existing.err
	}
	call := &buildCall{}
	call.wg.Add(1)
	c.inflight[key] = call
	c.inflightMu.Unlock()

	blocks, err := build(ctx)
	if err == nil {
		e := entry{blocks: blocks, fingerprint: fingerprint, cachedAt: time.Now()}
		c.storeMemory(sessionID, e)
		c.persist(ctx, sessionID, ghostID, e)
	}
	call.blocks, call.err = blocks, err

	c.inflightMu.Lock()
	delete(c.inflight, key)
	c.inflightMu.Unlock()
	call.wg.Done()

	return blocks, err
}

// inflightKey identifies one build(ctx) call for coalescing purposes. It
// includes the fingerprint (not just sessionID) so that a fingerprint change
// arriving mid-build — a new system-prompt input superseding the one an
// in-flight call is building for — starts its own build rather than waiting
// on a result it wouldn't even accept (memoryHit/durableHit both check
// fingerprint equality).
func inflightKey(sessionID string, fingerprint uint64) string {
	return sessionID + "\x00" + strconv.FormatUint(fingerprint, 36)
}

func (c *Cache) memoryHit(sessionID string, fingerprint uint64, now time.Time) (entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[sessionID]
	if !ok || !e.valid(now, c.ttl) || e.fingerprint != fingerprint {
		return entry{}, false
	}
	return e, true
}

func (c *Cache) durableHit(ctx context.Context, sessionID string, fingerprint uint64, now time.Time) (entry, bool) {
	row, err := c.store.PromptCacheGet(ctx, sessionID)
	if err != nil {
		return entry{}, false
	}
	if row.Fingerprint != fingerprint {
		return entry{}, false
	}
	if now.Sub(row.CachedAt) >= c.ttl {
		return entry{}, false
	}
	var blocks models.SystemPrompt
	if err := json.Unmarshal([]byte(row.Blocks), &blocks); err != nil {
		return entry{}, false
	}
	return entry{blocks: blocks, fingerprint: row.Fingerprint, cachedAt: row.CachedAt}, true
}

func (c *Cache) storeMemory(sessionID string, e entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[sessionID] = e
}

func (c *Cache) persist(ctx context.Context, sessionID, ghostID string, e entry) {
	serialized, err := json.Marshal(e.blocks)
	if err != nil {
		return
	}
	_ = c.store.PromptCachePut(ctx, &models.PromptCacheEntry{
		SessionID:   sessionID,
		GhostID:     ghostID,
		Blocks:      string(serialized),
		Fingerprint: e.fingerprint,
		CachedAt:    e.cachedAt,
	})
}

// Invalidate clears both the in-memory and durable entry for a session, for
// use when the underlying ghost context (identity, diary, …) mutates.
func (c *Cache) Invalidate(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	delete(c.entries, sessionID)
	c.mu.Unlock()
	return c.store.PromptCacheInvalidate(ctx, sessionID)
}

// Fingerprint computes a deterministic 64-bit hash over an ordered sequence
// of (key, value) pairs, used to detect when the context that fed a
// session's system blocks has changed. Unlike hash/maphash (randomly seeded
// per process), FNV-1a is stable across restarts, which is required for a
// recovered durable row to ever register a fingerprint match.
func Fingerprint(pairs ...[2]string) uint64 {
	h := fnv.New64a()
	for _, p := range pairs {
		_, _ = h.Write([]byte(p[0]))
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte(p[1]))
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}
