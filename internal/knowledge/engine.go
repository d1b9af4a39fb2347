// Package knowledge implements the hybrid lexical+dense search engine over
// the note store: scopes, filesystem reconciliation, markdown/code
// ingestion, Reciprocal Rank Fusion search, graph expansion, and the
// two-phase reference-topic importer.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/haasonsaas/nexus/internal/storage"
	"github.com/haasonsaas/nexus/pkg/models"
)

// errDimensionBatchMismatch is returned when an embedding provider's batch
// response doesn't have one vector per input text — a provider bug, since a
// batch request must otherwise fail outright.
var errDimensionBatchMismatch = errors.New("knowledge: embedding batch size mismatch")

// metaKeyEmbeddingDim and metaKeyEmbeddingModel are the meta-table rows
// backing §4.1's invariant ("the meta key embedding_dim equals the vector
// table's width") and §4.3's provider/model-change reindex trigger.
const (
	metaKeyEmbeddingDim   = "embedding_dim"
	metaKeyEmbeddingModel = "embedding_model"
)

// Config configures the knowledge engine.
type Config struct {
	// Roots maps each scope to the filesystem directory reconciliation
	// walks for that scope. For ScopeGhostPrivate/Projects/Diary the walk
	// covers the subdirectory named after the owning ghost (<root>/<ghost>);
	// shared scopes use the root itself.
	Roots map[models.Scope]string

	ReconcileInterval time.Duration

	RRFK               int
	MaxResults         int
	GraphDepth         int
	GraphMax           int
	BM25Limit          int
	DenseLimit         int
	EmbeddingBatchSize int
	DocBoost           float64

	Logger *slog.Logger
}

// DefaultConfig fills in the values called out in the search algorithm and
// reconciliation sections: RRF k=60, a 10-minute reconcile window, and
// overfetch limits generous enough for the RRF fusion to have real signal
// from both rankers.
func DefaultConfig() Config {
	return Config{
		ReconcileInterval:  10 * time.Minute,
		RRFK:               60,
		MaxResults:         10,
		GraphDepth:         1,
		GraphMax:           5,
		BM25Limit:          40,
		DenseLimit:         40,
		EmbeddingBatchSize: 64,
		DocBoost:           1.5,
	}
}

// Engine is the knowledge engine: reconciliation, ingestion, search, and the
// reference-topic importer, all backed by a single storage.Store.
type Engine struct {
	store    *storage.Store
	embedder Embedder
	cfg      Config
	logger   *slog.Logger
}

// NewEngine constructs the engine. A nil embedder is valid: dense search and
// embedding-dependent ingestion paths degrade to lexical-only (used in tests
// and in configurations that disable semantic search).
func NewEngine(store *storage.Store, embedder Embedder, cfg Config) *Engine {
	if cfg.RRFK <= 0 {
		cfg.RRFK = 60
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 10
	}
	if cfg.GraphDepth <= 0 {
		cfg.GraphDepth = 1
	}
	if cfg.GraphMax <= 0 {
		cfg.GraphMax = 5
	}
	if cfg.BM25Limit <= 0 {
		cfg.BM25Limit = 40
	}
	if cfg.DenseLimit <= 0 {
		cfg.DenseLimit = 40
	}
	if cfg.EmbeddingBatchSize <= 0 {
		cfg.EmbeddingBatchSize = 64
	}
	if cfg.DocBoost <= 0 {
		cfg.DocBoost = 1.0
	}
	if cfg.ReconcileInterval <= 0 {
		cfg.ReconcileInterval = 10 * time.Minute
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		store:    store,
		embedder: embedder,
		cfg:      cfg,
		logger:   logger.With("component", "knowledge"),
	}
}

// embedChunks embeds chunk contents in batches of cfg.EmbeddingBatchSize,
// returning one vector per chunk (nil entries where the engine has no
// embedder, yielding lexical-only chunks). A dimension mismatch against the
// configured embedder is a fatal error for the whole batch: storing a
// shorter/longer vector would corrupt every subsequent dense search.
func (e *Engine) embedChunks(ctx context.Context, contents []string) ([][]float32, error) {
	if e.embedder == nil || len(contents) == 0 {
		return make([][]float32, len(contents)), nil
	}
	if err := e.ensureEmbeddingDim(ctx); err != nil {
		return nil, err
	}

	out := make([][]float32, len(contents))
	batchSize := e.embedder.MaxBatchSize()
	if e.cfg.EmbeddingBatchSize > 0 && e.cfg.EmbeddingBatchSize < batchSize {
		batchSize = e.cfg.EmbeddingBatchSize
	}

	for start := 0; start < len(contents); start += batchSize {
		end := start + batchSize
		if end > len(contents) {
			end = len(contents)
		}
		vectors, err := e.embedder.EmbedBatch(ctx, contents[start:end])
		if err != nil {
			return nil, err
		}
		if len(vectors) != end-start {
			return nil, errDimensionBatchMismatch
		}
		for i, v := range vectors {
			if len(v) > 0 && len(v) != e.embedder.Dimension() {
				return nil, storage.ErrDimensionMismatch
			}
			out[start+i] = v
		}
	}
	return out, nil
}

// ensureEmbeddingDim enforces that meta.embedding_dim always equals the
// vector table's width (§4.1): the first embed call of a fresh store
// records the configured embedder's dimension, and every later call fails
// closed if the embedder's dimension has since diverged from what's
// stored, since proceeding would write vectors of mismatched width into
// the same table.
func (e *Engine) ensureEmbeddingDim(ctx context.Context) error {
	dim := e.embedder.Dimension()
	stored, ok, err := e.store.MetaGet(ctx, metaKeyEmbeddingDim)
	if err != nil {
		return err
	}
	if !ok {
		return e.store.MetaSet(ctx, metaKeyEmbeddingDim, strconv.Itoa(dim))
	}
	storedDim, err := strconv.Atoi(stored)
	if err != nil {
		return fmt.Errorf("knowledge: corrupt meta.embedding_dim %q: %w", stored, err)
	}
	if storedDim != dim {
		return storage.ErrDimensionMismatch
	}
	return nil
}

// ReindexIfModelChanged runs Reindex only when the embedder's provider/model
// fingerprint differs from the one last recorded in meta.embedding_model, so
// a normal startup doesn't pay a full re-embed unless the embedding
// provider or model actually changed since the previous run.
func (e *Engine) ReindexIfModelChanged(ctx context.Context) error {
	if e.embedder == nil {
		return nil
	}
	current := e.embedderFingerprint()
	stored, ok, err := e.store.MetaGet(ctx, metaKeyEmbeddingModel)
	if err != nil {
		return err
	}
	if ok && stored == current {
		return nil
	}
	return e.Reindex(ctx)
}

// Reindex re-embeds every chunk currently in the store against the engine's
// configured embedder, in batches of cfg.EmbeddingBatchSize, then records
// the provider/model fingerprint that produced the new vectors. This is the
// "background reindex [that] re-embeds every chunk" required by §4.3 when
// the embedding provider or model changes.
func (e *Engine) Reindex(ctx context.Context) error {
	if e.embedder == nil {
		return nil
	}
	if err := e.ensureEmbeddingDim(ctx); err != nil {
		return err
	}

	chunks, err := e.store.AllChunks(ctx)
	if err != nil {
		return fmt.Errorf("knowledge: reindex: list chunks: %w", err)
	}

	batchSize := e.cfg.EmbeddingBatchSize
	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]
		contents := make([]string, len(batch))
		for i, c := range batch {
			contents[i] = c.Content
		}
		vectors, err := e.embedder.EmbedBatch(ctx, contents)
		if err != nil {
			return fmt.Errorf("knowledge: reindex: embed batch: %w", err)
		}
		if len(vectors) != len(batch) {
			return errDimensionBatchMismatch
		}
		for i, c := range batch {
			if len(vectors[i]) != e.embedder.Dimension() {
				return storage.ErrDimensionMismatch
			}
			if err := e.store.UpdateChunkEmbedding(ctx, c.ID, e.embedder.Model(), e.embedder.Dimension(), vectors[i]); err != nil {
				return fmt.Errorf("knowledge: reindex: update chunk %d: %w", c.ID, err)
			}
		}
		e.logger.Info("reindex batch complete", "chunks", len(batch))
	}

	return e.store.MetaSet(ctx, metaKeyEmbeddingModel, e.embedderFingerprint())
}

// embedderFingerprint is the provider:model string recorded in
// meta.embedding_model, used to detect a provider or model change across
// process restarts.
func (e *Engine) embedderFingerprint() string {
	return e.embedder.Name() + ":" + e.embedder.Model()
}
