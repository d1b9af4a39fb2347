package knowledge

import (
	"context"
	"testing"

	"github.com/haasonsaas/nexus/internal/storage"
	"github.com/haasonsaas/nexus/pkg/models"
)

// fakeEmbedder is a deterministic stand-in for a remote/local embedder: it
// returns a fixed-width vector derived from each text's length so that
// distinct inputs produce distinct vectors without any network dependency.
type fakeEmbedder struct {
	name  string
	model string
	dim   int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vs, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vs[0], nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, f.dim)
		v[0] = float32(len(t))
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Name() string      { return f.name }
func (f *fakeEmbedder) Model() string     { return f.model }
func (f *fakeEmbedder) Dimension() int    { return f.dim }
func (f *fakeEmbedder) MaxBatchSize() int { return 64 }

func newEngineTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.Open(context.Background(), storage.Config{Driver: "sqlite3"})
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestEnsureEmbeddingDimRecordsOnFirstCall(t *testing.T) {
	store := newEngineTestStore(t)
	ctx := context.Background()
	embedder := &fakeEmbedder{name: "fake", model: "v1", dim: 3}
	e := NewEngine(store, embedder, DefaultConfig())

	if err := e.ensureEmbeddingDim(ctx); err != nil {
		t.Fatalf("ensureEmbeddingDim: %v", err)
	}

	stored, ok, err := store.MetaGet(ctx, metaKeyEmbeddingDim)
	if err != nil {
		t.Fatalf("MetaGet: %v", err)
	}
	if !ok || stored != "3" {
		t.Errorf("meta.embedding_dim = (%q, %v), want (\"3\", true)", stored, ok)
	}
}

func TestEnsureEmbeddingDimRejectsDriftAgainstRecordedWidth(t *testing.T) {
	store := newEngineTestStore(t)
	ctx := context.Background()

	first := NewEngine(store, &fakeEmbedder{name: "fake", model: "v1", dim: 3}, DefaultConfig())
	if err := first.ensureEmbeddingDim(ctx); err != nil {
		t.Fatalf("ensureEmbeddingDim: %v", err)
	}

	second := NewEngine(store, &fakeEmbedder{name: "fake", model: "v2", dim: 8}, DefaultConfig())
	err := second.ensureEmbeddingDim(ctx)
	if err != storage.ErrDimensionMismatch {
		t.Errorf("ensureEmbeddingDim error = %v, want ErrDimensionMismatch", err)
	}
}

func TestEmbedChunksWritesEmbeddingDimMeta(t *testing.T) {
	store := newEngineTestStore(t)
	ctx := context.Background()
	e := NewEngine(store, &fakeEmbedder{name: "fake", model: "v1", dim: 4}, DefaultConfig())

	vectors, err := e.embedChunks(ctx, []string{"hello", "world"})
	if err != nil {
		t.Fatalf("embedChunks: %v", err)
	}
	if len(vectors) != 2 || len(vectors[0]) != 4 {
		t.Fatalf("unexpected vectors: %+v", vectors)
	}

	stored, ok, err := store.MetaGet(ctx, metaKeyEmbeddingDim)
	if err != nil || !ok || stored != "4" {
		t.Errorf("meta.embedding_dim = (%q, %v, %v), want (\"4\", true, nil)", stored, ok, err)
	}
}

func TestReindexIfModelChangedSkipsWhenFingerprintMatches(t *testing.T) {
	store := newEngineTestStore(t)
	ctx := context.Background()
	e := NewEngine(store, &fakeEmbedder{name: "fake", model: "v1", dim: 3}, DefaultConfig())

	noteID := newEngineTestNote(t, store)
	ids, err := store.ReplaceChunks(ctx, noteID, []*models.Chunk{
		{Title: "a", Content: "one", ContentHash: "h1"},
	}, [][]float32{{1, 2, 3}})
	if err != nil {
		t.Fatalf("ReplaceChunks: %v", err)
	}
	if err := store.UpdateChunkEmbedding(ctx, ids[0], "v1", 3, []float32{1, 2, 3}); err != nil {
		t.Fatalf("UpdateChunkEmbedding: %v", err)
	}
	if err := store.MetaSet(ctx, metaKeyEmbeddingModel, e.embedderFingerprint()); err != nil {
		t.Fatalf("MetaSet: %v", err)
	}

	if err := e.ReindexIfModelChanged(ctx); err != nil {
		t.Fatalf("ReindexIfModelChanged: %v", err)
	}

	c, err := store.ChunkGet(ctx, ids[0])
	if err != nil {
		t.Fatalf("ChunkGet: %v", err)
	}
	if c.EmbeddingModel != "v1" {
		t.Errorf("EmbeddingModel = %q, want unchanged %q", c.EmbeddingModel, "v1")
	}
}

func TestReindexIfModelChangedReembedsEveryChunkOnModelChange(t *testing.T) {
	store := newEngineTestStore(t)
	ctx := context.Background()
	noteID := newEngineTestNote(t, store)

	first := NewEngine(store, &fakeEmbedder{name: "fake", model: "v1", dim: 3}, DefaultConfig())
	ids, err := store.ReplaceChunks(ctx, noteID, []*models.Chunk{
		{Title: "a", Content: "one", ContentHash: "h1"},
		{Title: "b", Content: "two", ContentHash: "h2"},
	}, [][]float32{{1, 0, 0}, {0, 1, 0}})
	if err != nil {
		t.Fatalf("ReplaceChunks: %v", err)
	}
	for _, id := range ids {
		if err := store.UpdateChunkEmbedding(ctx, id, "v1", 3, []float32{1, 0, 0}); err != nil {
			t.Fatalf("UpdateChunkEmbedding: %v", err)
		}
	}
	if err := store.MetaSet(ctx, metaKeyEmbeddingModel, first.embedderFingerprint()); err != nil {
		t.Fatalf("MetaSet: %v", err)
	}
	if err := store.MetaSet(ctx, metaKeyEmbeddingDim, "3"); err != nil {
		t.Fatalf("MetaSet: %v", err)
	}

	second := NewEngine(store, &fakeEmbedder{name: "fake", model: "v2", dim: 3}, DefaultConfig())
	if err := second.ReindexIfModelChanged(ctx); err != nil {
		t.Fatalf("ReindexIfModelChanged: %v", err)
	}

	for _, id := range ids {
		c, err := store.ChunkGet(ctx, id)
		if err != nil {
			t.Fatalf("ChunkGet: %v", err)
		}
		if c.EmbeddingModel != "v2" {
			t.Errorf("chunk %d EmbeddingModel = %q, want %q", id, c.EmbeddingModel, "v2")
		}
	}

	stored, ok, err := store.MetaGet(ctx, metaKeyEmbeddingModel)
	if err != nil || !ok || stored != second.embedderFingerprint() {
		t.Errorf("meta.embedding_model = (%q, %v, %v), want (%q, true, nil)", stored, ok, err, second.embedderFingerprint())
	}
}

func newEngineTestNote(t *testing.T, store *storage.Store) int64 {
	t.Helper()
	id, err := store.NoteCreate(context.Background(), &models.Note{
		Title: "reindex-target",
		Path:  "reindex-target.md",
		Scope: models.ScopeGhostPrivate,
	})
	if err != nil {
		t.Fatalf("NoteCreate: %v", err)
	}
	return id
}
