package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haasonsaas/nexus/pkg/models"
)

func newChunksTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), Config{Driver: "sqlite3"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestNote(t *testing.T, store *Store, title string) int64 {
	t.Helper()
	id, err := store.NoteCreate(context.Background(), &models.Note{
		Title: title,
		Path:  title + ".md",
		Scope: models.ScopeGhostPrivate,
	})
	require.NoError(t, err)
	return id
}

func TestReplaceChunksContiguousIndices(t *testing.T) {
	store := newChunksTestStore(t)
	ctx := context.Background()
	noteID := newTestNote(t, store, "contiguous")

	chunks := []*models.Chunk{
		{Title: "a", Content: "first chunk", ContentHash: "h1"},
		{Title: "b", Content: "second chunk", ContentHash: "h2"},
		{Title: "c", Content: "third chunk", ContentHash: "h3"},
	}
	ids, err := store.ReplaceChunks(ctx, noteID, chunks, nil)
	require.NoError(t, err)
	require.Len(t, ids, 3)

	got, err := store.ChunksForNote(ctx, noteID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, c := range got {
		assert.Equal(t, i, c.Index, "chunk at position %d should carry index %d", i, i)
	}
	assert.Equal(t, "first chunk", got[0].Content)
	assert.Equal(t, "second chunk", got[1].Content)
	assert.Equal(t, "third chunk", got[2].Content)
}

func TestReplaceChunksSwapsOldChunks(t *testing.T) {
	store := newChunksTestStore(t)
	ctx := context.Background()
	noteID := newTestNote(t, store, "swap")

	_, err := store.ReplaceChunks(ctx, noteID, []*models.Chunk{
		{Title: "old-a", Content: "old content one", ContentHash: "h1"},
		{Title: "old-b", Content: "old content two", ContentHash: "h2"},
	}, nil)
	require.NoError(t, err)

	_, err = store.ReplaceChunks(ctx, noteID, []*models.Chunk{
		{Title: "new-a", Content: "new content", ContentHash: "h3"},
	}, nil)
	require.NoError(t, err)

	got, err := store.ChunksForNote(ctx, noteID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].Index)
	assert.Equal(t, "new content", got[0].Content)
}

func TestReplaceChunksRejectsDimensionMismatch(t *testing.T) {
	store := newChunksTestStore(t)
	ctx := context.Background()
	noteID := newTestNote(t, store, "mismatch")

	chunks := []*models.Chunk{
		{Title: "a", Content: "one", ContentHash: "h1"},
		{Title: "b", Content: "two", ContentHash: "h2"},
	}
	embeddings := [][]float32{
		{0.1, 0.2, 0.3},
		{0.1, 0.2},
	}
	_, err := store.ReplaceChunks(ctx, noteID, chunks, embeddings)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestReplaceChunksStoresEmbeddingsForDenseSearch(t *testing.T) {
	store := newChunksTestStore(t)
	ctx := context.Background()
	noteID := newTestNote(t, store, "dense")

	chunks := []*models.Chunk{
		{Title: "a", Content: "apple", ContentHash: "h1"},
		{Title: "b", Content: "banana", ContentHash: "h2"},
	}
	embeddings := [][]float32{
		{1.0, 0.0, 0.0},
		{0.0, 1.0, 0.0},
	}
	_, err := store.ReplaceChunks(ctx, noteID, chunks, embeddings)
	require.NoError(t, err)

	hits, err := store.DenseSearch(ctx, models.ScopeGhostPrivate, "", []float32{1.0, 0.0, 0.0}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "apple", firstChunkContent(ctx, t, store, hits[0].ChunkID))
}

func firstChunkContent(ctx context.Context, t *testing.T, store *Store, chunkID int64) string {
	t.Helper()
	c, err := store.ChunkGet(ctx, chunkID)
	require.NoError(t, err)
	return c.Content
}

func TestSanitizeFTSQueryEmptyInput(t *testing.T) {
	assert.Equal(t, `""`, sanitizeFTSQuery(""))
	assert.Equal(t, `""`, sanitizeFTSQuery("   "))
	assert.Equal(t, `""`, sanitizeFTSQuery("\t\n"))
}

func TestSanitizeFTSQueryQuotesEachToken(t *testing.T) {
	assert.Equal(t, `"foo" "bar"`, sanitizeFTSQuery("foo bar"))
	assert.Equal(t, `"a""b"`, sanitizeFTSQuery(`a"b`))
}

func TestLexicalSearchMatchesAndRespectsEmptyQuery(t *testing.T) {
	store := newChunksTestStore(t)
	ctx := context.Background()
	noteID := newTestNote(t, store, "lexical")

	_, err := store.ReplaceChunks(ctx, noteID, []*models.Chunk{
		{Title: "a", Content: "the quick brown fox", ContentHash: "h1"},
		{Title: "b", Content: "a lazy dog sleeps", ContentHash: "h2"},
	}, nil)
	require.NoError(t, err)

	hits, err := store.LexicalSearch(ctx, models.ScopeGhostPrivate, "", "fox", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	// An empty query produces the `""` match expression, which FTS5 accepts
	// without error and which matches nothing.
	hits, err = store.LexicalSearch(ctx, models.ScopeGhostPrivate, "", "", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestAllChunksListsAcrossNotes(t *testing.T) {
	store := newChunksTestStore(t)
	ctx := context.Background()
	noteA := newTestNote(t, store, "note-a")
	noteB := newTestNote(t, store, "note-b")

	_, err := store.ReplaceChunks(ctx, noteA, []*models.Chunk{
		{Title: "a", Content: "content a", ContentHash: "ha"},
	}, nil)
	require.NoError(t, err)
	_, err = store.ReplaceChunks(ctx, noteB, []*models.Chunk{
		{Title: "b", Content: "content b", ContentHash: "hb"},
	}, nil)
	require.NoError(t, err)

	all, err := store.AllChunks(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestUpdateChunkEmbeddingReplacesVectorInPlace(t *testing.T) {
	store := newChunksTestStore(t)
	ctx := context.Background()
	noteID := newTestNote(t, store, "reembed")

	ids, err := store.ReplaceChunks(ctx, noteID, []*models.Chunk{
		{Title: "a", Content: "original content", ContentHash: "h1"},
	}, [][]float32{{1.0, 0.0, 0.0}})
	require.NoError(t, err)
	require.Len(t, ids, 1)

	err = store.UpdateChunkEmbedding(ctx, ids[0], "new-model", 2, []float32{0.0, 1.0})
	require.NoError(t, err)

	c, err := store.ChunkGet(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, "new-model", c.EmbeddingModel)
	assert.Equal(t, 2, c.EmbeddingDim)
	assert.Equal(t, "original content", c.Content, "re-embedding leaves content untouched")

	hits, err := store.DenseSearch(ctx, models.ScopeGhostPrivate, "", []float32{0.0, 1.0}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, ids[0], hits[0].ChunkID)
}

func TestUpdateChunkEmbeddingUnknownChunkFails(t *testing.T) {
	store := newChunksTestStore(t)
	ctx := context.Background()

	err := store.UpdateChunkEmbedding(ctx, 99999, "model", 3, []float32{0, 0, 0})
	assert.Error(t, err)
}
