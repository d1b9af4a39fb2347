package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/haasonsaas/nexus/pkg/models"
)

// ReplaceChunks atomically swaps every chunk belonging to a note: the old
// chunks, their FTS rows and their vector rows are deleted, and the new
// chunks are inserted with contiguous zero-based indices in the order given.
// Embeddings are optional per chunk (nil skips the vectors row); when
// present its length must equal dim for every chunk or the whole write is
// rejected.
func (s *Store) ReplaceChunks(ctx context.Context, noteID int64, chunks []*models.Chunk, embeddings [][]float32) ([]int64, error) {
	if embeddings != nil && len(embeddings) != len(chunks) {
		return nil, fmt.Errorf("storage: %d chunks but %d embeddings", len(chunks), len(embeddings))
	}
	var dim int
	for _, e := range embeddings {
		if e == nil {
			continue
		}
		if dim == 0 {
			dim = len(e)
		} else if len(e) != dim {
			return nil, ErrDimensionMismatch
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck

	var oldIDs []int64
	rows, err := tx.QueryContext(ctx, "SELECT id FROM chunks WHERE note_id = ?", noteID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		oldIDs = append(oldIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, id := range oldIDs {
		if _, err := tx.ExecContext(ctx, "DELETE FROM vectors WHERE chunk_id = ?", id); err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM chunks_fts WHERE rowid = ?", id); err != nil {
			return nil, err
		}
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE note_id = ?", noteID); err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(chunks))
	for i, c := range chunks {
		rowDim := c.EmbeddingDim
		if embeddings != nil && embeddings[i] != nil {
			rowDim = len(embeddings[i])
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO chunks(note_id, idx, title, content, content_hash, embedding_model, embedding_dim)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, noteID, i, c.Title, c.Content, c.ContentHash, c.EmbeddingModel, rowDim)
		if err != nil {
			return nil, fmt.Errorf("insert chunk %d: %w", i, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)

		if _, err := tx.ExecContext(ctx, "INSERT INTO chunks_fts(rowid, content) VALUES (?, ?)", id, c.Content); err != nil {
			return nil, fmt.Errorf("index chunk %d: %w", i, err)
		}

		if embeddings != nil && embeddings[i] != nil {
			blob := encodeEmbedding(embeddings[i])
			if _, err := tx.ExecContext(ctx, "INSERT INTO vectors(chunk_id, embedding) VALUES (?, ?)", id, blob); err != nil {
				return nil, fmt.Errorf("vector for chunk %d: %w", i, err)
			}
		}
	}

	return ids, tx.Commit()
}

// LexicalHit is one FTS5 match, ranked by bm25 (lower is better, negated
// here so callers can treat it like every other descending score).
type LexicalHit struct {
	ChunkID int64
	NoteID  int64
	Score   float64
}

// sanitizeFTSQuery tokenizes a raw query on whitespace and quotes each token
// individually, so the joined result is an FTS5 MATCH expression requiring
// every token present (an implicit AND of literal terms) rather than one
// exact phrase; this avoids FTS5 query-syntax errors on tokens containing ",
// -, *, or boolean keywords without collapsing the query to adjacency-only
// matching. An empty or whitespace-only query produces the empty match
// expression `""`, which matches nothing.
func sanitizeFTSQuery(raw string) string {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return `""`
	}
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " ")
}

// LexicalSearch runs an FTS5 MATCH over chunks belonging to notes in the
// given scope/owner namespace.
func (s *Store) LexicalSearch(ctx context.Context, scope models.Scope, ownerGhost, query string, limit int) ([]LexicalHit, error) {
	ftsQuery := sanitizeFTSQuery(query)
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.note_id, bm25(chunks_fts) AS rank
		FROM chunks_fts
		JOIN chunks c ON c.id = chunks_fts.rowid
		JOIN notes n ON n.id = c.note_id
		LEFT JOIN reference_files rf ON rf.file_note_id = n.id
		WHERE chunks_fts MATCH ? AND n.scope = ? AND n.owner_ghost = ?
			AND (rf.status IS NULL OR rf.status != ?)
		ORDER BY rank LIMIT ?
	`, ftsQuery, scope, ownerGhost, models.ReferenceObsolete, limit)
	if err != nil {
		return nil, fmt.Errorf("fts search: %w", err)
	}
	defer rows.Close()

	var out []LexicalHit
	for rows.Next() {
		var h LexicalHit
		var bm25 float64
		if err := rows.Scan(&h.ChunkID, &h.NoteID, &bm25); err != nil {
			return nil, err
		}
		h.Score = -bm25 // bm25() is smaller-is-better; flip so higher is better
		out = append(out, h)
	}
	return out, rows.Err()
}

// DenseHit is one vector-similarity match.
type DenseHit struct {
	ChunkID int64
	NoteID  int64
	Score   float64
}

// DenseSearch scores every embedded chunk in scope against the query vector
// by cosine similarity. There is no ANN index: this is a full scan, sized
// for a single ghost's note corpus rather than a web-scale one.
func (s *Store) DenseSearch(ctx context.Context, scope models.Scope, ownerGhost string, query []float32, limit int) ([]DenseHit, error) {
	if len(query) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.note_id, v.embedding
		FROM vectors v
		JOIN chunks c ON c.id = v.chunk_id
		JOIN notes n ON n.id = c.note_id
		LEFT JOIN reference_files rf ON rf.file_note_id = n.id
		WHERE n.scope = ? AND n.owner_ghost = ? AND c.embedding_dim = ?
			AND (rf.status IS NULL OR rf.status != ?)
	`, scope, ownerGhost, len(query), models.ReferenceObsolete)
	if err != nil {
		return nil, fmt.Errorf("vector scan: %w", err)
	}
	defer rows.Close()

	var out []DenseHit
	for rows.Next() {
		var h DenseHit
		var blob []byte
		if err := rows.Scan(&h.ChunkID, &h.NoteID, &blob); err != nil {
			return nil, err
		}
		h.Score = cosineSimilarity(query, decodeEmbedding(blob))
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortDenseDesc(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortDenseDesc(hits []DenseHit) {
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].Score > hits[j-1].Score; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}
}

// ChunksForNote returns a note's chunks in index order.
func (s *Store) ChunksForNote(ctx context.Context, noteID int64) ([]*models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, note_id, idx, title, content, content_hash, embedding_model, embedding_dim
		FROM chunks WHERE note_id = ? ORDER BY idx
	`, noteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Chunk
	for rows.Next() {
		c := &models.Chunk{}
		if err := rows.Scan(&c.ID, &c.NoteID, &c.Index, &c.Title, &c.Content, &c.ContentHash, &c.EmbeddingModel, &c.EmbeddingDim); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// AllChunks returns every chunk row in the store, across every note and
// scope, ordered by id. Used by a full reindex when the embedding provider
// or model changes (§4.3): the caller doesn't need to enumerate notes or
// scopes to reach every chunk that needs re-embedding.
func (s *Store) AllChunks(ctx context.Context) ([]*models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, note_id, idx, title, content, content_hash, embedding_model, embedding_dim
		FROM chunks ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Chunk
	for rows.Next() {
		c := &models.Chunk{}
		if err := rows.Scan(&c.ID, &c.NoteID, &c.Index, &c.Title, &c.Content, &c.ContentHash, &c.EmbeddingModel, &c.EmbeddingDim); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateChunkEmbedding replaces a single chunk's embedding vector and
// embedding metadata in place, leaving its content and FTS row untouched.
// Used by Reindex to re-embed a chunk whose content hasn't changed but
// whose embedding provider or model has.
func (s *Store) UpdateChunkEmbedding(ctx context.Context, chunkID int64, model string, dim int, embedding []float32) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, "UPDATE chunks SET embedding_model = ?, embedding_dim = ? WHERE id = ?", model, dim, chunkID)
	if err != nil {
		return err
	}
	if err := expectOneRow(res); err != nil {
		return err
	}

	blob := encodeEmbedding(embedding)
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO vectors(chunk_id, embedding) VALUES (?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET embedding = excluded.embedding
	`, chunkID, blob); err != nil {
		return err
	}

	return tx.Commit()
}

// ChunkGet fetches a single chunk with its note_id, used to hydrate search
// hits into NoteSummary snippets.
func (s *Store) ChunkGet(ctx context.Context, id int64) (*models.Chunk, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, note_id, idx, title, content, content_hash, embedding_model, embedding_dim
		FROM chunks WHERE id = ?
	`, id)
	c := &models.Chunk{}
	if err := row.Scan(&c.ID, &c.NoteID, &c.Index, &c.Title, &c.Content, &c.ContentHash, &c.EmbeddingModel, &c.EmbeddingDim); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}
