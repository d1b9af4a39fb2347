package knowledge

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"

	"github.com/haasonsaas/nexus/internal/storage"
	"github.com/haasonsaas/nexus/pkg/models"
)

// archetypeReferenceDocs marks a note created by topic ingestion for a
// documentation-role source; hydrateBoosted gives these notes extra weight,
// mirroring the original's per-note-type doc boost.
const archetypeReferenceDocs = "reference-docs"

// ScopeSelector picks which partitions a search (or reconciliation pass)
// covers. An empty Scopes list means "every scope the ghost can see":
// shared, shared-reference, and (when Ghost is set) that ghost's own three
// private partitions.
type ScopeSelector struct {
	Scopes []models.Scope
	Ghost  string
}

type scopePair struct {
	scope models.Scope
	owner string
}

func ownerForScope(scope models.Scope, ghost string) string {
	switch scope {
	case models.ScopeGhostPrivate, models.ScopeGhostProjects, models.ScopeGhostDiary:
		return ghost
	default:
		return ""
	}
}

func (sel ScopeSelector) resolve() []scopePair {
	scopes := sel.Scopes
	if len(scopes) == 0 {
		scopes = models.AllScopes()
	}
	pairs := make([]scopePair, 0, len(scopes))
	for _, sc := range scopes {
		owner := ownerForScope(sc, sel.Ghost)
		if owner == "" && sel.Ghost == "" && isGhostScope(sc) {
			// No ghost context: skip partitions that require one rather
			// than silently searching every ghost's private notes.
			continue
		}
		pairs = append(pairs, scopePair{scope: sc, owner: owner})
	}
	return pairs
}

func isGhostScope(sc models.Scope) bool {
	return sc == models.ScopeGhostPrivate || sc == models.ScopeGhostProjects || sc == models.ScopeGhostDiary
}

// SearchOptions overrides the engine's default search settings for a single
// call, mirroring the original's per-query option merge over instance
// defaults.
type SearchOptions struct {
	Limit      int
	GraphDepth int
	GraphMax   int
	BM25Limit  int
	DenseLimit int
	// NoteIDs restricts fused results to chunks belonging to these notes,
	// used by topic search to scope the hybrid search to one topic's files.
	NoteIDs []int64
}

func (o SearchOptions) merge(cfg Config) SearchOptions {
	if o.Limit <= 0 {
		o.Limit = cfg.MaxResults
	}
	if o.GraphDepth <= 0 {
		o.GraphDepth = cfg.GraphDepth
	}
	if o.GraphMax <= 0 {
		o.GraphMax = cfg.GraphMax
	}
	if o.BM25Limit <= 0 {
		o.BM25Limit = cfg.BM25Limit
	}
	if o.DenseLimit <= 0 {
		o.DenseLimit = cfg.DenseLimit
	}
	return o
}

type fusedHit struct {
	chunkID int64
	noteID  int64
	score   float64
}

// Search runs the hybrid lexical+dense search: resolve scopes, reconcile any
// that have gone stale, fuse BM25 and cosine rankings with Reciprocal Rank
// Fusion, hydrate the fused chunks into notes with trust/type/status boosts
// applied, then expand the graph neighborhood of each result.
func (e *Engine) Search(ctx context.Context, query string, sel ScopeSelector, opts SearchOptions) ([]models.NoteSummary, error) {
	opts = opts.merge(e.cfg)
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	pairs := sel.resolve()
	if len(pairs) == 0 {
		return nil, nil
	}

	for _, p := range pairs {
		if err := e.reconcileIfStale(ctx, p.scope, p.owner); err != nil {
			e.logger.Warn("reconcile before search failed", "scope", p.scope, "owner", p.owner, "error", err)
		}
	}

	var lexical []storage.LexicalHit
	for _, p := range pairs {
		hits, err := e.store.LexicalSearch(ctx, p.scope, p.owner, query, opts.BM25Limit)
		if err != nil {
			return nil, err
		}
		lexical = append(lexical, hits...)
	}
	sort.Slice(lexical, func(i, j int) bool { return lexical[i].Score > lexical[j].Score })

	var dense []storage.DenseHit
	if e.embedder != nil {
		vec, err := e.embedder.Embed(ctx, query)
		if err != nil {
			return nil, err
		}
		for _, p := range pairs {
			hits, err := e.store.DenseSearch(ctx, p.scope, p.owner, vec, opts.DenseLimit)
			if err != nil {
				return nil, err
			}
			dense = append(dense, hits...)
		}
		sort.Slice(dense, func(i, j int) bool { return dense[i].Score > dense[j].Score })
	}

	var noteFilter map[int64]bool
	if len(opts.NoteIDs) > 0 {
		noteFilter = make(map[int64]bool, len(opts.NoteIDs))
		for _, id := range opts.NoteIDs {
			noteFilter[id] = true
		}
	}

	fused := rrfFuse(e.cfg.RRFK, lexical, dense, noteFilter)
	if len(fused) == 0 {
		return nil, nil
	}

	summaries, err := e.hydrateBoosted(ctx, fused)
	if err != nil {
		return nil, err
	}

	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Score > summaries[j].Score })
	if len(summaries) > opts.Limit {
		summaries = summaries[:opts.Limit]
	}

	for i := range summaries {
		if err := e.expandGraph(ctx, &summaries[i], opts.GraphDepth, opts.GraphMax); err != nil {
			return nil, err
		}
	}

	return summaries, nil
}

// rrfFuse combines two independently-ranked chunk lists into a single score
// per chunk id: score += 1/(k+rank) for each list the chunk appears in, rank
// being its 1-based position in that list. A chunk present in both lists
// gets credit from both.
func rrfFuse(k int, lexical []storage.LexicalHit, dense []storage.DenseHit, noteFilter map[int64]bool) []fusedHit {
	scores := make(map[int64]*fusedHit)

	add := func(chunkID, noteID int64, rank int) {
		if noteFilter != nil && !noteFilter[noteID] {
			return
		}
		h, ok := scores[chunkID]
		if !ok {
			h = &fusedHit{chunkID: chunkID, noteID: noteID}
			scores[chunkID] = h
		}
		h.score += 1.0 / float64(k+rank)
	}

	for i, hit := range lexical {
		add(hit.ChunkID, hit.NoteID, i+1)
	}
	for i, hit := range dense {
		add(hit.ChunkID, hit.NoteID, i+1)
	}

	out := make([]fusedHit, 0, len(scores))
	for _, h := range scores {
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].score > out[j].score })
	return out
}

// hydrateBoosted loads each fused chunk's owning note and applies the
// trust/type/status boosts to its fused score: trust_boost = 1 + trust/20,
// type_boost favors notes ingested as reference documentation, status_factor
// halves notes a topic maintainer has flagged problematic.
func (e *Engine) hydrateBoosted(ctx context.Context, fused []fusedHit) ([]models.NoteSummary, error) {
	out := make([]models.NoteSummary, 0, len(fused))
	for _, h := range fused {
		chunk, err := e.store.ChunkGet(ctx, h.chunkID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return nil, err
		}
		note, err := e.store.NoteGet(ctx, h.noteID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return nil, err
		}

		trustBoost := 1.0 + float64(note.TrustScore)/20.0
		typeBoost := 1.0
		if note.Archetype == archetypeReferenceDocs {
			typeBoost = e.cfg.DocBoost
		}
		statusFactor, err := e.statusFactor(ctx, note.ID)
		if err != nil {
			return nil, err
		}

		snippet := chunk.Content
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}

		out = append(out, models.NoteSummary{
			Note:    note,
			ChunkID: chunk.ID,
			Snippet: snippet,
			Score:   h.score * trustBoost * typeBoost * statusFactor,
		})
	}
	return out, nil
}

// statusFactor looks up whether a note is a reference file flagged
// problematic and applies its ranking penalty; a note that isn't a
// reference file at all carries no penalty. Obsolete reference files never
// reach here: LexicalSearch/DenseSearch exclude them by joining
// reference_files before hits are fused and hydrated.
func (e *Engine) statusFactor(ctx context.Context, noteID int64) (float64, error) {
	var status string
	err := e.store.DB().QueryRowContext(ctx,
		"SELECT status FROM reference_files WHERE file_note_id = ? LIMIT 1", noteID,
	).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 1.0, nil
		}
		return 1.0, err
	}
	if models.ReferenceStatus(status) == models.ReferenceProblematic {
		return 0.5, nil
	}
	return 1.0, nil
}

// expandGraph populates a result's neighborhood: outgoing/incoming links,
// the parent chain, and notes sharing a tag, each bounded by depth and max
// so a densely-linked note can't blow up the response.
func (e *Engine) expandGraph(ctx context.Context, summary *models.NoteSummary, depth, max int) error {
	note := summary.Note

	out, err := e.expandLinksOut(ctx, note.ID, depth, max)
	if err != nil {
		return err
	}
	summary.Outgoing = out

	in, err := e.expandLinksIn(ctx, note.ID, depth, max)
	if err != nil {
		return err
	}
	summary.Incoming = in

	parents, err := e.expandParents(ctx, note.ID, depth)
	if err != nil {
		return err
	}
	summary.Parents = parents

	tagNotes, err := e.tagNeighbors(ctx, note, max)
	if err != nil {
		return err
	}
	summary.TagNotes = tagNotes

	return nil
}

// expandLinksOut performs a breadth-first walk over resolved outgoing links,
// bounded by both depth (hop count) and max (total notes returned).
func (e *Engine) expandLinksOut(ctx context.Context, rootID int64, depth, max int) ([]*models.Note, error) {
	return e.expandLinks(ctx, rootID, depth, max, e.store.OutgoingLinks)
}

// expandLinksIn mirrors expandLinksOut over incoming links.
func (e *Engine) expandLinksIn(ctx context.Context, rootID int64, depth, max int) ([]*models.Note, error) {
	return e.expandLinks(ctx, rootID, depth, max, e.store.IncomingLinks)
}

func (e *Engine) expandLinks(ctx context.Context, rootID int64, depth, max int, neighbors func(context.Context, int64) ([]*models.Note, error)) ([]*models.Note, error) {
	visited := map[int64]bool{rootID: true}
	frontier := []int64{rootID}
	var out []*models.Note

	for d := 0; d < depth && len(out) < max && len(frontier) > 0; d++ {
		var next []int64
		for _, id := range frontier {
			notes, err := neighbors(ctx, id)
			if err != nil {
				return nil, err
			}
			for _, n := range notes {
				if visited[n.ID] {
					continue
				}
				visited[n.ID] = true
				out = append(out, n)
				next = append(next, n.ID)
				if len(out) >= max {
					break
				}
			}
			if len(out) >= max {
				break
			}
		}
		frontier = next
	}
	if len(out) > max {
		out = out[:max]
	}
	return out, nil
}

// expandParents walks the parent chain up to depth hops. Unlike link
// expansion this is a single chain, not a BFS fan-out: every note has at
// most one parent.
func (e *Engine) expandParents(ctx context.Context, rootID int64, depth int) ([]*models.Note, error) {
	var out []*models.Note
	currentID := rootID
	for i := 0; i < depth; i++ {
		note, err := e.store.NoteGet(ctx, currentID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				break
			}
			return nil, err
		}
		if note.ParentID == nil {
			break
		}
		parent, err := e.store.NoteGet(ctx, *note.ParentID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				break
			}
			return nil, err
		}
		out = append(out, parent)
		currentID = parent.ID
	}
	return out, nil
}

// tagNeighbors finds other notes in the same scope/owner namespace sharing
// at least one of note's tags.
func (e *Engine) tagNeighbors(ctx context.Context, note *models.Note, max int) ([]*models.Note, error) {
	if len(note.Tags) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(note.Tags)), ",")
	args := make([]any, 0, len(note.Tags)+3)
	for _, t := range note.Tags {
		args = append(args, t)
	}
	args = append(args, note.ID, note.Scope, note.OwnerGhost, max)

	rows, err := e.store.DB().QueryContext(ctx, `
		SELECT DISTINCT n.id FROM notes n
		JOIN tags t ON t.note_id = n.id
		WHERE t.tag IN (`+placeholders+`)
		AND n.id != ? AND n.scope = ? AND n.owner_ghost = ?
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*models.Note, 0, len(ids))
	for _, id := range ids {
		n, err := e.store.NoteGet(ctx, id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
