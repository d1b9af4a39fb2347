package knowledge

import (
	"context"
	"testing"

	"github.com/haasonsaas/nexus/internal/storage"
	"github.com/haasonsaas/nexus/pkg/models"
)

func TestRRFFuse_CombinesAndRanksAcrossLists(t *testing.T) {
	lexical := []storage.LexicalHit{
		{ChunkID: 1, NoteID: 10, Score: 5},
		{ChunkID: 2, NoteID: 11, Score: 3},
	}
	dense := []storage.DenseHit{
		{ChunkID: 2, NoteID: 11, Score: 0.9},
		{ChunkID: 3, NoteID: 12, Score: 0.8},
	}

	fused := rrfFuse(60, lexical, dense, nil)
	if len(fused) != 3 {
		t.Fatalf("got %d fused hits, want 3", len(fused))
	}

	// chunk 2 appears rank 2 in lexical and rank 1 in dense: 1/62 + 1/61.
	want2 := 1.0/62.0 + 1.0/61.0
	var got2 float64
	for _, h := range fused {
		if h.chunkID == 2 {
			got2 = h.score
		}
	}
	if diff := got2 - want2; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("chunk 2 score = %v, want %v", got2, want2)
	}

	// chunk 2 scored from both lists should outrank chunk 1 and chunk 3,
	// each scored from only one list.
	if fused[0].chunkID != 2 {
		t.Errorf("top fused hit = chunk %d, want chunk 2", fused[0].chunkID)
	}
}

func TestRRFFuse_NoteFilterExcludesNonMatchingNotes(t *testing.T) {
	lexical := []storage.LexicalHit{
		{ChunkID: 1, NoteID: 10, Score: 5},
		{ChunkID: 2, NoteID: 11, Score: 3},
	}
	filter := map[int64]bool{11: true}

	fused := rrfFuse(60, lexical, nil, filter)
	if len(fused) != 1 || fused[0].noteID != 11 {
		t.Fatalf("got %+v, want only note 11's chunk", fused)
	}
}

func TestRRFFuse_EmptyInputsProduceNoHits(t *testing.T) {
	if fused := rrfFuse(60, nil, nil, nil); len(fused) != 0 {
		t.Errorf("got %+v, want none", fused)
	}
}

func TestScopeSelector_ResolveDefaultsToAllScopes(t *testing.T) {
	sel := ScopeSelector{Ghost: "atlas"}
	pairs := sel.resolve()
	if len(pairs) != len(models.AllScopes()) {
		t.Fatalf("got %d pairs, want %d (one per scope)", len(pairs), len(models.AllScopes()))
	}
}

func TestScopeSelector_ResolveSkipsGhostScopesWithoutGhost(t *testing.T) {
	sel := ScopeSelector{}
	pairs := sel.resolve()
	for _, p := range pairs {
		if isGhostScope(p.scope) {
			t.Errorf("got ghost-owned scope %q with no ghost context", p.scope)
		}
	}
	// shared + shared-reference should still be present.
	if len(pairs) != 2 {
		t.Fatalf("got %d pairs, want 2 (shared, shared-reference)", len(pairs))
	}
}

func TestScopeSelector_ResolveGhostScopesGetOwner(t *testing.T) {
	sel := ScopeSelector{Scopes: []models.Scope{models.ScopeGhostDiary}, Ghost: "atlas"}
	pairs := sel.resolve()
	if len(pairs) != 1 || pairs[0].owner != "atlas" {
		t.Fatalf("got %+v, want owner atlas", pairs)
	}
}

func TestOwnerForScope(t *testing.T) {
	if got := ownerForScope(models.ScopeShared, "atlas"); got != "" {
		t.Errorf("shared scope owner = %q, want empty", got)
	}
	if got := ownerForScope(models.ScopeGhostPrivate, "atlas"); got != "atlas" {
		t.Errorf("ghost-private owner = %q, want atlas", got)
	}
}

func TestSearchOptions_MergeFillsZerosFromConfig(t *testing.T) {
	cfg := DefaultConfig()
	opts := SearchOptions{Limit: 3}.merge(cfg)
	if opts.Limit != 3 {
		t.Errorf("Limit = %d, want explicit 3 preserved", opts.Limit)
	}
	if opts.GraphDepth != cfg.GraphDepth {
		t.Errorf("GraphDepth = %d, want default %d", opts.GraphDepth, cfg.GraphDepth)
	}
	if opts.BM25Limit != cfg.BM25Limit {
		t.Errorf("BM25Limit = %d, want default %d", opts.BM25Limit, cfg.BM25Limit)
	}
}

// fakeNote is a minimal note-graph fixture for expandLinks, keyed by id.
type fakeNote struct {
	id        int64
	neighbors []int64
}

func neighborFunc(graph map[int64]fakeNote) func(context.Context, int64) ([]*models.Note, error) {
	return func(_ context.Context, id int64) ([]*models.Note, error) {
		n, ok := graph[id]
		if !ok {
			return nil, nil
		}
		out := make([]*models.Note, 0, len(n.neighbors))
		for _, nb := range n.neighbors {
			out = append(out, &models.Note{ID: nb})
		}
		return out, nil
	}
}

func TestExpandLinks_BoundedByDepth(t *testing.T) {
	e := &Engine{}
	// 1 -> 2 -> 3 -> 4, a straight chain.
	graph := map[int64]fakeNote{
		1: {id: 1, neighbors: []int64{2}},
		2: {id: 2, neighbors: []int64{3}},
		3: {id: 3, neighbors: []int64{4}},
		4: {id: 4, neighbors: []int64{}},
	}

	out, err := e.expandLinks(context.Background(), 1, 2, 10, neighborFunc(graph))
	if err != nil {
		t.Fatalf("expandLinks: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d notes at depth 2, want 2 (nodes 2 and 3)", len(out))
	}
}

func TestExpandLinks_BoundedByMax(t *testing.T) {
	e := &Engine{}
	graph := map[int64]fakeNote{
		1: {id: 1, neighbors: []int64{2, 3, 4, 5}},
	}

	out, err := e.expandLinks(context.Background(), 1, 3, 2, neighborFunc(graph))
	if err != nil {
		t.Fatalf("expandLinks: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d notes, want capped at max=2", len(out))
	}
}

func TestExpandLinks_DoesNotRevisitNodes(t *testing.T) {
	e := &Engine{}
	// A cycle: 1 -> 2 -> 1.
	graph := map[int64]fakeNote{
		1: {id: 1, neighbors: []int64{2}},
		2: {id: 2, neighbors: []int64{1}},
	}

	out, err := e.expandLinks(context.Background(), 1, 5, 10, neighborFunc(graph))
	if err != nil {
		t.Fatalf("expandLinks: %v", err)
	}
	if len(out) != 1 || out[0].ID != 2 {
		t.Fatalf("got %+v, want only node 2 (the root is never revisited)", out)
	}
}
