package knowledge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/haasonsaas/nexus/internal/knowledge/fetch"
	"github.com/haasonsaas/nexus/internal/storage"
	"github.com/haasonsaas/nexus/pkg/models"
)

// TopicCreateResult reports what a phase-2 topic import actually wrote.
type TopicCreateResult struct {
	TopicID       int64
	FilesIngested int
	Skipped       []string // source URLs that failed to fetch, with the reason inline
}

// TopicApprovalSummary is phase 1 of the two-phase reference-topic import:
// a cheap, read-only inspection of each source (a git ref check, an HTTP
// HEAD) that produces a human-readable summary for an operator to approve
// before anything is actually fetched and ingested.
func (e *Engine) TopicApprovalSummary(ctx context.Context, req models.TopicCreateRequest) (models.TopicApprovalSummary, error) {
	lines := make([]string, 0, len(req.Sources))
	for _, src := range req.Sources {
		desc, err := describeSource(ctx, src)
		if err != nil {
			desc = fmt.Sprintf("%s %s: could not inspect (%v)", src.Type, src.URL, err)
		}
		lines = append(lines, "- "+desc)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Create reference topic %q with %d source(s):\n", req.Title, len(req.Sources))
	b.WriteString(strings.Join(lines, "\n"))
	if req.Description != "" {
		b.WriteString("\n\n" + req.Description)
	}

	return models.TopicApprovalSummary{Title: req.Title, Summary: b.String()}, nil
}

func describeSource(ctx context.Context, src models.TopicSource) (string, error) {
	switch src.Type {
	case "git":
		ref := src.Ref
		if ref == "" {
			ref = "HEAD"
		}
		cmd := exec.CommandContext(ctx, "git", "ls-remote", "--exit-code", src.URL, ref)
		if err := cmd.Run(); err != nil {
			return "", fmt.Errorf("git ref %q unreachable: %w", ref, err)
		}
		filter := src.PathFilter
		if filter == "" {
			filter = "(whole repository)"
		}
		return fmt.Sprintf("git repository %s at %s, path filter %s", src.URL, ref, filter), nil
	case "web":
		status, contentType, err := headRequest(ctx, src.URL)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("web page %s (HTTP %d, %s)", src.URL, status, contentType), nil
	case "crawl":
		status, contentType, err := headRequest(ctx, src.URL)
		if err != nil {
			return "", err
		}
		depth := src.CrawlDepth
		if depth <= 0 {
			depth = defaultCrawlDepthDisplay
		}
		pages := src.CrawlPages
		if pages <= 0 {
			pages = defaultCrawlPagesDisplay
		}
		return fmt.Sprintf("crawl seed %s (HTTP %d, %s), depth<=%d, pages<=%d", src.URL, status, contentType, depth, pages), nil
	default:
		return "", fmt.Errorf("unknown source type %q", src.Type)
	}
}

const (
	defaultCrawlDepthDisplay = 1
	defaultCrawlPagesDisplay = 50
)

// TopicCreate is phase 2: it actually fetches every source and ingests the
// files it returns under the topic note. It must only be called once the
// caller has recorded approval for the phase-1 summary.
func (e *Engine) TopicCreate(ctx context.Context, ghostName string, req models.TopicCreateRequest) (TopicCreateResult, error) {
	slug := slugify(req.Title)
	topicTitle := req.Title
	trust := req.TrustScore
	if trust == 0 {
		trust = 5
	}

	topicNote := &models.Note{
		Title:      topicTitle,
		Archetype:  archetypeReferenceTopic,
		Path:       slug + "/topic.md",
		Scope:      models.ScopeSharedReference,
		TrustScore: trust,
		CreatedBy: models.CreatedBy{
			Ghost: ghostName,
			Model: "system",
			Time:  time.Now(),
		},
		Tags:        req.Tags,
		ContentHash: contentHash(req.Description),
	}

	topicID, err := e.store.NoteCreate(ctx, topicNote)
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return TopicCreateResult{}, fmt.Errorf("knowledge: reference topic %q already exists", req.Title)
		}
		return TopicCreateResult{}, err
	}
	if err := e.embedAndStore(ctx, topicID, chunkMarkdown(req.Description)); err != nil {
		return TopicCreateResult{}, err
	}

	result := TopicCreateResult{TopicID: topicID}
	for _, src := range req.Sources {
		files, role, sourceType, err := fetchSource(ctx, src)
		if err != nil {
			result.Skipped = append(result.Skipped, fmt.Sprintf("%s: %v", src.URL, err))
			continue
		}
		for _, f := range files {
			if _, err := e.upsertReferenceFile(ctx, topicID, topicTitle, slug, f, role, sourceType); err != nil {
				result.Skipped = append(result.Skipped, fmt.Sprintf("%s: %v", f.Path, err))
				continue
			}
			result.FilesIngested++
		}
	}

	return result, nil
}

func fetchSource(ctx context.Context, src models.TopicSource) ([]fetch.File, models.ReferenceRole, string, error) {
	role := src.Role
	switch src.Type {
	case "git":
		if role == "" {
			role = models.ReferenceRoleCode
		}
		files, err := fetch.Git(ctx, src.URL, src.Ref, src.PathFilter, fetch.ExtensionsForRole(string(role)))
		return files, role, "git", err
	case "web":
		if role == "" {
			role = models.ReferenceRoleDocs
		}
		f, _, err := fetch.Web(ctx, src.URL)
		if err != nil {
			return nil, role, "web", err
		}
		return []fetch.File{f}, role, "web", nil
	case "crawl":
		if role == "" {
			role = models.ReferenceRoleDocs
		}
		files, err := fetch.Crawl(ctx, fetch.CrawlConfig{SeedURL: src.URL, MaxDepth: src.CrawlDepth, MaxPages: src.CrawlPages})
		return files, role, "crawl", err
	default:
		return nil, role, "", fmt.Errorf("unknown source type %q", src.Type)
	}
}

// upsertReferenceFile ingests one fetched file under a topic, keyed by a
// topic-scoped title so the same relative path in two different topics
// doesn't collide on the notes table's (scope, owner, title) uniqueness.
func (e *Engine) upsertReferenceFile(ctx context.Context, topicID int64, topicTitle, topicSlug string, f fetch.File, role models.ReferenceRole, sourceType string) (int64, error) {
	title := topicSlug + "/" + f.Path
	res := ingestReferenceFile(f.Path, f.Content, title, role, "["+topicTitle+"]")

	existing, err := e.store.NoteGetByTitle(ctx, models.ScopeSharedReference, "", title)
	var noteID int64
	switch {
	case err == nil:
		noteID = existing.ID
		if existing.ContentHash != res.Note.ContentHash {
			if err := e.store.NoteUpdateContent(ctx, noteID, res.Note.ContentHash); err != nil {
				return 0, err
			}
			if err := e.embedAndStore(ctx, noteID, res.Chunks); err != nil {
				return 0, err
			}
		}
	case errors.Is(err, storage.ErrNotFound):
		id, err := e.store.NoteCreate(ctx, res.Note)
		if err != nil {
			return 0, err
		}
		noteID = id
		if err := e.embedAndStore(ctx, noteID, res.Chunks); err != nil {
			return 0, err
		}
	default:
		return 0, err
	}

	return noteID, e.store.ReferenceFilePut(ctx, &models.ReferenceFile{
		TopicID:    topicID,
		FileNoteID: noteID,
		RelPath:    f.Path,
		Role:       role,
		SourceURL:  f.SourceURL,
		SourceType: sourceType,
		FetchedAt:  time.Now(),
		Status:     models.ReferenceActive,
	})
}

// TopicSearch runs the hybrid search restricted to reference-topic notes
// (the topic.md anchor notes, not their individual files), mirroring the
// original's topic-scoped variant of the same lexical+dense pipeline.
func (e *Engine) TopicSearch(ctx context.Context, query string, opts SearchOptions) ([]models.NoteSummary, error) {
	topicIDs, err := e.topicIDs(ctx)
	if err != nil {
		return nil, err
	}
	if len(topicIDs) == 0 {
		return nil, nil
	}
	opts.NoteIDs = topicIDs
	sel := ScopeSelector{Scopes: []models.Scope{models.ScopeSharedReference}}
	return e.Search(ctx, query, sel, opts)
}

func (e *Engine) topicIDs(ctx context.Context) ([]int64, error) {
	rows, err := e.store.DB().QueryContext(ctx, "SELECT DISTINCT topic_id FROM reference_files")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// TopicListEntry summarizes one reference topic for listing.
type TopicListEntry struct {
	Note      *models.Note
	FileCount int
}

// TopicList enumerates every reference topic with its ingested file count.
func (e *Engine) TopicList(ctx context.Context) ([]TopicListEntry, error) {
	ids, err := e.topicIDs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]TopicListEntry, 0, len(ids))
	for _, id := range ids {
		note, err := e.store.NoteGet(ctx, id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return nil, err
		}
		files, err := e.store.ReferenceFilesForTopic(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, TopicListEntry{Note: note, FileCount: len(files)})
	}
	return out, nil
}

// RecentTopics returns the most recently created topics, newest first.
func (e *Engine) RecentTopics(ctx context.Context, limit int) ([]TopicListEntry, error) {
	all, err := e.TopicList(ctx)
	if err != nil {
		return nil, err
	}
	for i := 1; i < len(all); i++ {
		for j := i; j > 0 && all[j].Note.CreatedBy.Time.After(all[j-1].Note.CreatedBy.Time); j-- {
			all[j], all[j-1] = all[j-1], all[j]
		}
	}
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// ReferenceFiles lists the files ingested under a topic, identified by its
// note title.
func (e *Engine) ReferenceFiles(ctx context.Context, topicTitle string) (*models.Note, []*models.ReferenceFile, error) {
	topic, err := e.store.NoteGetByTitle(ctx, models.ScopeSharedReference, "", topicTitle)
	if err != nil {
		return nil, nil, err
	}
	files, err := e.store.ReferenceFilesForTopic(ctx, topic.ID)
	if err != nil {
		return nil, nil, err
	}
	return topic, files, nil
}

// SetReferenceFileStatus marks one file under a topic active, problematic,
// or obsolete; a problematic file is down-weighted in search, mirroring the
// boost table's 0.5 penalty.
func (e *Engine) SetReferenceFileStatus(ctx context.Context, topicTitle, relPath string, status models.ReferenceStatus) error {
	topic, files, err := e.ReferenceFiles(ctx, topicTitle)
	if err != nil {
		return err
	}
	for _, f := range files {
		if f.RelPath == relPath {
			return e.store.ReferenceFileSetStatus(ctx, topic.ID, f.FileNoteID, status)
		}
	}
	return fmt.Errorf("knowledge: no file %q under topic %q", relPath, topicTitle)
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(title string) string {
	s := slugPattern.ReplaceAllString(strings.ToLower(title), "-")
	return strings.Trim(s, "-")
}

func headRequest(ctx context.Context, rawURL string) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("User-Agent", "nexus-gateway-knowledge/1")

	resp, err := httpHeadClient.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("HEAD %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	return resp.StatusCode, resp.Header.Get("Content-Type"), nil
}

var httpHeadClient = &http.Client{Timeout: 15 * time.Second}
