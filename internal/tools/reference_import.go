package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/haasonsaas/nexus/pkg/models"
)

const referenceImportPrompt = `## Importing Reference Material

reference_import adds a new shared-reference topic from one or more external
sources (git repositories, web pages, or a bounded same-host crawl). The
first call with a given title returns an APPROVAL_REQUIRED error carrying a
human-readable summary of what would be fetched; nothing is written until
the operator approves and the same call is retried.`

type referenceImportTool struct{}

func newReferenceImportTool() Tool { return referenceImportTool{} }

func (referenceImportTool) Name() string { return "reference_import" }

func (referenceImportTool) Description() string {
	return "Creates a shared-reference topic by fetching and ingesting one or more external sources. Requires operator approval before anything is fetched."
}

func (referenceImportTool) Prompt() string { return referenceImportPrompt }

func (referenceImportTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"title": {"type": "string", "description": "Title of the new reference topic."},
			"description": {"type": "string", "description": "Short description of what this topic covers."},
			"tags": {"type": "array", "items": {"type": "string"}},
			"trust_score": {"type": "integer", "minimum": 0, "maximum": 10},
			"sources": {
				"type": "array",
				"items": {
					"type": "object",
					"properties": {
						"type": {"type": "string", "enum": ["git", "web", "crawl"]},
						"url": {"type": "string"},
						"ref": {"type": "string", "description": "git ref, defaults to HEAD."},
						"path_filter": {"type": "string", "description": "git: only ingest paths under this prefix."},
						"role": {"type": "string", "enum": ["docs", "code"], "description": "Defaults to docs."},
						"crawl_depth": {"type": "integer"},
						"crawl_pages": {"type": "integer"}
					},
					"required": ["type", "url"],
					"additionalProperties": false
				}
			}
		},
		"required": ["title", "sources"],
		"additionalProperties": false
	}`)
}

func (t referenceImportTool) Execute(ctx context.Context, tc *ToolContext, input json.RawMessage) (Result, error) {
	var args struct {
		Title       string  `json:"title"`
		Description string  `json:"description"`
		Tags        []string `json:"tags"`
		TrustScore  int      `json:"trust_score"`
		Sources     []struct {
			Type       string `json:"type"`
			URL        string `json:"url"`
			Ref        string `json:"ref"`
			PathFilter string `json:"path_filter"`
			Role       string `json:"role"`
			CrawlDepth int    `json:"crawl_depth"`
			CrawlPages int    `json:"crawl_pages"`
		} `json:"sources"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return errf("invalid input: " + err.Error())
	}
	if len(args.Sources) == 0 {
		return errf("at least one source is required")
	}
	if tc.Knowledge == nil {
		return errf("knowledge engine not available")
	}

	sources := make([]models.TopicSource, 0, len(args.Sources))
	for _, s := range args.Sources {
		role := models.ReferenceRoleDocs
		if s.Role == string(models.ReferenceRoleCode) {
			role = models.ReferenceRoleCode
		}
		sources = append(sources, models.TopicSource{
			Type:       s.Type,
			URL:        s.URL,
			Ref:        s.Ref,
			PathFilter: s.PathFilter,
			Role:       role,
			CrawlDepth: s.CrawlDepth,
			CrawlPages: s.CrawlPages,
		})
	}

	req := models.TopicCreateRequest{
		Title:       args.Title,
		Description: args.Description,
		Sources:     sources,
		Tags:        args.Tags,
		TrustScore:  args.TrustScore,
	}

	if !tc.HasApproval("reference_import") {
		summary, err := tc.Knowledge.TopicApprovalSummary(ctx, req)
		if err != nil {
			return errf(fmt.Sprintf("failed to summarize sources: %v", err))
		}
		reason := ApprovalReason{Kind: "reference_import", Title: summary.Title, Summary: summary.Summary}
		return errf(reason.ToError())
	}

	result, err := tc.Knowledge.TopicCreate(ctx, tc.GhostName, req)
	if err != nil {
		return errf(fmt.Sprintf("import failed: %v", err))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Created reference topic %q (id=%d), ingested %d file(s).\n", args.Title, result.TopicID, result.FilesIngested)
	if len(result.Skipped) > 0 {
		fmt.Fprintf(&b, "Skipped:\n")
		for _, s := range result.Skipped {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}
	return ok(b.String())
}
