package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/haasonsaas/nexus/internal/knowledge/fetch"
)

const webFetchMaxContentChars = 20000

type webFetchTool struct{}

func newWebFetchTool() Tool { return webFetchTool{} }

func (webFetchTool) Name() string { return "web_fetch" }

func (webFetchTool) Description() string {
	return "Fetches a web page and returns its content converted to markdown."
}

func (webFetchTool) Prompt() string { return "" }

func (webFetchTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"url": {"type": "string", "description": "The URL to fetch."}
		},
		"required": ["url"],
		"additionalProperties": false
	}`)
}

func (webFetchTool) Execute(ctx context.Context, tc *ToolContext, input json.RawMessage) (Result, error) {
	var args struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return errf("invalid input: " + err.Error())
	}

	file, title, err := fetch.Web(ctx, args.URL)
	if err != nil {
		return errf(fmt.Sprintf("fetch failed: %v", err))
	}

	content := file.Content
	truncated := false
	if len(content) > webFetchMaxContentChars {
		content = content[:webFetchMaxContentChars]
		truncated = true
	}

	result := fmt.Sprintf("# %s\n\n%s", title, content)
	if truncated {
		result += fmt.Sprintf("\n\n... (truncated at %d characters)", webFetchMaxContentChars)
	}
	return ok(result)
}
