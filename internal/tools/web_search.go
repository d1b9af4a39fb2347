package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// webSearchBackend selects which search provider a query is routed to.
type webSearchBackend string

const (
	webSearchBackendSearXNG    webSearchBackend = "searxng"
	webSearchBackendDuckDuckGo webSearchBackend = "duckduckgo"

	webSearchCacheTTL     = 5 * time.Minute
	webSearchMaxCacheSize = 1000
)

// webSearchResult is one hit returned to the ghost.
type webSearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

type webSearchCacheEntry struct {
	results   []webSearchResult
	expiresAt time.Time
}

// webSearchTool searches the web via a configured SearXNG instance, falling
// back to DuckDuckGo's Instant Answer API when SearXNG is unset or a query
// against it fails. Trimmed from a fuller multi-backend tool: no Brave API
// key support and no image/news search, since nothing in this gateway's
// scope consumes either.
type webSearchTool struct {
	searxngURL string
	httpClient *http.Client

	cacheMu sync.RWMutex
	cache   map[string]webSearchCacheEntry
}

// newWebSearchTool builds the tool around an optional HTTP client (nil means
// one with a 30-second timeout). searxngURL is left empty, so queries go to
// DuckDuckGo.
func newWebSearchTool(httpClient *http.Client) Tool {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &webSearchTool{
		httpClient: httpClient,
		cache:      make(map[string]webSearchCacheEntry),
	}
}

func (t *webSearchTool) Name() string { return "web_search" }

func (t *webSearchTool) Description() string {
	return "Searches the web and returns titles, URLs, and snippets for the top matches."
}

func (t *webSearchTool) Prompt() string { return "" }

func (t *webSearchTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {"type": "string", "description": "The search query."},
			"result_count": {"type": "integer", "minimum": 1, "maximum": 20, "description": "Defaults to 5."}
		},
		"required": ["query"],
		"additionalProperties": false
	}`)
}

func (t *webSearchTool) Execute(ctx context.Context, tc *ToolContext, input json.RawMessage) (Result, error) {
	var args struct {
		Query       string `json:"query"`
		ResultCount int    `json:"result_count"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return errf("invalid input: " + err.Error())
	}
	if strings.TrimSpace(args.Query) == "" {
		return errf("query is required")
	}
	if args.ResultCount <= 0 {
		args.ResultCount = 5
	} else if args.ResultCount > 20 {
		args.ResultCount = 20
	}

	cacheKey := fmt.Sprintf("%d:%s", args.ResultCount, args.Query)
	if cached, ok := t.fromCache(cacheKey); ok {
		return formatSearchResults(args.Query, cached)
	}

	results, _, err := t.search(ctx, args.Query, args.ResultCount)
	if err != nil {
		return errf(fmt.Sprintf("search failed: %v", err))
	}
	t.putInCache(cacheKey, results)
	return formatSearchResults(args.Query, results)
}

func formatSearchResults(query string, results []webSearchResult) (Result, error) {
	if len(results) == 0 {
		return ok(fmt.Sprintf("No results for %q.", query))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d result(s) for %q:\n\n", len(results), query)
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s\n   %s\n   %s\n\n", i+1, r.Title, r.URL, r.Snippet)
	}
	return ok(b.String())
}

func (t *webSearchTool) search(ctx context.Context, query string, count int) ([]webSearchResult, webSearchBackend, error) {
	if t.searxngURL != "" {
		results, err := t.searchSearXNG(ctx, query, count)
		if err == nil {
			return results, webSearchBackendSearXNG, nil
		}
	}
	results, err := t.searchDuckDuckGo(ctx, query, count)
	if err != nil {
		return nil, "", err
	}
	return results, webSearchBackendDuckDuckGo, nil
}

func (t *webSearchTool) searchSearXNG(ctx context.Context, query string, count int) ([]webSearchResult, error) {
	base, err := url.Parse(t.searxngURL)
	if err != nil {
		return nil, fmt.Errorf("invalid searxng url: %w", err)
	}
	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("pageno", "1")
	q.Set("categories", "general")
	base.Path = "/search"
	base.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("searxng request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("searxng returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse searxng response: %w", err)
	}

	out := make([]webSearchResult, 0, count)
	for i := 0; i < len(parsed.Results) && i < count; i++ {
		r := parsed.Results[i]
		out = append(out, webSearchResult{Title: r.Title, URL: r.URL, Snippet: r.Content})
	}
	return out, nil
}

func (t *webSearchTool) searchDuckDuckGo(ctx context.Context, query string, count int) ([]webSearchResult, error) {
	instantURL := fmt.Sprintf("https://api.duckduckgo.com/?q=%s&format=json&no_html=1", url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, instantURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; NexusGatewayBot/1.0)")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		AbstractText   string `json:"AbstractText"`
		AbstractURL    string `json:"AbstractURL"`
		Heading        string `json:"Heading"`
		RelatedTopics  []struct {
			FirstURL string `json:"FirstURL"`
			Text     string `json:"Text"`
		} `json:"RelatedTopics"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse duckduckgo response: %w", err)
	}

	var out []webSearchResult
	if parsed.AbstractText != "" && parsed.AbstractURL != "" {
		out = append(out, webSearchResult{Title: parsed.Heading, URL: parsed.AbstractURL, Snippet: parsed.AbstractText})
	}
	for i := 0; i < len(parsed.RelatedTopics) && len(out) < count; i++ {
		topic := parsed.RelatedTopics[i]
		if topic.FirstURL == "" || topic.Text == "" {
			continue
		}
		title := topic.Text
		if len(title) > 100 {
			title = title[:100]
		}
		out = append(out, webSearchResult{Title: title, URL: topic.FirstURL, Snippet: topic.Text})
	}
	return out, nil
}

func (t *webSearchTool) fromCache(key string) ([]webSearchResult, bool) {
	t.cacheMu.RLock()
	defer t.cacheMu.RUnlock()
	entry, found := t.cache[key]
	if !found || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.results, true
}

func (t *webSearchTool) putInCache(key string, results []webSearchResult) {
	t.cacheMu.Lock()
	defer t.cacheMu.Unlock()

	now := time.Now()
	for k, v := range t.cache {
		if now.After(v.expiresAt) {
			delete(t.cache, k)
		}
	}
	if len(t.cache) >= webSearchMaxCacheSize {
		return
	}
	t.cache[key] = webSearchCacheEntry{results: results, expiresAt: now.Add(webSearchCacheTTL)}
}
