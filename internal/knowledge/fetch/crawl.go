package fetch

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/html"
)

const (
	defaultCrawlDepth = 1
	maxCrawlDepth     = 3
	defaultCrawlPages = 50
	maxCrawlPages     = 200
)

// CrawlConfig bounds a documentation-site crawl: BFS from the seed URL,
// following only same-host HTTP(S) links, up to max_depth hops and
// max_pages total fetches.
type CrawlConfig struct {
	SeedURL  string
	MaxDepth int
	MaxPages int
}

func (c CrawlConfig) normalize() CrawlConfig {
	if c.MaxDepth <= 0 {
		c.MaxDepth = defaultCrawlDepth
	}
	if c.MaxDepth > maxCrawlDepth {
		c.MaxDepth = maxCrawlDepth
	}
	if c.MaxPages <= 0 {
		c.MaxPages = defaultCrawlPages
	}
	if c.MaxPages > maxCrawlPages {
		c.MaxPages = maxCrawlPages
	}
	return c
}

type queueEntry struct {
	url   string
	depth int
}

// Crawl performs a bounded breadth-first crawl of a single host, converting
// each fetched page to markdown. A page that fails to fetch (network error,
// non-2xx, non-HTML content-type) is skipped rather than aborting the
// crawl.
func Crawl(ctx context.Context, cfg CrawlConfig) ([]File, error) {
	cfg = cfg.normalize()

	seed, err := url.Parse(cfg.SeedURL)
	if err != nil {
		return nil, fmt.Errorf("fetch: parse seed url: %w", err)
	}
	host := seed.Host
	if host == "" {
		return nil, fmt.Errorf("fetch: seed url %q has no host", cfg.SeedURL)
	}

	seedNorm := normalizeURL(seed)
	visited := map[string]bool{seedNorm: true}
	queue := []queueEntry{{url: seedNorm, depth: 0}}

	var pages []File
	for len(queue) > 0 && len(pages) < cfg.MaxPages {
		entry := queue[0]
		queue = queue[1:]

		raw, _, err := fetchHTML(ctx, entry.url)
		if err != nil {
			continue
		}

		if entry.depth < cfg.MaxDepth {
			for _, link := range extractSameHostLinks(raw, entry.url, host) {
				if visited[link] || len(visited) >= cfg.MaxPages*2 {
					continue
				}
				visited[link] = true
				queue = append(queue, queueEntry{url: link, depth: entry.depth + 1})
			}
		}

		markdown, err := htmltomarkdown.ConvertString(raw)
		if err != nil {
			continue
		}
		pages = append(pages, File{
			Path:      urlToFilename(entry.url),
			Content:   markdown,
			SourceURL: entry.url,
		})
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("fetch: crawl of %s produced no pages", cfg.SeedURL)
	}
	return pages, nil
}

// extractSameHostLinks walks the parsed HTML token stream for <a href>
// targets, resolves them against base, and keeps only same-host HTTP(S)
// links with fragments stripped.
func extractSameHostLinks(rawHTML, base, allowedHost string) []string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil
	}

	tokenizer := html.NewTokenizer(strings.NewReader(rawHTML))
	var out []string
	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			return out
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		token := tokenizer.Token()
		if token.Data != "a" {
			continue
		}
		for _, attr := range token.Attr {
			if attr.Key != "href" {
				continue
			}
			if link := resolveLink(attr.Val, baseURL, allowedHost); link != "" {
				out = append(out, link)
			}
		}
	}
}

func resolveLink(href string, base *url.URL, allowedHost string) string {
	if href == "" || strings.HasPrefix(href, "#") ||
		strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
		return ""
	}

	resolved, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if !resolved.IsAbs() {
		resolved = base.ResolveReference(resolved)
	}
	if resolved.Host != allowedHost {
		return ""
	}
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return normalizeURL(resolved)
}

// normalizeURL strips the fragment so "/page#a" and "/page#b" dedupe to one
// crawl entry.
func normalizeURL(u *url.URL) string {
	out := *u
	out.Fragment = ""
	return out.String()
}
