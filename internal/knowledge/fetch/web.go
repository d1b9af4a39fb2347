package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

var httpClient = &http.Client{Timeout: defaultTimeout}

// Web fetches a single page and converts it to markdown. The page title
// (from <title> or the first <h1>) is returned alongside the file; the
// file's Path is derived from the URL path, not from the title.
func Web(ctx context.Context, rawURL string) (File, string, error) {
	html, _, err := fetchHTML(ctx, rawURL)
	if err != nil {
		return File{}, "", err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return File{}, "", fmt.Errorf("fetch: parse html: %w", err)
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}

	markdown, err := htmltomarkdown.ConvertString(html)
	if err != nil {
		return File{}, "", fmt.Errorf("fetch: convert html to markdown: %w", err)
	}

	return File{
		Path:      urlToFilename(rawURL),
		Content:   markdown,
		SourceURL: rawURL,
	}, title, nil
}

// fetchHTML issues a GET request and rejects anything but a 2xx HTML
// response: the two-phase import and the crawler both rely on this to skip
// non-page resources (JSON endpoints, images, PDFs) a BFS might stumble
// into.
func fetchHTML(ctx context.Context, rawURL string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("fetch: GET %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", "", fmt.Errorf("fetch: %s returned HTTP %d", rawURL, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "text/html") && !strings.Contains(contentType, "application/xhtml") {
		return "", "", fmt.Errorf("fetch: %s has non-HTML content-type %q", rawURL, contentType)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("fetch: read body of %s: %w", rawURL, err)
	}
	return string(body), contentType, nil
}

// urlToFilename derives a stable relative filename from a URL's path, used
// as the ingested note's rel_path.
func urlToFilename(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "page.md"
	}
	path := strings.Trim(u.Path, "/")
	if path == "" {
		path = "index"
	}
	path = strings.ReplaceAll(path, "/", "_")
	return path + ".md"
}
