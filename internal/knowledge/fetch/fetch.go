// Package fetch retrieves the external sources a reference topic imports:
// a git repository (optionally path-filtered), a single web page converted
// to markdown, or a bounded same-host crawl of a documentation site.
package fetch

import "time"

// File is one retrieved file, ready for ingestion.
type File struct {
	Path      string // relative path within the topic, used as the note's rel_path
	Content   string
	SourceURL string
}

const (
	defaultTimeout = 30 * time.Second
	userAgent      = "nexus-gateway-knowledge/1"
)
