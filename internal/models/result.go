// Package models defines core data structures for results, documents, rounds, and outcomes.
package models

import (
	"path"
	"strings"
)

// nonHTMLExtensions are URL suffixes treated as non-HTML documents.
var nonHTMLExtensions = []string{".pdf", ".doc", ".docx", ".ppt", ".pptx", ".xls", ".xlsx"}

// Result is a single hit returned by a search provider.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// LikelyHTML reports whether the result URL looks like an HTML page, judged by its extension.
func (r *Result) LikelyHTML() bool {
	return IsLikelyHTML(r.URL)
}

// IsLikelyHTML reports whether rawURL does not end in a known non-HTML document extension.
func IsLikelyHTML(rawURL string) bool {
	u := strings.ToLower(rawURL)
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	ext := path.Ext(u)
	for _, e := range nonHTMLExtensions {
		if ext == e {
			return false
		}
	}
	return true
}

// Page is the text content returned by a content fetcher.
type Page struct {
	URL         string
	ContentType string
	Title       string
	Text        string
}
