// Package keyword indexes a local document collection for the search server.
package keyword

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Lookup for unknown document IDs.
var ErrNotFound = errors.New("document not found")

// Document is what the index stores for a file.
type Document struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Path    string `json:"path"`
	Ext     string `json:"ext"`
	// Size and ModTime identify the indexed revision of the file; ModTime is UnixNano.
	Size    int64 `json:"-"`
	ModTime int64 `json:"-"`
}

// Hit is a single search result.
type Hit struct {
	ID      string
	Score   float64
	Title   string
	Path    string
	Snippet string
}

// Index defines keyword search operations.
type Index interface {
	Index(ctx context.Context, id string, doc *Document) error
	Search(ctx context.Context, query string, limit int) ([]*Hit, error)
	// Lookup returns the stored fields of a document, or ErrNotFound.
	Lookup(ctx context.Context, id string) (*Document, error)
	Delete(ctx context.Context, id string) error
	// DocCount returns the total number of documents in the index.
	DocCount() (uint64, error)
	Close() error
}
