package keyword

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newMemIndex(t *testing.T) *BleveIndex {
	t.Helper()
	idx, err := NewBleveIndex("")
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestBleveIndex_SearchContentAndTitle(t *testing.T) {
	idx := newMemIndex(t)
	ctx := context.Background()

	docs := map[string]*Document{
		"doc:candy":  {Title: "Milky Way bar", Content: "A chocolate bar with nougat and caramel.", Path: "/c/candy.txt", Ext: ".txt"},
		"doc:galaxy": {Title: "Our galaxy", Content: "The Milky Way is a barred spiral galaxy.", Path: "/c/galaxy.txt", Ext: ".txt"},
		"doc:other":  {Title: "Gardening", Content: "Tomatoes need sun.", Path: "/c/garden.txt", Ext: ".txt"},
	}
	for id, d := range docs {
		if err := idx.Index(ctx, id, d); err != nil {
			t.Fatalf("Index %s: %v", id, err)
		}
	}

	hits, err := idx.Search(ctx, "chocolate", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "doc:candy" {
		t.Fatalf("hits = %+v", hits)
	}
	if hits[0].Title != "Milky Way bar" || hits[0].Path != "/c/candy.txt" {
		t.Errorf("stored fields: %+v", hits[0])
	}
	if !strings.Contains(hits[0].Snippet, "chocolate") {
		t.Errorf("snippet = %q", hits[0].Snippet)
	}

	// Title matches are boosted above content-only matches.
	hits, err = idx.Search(ctx, "galaxy", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "doc:galaxy" {
		t.Errorf("galaxy hits = %+v", hits)
	}

	hits, _ = idx.Search(ctx, "milky way", 10)
	if len(hits) != 2 {
		t.Errorf("milky way: got %d hits, want 2", len(hits))
	}

	hits, _ = idx.Search(ctx, "  ", 10)
	if len(hits) != 0 {
		t.Errorf("blank query: got %d hits", len(hits))
	}

	if n, err := idx.DocCount(); err != nil || n != 3 {
		t.Errorf("DocCount = %d, %v", n, err)
	}
}

func TestBleveIndex_Lookup(t *testing.T) {
	idx := newMemIndex(t)
	ctx := context.Background()
	doc := &Document{Title: "notes.md", Content: "body", Path: "/c/notes.md", Ext: ".md", Size: 42, ModTime: 1772000000123456789}
	if err := idx.Index(ctx, "doc:1", doc); err != nil {
		t.Fatal(err)
	}
	got, err := idx.Lookup(ctx, "doc:1")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got.Path != "/c/notes.md" || got.Ext != ".md" || got.Size != 42 || got.ModTime != 1772000000123456789 {
		t.Errorf("Lookup = %+v", got)
	}
	if _, err := idx.Lookup(ctx, "doc:missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing lookup err = %v", err)
	}
}

func TestBleveIndex_Delete(t *testing.T) {
	idx := newMemIndex(t)
	ctx := context.Background()
	if err := idx.Index(ctx, "doc1", &Document{Title: "T", Content: "onlyindoc1"}); err != nil {
		t.Fatalf("Index: %v", err)
	}
	if err := idx.Delete(ctx, "doc1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	hits, err := idx.Search(ctx, "onlyindoc1", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("expected 0 results after delete, got %d", len(hits))
	}
}

func TestBleveIndex_reopenOnDisk(t *testing.T) {
	indexPath := filepath.Join(t.TempDir(), "sub", "bleve")
	ctx := context.Background()

	idx1, err := NewBleveIndex(indexPath)
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	if err := idx1.Index(ctx, "doc1", &Document{Title: "T", Content: "uniqueword"}); err != nil {
		t.Fatalf("Index: %v", err)
	}
	if err := idx1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(indexPath); err != nil {
		t.Fatalf("index path should exist: %v", err)
	}

	idx2, err := NewBleveIndex(indexPath)
	if err != nil {
		t.Fatalf("NewBleveIndex (reopen): %v", err)
	}
	defer func() { _ = idx2.Close() }()
	hits, err := idx2.Search(ctx, "uniqueword", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Errorf("reopened index: got %d hits, want 1", len(hits))
	}
}

func TestSnippet(t *testing.T) {
	long := strings.Repeat("filler ", 40) + "chocolate bars " + strings.Repeat("tail ", 40)
	tests := []struct {
		name    string
		content string
		terms   []string
		check   func(string) bool
	}{
		{"short content", "Chocolate  bars", []string{"bars"}, func(s string) bool { return s == "Chocolate bars" }},
		{"no match starts at beginning", long, []string{"nougat"}, func(s string) bool { return strings.HasPrefix(s, "filler") }},
		{"window around match", long, []string{"chocolate"}, func(s string) bool {
			return strings.HasPrefix(s, "...") && strings.Contains(s, "chocolate bars")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := snippet(tt.content, tt.terms, 80); !tt.check(got) {
				t.Errorf("snippet = %q", got)
			}
		})
	}
}
