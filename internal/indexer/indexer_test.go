package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/refine/internal/fileid"
	"github.com/hyperjump/refine/internal/keyword"
)

func TestExtensionAllowed(t *testing.T) {
	tests := []struct {
		ext     string
		allowed []string
		want    bool
	}{
		{".txt", []string{".txt", ".md"}, true},
		{".TXT", []string{".txt"}, true},
		{".md", []string{"txt", "md"}, true},
		{".go", []string{".txt"}, false},
		{"", []string{".txt"}, false},
	}
	for _, tt := range tests {
		got := extensionAllowed(tt.ext, tt.allowed)
		if got != tt.want {
			t.Errorf("extensionAllowed(%q, %v) = %v, want %v", tt.ext, tt.allowed, got, tt.want)
		}
	}
}

func newTestIndexer(t *testing.T, opts ...IndexerOption) (*Indexer, *keyword.BleveIndex) {
	t.Helper()
	kw, err := keyword.NewBleveIndex("")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = kw.Close() })
	return NewIndexer(kw, nil, opts...), kw
}

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
}

func TestIndexFile_createSkipAndUpdate(t *testing.T) {
	dir := t.TempDir()
	idx, kw := newTestIndexer(t)
	ctx := context.Background()

	path := filepath.Join(dir, "milky_way.txt")
	write(t, path, "Chocolate bars with nougat.")

	indexed, err := idx.IndexFile(ctx, path)
	if err != nil || !indexed {
		t.Fatalf("IndexFile: indexed=%v err=%v", indexed, err)
	}
	doc, err := kw.Lookup(ctx, fileid.DocID(path))
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if doc.Title != "milky way.txt" || doc.Path != path || doc.Ext != ".txt" {
		t.Errorf("doc = %+v", doc)
	}

	indexed, err = idx.IndexFile(ctx, path)
	if err != nil || indexed {
		t.Errorf("unchanged file should be skipped: indexed=%v err=%v", indexed, err)
	}

	write(t, path, "Caramel only now.")
	later := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}
	indexed, err = idx.IndexFile(ctx, path)
	if err != nil || !indexed {
		t.Fatalf("changed file should be reindexed: indexed=%v err=%v", indexed, err)
	}
	hits, _ := kw.Search(ctx, "caramel", 10)
	if len(hits) != 1 {
		t.Errorf("caramel hits = %d", len(hits))
	}
	hits, _ = kw.Search(ctx, "nougat", 10)
	if len(hits) != 0 {
		t.Errorf("stale content still indexed: %d hits", len(hits))
	}
	if n, _ := kw.DocCount(); n != 1 {
		t.Errorf("DocCount = %d, want 1", n)
	}
}

func TestIndexFile_rejects(t *testing.T) {
	dir := t.TempDir()
	idx, _ := newTestIndexer(t)
	ctx := context.Background()

	bin := filepath.Join(dir, "tool.exe")
	write(t, bin, "MZ")
	if _, err := idx.IndexFile(ctx, bin); err == nil {
		t.Error("expected error for unsupported extension")
	}
	if _, err := idx.IndexFile(ctx, filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestIndexDirectory(t *testing.T) {
	dir := t.TempDir()
	idx, kw := newTestIndexer(t, WithExtensions([]string{".txt", "md"}))
	ctx := context.Background()

	write(t, filepath.Join(dir, "a.txt"), "galaxy")
	write(t, filepath.Join(dir, "sub", "b.md"), "galaxy stars")
	write(t, filepath.Join(dir, "sub", "c.html"), "<p>galaxy</p>")

	n, err := idx.IndexDirectory(ctx, dir)
	if err != nil {
		t.Fatalf("IndexDirectory: %v", err)
	}
	if n != 2 {
		t.Errorf("indexed %d files, want 2", n)
	}
	n, _ = idx.IndexDirectory(ctx, dir)
	if n != 0 {
		t.Errorf("second pass indexed %d files, want 0", n)
	}
	if count, _ := kw.DocCount(); count != 2 {
		t.Errorf("DocCount = %d", count)
	}

	if _, err := idx.IndexDirectory(ctx, filepath.Join(dir, "a.txt")); err == nil {
		t.Error("expected error for non-directory")
	}
}

func TestDeleteFile(t *testing.T) {
	dir := t.TempDir()
	idx, kw := newTestIndexer(t)
	ctx := context.Background()
	path := filepath.Join(dir, "a.txt")
	write(t, path, "uniqueword")
	if _, err := idx.IndexFile(ctx, path); err != nil {
		t.Fatal(err)
	}
	if err := idx.DeleteFile(ctx, path); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	if hits, _ := kw.Search(ctx, "uniqueword", 10); len(hits) != 0 {
		t.Errorf("hits after delete = %d", len(hits))
	}
}
