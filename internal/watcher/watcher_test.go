package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type recordingSink struct {
	mu      sync.Mutex
	indexed []string
	deleted []string
}

func (s *recordingSink) Accepts(path string) bool {
	return strings.HasSuffix(path, ".txt")
}

func (s *recordingSink) IndexFile(_ context.Context, path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexed = append(s.indexed, path)
	return true, nil
}

func (s *recordingSink) DeleteFile(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, path)
	return nil
}

func (s *recordingSink) snapshot() (indexed, deleted []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.indexed...), append([]string(nil), s.deleted...)
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

// startWatcher runs a watcher over roots until the test ends.
func startWatcher(t *testing.T, roots []string, sink Sink) {
	t.Helper()
	w := NewWatcher(roots, sink, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run: %v", err)
		}
	})
	// Give fsnotify time to register the roots.
	time.Sleep(100 * time.Millisecond)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestWatcher_DebounceAndExtensionFilter(t *testing.T) {
	dir := t.TempDir()
	sink := &recordingSink{}
	startWatcher(t, []string{dir}, sink)

	txt := filepath.Join(dir, "f.txt")
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(txt, []byte(strings.Repeat("x", i+1)), 0600); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "f.bin"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "index of f.txt", func() bool {
		indexed, _ := sink.snapshot()
		return contains(indexed, txt)
	})
	time.Sleep(150 * time.Millisecond)

	indexed, _ := sink.snapshot()
	if len(indexed) != 1 {
		t.Errorf("indexed = %v, want one debounced call", indexed)
	}
}

func TestWatcher_RemoveDeletes(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "gone.txt")
	if err := os.WriteFile(txt, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	sink := &recordingSink{}
	startWatcher(t, []string{dir}, sink)

	if err := os.Remove(txt); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "delete of gone.txt", func() bool {
		_, deleted := sink.snapshot()
		return contains(deleted, txt)
	})
}

func TestWatcher_NewDirectoryIndexed(t *testing.T) {
	dir := t.TempDir()
	sink := &recordingSink{}
	startWatcher(t, []string{dir}, sink)

	staging := t.TempDir()
	nested := filepath.Join(staging, "docs", "deep")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(nested, "a.txt"), []byte("a"), 0600); err != nil {
		t.Fatal(err)
	}
	moved := filepath.Join(dir, "docs")
	if err := os.Rename(filepath.Join(staging, "docs"), moved); err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(moved, "deep", "a.txt")
	waitFor(t, "index of moved-in file", func() bool {
		indexed, _ := sink.snapshot()
		return contains(indexed, want)
	})

	// Subdirectories of the moved-in tree are watched too.
	later := filepath.Join(moved, "deep", "b.txt")
	if err := os.WriteFile(later, []byte("b"), 0600); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "index of file in nested directory", func() bool {
		indexed, _ := sink.snapshot()
		return contains(indexed, later)
	})
}

func TestWatcher_CreatesMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "missing", "corpus")
	startWatcher(t, []string{root}, &recordingSink{})
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		t.Fatalf("root not created: %v", err)
	}
}
