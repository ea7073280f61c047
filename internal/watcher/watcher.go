// Package watcher keeps an index current by following filesystem changes under a set of roots.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// Sink receives debounced file changes. *indexer.Indexer satisfies it.
type Sink interface {
	Accepts(path string) bool
	IndexFile(ctx context.Context, path string) (bool, error)
	DeleteFile(ctx context.Context, path string) error
}

// Watcher follows writes, creates, removes and renames below its roots.
type Watcher struct {
	roots    []string
	sink     Sink
	debounce time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	pending map[string]*time.Timer
	wg      sync.WaitGroup
	ctx     context.Context
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets a logger for debug output (file events, directories added, etc.).
func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce sets how long a path must stay quiet before it is reindexed.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher creates a watcher for roots that forwards changes to sink.
func NewWatcher(roots []string, sink Sink, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		roots:    roots,
		sink:     sink,
		debounce: defaultDebounce,
		logger:   zap.NewNop(),
		pending:  make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches until ctx is done. Missing roots are created. Run returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.fsw = fsw
	w.ctx = ctx
	w.mu.Unlock()
	defer w.close()

	for _, root := range w.roots {
		if err := os.MkdirAll(root, 0755); err != nil {
			return err
		}
		if err := w.addTree(root); err != nil {
			return err
		}
	}
	w.logger.Debug("watcher started", zap.Strings("roots", w.roots), zap.Duration("debounce", w.debounce))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) close() {
	w.mu.Lock()
	for path, t := range w.pending {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
	_ = w.fsw.Close()
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *Watcher) handle(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))
	switch {
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		w.cancel(path)
		if w.sink.Accepts(path) {
			if err := w.sink.DeleteFile(w.ctx, path); err != nil {
				w.logger.Warn("watcher delete failed", zap.String("path", path), zap.Error(err))
			}
		}
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if info.IsDir() {
			w.handleNewDirectory(path)
			return
		}
		if w.sink.Accepts(path) {
			w.schedule(path)
		}
	}
}

// handleNewDirectory watches a directory created or moved in under a root and indexes its files.
func (w *Watcher) handleNewDirectory(dir string) {
	if err := w.addTree(dir); err != nil {
		w.logger.Warn("watcher failed to add directory", zap.String("path", dir), zap.Error(err))
	}
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if w.sink.Accepts(path) {
			w.schedule(path)
		}
		return nil
	})
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != root {
			return filepath.SkipDir
		}
		w.mu.Lock()
		defer w.mu.Unlock()
		return w.fsw.Add(path)
	})
}

func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok && t.Stop() {
		w.wg.Done()
	}
	w.wg.Add(1)
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		defer w.wg.Done()
		w.mu.Lock()
		delete(w.pending, path)
		ctx := w.ctx
		w.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		indexed, err := w.sink.IndexFile(ctx, path)
		if err != nil {
			w.logger.Warn("watcher index failed", zap.String("path", path), zap.Error(err))
			return
		}
		w.logger.Debug("watcher indexed file", zap.String("path", path), zap.Bool("changed", indexed))
	})
}

func (w *Watcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
}
