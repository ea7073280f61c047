// Package indexer keeps the keyword index in sync with files on disk.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/refine/internal/extract"
	"github.com/hyperjump/refine/internal/fileid"
	"github.com/hyperjump/refine/internal/keyword"
	"go.uber.org/zap"
)

// Indexer extracts files and writes them to a keyword index.
type Indexer struct {
	index      keyword.Index
	extractor  *extract.Extractor
	extensions []string
	logger     *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for debug output (file indexed, document deleted, etc.).
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithExtensions restricts indexing to the given extensions (with or without leading dot).
func WithExtensions(exts []string) IndexerOption {
	return func(idx *Indexer) { idx.extensions = exts }
}

// NewIndexer creates an indexer writing to index. extractor may be nil; files are then read as plain text.
func NewIndexer(index keyword.Index, extractor *extract.Extractor, opts ...IndexerOption) *Indexer {
	if extractor == nil {
		extractor = extract.NewExtractor()
	}
	idx := &Indexer{
		index:     index,
		extractor: extractor,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Accepts reports whether path has an extension the indexer handles.
func (idx *Indexer) Accepts(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if len(idx.extensions) > 0 {
		return extensionAllowed(ext, idx.extensions)
	}
	return extract.Supported(ext)
}

// IndexFile extracts the file at path and indexes it under an ID derived from its absolute path.
// It reports whether the file was (re)indexed; a file already indexed with the same size and
// modification time is skipped.
func (idx *Indexer) IndexFile(ctx context.Context, path string) (bool, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("absolute path: %w", err)
	}
	if !idx.Accepts(absPath) {
		return false, fmt.Errorf("extension %q not supported", filepath.Ext(absPath))
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return false, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return false, fmt.Errorf("not a regular file: %s", absPath)
	}

	docID := fileid.DocID(absPath)
	if prev, err := idx.index.Lookup(ctx, docID); err == nil &&
		prev.Size == info.Size() && prev.ModTime == info.ModTime().UnixNano() {
		idx.logger.Debug("indexer skipping unchanged file", zap.String("path", absPath))
		return false, nil
	} else if err != nil && !errors.Is(err, keyword.ErrNotFound) {
		return false, err
	}

	text, err := idx.extractor.Extract(absPath)
	if err != nil {
		return false, fmt.Errorf("extract content: %w", err)
	}
	doc := &keyword.Document{
		// Underscores as spaces so "milky_way_facts.pdf" matches "milky way".
		Title:   strings.ReplaceAll(filepath.Base(absPath), "_", " "),
		Content: text,
		Path:    absPath,
		Ext:     strings.ToLower(filepath.Ext(absPath)),
		Size:    info.Size(),
		ModTime: info.ModTime().UnixNano(),
	}
	if err := idx.index.Index(ctx, docID, doc); err != nil {
		return false, fmt.Errorf("failed to index keywords: %w", err)
	}
	idx.logger.Debug("indexer file indexed", zap.String("path", absPath), zap.String("doc_id", docID))
	return true, nil
}

// IndexDirectory walks dir recursively and indexes each accepted regular file. Files that fail
// to extract are logged and skipped. Returns the number of files (re)indexed.
func (idx *Indexer) IndexDirectory(ctx context.Context, dir string) (n int, err error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return 0, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("not a directory: %s", absDir)
	}
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !idx.Accepts(path) {
			return nil
		}
		// Resolve symlinks so we only index regular files
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		indexed, indexErr := idx.IndexFile(ctx, path)
		if indexErr != nil {
			idx.logger.Warn("indexer skipping file", zap.String("path", path), zap.Error(indexErr))
			return nil
		}
		if indexed {
			n++
		}
		return nil
	})
	return n, err
}

// DeleteFile removes the document indexed for path.
func (idx *Indexer) DeleteFile(ctx context.Context, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("absolute path: %w", err)
	}
	id := fileid.DocID(absPath)
	idx.logger.Debug("indexer deleting document", zap.String("path", absPath), zap.String("id", id))
	if err := idx.index.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete from keyword index: %w", err)
	}
	return nil
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}
