package bigram

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hyperjump/refine/internal/extract"
	"github.com/hyperjump/refine/internal/fileid"
	"github.com/hyperjump/refine/internal/text"
	"go.uber.org/zap"
)

// ErrEmptyTable is returned when a corpus yields no adjacent term pairs.
var ErrEmptyTable = errors.New("bigram table is empty")

// tsvExt marks precomputed tables: one "first second count" row per line.
const tsvExt = ".tsv"

// Cache persists built tables keyed by a corpus fingerprint.
type Cache interface {
	LoadBigrams(ctx context.Context, fingerprint string) (map[Pair]int, bool, error)
	SaveBigrams(ctx context.Context, fingerprint, source string, counts map[Pair]int) error
}

// Loader builds a Table from a corpus file or directory.
type Loader struct {
	tokenizer *text.Tokenizer
	extractor *extract.Extractor
	cache     Cache
	logger    *zap.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLogger sets the logger for skipped files and cache events.
func WithLogger(l *zap.Logger) LoaderOption {
	return func(ld *Loader) { ld.logger = l }
}

// WithCache enables reading and writing built tables through c.
func WithCache(c Cache) LoaderOption {
	return func(ld *Loader) { ld.cache = c }
}

// NewLoader creates a loader. extractor may be nil; files are then read as plain text.
func NewLoader(tokenizer *text.Tokenizer, extractor *extract.Extractor, opts ...LoaderOption) *Loader {
	if extractor == nil {
		extractor = extract.NewExtractor()
	}
	ld := &Loader{
		tokenizer: tokenizer,
		extractor: extractor,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(ld)
	}
	return ld
}

// Load builds the table for path. A directory is walked for supported files and .tsv tables.
// Files that cannot be extracted are skipped; an unreadable path, a malformed .tsv row,
// or an empty result is an error.
func (ld *Loader) Load(ctx context.Context, path string) (*Table, error) {
	files, err := corpusFiles(path)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no corpus files under %s", path)
	}

	fingerprint, err := fileid.Fingerprint(files)
	if err != nil {
		return nil, fmt.Errorf("failed to fingerprint corpus: %w", err)
	}
	if ld.cache != nil {
		counts, ok, err := ld.cache.LoadBigrams(ctx, fingerprint)
		if err != nil {
			ld.logger.Warn("bigram cache read failed", zap.Error(err))
		} else if ok && len(counts) > 0 {
			ld.logger.Debug("bigram table loaded from cache",
				zap.String("fingerprint", fingerprint),
				zap.Int("pairs", len(counts)))
			return NewTable(counts), nil
		}
	}

	b := NewBuilder()
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if strings.EqualFold(filepath.Ext(f), tsvExt) {
			if err := readTSV(f, b); err != nil {
				return nil, err
			}
			continue
		}
		content, err := ld.extractor.Extract(f)
		if err != nil {
			ld.logger.Warn("skipping corpus file", zap.String("path", f), zap.Error(err))
			continue
		}
		b.AddTokens(ld.tokenizer.Tokenize(content))
	}
	if b.Len() == 0 {
		return nil, ErrEmptyTable
	}

	table := b.Table()
	ld.logger.Debug("bigram table built",
		zap.String("path", path),
		zap.Int("files", len(files)),
		zap.Int("pairs", table.Len()))
	if ld.cache != nil {
		if err := ld.cache.SaveBigrams(ctx, fingerprint, path, table.Counts()); err != nil {
			ld.logger.Warn("bigram cache write failed", zap.Error(err))
		}
	}
	return table, nil
}

// corpusFiles returns path itself for a regular file, or every supported file below a directory.
func corpusFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat corpus: %w", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(p)
		if extract.Supported(ext) || strings.EqualFold(ext, tsvExt) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk corpus: %w", err)
	}
	return files, nil
}

// readTSV adds "first second count" rows to b. Blank lines and lines starting with # are ignored.
func readTSV(path string, b *Builder) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		row := strings.TrimSpace(sc.Text())
		if row == "" || strings.HasPrefix(row, "#") {
			continue
		}
		fields := strings.Fields(row)
		if len(fields) != 3 {
			return fmt.Errorf("%s:%d: want 3 fields, got %d", path, line, len(fields))
		}
		n, err := strconv.Atoi(fields[2])
		if err != nil || n < 0 {
			return fmt.Errorf("%s:%d: invalid count %q", path, line, fields[2])
		}
		b.AddCount(fields[0], fields[1], n)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return nil
}
