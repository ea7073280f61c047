package keyword

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/hyperjump/refine/pkg/utils"
)

const (
	titleBoost = 3.0
	snippetLen = 160
)

var storedFields = []string{"title", "content", "path", "ext", "size", "mtime"}

// BleveIndex implements Index using Bleve.
type BleveIndex struct {
	index bleve.Index
}

// bleveDoc is the indexed shape of a Document. Size and mtime are kept as strings so
// UnixNano values survive without float rounding.
type bleveDoc struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Path    string `json:"path"`
	Ext     string `json:"ext"`
	Size    string `json:"size"`
	MTime   string `json:"mtime"`
}

func newMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so expansion terms match exactly.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("content", textFieldMapping)
	docMapping.AddFieldMappingsAt("title", textFieldMapping)
	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	for _, f := range []string{"path", "ext", "size", "mtime"} {
		docMapping.AddFieldMappingsAt(f, keywordFieldMapping)
	}
	im.AddDocumentMapping("document", docMapping)
	im.DefaultType = "document"
	im.DefaultMapping = docMapping
	return im
}

// NewBleveIndex creates or opens a Bleve index at path. An empty path creates an in-memory index.
// If you change the index mapping in code, remove the index directory to force a full re-index.
func NewBleveIndex(path string) (*BleveIndex, error) {
	if path == "" {
		index, err := bleve.NewMemOnly(newMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create Bleve index: %w", err)
		}
		return &BleveIndex{index: index}, nil
	}

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// Index indexes a document by id, replacing any previous version.
func (b *BleveIndex) Index(ctx context.Context, id string, doc *Document) error {
	return b.index.Index(id, &bleveDoc{
		Title:   doc.Title,
		Content: doc.Content,
		Path:    doc.Path,
		Ext:     doc.Ext,
		Size:    strconv.FormatInt(doc.Size, 10),
		MTime:   strconv.FormatInt(doc.ModTime, 10),
	})
}

// Search matches query against title and content, with title matches boosted, and returns up
// to limit hits with a snippet around the first matching term.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int) ([]*Hit, error) {
	if strings.TrimSpace(query) == "" {
		return []*Hit{}, nil
	}
	tq := bleve.NewMatchQuery(query)
	tq.SetField("title")
	tq.SetBoost(titleBoost)
	cq := bleve.NewMatchQuery(query)
	cq.SetField("content")

	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(tq, cq))
	req.Size = limit
	req.Fields = storedFields
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}

	terms := strings.Fields(strings.ToLower(query))
	out := make([]*Hit, 0, len(results.Hits))
	for _, hit := range results.Hits {
		doc := fromFields(hit)
		out = append(out, &Hit{
			ID:      hit.ID,
			Score:   hit.Score,
			Title:   doc.Title,
			Path:    doc.Path,
			Snippet: snippet(doc.Content, terms, snippetLen),
		})
	}
	return out, nil
}

// Lookup returns the stored fields of id.
func (b *BleveIndex) Lookup(ctx context.Context, id string) (*Document, error) {
	req := bleve.NewSearchRequest(bleve.NewDocIDQuery([]string{id}))
	req.Size = 1
	req.Fields = storedFields
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve lookup failed: %w", err)
	}
	if len(results.Hits) == 0 {
		return nil, ErrNotFound
	}
	return fromFields(results.Hits[0]), nil
}

func fromFields(hit *search.DocumentMatch) *Document {
	str := func(name string) string {
		s, _ := hit.Fields[name].(string)
		return s
	}
	size, _ := strconv.ParseInt(str("size"), 10, 64)
	mtime, _ := strconv.ParseInt(str("mtime"), 10, 64)
	return &Document{
		Title:   str("title"),
		Content: str("content"),
		Path:    str("path"),
		Ext:     str("ext"),
		Size:    size,
		ModTime: mtime,
	}
}

// snippet returns about maxLen characters of content starting shortly before the first
// occurrence of any term, or the beginning of content when no term occurs.
func snippet(content string, terms []string, maxLen int) string {
	content = utils.CollapseSpace(content)
	lower := strings.ToLower(content)
	if len(lower) != len(content) {
		// Case folding changed byte offsets; fall back to the leading text.
		return utils.Truncate(content, maxLen)
	}
	start := -1
	for _, t := range terms {
		if i := strings.Index(lower, t); i >= 0 && (start < 0 || i < start) {
			start = i
		}
	}
	if start <= maxLen/4 {
		return utils.Truncate(content, maxLen)
	}
	// Back up to a word boundary.
	from := start - maxLen/4
	if sp := strings.LastIndexByte(content[:from], ' '); sp >= 0 {
		from = sp + 1
	}
	return "..." + utils.Truncate(content[from:], maxLen)
}

// Delete removes a document from the index.
func (b *BleveIndex) Delete(ctx context.Context, id string) error {
	return b.index.Delete(id)
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}

// DocCount returns the total number of documents in the index.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}
