// Package extract provides text extraction from web pages and document files.
package extract

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/lu4p/cat"
)

// Extractor extracts plain text from documents.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// supported lists every extension ExtractBytes understands.
var supported = map[string]bool{
	".txt": true, ".md": true, ".rst": true, ".text": true,
	".html": true, ".htm": true,
	".pdf": true, ".docx": true, ".xlsx": true, ".pptx": true,
	".odp": true, ".ods": true, ".odt": true, ".rtf": true,
}

// Supported reports whether ext (with leading dot, any case) can be extracted.
func Supported(ext string) bool {
	return supported[strings.ToLower(ext)]
}

// Extract reads the file at path and returns its text content.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, strings.ToLower(filepath.Ext(path)))
}

// ExtractBytes extracts text from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf"). Unknown extensions are read as plain text.
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	switch strings.ToLower(ext) {
	case ".html", ".htm":
		page, err := ParseHTML(bytes.NewReader(content))
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(page.Title + " " + page.Text), nil
	case ".pdf":
		return extractPDF(content)
	case ".docx":
		return extractDOCX(content)
	case ".xlsx":
		return extractExcel(content)
	case ".pptx":
		return extractPPTX(content)
	case ".odp", ".ods":
		return extractOpenDocument(content)
	case ".odt", ".rtf":
		text, err := cat.FromBytes(content)
		if err != nil {
			return "", fmt.Errorf("extract %s: %w", ext, err)
		}
		return strings.TrimSpace(text), nil
	default:
		return extractPlain(content), nil
	}
}

// extractPlain returns content as a string, replacing invalid UTF-8 with U+FFFD.
func extractPlain(content []byte) string {
	if !utf8.Valid(content) {
		return strings.ToValidUTF8(string(content), "\ufffd")
	}
	return string(content)
}
