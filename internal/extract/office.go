package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
)

var (
	// <w:t>, <a:t> runs in OOXML word and slide parts.
	wordRun  = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)
	slideRun = regexp.MustCompile(`<a:t[^>]*>([^<]*)</a:t>`)
	// text:p, text:span and text:h paragraphs in OpenDocument content.xml.
	odfText = regexp.MustCompile(`<text:(?:p|span|h)[^>]*>([^<]*)</text:(?:p|span|h)>`)

	mainPartRe = regexp.MustCompile(`<Override[^>]*PartName="/?([^"]+)"[^>]*ContentType="[^"]*wordprocessingml\.document\.main\+xml"|<Override[^>]*ContentType="[^"]*wordprocessingml\.document\.main\+xml"[^>]*PartName="/?([^"]+)"`)
)

const (
	docxDefaultPart = "word/document.xml"
	contentTypes    = "[Content_Types].xml"
	odfContent      = "content.xml"
)

// zipParts opens content as a zip archive and returns the members accepted by match,
// sorted by name, with their bytes.
func zipParts(content []byte, match func(name string) bool) (map[string][]byte, []string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, nil, fmt.Errorf("not a zip: %w", err)
	}
	parts := make(map[string][]byte)
	var names []string
	for _, f := range zr.File {
		if !match(f.Name) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		parts[f.Name] = data
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return parts, names, nil
}

// joinRuns returns the trimmed first submatch of every re match, space separated.
func joinRuns(b *strings.Builder, re *regexp.Regexp, xml []byte) {
	for _, m := range re.FindAllSubmatch(xml, -1) {
		run := strings.TrimSpace(string(m[1]))
		if run == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(run)
	}
}

// extractDOCX reads the main document part named in [Content_Types].xml, or word/document.xml.
func extractDOCX(content []byte) (string, error) {
	parts, _, err := zipParts(content, func(name string) bool {
		return name == contentTypes || strings.HasPrefix(name, "word/")
	})
	if err != nil {
		return "", fmt.Errorf("extract DOCX: %w", err)
	}
	mainPart := docxDefaultPart
	if ct, ok := parts[contentTypes]; ok {
		if m := mainPartRe.FindSubmatch(ct); m != nil {
			if len(m[1]) > 0 {
				mainPart = string(m[1])
			} else {
				mainPart = string(m[2])
			}
		}
	}
	doc, ok := parts[mainPart]
	if !ok {
		return "", fmt.Errorf("extract DOCX: %s not found", mainPart)
	}
	var b strings.Builder
	joinRuns(&b, wordRun, doc)
	return b.String(), nil
}

// extractPPTX reads every ppt/slides/slideN.xml in name order.
func extractPPTX(content []byte) (string, error) {
	parts, names, err := zipParts(content, func(name string) bool {
		return strings.HasPrefix(name, "ppt/slides/slide") && strings.HasSuffix(name, ".xml")
	})
	if err != nil {
		return "", fmt.Errorf("extract PPTX: %w", err)
	}
	var b strings.Builder
	for _, name := range names {
		joinRuns(&b, slideRun, parts[name])
	}
	return b.String(), nil
}

// extractOpenDocument reads content.xml of an .odp or .ods package in document order.
func extractOpenDocument(content []byte) (string, error) {
	parts, _, err := zipParts(content, func(name string) bool { return name == odfContent })
	if err != nil {
		return "", fmt.Errorf("extract OpenDocument: %w", err)
	}
	xml, ok := parts[odfContent]
	if !ok {
		return "", fmt.Errorf("extract OpenDocument: %s not found", odfContent)
	}
	var b strings.Builder
	joinRuns(&b, odfText, xml)
	return b.String(), nil
}
