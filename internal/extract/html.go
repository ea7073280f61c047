package extract

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

// HTMLPage is the visible text of an HTML document.
type HTMLPage struct {
	Title string
	Text  string
}

// skippedElements hold no visible text.
var skippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
}

// ParseHTML streams body through the HTML tokenizer and returns the page title and the
// whitespace-collapsed visible text, excluding script, style, and similar elements.
func ParseHTML(body io.Reader) (*HTMLPage, error) {
	z := html.NewTokenizer(body)
	page := &HTMLPage{}
	var text strings.Builder
	skipDepth := 0
	inTitle := false

	for {
		switch z.Next() {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				page.Text = strings.Join(strings.Fields(text.String()), " ")
				page.Title = strings.Join(strings.Fields(page.Title), " ")
				return page, nil
			}
			return nil, z.Err()
		case html.StartTagToken:
			name, _ := z.TagName()
			switch tag := string(name); {
			case skippedElements[tag]:
				skipDepth++
			case tag == "title":
				inTitle = true
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch tag := string(name); {
			case skippedElements[tag] && skipDepth > 0:
				skipDepth--
			case tag == "title":
				inTitle = false
			}
		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			data := string(z.Text())
			if inTitle {
				page.Title += data
				continue
			}
			text.WriteString(data)
			text.WriteByte(' ')
		}
	}
}
