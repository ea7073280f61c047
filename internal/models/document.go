package models

// Document is one result of the current round together with its extracted text.
// Documents live for a single round.
type Document struct {
	Rank   int
	Result *Result
	// Text is the title plus body used for indexing. Empty when the result could not be used.
	Text string
	// HTML reports whether the result looked like an HTML page.
	HTML bool
	// Indexable is true when the document has extractable text and takes part in
	// document-frequency accounting and precision.
	Indexable bool
	// Tokens is the normalized term sequence of Text.
	Tokens []string
}

// Judgment pairs a document with its relevance label.
type Judgment struct {
	Document *Document
	Relevant bool
}
