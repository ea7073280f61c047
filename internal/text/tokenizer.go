// Package text turns raw document text into normalized index terms.
package text

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/token/stop"
	unicodetok "github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
)

// Tokenizer splits text on Unicode word boundaries, lower-cases, keeps alphabetic tokens,
// and drops English stopwords. It holds no mutable state and is safe for concurrent use.
type Tokenizer struct {
	tokenizer analysis.Tokenizer
	lower     analysis.TokenFilter
	stop      analysis.TokenFilter
	stopWords analysis.TokenMap
}

// NewTokenizer builds the analysis chain with bleve's English stopword list.
func NewTokenizer() (*Tokenizer, error) {
	stopWords := analysis.NewTokenMap()
	if err := stopWords.LoadBytes(en.EnglishStopWords); err != nil {
		return nil, fmt.Errorf("failed to load stopwords: %w", err)
	}
	return &Tokenizer{
		tokenizer: unicodetok.NewUnicodeTokenizer(),
		lower:     lowercase.NewLowerCaseFilter(),
		stop:      stop.NewStopTokensFilter(stopWords),
		stopWords: stopWords,
	}, nil
}

// Tokenize returns the normalized terms of text in order. Empty input yields an empty slice.
func (t *Tokenizer) Tokenize(text string) []string {
	if text == "" {
		return []string{}
	}
	stream := t.tokenizer.Tokenize([]byte(text))
	stream = t.lower.Filter(stream)
	stream = alphabetic(stream)
	stream = t.stop.Filter(stream)

	terms := make([]string, 0, len(stream))
	for _, tok := range stream {
		terms = append(terms, string(tok.Term))
	}
	return terms
}

// IsStopword reports whether the lower-cased word is in the stopword list.
func (t *Tokenizer) IsStopword(word string) bool {
	_, ok := t.stopWords[word]
	return ok
}

// alphabetic drops tokens containing anything other than letters.
func alphabetic(input analysis.TokenStream) analysis.TokenStream {
	out := input[:0]
	for _, tok := range input {
		if isAlpha(tok.Term) {
			out = append(out, tok)
		}
	}
	return out
}

func isAlpha(term []byte) bool {
	if len(term) == 0 {
		return false
	}
	for len(term) > 0 {
		r, size := utf8.DecodeRune(term)
		if !unicode.IsLetter(r) {
			return false
		}
		term = term[size:]
	}
	return true
}
