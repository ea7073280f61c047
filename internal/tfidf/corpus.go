// Package tfidf builds per-round document-frequency statistics and TF-IDF weight vectors.
package tfidf

import (
	"math"

	"github.com/hyperjump/refine/internal/models"
	"github.com/hyperjump/refine/internal/vector"
)

// Corpus holds document-frequency statistics for one round's indexable documents.
// A Corpus is built fresh every round and never merged with another.
type Corpus struct {
	// TotalDocs is N, the number of indexable documents.
	TotalDocs int
	// DocFrequencies maps a term to the number of documents containing it.
	DocFrequencies map[string]int
}

// NewCorpus creates an empty Corpus.
func NewCorpus() *Corpus {
	return &Corpus{DocFrequencies: make(map[string]int)}
}

// BuildDocumentFrequency counts, for every term, the indexable documents whose token
// sequence contains it. Non-indexable documents contribute nothing to DF or N.
func BuildDocumentFrequency(docs []*models.Document) *Corpus {
	c := NewCorpus()
	for _, doc := range docs {
		if doc == nil || !doc.Indexable {
			continue
		}
		c.Add(doc.Tokens)
	}
	return c
}

// Add accounts one document's token sequence.
func (c *Corpus) Add(tokens []string) {
	c.TotalDocs++
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		c.DocFrequencies[t]++
	}
}

// DF returns the document frequency of term.
func (c *Corpus) DF(term string) int {
	return c.DocFrequencies[term]
}

// IDF returns log2(N/DF) for term, or 0 when the term is unknown.
func (c *Corpus) IDF(term string) float64 {
	df := c.DocFrequencies[term]
	if df == 0 || c.TotalDocs == 0 {
		return 0
	}
	return math.Log2(float64(c.TotalDocs) / float64(df))
}

// Vectorize weights each distinct term of tokens by (count/len(tokens)) * log2(N/DF).
// An empty token sequence yields an empty vector. Terms unknown to the corpus are skipped.
func (c *Corpus) Vectorize(tokens []string) vector.Sparse {
	v := make(vector.Sparse)
	if len(tokens) == 0 {
		return v
	}
	counts := TermFrequencies(tokens)
	total := float64(len(tokens))
	for term, n := range counts {
		if c.DocFrequencies[term] == 0 {
			continue
		}
		v[term] = (float64(n) / total) * c.IDF(term)
	}
	return v
}

// VectorizeDocument returns the weight vector of doc, empty for non-indexable documents.
func (c *Corpus) VectorizeDocument(doc *models.Document) vector.Sparse {
	if doc == nil || !doc.Indexable {
		return make(vector.Sparse)
	}
	return c.Vectorize(doc.Tokens)
}

// TermFrequencies counts occurrences of each term in tokens.
func TermFrequencies(tokens []string) map[string]int {
	counts := make(map[string]int, len(tokens))
	for _, t := range tokens {
		counts[t]++
	}
	return counts
}
