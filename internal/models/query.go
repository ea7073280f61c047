package models

import (
	"fmt"
	"strings"
)

// Query is the append-only textual query of a feedback session.
type Query struct {
	words []string
}

// NewQuery parses seed into a query. Returns an error if seed has no words.
func NewQuery(seed string) (*Query, error) {
	words := strings.Fields(strings.Trim(strings.TrimSpace(seed), `"`))
	if len(words) == 0 {
		return nil, fmt.Errorf("query cannot be empty")
	}
	return &Query{words: words}, nil
}

// String returns the query text.
func (q *Query) String() string {
	return strings.Join(q.words, " ")
}

// Words returns a copy of the query words in order.
func (q *Query) Words() []string {
	return append([]string(nil), q.words...)
}

// Append adds terms to the end of the query.
func (q *Query) Append(terms ...string) {
	q.words = append(q.words, terms...)
}

// Len returns the number of words in the query.
func (q *Query) Len() int {
	return len(q.words)
}
