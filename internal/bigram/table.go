// Package bigram orders expansion terms by how often they appear adjacent in a
// reference corpus.
package bigram

import (
	"sort"
	"strings"
)

// Pair is an ordered pair of adjacent terms.
type Pair struct {
	First  string
	Second string
}

// Table maps adjacent term pairs to their frequency. It is read-only once built.
type Table struct {
	counts map[Pair]int
}

// NewTable returns a table holding a copy of counts. Non-positive counts are dropped.
func NewTable(counts map[Pair]int) *Table {
	t := &Table{counts: make(map[Pair]int, len(counts))}
	for p, n := range counts {
		if n > 0 {
			t.counts[Pair{First: strings.ToLower(p.First), Second: strings.ToLower(p.Second)}] += n
		}
	}
	return t
}

// Count returns how often first was directly followed by second. Unknown pairs count 0.
func (t *Table) Count(first, second string) int {
	if t == nil {
		return 0
	}
	return t.counts[Pair{First: strings.ToLower(first), Second: strings.ToLower(second)}]
}

// Len returns the number of distinct pairs.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.counts)
}

// Counts returns a copy of the pair counts.
func (t *Table) Counts() map[Pair]int {
	out := make(map[Pair]int, t.Len())
	if t == nil {
		return out
	}
	for p, n := range t.counts {
		out[p] = n
	}
	return out
}

// Top returns up to n pairs with the highest counts, ties broken by first then second term.
func (t *Table) Top(n int) []PairCount {
	all := make([]PairCount, 0, t.Len())
	if t != nil {
		for p, c := range t.counts {
			all = append(all, PairCount{Pair: p, Count: c})
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Count != all[j].Count {
			return all[i].Count > all[j].Count
		}
		if all[i].First != all[j].First {
			return all[i].First < all[j].First
		}
		return all[i].Second < all[j].Second
	})
	if n >= 0 && len(all) > n {
		all = all[:n]
	}
	return all
}

// PairCount is a pair with its frequency.
type PairCount struct {
	Pair
	Count int
}

// Order returns terms in the order they should be appended to the query.
// Two terms are swapped only when the reversed pair is strictly more frequent;
// any other number of terms is returned in the given order.
func (t *Table) Order(terms []string) []string {
	out := append([]string(nil), terms...)
	if len(out) != 2 {
		return out
	}
	if t.Count(out[1], out[0]) > t.Count(out[0], out[1]) {
		out[0], out[1] = out[1], out[0]
	}
	return out
}

// Builder accumulates adjacency counts.
type Builder struct {
	counts map[Pair]int
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{counts: make(map[Pair]int)}
}

// AddTokens counts every adjacent pair in tokens.
func (b *Builder) AddTokens(tokens []string) {
	for i := 0; i+1 < len(tokens); i++ {
		b.counts[Pair{First: tokens[i], Second: tokens[i+1]}]++
	}
}

// AddCount adds n occurrences of first followed by second.
func (b *Builder) AddCount(first, second string, n int) {
	if n <= 0 {
		return
	}
	b.counts[Pair{First: strings.ToLower(first), Second: strings.ToLower(second)}] += n
}

// Len returns the number of distinct pairs seen so far.
func (b *Builder) Len() int { return len(b.counts) }

// Table freezes the accumulated counts into a Table.
func (b *Builder) Table() *Table {
	return NewTable(b.counts)
}
