// Package rocchio ranks query-expansion terms with the Rocchio relevance-feedback update.
package rocchio

import (
	"sort"
	"strings"

	"github.com/hyperjump/refine/internal/vector"
)

// Default Rocchio parameters.
const (
	DefaultAlpha       = 1.0
	DefaultBeta        = 0.75
	DefaultGamma       = 0.15
	DefaultMaxNewTerms = 2
)

// Candidate is a term scored by the Rocchio update.
type Candidate struct {
	Term  string  `json:"term"`
	Score float64 `json:"score"`
}

// Expansion is the result of one expansion step.
type Expansion struct {
	// Terms are the selected new terms in rank order.
	Terms []string
	// Ranked holds every scored term not already in the query, best first.
	Ranked []Candidate
	// Modified is the full Rocchio-updated query vector.
	Modified vector.Sparse
}

// Expander applies q' = alpha*q + beta*mean(R) - gamma*mean(NR) and selects new terms.
type Expander struct {
	alpha       float64
	beta        float64
	gamma       float64
	maxNewTerms int
}

// ExpanderOption configures an Expander.
type ExpanderOption func(*Expander)

// WithWeights sets alpha, beta, and gamma.
func WithWeights(alpha, beta, gamma float64) ExpanderOption {
	return func(e *Expander) {
		e.alpha = alpha
		e.beta = beta
		e.gamma = gamma
	}
}

// WithMaxNewTerms sets K, the maximum number of terms added per round.
func WithMaxNewTerms(k int) ExpanderOption {
	return func(e *Expander) {
		if k > 0 {
			e.maxNewTerms = k
		}
	}
}

// NewExpander creates an Expander with the default parameters, then applies opts.
func NewExpander(opts ...ExpanderOption) *Expander {
	e := &Expander{
		alpha:       DefaultAlpha,
		beta:        DefaultBeta,
		gamma:       DefaultGamma,
		maxNewTerms: DefaultMaxNewTerms,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MaxNewTerms returns K.
func (e *Expander) MaxNewTerms() int {
	return e.maxNewTerms
}

// Expand scores every term of query, relevant, and nonRelevant, drops terms already in query
// (case-insensitive), and returns up to K terms with strictly positive score.
// Ties are broken by term in lexical order. Expand does not modify its inputs.
func (e *Expander) Expand(query vector.Sparse, relevant, nonRelevant []vector.Sparse) *Expansion {
	relCentroid := vector.Centroid(relevant)
	nonRelCentroid := vector.Centroid(nonRelevant)

	modified := query.Scale(e.alpha)
	modified.AddScaled(relCentroid, e.beta)
	modified.AddScaled(nonRelCentroid, -e.gamma)

	inQuery := make(map[string]struct{}, len(query))
	for t := range query {
		inQuery[strings.ToLower(t)] = struct{}{}
	}

	ranked := make([]Candidate, 0, len(modified))
	for _, term := range vector.Union(query, relCentroid, nonRelCentroid) {
		if _, ok := inQuery[strings.ToLower(term)]; ok {
			continue
		}
		ranked = append(ranked, Candidate{Term: term, Score: modified.Get(term)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Term < ranked[j].Term
	})

	terms := make([]string, 0, e.maxNewTerms)
	for _, c := range ranked {
		if len(terms) == e.maxNewTerms || c.Score <= 0 {
			break
		}
		terms = append(terms, c.Term)
	}
	return &Expansion{Terms: terms, Ranked: ranked, Modified: modified}
}

// QueryVector builds the binary query vector: weight 1.0 for each query term.
func QueryVector(terms []string) vector.Sparse {
	v := make(vector.Sparse, len(terms))
	for _, t := range terms {
		v[strings.ToLower(t)] = 1.0
	}
	return v
}
