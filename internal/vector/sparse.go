// Package vector provides sparse term-weight vectors and the arithmetic used by relevance feedback.
package vector

import (
	"math"
	"sort"
)

// Sparse maps terms to weights. Missing terms read as zero.
type Sparse map[string]float64

// Get returns the weight of term, or 0 when absent.
func (v Sparse) Get(term string) float64 {
	return v[term]
}

// Terms returns the vector's terms in lexical order.
func (v Sparse) Terms() []string {
	terms := make([]string, 0, len(v))
	for t := range v {
		terms = append(terms, t)
	}
	sort.Strings(terms)
	return terms
}

// Clone returns a copy of v.
func (v Sparse) Clone() Sparse {
	out := make(Sparse, len(v))
	for t, w := range v {
		out[t] = w
	}
	return out
}

// AddScaled adds factor*other to v in place.
func (v Sparse) AddScaled(other Sparse, factor float64) {
	for t, w := range other {
		v[t] += factor * w
	}
}

// Scale returns a new vector with every weight multiplied by factor.
func (v Sparse) Scale(factor float64) Sparse {
	out := make(Sparse, len(v))
	for t, w := range v {
		out[t] = w * factor
	}
	return out
}

// Sum returns the element-wise sum of vectors.
func Sum(vectors []Sparse) Sparse {
	out := make(Sparse)
	for _, v := range vectors {
		out.AddScaled(v, 1)
	}
	return out
}

// Centroid returns the element-wise mean of vectors, or an empty vector when there are none.
func Centroid(vectors []Sparse) Sparse {
	if len(vectors) == 0 {
		return make(Sparse)
	}
	return Sum(vectors).Scale(1 / float64(len(vectors)))
}

// Union returns the lexically sorted set of terms present in any of the vectors.
func Union(vectors ...Sparse) []string {
	seen := make(map[string]struct{})
	for _, v := range vectors {
		for t := range v {
			seen[t] = struct{}{}
		}
	}
	terms := make([]string, 0, len(seen))
	for t := range seen {
		terms = append(terms, t)
	}
	sort.Strings(terms)
	return terms
}

// InnerProduct returns the dot product of two sparse vectors.
func InnerProduct(a, b Sparse) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var dot float64
	for t, w := range a {
		dot += w * b[t]
	}
	return dot
}

// L2Norm returns the L2 norm of a vector.
func L2Norm(v Sparse) float64 {
	var sum float64
	for _, w := range v {
		sum += w * w
	}
	return math.Sqrt(sum)
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a zero vector.
func Cosine(a, b Sparse) float64 {
	na, nb := L2Norm(a), L2Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return InnerProduct(a, b) / (na * nb)
}
