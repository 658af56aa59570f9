// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftline Contributors

// Package vector provides sparse term-weight vectors and the similarity
// primitives used by the classification pipeline. Vectors are plain maps;
// zero-weight entries are never materialised, so an absent key and a zero
// weight are the same thing.
package vector

import (
	"math"
	"sort"
)

// Vector maps a case-normalised term to a non-negative weight.
// The empty Vector is the identity for Merge and has similarity 0
// against everything.
type Vector map[string]float64

// Cosine returns the cosine similarity of a and b in [0, 1].
//
// The dot product only needs the key intersection — a term missing from
// either side contributes a zero product — but each magnitude sums over
// that vector's own full term set. Returns exactly 0 when the vectors
// share no keys or either magnitude is zero; never NaN or Inf.
func Cosine(a, b Vector) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	// Iterate the smaller map when walking the intersection.
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}

	var dot float64
	for term, w := range small {
		if lw, ok := large[term]; ok {
			dot += w * lw
		}
	}
	if dot == 0 {
		return 0
	}

	magA := Magnitude(a)
	magB := Magnitude(b)
	if magA == 0 || magB == 0 {
		return 0
	}

	// Sqrt rounding can push the quotient a hair above 1 for
	// near-identical vectors; clamp to keep the documented range.
	return math.Min(1, dot/(magA*magB))
}

// FromTokens builds a term-frequency vector by counting token occurrences.
// When normalize is true every weight is divided by the token count, giving
// true term frequency in [0, 1]. An empty token slice yields the empty
// vector; normalisation is skipped in that case to avoid dividing by zero.
func FromTokens(tokens []string, normalize bool) Vector {
	v := make(Vector, len(tokens))
	for _, tok := range tokens {
		v[tok]++
	}

	if normalize && len(tokens) > 0 {
		n := float64(len(tokens))
		for term := range v {
			v[term] /= n
		}
	}
	return v
}

// TopTerms returns the n heaviest terms in descending weight order.
// Equal weights are broken by ascending term so the ordering is total
// and reproducible for a fixed input. Returns all terms when n exceeds
// the vector size.
func TopTerms(v Vector, n int) []string {
	if n <= 0 || len(v) == 0 {
		return nil
	}

	terms := make([]string, 0, len(v))
	for term := range v {
		terms = append(terms, term)
	}

	sort.Slice(terms, func(i, j int) bool {
		wi, wj := v[terms[i]], v[terms[j]]
		if wi != wj {
			return wi > wj
		}
		return terms[i] < terms[j]
	})

	if n < len(terms) {
		terms = terms[:n]
	}
	return terms
}

// Merge combines a and b key-wise, keeping the maximum weight for terms
// present on both sides. Union-with-max grows a centroid from multiple
// contributing documents without diluting strong terms.
func Merge(a, b Vector) Vector {
	merged := make(Vector, len(a)+len(b))
	for term, w := range a {
		merged[term] = w
	}
	for term, w := range b {
		if w > merged[term] {
			merged[term] = w
		}
	}
	return merged
}

// Filter returns a new vector keeping only entries with weight >= minWeight.
func Filter(v Vector, minWeight float64) Vector {
	kept := make(Vector)
	for term, w := range v {
		if w >= minWeight {
			kept[term] = w
		}
	}
	return kept
}

// Magnitude returns the Euclidean norm over all weights.
func Magnitude(v Vector) float64 {
	var sum float64
	for _, w := range v {
		sum += w * w
	}
	return math.Sqrt(sum)
}

// Clone returns an independent copy of v.
func Clone(v Vector) Vector {
	out := make(Vector, len(v))
	for term, w := range v {
		out[term] = w
	}
	return out
}
