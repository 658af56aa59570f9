// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftline Contributors

package classify

import (
	"sort"

	"github.com/driftline-dev/driftline/internal/catalog"
	"github.com/driftline-dev/driftline/pkg/vector"
)

// Score is one subspace's relevance against a page.
type Score struct {
	SpaceID    string  `json:"space_id"`
	SubspaceID string  `json:"subspace_id"`
	Similarity float64 `json:"similarity"`
	// MarkerHit is false when the subspace was excluded by stage 1; its
	// Similarity is then 0 and was never computed.
	MarkerHit bool `json:"marker_hit"`
}

// RelevanceDetails scores every subspace in the catalog against the page
// text, including stage-1 misses with zero similarity. The result is
// sorted by descending similarity (ties by ascending subspace id) and is
// purely diagnostic: it never affects the match decision.
func RelevanceDetails(text string, cat *catalog.Catalog) []Score {
	pageVec := vector.FromTokens(Tokenize(text), true)

	var scores []Score
	for _, sp := range cat.Spaces {
		for _, sub := range sp.Subspaces {
			s := Score{SpaceID: sp.ID, SubspaceID: sub.ID}
			if HasAnyMarkerMatch(text, sub.Markers) {
				s.MarkerHit = true
				s.Similarity = vector.Cosine(pageVec, sub.Centroid)
			}
			scores = append(scores, s)
		}
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Similarity != scores[j].Similarity {
			return scores[i].Similarity > scores[j].Similarity
		}
		return scores[i].SubspaceID < scores[j].SubspaceID
	})
	return scores
}

// bestMatch runs both stages over the catalog and returns the single
// winning subspace at or above threshold, or ok=false when nothing
// matches. Winner selection: highest similarity, ties broken by lowest
// subspace id so the outcome is deterministic.
func bestMatch(text string, cat *catalog.Catalog, threshold float64) (best Score, ok bool) {
	var pageVec vector.Vector
	vectorized := false

	for _, sp := range cat.Spaces {
		for _, sub := range sp.Subspaces {
			// Stage 1: cheap literal filter before paying for vectorization.
			if !HasAnyMarkerMatch(text, sub.Markers) {
				continue
			}

			if !vectorized {
				pageVec = vector.FromTokens(Tokenize(text), true)
				vectorized = true
			}

			// Stage 2: centroid similarity, inclusive threshold.
			sim := vector.Cosine(pageVec, sub.Centroid)
			if sim < threshold {
				continue
			}

			candidate := Score{SpaceID: sp.ID, SubspaceID: sub.ID, Similarity: sim, MarkerHit: true}
			switch {
			case !ok:
				best, ok = candidate, true
			case sim > best.Similarity:
				best = candidate
			case sim == best.Similarity && sub.ID < best.SubspaceID:
				best = candidate
			}
		}
	}
	return best, ok
}
