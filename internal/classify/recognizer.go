// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftline Contributors

package classify

import "strings"

// HasAnyMarkerMatch reports whether text contains at least one of the
// subspace's literal markers, case-insensitively. This is the stage-1
// plausibility filter: a subspace with zero marker hits never reaches
// vectorization. Pure function; paraphrases that skip every literal
// marker are a known precision/recall trade-off, not a bug.
func HasAnyMarkerMatch(text string, markers []string) bool {
	if len(markers) == 0 {
		return false
	}

	lower := strings.ToLower(text)
	for _, marker := range markers {
		if marker == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}

// MatchingMarkers returns the markers present in text, for diagnostics.
func MatchingMarkers(text string, markers []string) []string {
	lower := strings.ToLower(text)

	var hits []string
	for _, marker := range markers {
		if marker == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(marker)) {
			hits = append(hits, marker)
		}
	}
	return hits
}
