// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftline Contributors

package store

import "time"

// Signal is one observed unit of browsing activity, classified against
// the user's catalog. Signals are append-only: after SaveSignal the only
// mutation the store ever applies is flipping Synced via MarkSynced.
type Signal struct {
	ID         string
	CapturedAt time.Time
	URL        string
	Title      string
	// Payload is the captured page-text excerpt the classifier ran on.
	Payload string
	// SpaceID and SubspaceID record the classification result. An empty
	// SubspaceID means the signal was stored unclassified.
	SpaceID    string
	SubspaceID string
	Confidence float64
	// Synced is true once the backend has acknowledged this signal's id.
	Synced bool
}

// Classified reports whether the signal was attributed to a subspace.
func (s *Signal) Classified() bool {
	return s.SubspaceID != ""
}

// SignalStats is a point-in-time summary of the local store.
type SignalStats struct {
	Total          int64      `json:"total"`
	Synced         int64      `json:"synced"`
	Unsynced       int64      `json:"unsynced"`
	OldestUnsynced *time.Time `json:"oldest_unsynced,omitempty"`
}
