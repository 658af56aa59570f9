// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftline Contributors

package store

import (
	"context"
	"time"
)

// SignalStore owns Signal persistence. It is the single writer of the
// Synced flag: the sync queue only flips it through MarkSynced, so a
// signal is never reported as both synced and unsynced across two
// concurrent queries.
type SignalStore interface {
	// SaveSignal appends a signal, assigning a stable unique id when the
	// caller did not set one. Either the whole signal is persisted or the
	// call fails; no partial record is ever written.
	SaveSignal(ctx context.Context, sig *Signal) error

	GetSignal(ctx context.Context, id string) (*Signal, error)

	// GetUnsynced returns every signal with Synced=false, oldest first.
	// This is the sync queue's entire view of pending work — there is no
	// separate queue table.
	GetUnsynced(ctx context.Context) ([]*Signal, error)

	// GetRecent returns the n most recently captured signals, newest first.
	GetRecent(ctx context.Context, n int) ([]*Signal, error)

	// MarkSynced flips Synced to true for the given ids. Idempotent:
	// already-synced and unknown ids are no-ops, not errors.
	MarkSynced(ctx context.Context, ids []string) error

	// CleanupOldSignals removes synced signals older than maxAge and
	// returns the number removed. Unsynced signals are never evicted
	// regardless of age.
	CleanupOldSignals(ctx context.Context, maxAge time.Duration) (int64, error)

	Stats(ctx context.Context) (*SignalStats, error)

	Close() error
}
