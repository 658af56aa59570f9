// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftline Contributors

package server_test

import (
	"context"
	"sync"
	"time"

	"github.com/driftline-dev/driftline/internal/queue"
	"github.com/driftline-dev/driftline/internal/store"
)

// memStore is an in-memory SignalStore preserving insertion order.
type memStore struct {
	mu      sync.Mutex
	signals []*store.Signal
}

var _ store.SignalStore = (*memStore)(nil)

func (m *memStore) SaveSignal(_ context.Context, sig *store.Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signals = append(m.signals, sig)
	return nil
}

func (m *memStore) GetSignal(_ context.Context, id string) (*store.Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sig := range m.signals {
		if sig.ID == id {
			return sig, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) GetUnsynced(context.Context) ([]*store.Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*store.Signal
	for _, sig := range m.signals {
		if !sig.Synced {
			out = append(out, sig)
		}
	}
	return out, nil
}

func (m *memStore) GetRecent(_ context.Context, n int) ([]*store.Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*store.Signal, 0, n)
	for i := len(m.signals) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.signals[i])
	}
	return out, nil
}

func (m *memStore) MarkSynced(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	marked := map[string]bool{}
	for _, id := range ids {
		marked[id] = true
	}
	for _, sig := range m.signals {
		if marked[sig.ID] {
			sig.Synced = true
		}
	}
	return nil
}

func (m *memStore) CleanupOldSignals(context.Context, time.Duration) (int64, error) {
	return 0, nil
}

func (m *memStore) Stats(context.Context) (*store.SignalStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &store.SignalStats{Total: int64(len(m.signals))}
	for _, sig := range m.signals {
		if sig.Synced {
			stats.Synced++
		}
	}
	stats.Unsynced = stats.Total - stats.Synced
	return stats, nil
}

func (m *memStore) Close() error { return nil }

// ackBackend acknowledges every batch in full.
type ackBackend struct{}

var _ queue.Backend = (*ackBackend)(nil)

func (ackBackend) SyncSignals(_ context.Context, batch []*store.Signal) (*queue.SyncResult, error) {
	ids := make([]string, len(batch))
	for i, sig := range batch {
		ids[i] = sig.ID
	}
	return &queue.SyncResult{Success: true, SyncedIDs: ids}, nil
}

// stubScheduler records armed timers without ever firing them, keeping
// handler tests synchronous.
type stubScheduler struct {
	mu       sync.Mutex
	oneShots int
}

var _ queue.Scheduler = (*stubScheduler)(nil)

func (s *stubScheduler) After(time.Duration, func()) queue.CancelFunc {
	s.mu.Lock()
	s.oneShots++
	s.mu.Unlock()
	return func() {}
}

func (s *stubScheduler) Every(time.Duration, func()) queue.CancelFunc {
	return func() {}
}

func (s *stubScheduler) armed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.oneShots
}
