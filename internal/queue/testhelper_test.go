// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftline Contributors

package queue_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/driftline-dev/driftline/internal/queue"
	"github.com/driftline-dev/driftline/internal/store"
)

// virtualScheduler satisfies queue.Scheduler without ever sleeping.
// Tests fire timers explicitly.
type virtualScheduler struct {
	mu        sync.Mutex
	oneShots  []*virtualTimer
	periodics []*virtualTimer
}

type virtualTimer struct {
	delay     time.Duration
	fn        func()
	cancelled bool
	fired     bool
}

func (s *virtualScheduler) After(delay time.Duration, fn func()) queue.CancelFunc {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &virtualTimer{delay: delay, fn: fn}
	s.oneShots = append(s.oneShots, t)
	return func() {
		s.mu.Lock()
		t.cancelled = true
		s.mu.Unlock()
	}
}

func (s *virtualScheduler) Every(interval time.Duration, fn func()) queue.CancelFunc {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &virtualTimer{delay: interval, fn: fn}
	s.periodics = append(s.periodics, t)
	return func() {
		s.mu.Lock()
		t.cancelled = true
		s.mu.Unlock()
	}
}

// fireOneShots invokes every pending, non-cancelled one-shot once.
func (s *virtualScheduler) fireOneShots() {
	s.mu.Lock()
	var due []*virtualTimer
	for _, t := range s.oneShots {
		if !t.cancelled && !t.fired {
			t.fired = true
			due = append(due, t)
		}
	}
	s.mu.Unlock()

	for _, t := range due {
		t.fn()
	}
}

// fireOneShot invokes one-shot i even when it was cancelled, modelling
// a wall-clock timer whose callback was already running when the cancel
// raced it.
func (s *virtualScheduler) fireOneShot(i int) {
	s.mu.Lock()
	t := s.oneShots[i]
	t.fired = true
	s.mu.Unlock()

	t.fn()
}

// tickPeriodics simulates one firing of every active periodic trigger.
func (s *virtualScheduler) tickPeriodics() {
	s.mu.Lock()
	var due []*virtualTimer
	for _, t := range s.periodics {
		if !t.cancelled {
			due = append(due, t)
		}
	}
	s.mu.Unlock()

	for _, t := range due {
		t.fn()
	}
}

// pendingOneShots counts armed, unfired one-shots.
func (s *virtualScheduler) pendingOneShots() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, t := range s.oneShots {
		if !t.cancelled && !t.fired {
			n++
		}
	}
	return n
}

// memStore is an in-memory SignalStore preserving insertion order.
type memStore struct {
	mu          sync.Mutex
	signals     []*store.Signal
	errUnsynced error
	errMark     error
}

var _ store.SignalStore = (*memStore)(nil)

func newMemStore(unsynced int) *memStore {
	ms := &memStore{}
	for i := range unsynced {
		ms.signals = append(ms.signals, &store.Signal{
			ID:         fmt.Sprintf("sig-%03d", i),
			CapturedAt: time.Now(),
		})
	}
	return ms
}

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
	if m.errUnsynced != nil {
		return nil, m.errUnsynced
	}
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
	if n > len(m.signals) {
		n = len(m.signals)
	}
	out := make([]*store.Signal, 0, n)
	for i := len(m.signals) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.signals[i])
	}
	return out, nil
}

func (m *memStore) MarkSynced(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errMark != nil {
		return m.errMark
	}
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

func (m *memStore) unsyncedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for _, sig := range m.signals {
		if !sig.Synced {
			ids = append(ids, sig.ID)
		}
	}
	return ids
}

// fakeBackend records batches and fails on demand.
type fakeBackend struct {
	mu      sync.Mutex
	batches [][]string          // signal ids per call, in call order
	failOn  map[int]bool        // zero-based call index → reject batch
	ackIDs  map[int][]string    // call index → explicit subset ack
	entered chan struct{}       // signalled when a call starts, if set
	release chan struct{}       // blocks calls until closed, if set
}

var _ queue.Backend = (*fakeBackend)(nil)

func (b *fakeBackend) SyncSignals(_ context.Context, batch []*store.Signal) (*queue.SyncResult, error) {
	b.mu.Lock()
	call := len(b.batches)
	ids := make([]string, len(batch))
	for i, sig := range batch {
		ids[i] = sig.ID
	}
	b.batches = append(b.batches, ids)
	entered, release := b.entered, b.release
	b.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if release != nil {
		<-release
	}

	if b.failOn[call] {
		return &queue.SyncResult{Success: false}, nil
	}
	if ack, ok := b.ackIDs[call]; ok {
		return &queue.SyncResult{Success: true, SyncedIDs: ack}, nil
	}
	return &queue.SyncResult{Success: true, SyncedIDs: ids}, nil
}

func (b *fakeBackend) calls() [][]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([][]string, len(b.batches))
	copy(out, b.batches)
	return out
}
