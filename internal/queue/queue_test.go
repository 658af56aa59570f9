// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftline Contributors

package queue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/driftline-dev/driftline/internal/queue"
	"github.com/driftline-dev/driftline/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(ms *memStore, be queue.Backend, sched *virtualScheduler) *queue.Queue {
	return queue.New(ms, be, sched, queue.Options{}, nil)
}

func TestProcess_DrainsInFixedBatches(t *testing.T) {
	ms := newMemStore(25)
	be := &fakeBackend{}
	q := newTestQueue(ms, be, &virtualScheduler{})

	res := q.Process(context.Background())

	assert.Equal(t, 25, res.Synced)
	assert.Equal(t, 0, res.Failed)
	assert.False(t, res.Aborted)

	calls := be.calls()
	require.Len(t, calls, 3)
	assert.Len(t, calls[0], 10)
	assert.Len(t, calls[1], 10)
	assert.Len(t, calls[2], 5)

	// Oldest first, contiguous across batches.
	assert.Equal(t, "sig-000", calls[0][0])
	assert.Equal(t, "sig-010", calls[1][0])
	assert.Equal(t, "sig-024", calls[2][4])

	assert.Empty(t, ms.unsyncedIDs())
}

func TestProcess_EmptyQueue(t *testing.T) {
	ms := newMemStore(0)
	be := &fakeBackend{}
	q := newTestQueue(ms, be, &virtualScheduler{})

	res := q.Process(context.Background())
	assert.Equal(t, queue.Result{}, res)
	assert.Empty(t, be.calls())
}

func TestProcess_MiddleBatchFailureIsRetriedNextRun(t *testing.T) {
	ms := newMemStore(25)
	be := &fakeBackend{failOn: map[int]bool{1: true}}
	q := newTestQueue(ms, be, &virtualScheduler{})

	res := q.Process(context.Background())
	assert.Equal(t, 15, res.Synced)
	assert.Equal(t, 10, res.Failed)
	assert.False(t, res.Aborted)

	// Exactly the failed batch remains unsynced.
	remaining := ms.unsyncedIDs()
	require.Len(t, remaining, 10)
	assert.Equal(t, "sig-010", remaining[0])
	assert.Equal(t, "sig-019", remaining[9])

	// Next run picks up only the leftovers and succeeds.
	be.failOn = nil
	res = q.Process(context.Background())
	assert.Equal(t, 10, res.Synced)
	assert.Equal(t, 0, res.Failed)
	assert.Empty(t, ms.unsyncedIDs())

	calls := be.calls()
	require.Len(t, calls, 4)
	assert.Equal(t, "sig-010", calls[3][0])
}

func TestProcess_BackendErrorCountsAsBatchFailure(t *testing.T) {
	ms := newMemStore(5)
	be := &erroringBackend{}
	q := newTestQueue(ms, be, &virtualScheduler{})

	res := q.Process(context.Background())
	assert.Equal(t, 0, res.Synced)
	assert.Equal(t, 5, res.Failed)
	assert.False(t, res.Aborted, "a failed batch is not an abort")
	assert.Len(t, ms.unsyncedIDs(), 5)
}

func TestProcess_PartialAckMarksOnlyAckedIDs(t *testing.T) {
	ms := newMemStore(3)
	be := &fakeBackend{ackIDs: map[int][]string{0: {"sig-000", "sig-002"}}}
	q := newTestQueue(ms, be, &virtualScheduler{})

	res := q.Process(context.Background())
	assert.Equal(t, 2, res.Synced)
	assert.Equal(t, []string{"sig-001"}, ms.unsyncedIDs())
}

func TestProcess_ReentrantCallReturnsImmediately(t *testing.T) {
	ms := newMemStore(1)
	be := &fakeBackend{
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	q := newTestQueue(ms, be, &virtualScheduler{})

	first := make(chan queue.Result, 1)
	go func() { first <- q.Process(context.Background()) }()

	// Wait until the first drain is inside the backend call.
	<-be.entered

	res := q.Process(context.Background())
	assert.Equal(t, queue.Result{}, res, "concurrent drain must return a zero result without waiting")
	assert.Len(t, be.calls(), 1, "no duplicate backend call")

	close(be.release)
	got := <-first
	assert.Equal(t, 1, got.Synced)
}

func TestProcess_AbortOnStoreReadFailure(t *testing.T) {
	ms := newMemStore(3)
	ms.errUnsynced = errors.New("db locked")
	be := &fakeBackend{}
	q := newTestQueue(ms, be, &virtualScheduler{})

	res := q.Process(context.Background())
	assert.True(t, res.Aborted)
	assert.Error(t, res.Err)
	assert.Empty(t, be.calls())

	// The queue self-heals: once the store recovers, the next run drains.
	ms.errUnsynced = nil
	res = q.Process(context.Background())
	assert.False(t, res.Aborted)
	assert.Equal(t, 3, res.Synced)
}

func TestProcess_AbortOnMarkSyncedFailure(t *testing.T) {
	ms := newMemStore(15)
	ms.errMark = errors.New("disk full")
	be := &fakeBackend{}
	q := newTestQueue(ms, be, &virtualScheduler{})

	res := q.Process(context.Background())
	assert.True(t, res.Aborted)
	assert.Error(t, res.Err)
	assert.Zero(t, res.Synced)

	// Nothing was recorded as synced, so everything is retried; the
	// idempotent backend absorbs the re-send.
	ms.errMark = nil
	res = q.Process(context.Background())
	assert.Equal(t, 15, res.Synced)
	assert.Empty(t, ms.unsyncedIDs())
}

func TestSchedule_DebouncesToLastDeadline(t *testing.T) {
	ms := newMemStore(1)
	be := &fakeBackend{}
	sched := &virtualScheduler{}
	q := newTestQueue(ms, be, sched)

	q.Schedule(30 * time.Second)
	q.Schedule(30 * time.Second)
	q.Schedule(10 * time.Second)

	assert.Equal(t, 1, sched.pendingOneShots(), "repeated schedules collapse into one timer")

	sched.fireOneShots()
	assert.Len(t, be.calls(), 1, "exactly one drain fires")
	assert.Empty(t, ms.unsyncedIDs())

	// Firing again does nothing: the timer was one-shot.
	sched.fireOneShots()
	assert.Len(t, be.calls(), 1)
}

func TestSchedule_StatusExposesDeadline(t *testing.T) {
	ms := newMemStore(0)
	sched := &virtualScheduler{}
	q := newTestQueue(ms, &fakeBackend{}, sched)

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	q.SetNowFunc(func() time.Time { return now })

	st := q.Status()
	assert.False(t, st.Syncing)
	assert.Nil(t, st.NextSyncIn)

	q.Schedule(30 * time.Second)
	st = q.Status()
	require.NotNil(t, st.NextSyncIn)
	assert.Equal(t, 30*time.Second, *st.NextSyncIn)

	sched.fireOneShots()
	st = q.Status()
	assert.Nil(t, st.NextSyncIn, "deadline clears once the timer fires")
}

func TestSchedule_LateTimerKeepsReplacementDeadline(t *testing.T) {
	ms := newMemStore(0)
	sched := &virtualScheduler{}
	q := newTestQueue(ms, &fakeBackend{}, sched)

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	q.SetNowFunc(func() time.Time { return now })

	q.Schedule(10 * time.Second)
	q.Schedule(20 * time.Second)

	// The superseded timer's callback fires anyway, as a wall clock can
	// when cancellation races an already-running callback. It must not
	// erase the replacement's deadline or handle.
	sched.fireOneShot(0)

	st := q.Status()
	require.NotNil(t, st.NextSyncIn, "replacement deadline survives a late fire")
	assert.Equal(t, 20*time.Second, *st.NextSyncIn)

	// The replacement is still cancellable.
	q.Stop()
	assert.Equal(t, 0, sched.pendingOneShots())
	st = q.Status()
	assert.Nil(t, st.NextSyncIn)
}

func TestForce_CancelsPendingTimerAndDrainsNow(t *testing.T) {
	ms := newMemStore(2)
	be := &fakeBackend{}
	sched := &virtualScheduler{}
	q := newTestQueue(ms, be, sched)

	q.Schedule(30 * time.Second)
	require.Equal(t, 1, sched.pendingOneShots())

	res := q.Force(context.Background())
	assert.Equal(t, 2, res.Synced)
	assert.Equal(t, 0, sched.pendingOneShots(), "pending one-shot is cancelled")

	// The cancelled timer never fires a second drain.
	sched.fireOneShots()
	assert.Len(t, be.calls(), 1)
}

func TestInit_ArmsPeriodicAndInitialDrain(t *testing.T) {
	ms := newMemStore(3)
	be := &fakeBackend{}
	sched := &virtualScheduler{}
	q := newTestQueue(ms, be, sched)

	q.Init()
	assert.Equal(t, 1, sched.pendingOneShots(), "initial short-delay drain armed")

	// The periodic trigger drains on each firing.
	sched.tickPeriodics()
	assert.Len(t, be.calls(), 1)
	assert.Empty(t, ms.unsyncedIDs())

	q.Stop()
	sched.tickPeriodics()
	assert.Len(t, be.calls(), 1, "stopped queue no longer drains on ticks")
	assert.Equal(t, 0, sched.pendingOneShots())
}

// erroringBackend always returns a transport error.
type erroringBackend struct{}

func (erroringBackend) SyncSignals(context.Context, []*store.Signal) (*queue.SyncResult, error) {
	return nil, errors.New("connection refused")
}
