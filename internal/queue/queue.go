// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftline Contributors

// Package queue drains unsynced signals to the backend in batches. There
// is no queue table: any signal with synced=false is queue-eligible, and
// the store's MarkSynced is the only way the flag ever flips. Delivery
// is at-least-once; the backend de-duplicates by signal id.
package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/driftline-dev/driftline/internal/store"
	dlerr "github.com/driftline-dev/driftline/pkg/errors"
)

const (
	// DefaultBatchSize is the number of signals sent per backend call.
	DefaultBatchSize = 10

	// DefaultScheduleDelay is the debounce window armed after a capture.
	DefaultScheduleDelay = 30 * time.Second

	// DefaultInterval is the coarse periodic drain trigger.
	DefaultInterval = time.Minute

	// DefaultInitialDelay is the short delay before the first drain after
	// the queue starts.
	DefaultInitialDelay = 5 * time.Second
)

// Backend is the collaborator receiving signal batches. SyncSignals must
// be idempotent per signal id because failed batches are retried.
type Backend interface {
	SyncSignals(ctx context.Context, batch []*store.Signal) (*SyncResult, error)
}

// SyncResult is the backend's acknowledgement for one batch.
type SyncResult struct {
	Success bool `json:"success"`
	// SyncedIDs lists the accepted signal ids. A successful response with
	// no ids acknowledges the whole batch.
	SyncedIDs []string `json:"synced_ids,omitempty"`
}

// Result reports one drain run. A batch that the backend rejected adds
// its size to Failed and stays unsynced for the next run; Aborted marks
// a run cut short by an unexpected error, as opposed to individual batch
// failures.
type Result struct {
	Synced  int   `json:"synced"`
	Failed  int   `json:"failed"`
	Aborted bool  `json:"aborted,omitempty"`
	Err     error `json:"-"`
}

// Status is a read-only snapshot of the queue.
type Status struct {
	Syncing bool `json:"syncing"`
	// NextSyncIn is the time until the pending one-shot drain, nil when
	// none is scheduled. The coarse periodic trigger is not reflected
	// here.
	NextSyncIn *time.Duration `json:"next_sync_in,omitempty"`
}

// Options tunes a Queue. Zero values fall back to the defaults above.
type Options struct {
	BatchSize     int
	ScheduleDelay time.Duration
	Interval      time.Duration
	InitialDelay  time.Duration
}

// Queue owns all sync state: the mutual-exclusion flag, the pending
// one-shot timer, and the periodic trigger. Construct one per process
// lifetime and share it by reference.
type Queue struct {
	signals store.SignalStore
	backend Backend
	sched   Scheduler
	logger  *slog.Logger
	opts    Options

	mu             sync.Mutex
	syncing        bool
	cancelOneShot  CancelFunc
	cancelPeriodic CancelFunc
	nextSyncAt     time.Time
	// oneShotGen increments whenever the pending one-shot changes, so a
	// late-firing callback of a superseded timer cannot clear the handle
	// and deadline of its replacement.
	oneShotGen uint64

	nowFunc func() time.Time // for testing
}

// New wires a queue. logger may be nil.
func New(signals store.SignalStore, backend Backend, sched Scheduler, opts Options, logger *slog.Logger) *Queue {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.ScheduleDelay <= 0 {
		opts.ScheduleDelay = DefaultScheduleDelay
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = DefaultInitialDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		signals: signals,
		backend: backend,
		sched:   sched,
		logger:  logger,
		opts:    opts,
		nowFunc: time.Now,
	}
}

// Init arms the recurring periodic trigger and schedules an initial
// short-delay drain. Calling Init again first stops the previous timers.
func (q *Queue) Init() {
	q.mu.Lock()
	if q.cancelPeriodic != nil {
		q.cancelPeriodic()
	}
	q.cancelPeriodic = q.sched.Every(q.opts.Interval, func() {
		q.Process(context.Background())
	})
	q.mu.Unlock()

	q.Schedule(q.opts.InitialDelay)
}

// Stop cancels both timers. In-flight drains finish on their own; their
// signals stay consistent either way.
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.cancelTimersLocked()
	if q.cancelPeriodic != nil {
		q.cancelPeriodic()
		q.cancelPeriodic = nil
	}
}

// Schedule arms a one-shot drain after delay, collapsing any pending
// one-shot into the new deadline (debounce: last schedule wins). A
// non-positive delay uses the configured default.
func (q *Queue) Schedule(delay time.Duration) {
	if delay <= 0 {
		delay = q.opts.ScheduleDelay
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.cancelTimersLocked()
	gen := q.oneShotGen
	q.nextSyncAt = q.nowFunc().Add(delay)
	q.cancelOneShot = q.sched.After(delay, func() {
		q.mu.Lock()
		if q.oneShotGen == gen {
			q.cancelOneShot = nil
			q.nextSyncAt = time.Time{}
		}
		q.mu.Unlock()

		q.Process(context.Background())
	})
}

// Force cancels any pending one-shot timer and drains immediately. The
// usual exclusion applies: a forced sync while one is in flight is a
// no-op returning a zero Result.
func (q *Queue) Force(ctx context.Context) Result {
	q.mu.Lock()
	q.cancelTimersLocked()
	q.mu.Unlock()

	return q.Process(ctx)
}

// Process drains every unsynced signal in fixed-size batches. If a drain
// is already running it returns a zero Result immediately — callers
// never wait. The queue always returns to idle, even when the run
// aborts.
func (q *Queue) Process(ctx context.Context) Result {
	q.mu.Lock()
	if q.syncing {
		q.mu.Unlock()
		return Result{}
	}
	q.syncing = true
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.syncing = false
		q.mu.Unlock()
	}()

	unsynced, err := q.signals.GetUnsynced(ctx)
	if err != nil {
		q.logger.Error("sync aborted: reading unsynced signals", "error", err)
		return Result{Aborted: true, Err: dlerr.Wrap(err, dlerr.CodeQueueDrainAborted, "reading unsynced signals")}
	}
	if len(unsynced) == 0 {
		return Result{}
	}

	var res Result
	for start := 0; start < len(unsynced); start += q.opts.BatchSize {
		end := min(start+q.opts.BatchSize, len(unsynced))
		batch := unsynced[start:end]

		ack, err := q.backend.SyncSignals(ctx, batch)
		if err != nil || ack == nil || !ack.Success {
			res.Failed += len(batch)
			q.logger.Warn("batch sync failed, retrying next run",
				"batch_size", len(batch),
				"error", err,
			)
			continue
		}

		ids := ack.SyncedIDs
		if len(ids) == 0 {
			// Success with no explicit ids acknowledges the whole batch.
			ids = make([]string, len(batch))
			for i, sig := range batch {
				ids[i] = sig.ID
			}
		}

		if err := q.signals.MarkSynced(ctx, ids); err != nil {
			// The backend accepted the batch but we could not record it.
			// Abort: the next run re-sends, which the backend de-dupes.
			q.logger.Error("sync aborted: marking batch synced", "error", err)
			res.Aborted = true
			res.Err = dlerr.Wrap(err, dlerr.CodeQueueDrainAborted, "marking batch synced",
				dlerr.FieldBatch(start/q.opts.BatchSize),
			)
			return res
		}
		res.Synced += len(ids)
	}

	q.logger.Info("sync run complete", "synced", res.Synced, "failed", res.Failed)
	return res
}

// Status returns a read-only snapshot of the queue.
func (q *Queue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()

	st := Status{Syncing: q.syncing}
	if !q.nextSyncAt.IsZero() {
		in := q.nextSyncAt.Sub(q.nowFunc())
		if in < 0 {
			in = 0
		}
		st.NextSyncIn = &in
	}
	return st
}

// cancelTimersLocked cancels the pending one-shot and invalidates any
// callback of it that already fired. Caller holds q.mu.
func (q *Queue) cancelTimersLocked() {
	q.oneShotGen++
	if q.cancelOneShot != nil {
		q.cancelOneShot()
		q.cancelOneShot = nil
	}
	q.nextSyncAt = time.Time{}
}
