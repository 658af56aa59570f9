// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftline Contributors

// Package health tracks the availability of the remote sync backend.
package health

import (
	"sync"
	"time"
)

// Metrics exposes the current health state of the backend for monitoring
// and operator visibility. All fields are point-in-time snapshots safe
// to serialize to JSON.
type Metrics struct {
	FailureCount  int64      `json:"failure_count"`
	LastFailureAt *time.Time `json:"last_failure_at,omitempty"`
	CooldownUntil *time.Time `json:"cooldown_until,omitempty"`
	Available     bool       `json:"available"`
}

// DefaultCooldown is the duration after which an unhealthy backend becomes
// eligible for retry.
const DefaultCooldown = 30 * time.Second

// Tracker provides simple health state tracking for the sync backend.
// The backend is considered healthy until RecordFailure is called. After
// a failure it is marked unhealthy for a cooldown period, after which it
// becomes available again to allow recovery.
type Tracker struct {
	mu           sync.RWMutex
	healthy      bool
	failedAt     time.Time
	cooldown     time.Duration
	failureCount int64
	nowFunc      func() time.Time // for testing
}

// NewTracker creates a Tracker that starts healthy. A non-positive
// cooldown falls back to DefaultCooldown.
func NewTracker(cooldown time.Duration) *Tracker {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Tracker{
		healthy:  true,
		cooldown: cooldown,
		nowFunc:  time.Now,
	}
}

// isHealthyLocked reports whether the backend is healthy or the cooldown
// has elapsed. The caller MUST hold at least t.mu.RLock.
func (t *Tracker) isHealthyLocked() bool {
	if t.healthy {
		return true
	}
	// Allow retry after cooldown expires.
	return t.nowFunc().Sub(t.failedAt) >= t.cooldown
}

// IsHealthy returns true if the backend is healthy or the cooldown has elapsed.
func (t *Tracker) IsHealthy() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.isHealthyLocked()
}

// RecordSuccess marks the backend as healthy.
func (t *Tracker) RecordSuccess() {
	t.mu.Lock()
	t.healthy = true
	t.mu.Unlock()
}

// RecordFailure marks the backend as unhealthy and increments the
// cumulative failure count.
func (t *Tracker) RecordFailure() {
	t.mu.Lock()
	t.healthy = false
	t.failedAt = t.nowFunc()
	t.failureCount++
	t.mu.Unlock()
}

// SetNowFunc overrides the time source (for testing).
func (t *Tracker) SetNowFunc(fn func() time.Time) {
	t.mu.Lock()
	t.nowFunc = fn
	t.mu.Unlock()
}

// Snapshot returns a point-in-time view of the tracker's health state.
// The returned struct is safe to serialize and holds no references to
// internal tracker state.
func (t *Tracker) Snapshot() Metrics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	m := Metrics{
		FailureCount: t.failureCount,
	}

	if t.failureCount > 0 {
		at := t.failedAt
		m.LastFailureAt = &at
	}

	m.Available = t.isHealthyLocked()
	if !t.healthy {
		cooldownEnd := t.failedAt.Add(t.cooldown)
		m.CooldownUntil = &cooldownEnd
	}
	return m
}
