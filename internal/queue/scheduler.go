// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftline Contributors

package queue

import (
	"sync"
	"time"
)

// CancelFunc stops a scheduled timer. Safe to call more than once and
// after the timer has fired.
type CancelFunc func()

// Scheduler is the timer port between the queue and the host platform.
// Production binds to the wall clock; tests bind to a virtual clock so
// nothing sleeps.
type Scheduler interface {
	// Every invokes fn repeatedly at the given interval until cancelled.
	Every(interval time.Duration, fn func()) CancelFunc

	// After invokes fn once after the given delay unless cancelled first.
	After(delay time.Duration, fn func()) CancelFunc
}

// clockScheduler is the production Scheduler backed by the wall clock.
type clockScheduler struct{}

// NewClockScheduler returns a Scheduler backed by time.Ticker and
// time.AfterFunc.
func NewClockScheduler() Scheduler {
	return clockScheduler{}
}

func (clockScheduler) Every(interval time.Duration, fn func()) CancelFunc {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				fn()
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}
}

func (clockScheduler) After(delay time.Duration, fn func()) CancelFunc {
	timer := time.AfterFunc(delay, fn)
	return func() { timer.Stop() }
}
