// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftline Contributors

package queue

import "time"

// SetNowFunc overrides the queue's time source (for testing).
func (q *Queue) SetNowFunc(fn func() time.Time) {
	q.mu.Lock()
	q.nowFunc = fn
	q.mu.Unlock()
}
