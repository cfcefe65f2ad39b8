// Event Analytics Platform - Multi-Tenant Behavioral Event Analytics
// Copyright 2026 Rahul Bhardwaj (rahulbhardwaj94)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rahulbhardwaj94/event-analytics-platform

package queue

import (
	"sync"
	"time"
)

// History bounds for the in-memory job log.
const (
	maxCompletedJobs = 100
	maxFailedJobs    = 50
)

// JobRecord describes one processed batch.
type JobRecord struct {
	MessageID   string    `json:"messageId"`
	Tenant      string    `json:"tenant"`
	Events      int       `json:"events"`
	Duplicates  int       `json:"duplicates,omitempty"`
	Error       string    `json:"error,omitempty"`
	ProcessedAt time.Time `json:"processedAt"`
	Duration    string    `json:"duration"`
}

// History keeps a bounded in-memory log of recent batch jobs for the
// health endpoint. Oldest entries fall off first.
type History struct {
	mu        sync.Mutex
	completed []JobRecord
	failed    []JobRecord
}

// NewHistory creates an empty job history.
func NewHistory() *History {
	return &History{}
}

// RecordCompleted appends a successful job.
func (h *History) RecordCompleted(rec JobRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.completed = appendBounded(h.completed, rec, maxCompletedJobs)
}

// RecordFailed appends a failed job.
func (h *History) RecordFailed(rec JobRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failed = appendBounded(h.failed, rec, maxFailedJobs)
}

// Snapshot returns copies of both logs, newest last.
func (h *History) Snapshot() (completed, failed []JobRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	completed = make([]JobRecord, len(h.completed))
	copy(completed, h.completed)
	failed = make([]JobRecord, len(h.failed))
	copy(failed, h.failed)
	return completed, failed
}

// Counts returns the current log sizes.
func (h *History) Counts() (completed, failed int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.completed), len(h.failed)
}

func appendBounded(log []JobRecord, rec JobRecord, limit int) []JobRecord {
	log = append(log, rec)
	if len(log) > limit {
		log = log[len(log)-limit:]
	}
	return log
}
