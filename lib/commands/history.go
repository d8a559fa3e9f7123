// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import "sync"

// DefaultHistorySize is how many command names the history verb
// reports per user.
const DefaultHistorySize = 10

// History keeps the most recent command names per user.
type History struct {
	mu      sync.Mutex
	size    int
	entries map[int64][]string
}

// NewHistory returns a history keeping size entries per user.
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{size: size, entries: make(map[int64][]string)}
}

// Record appends command to userID's history, dropping the oldest
// entry once the history is full.
func (h *History) Record(userID int64, command string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	entries := append(h.entries[userID], command)
	if len(entries) > h.size {
		entries = entries[len(entries)-h.size:]
	}
	h.entries[userID] = entries
}

// Recent returns userID's history, oldest first.
func (h *History) Recent(userID int64) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	entries := h.entries[userID]
	out := make([]string, len(entries))
	copy(out, entries)
	return out
}
