// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package collection

import (
	"context"
	"sync"

	"github.com/bureau-foundation/ticketd/lib/ticket"
)

// Persistence loads and stores the whole collection.
type Persistence interface {
	// LoadAll returns every stored ticket. An absent store yields an
	// empty slice, not an error.
	LoadAll(ctx context.Context) ([]ticket.Ticket, error)

	// SaveAll replaces the stored collection with tickets.
	SaveAll(ctx context.Context, tickets []ticket.Ticket) error
}

// MemoryPersistence keeps the last saved collection in memory. Tests
// use it to observe what the manager saved; it is also the default
// when no snapshot file is configured.
type MemoryPersistence struct {
	mu    sync.Mutex
	saved []ticket.Ticket
	saves int
}

// NewMemoryPersistence returns a store preloaded with initial.
func NewMemoryPersistence(initial []ticket.Ticket) *MemoryPersistence {
	return &MemoryPersistence{saved: cloneAll(initial)}
}

func (m *MemoryPersistence) LoadAll(context.Context) ([]ticket.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneAll(m.saved), nil
}

func (m *MemoryPersistence) SaveAll(_ context.Context, tickets []ticket.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = cloneAll(tickets)
	m.saves++
	return nil
}

// Saved returns the most recently saved collection and the number of
// SaveAll calls so far.
func (m *MemoryPersistence) Saved() ([]ticket.Ticket, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneAll(m.saved), m.saves
}

func cloneAll(tickets []ticket.Ticket) []ticket.Ticket {
	out := make([]ticket.Ticket, len(tickets))
	for i := range tickets {
		out[i] = tickets[i].Clone()
	}
	return out
}
