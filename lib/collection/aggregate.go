// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package collection

import "github.com/bureau-foundation/ticketd/lib/ticket"

// SumOfPrice returns the sum of every ticket's price, or ErrEmpty.
func (m *Manager) SumOfPrice() (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.tickets) == 0 {
		return 0, ErrEmpty
	}
	var sum float64
	for _, entry := range m.tickets {
		sum += entry.Price
	}
	return sum, nil
}

// MinByDiscount returns the ticket with the smallest discount. A
// ticket without a discount ranks after every ticket with one; ties go
// to the lowest id.
func (m *Manager) MinByDiscount() (ticket.Ticket, error) {
	return m.best(func(candidate, current ticket.Ticket) bool {
		candidateDiscount, candidateSet := candidate.DiscountValue()
		currentDiscount, currentSet := current.DiscountValue()
		switch {
		case !candidateSet:
			return false
		case !currentSet:
			return true
		default:
			return candidateDiscount < currentDiscount
		}
	})
}

// MaxByName returns the ticket whose name sorts last
// lexicographically; ties go to the lowest id.
func (m *Manager) MaxByName() (ticket.Ticket, error) {
	return m.best(func(candidate, current ticket.Ticket) bool {
		return candidate.Name > current.Name
	})
}

// best scans in id order and keeps the current winner unless better
// reports that a later ticket strictly beats it.
func (m *Manager) best(better func(candidate, current ticket.Ticket) bool) (ticket.Ticket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.tickets) == 0 {
		return ticket.Ticket{}, ErrEmpty
	}
	winner := 0
	for index := 1; index < len(m.tickets); index++ {
		if better(m.tickets[index], m.tickets[winner]) {
			winner = index
		}
	}
	return m.tickets[winner].Clone(), nil
}
