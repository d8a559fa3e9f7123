// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package collection

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/bureau-foundation/ticketd/lib/clock"
	"github.com/bureau-foundation/ticketd/lib/ticket"
)

// Options configures a Manager. Every field is optional.
type Options struct {
	// Clock stamps creation dates and validates birthdays. Defaults
	// to the real clock.
	Clock clock.Clock

	// Persistence is loaded at construction and written by Save.
	// Defaults to an empty MemoryPersistence.
	Persistence Persistence

	// StoreKind names the backing store in Info. Defaults to "memory".
	StoreKind string

	Logger *slog.Logger
}

// Info describes the collection for the "info" command.
type Info struct {
	StoreKind string    `json:"store_kind"`
	CreatedAt time.Time `json:"created_at"`
	Size      int       `json:"size"`
}

// Manager is the concurrency-safe ticket collection.
type Manager struct {
	clock       clock.Clock
	persistence Persistence
	storeKind   string
	createdAt   time.Time
	logger      *slog.Logger

	// saveMu orders saves: the copy and its write happen as one step,
	// so a later snapshot always reaches the adapter last.
	saveMu sync.Mutex

	mu sync.RWMutex

	// tickets is sorted by ID ascending.
	tickets []ticket.Ticket

	// ids holds every live ticket id.
	ids map[int64]struct{}

	// passports maps a holder's passport id to the ticket holding it.
	passports map[string]int64

	// candidate is the smallest id not held by a live ticket. Every id
	// in [1, candidate) is held.
	candidate int64
}

// New creates a Manager and loads the persisted collection. Stored
// entries that fail validation or collide on id or passport are
// skipped with a warning; a load failure is returned.
func New(ctx context.Context, options Options) (*Manager, error) {
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Persistence == nil {
		options.Persistence = NewMemoryPersistence(nil)
	}
	if options.StoreKind == "" {
		options.StoreKind = "memory"
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}

	manager := &Manager{
		clock:       options.Clock,
		persistence: options.Persistence,
		storeKind:   options.StoreKind,
		createdAt:   options.Clock.Now(),
		logger:      options.Logger,
		ids:         make(map[int64]struct{}),
		passports:   make(map[string]int64),
		candidate:   1,
	}

	loaded, err := options.Persistence.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading collection: %w", err)
	}
	for _, entry := range loaded {
		if entry.ID <= 0 {
			manager.logger.Warn("skipping stored ticket with invalid id", "ticket_id", entry.ID)
			continue
		}
		if err := manager.insertLocked(entry, entry.OwnerID); err != nil {
			manager.logger.Warn("skipping stored ticket",
				"ticket_id", entry.ID,
				"error", err,
			)
		}
	}
	manager.logger.Info("collection loaded",
		"store", manager.storeKind,
		"loaded", len(manager.tickets),
		"skipped", len(loaded)-len(manager.tickets),
	)
	return manager, nil
}

// FreeID returns the smallest positive id not held by a live ticket.
// Without an intervening mutation it returns the same value.
func (m *Manager) FreeID() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.candidate
}

// Add inserts a ticket under its own id and binds it to ownerID. A
// zero creation date is stamped from the clock.
func (m *Manager) Add(entry ticket.Ticket, ownerID int64) error {
	if entry.ID <= 0 {
		return fmt.Errorf("%w: id must be positive, got %d", ErrInvalidTicket, entry.ID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(entry, ownerID)
}

// Create allocates the free id, stamps the creation date, and inserts
// the ticket for ownerID. Any client-supplied id or creation date is
// replaced.
func (m *Manager) Create(entry ticket.Ticket, ownerID int64) (ticket.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createLocked(entry, ownerID)
}

// AddIfMin creates the ticket only when its price is strictly below
// the lowest price in the collection, or the collection is empty. When
// it declines, it returns ErrNotMinimum together with the current
// minimum price.
func (m *Manager) AddIfMin(entry ticket.Ticket, ownerID int64) (ticket.Ticket, float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.tickets) > 0 {
		minimum := m.tickets[0].Price
		for _, existing := range m.tickets[1:] {
			minimum = min(minimum, existing.Price)
		}
		if !(entry.Price < minimum) {
			return ticket.Ticket{}, minimum, ErrNotMinimum
		}
	}

	created, err := m.createLocked(entry, ownerID)
	if err != nil {
		return ticket.Ticket{}, 0, err
	}
	return created, created.Price, nil
}

func (m *Manager) createLocked(entry ticket.Ticket, ownerID int64) (ticket.Ticket, error) {
	entry.ID = m.candidate
	entry.CreationDate = m.clock.Now()
	if err := m.insertLocked(entry, ownerID); err != nil {
		return ticket.Ticket{}, err
	}
	return m.tickets[m.indexLocked(entry.ID)].Clone(), nil
}

// insertLocked validates and inserts entry, keeping the slice sorted,
// the passport registry current, and the free-id candidate correct.
func (m *Manager) insertLocked(entry ticket.Ticket, ownerID int64) error {
	if _, exists := m.ids[entry.ID]; exists {
		return fmt.Errorf("%w: %d", ErrDuplicateID, entry.ID)
	}
	if holder, exists := m.passports[entry.Person.PassportID]; exists {
		return fmt.Errorf("%w: %q is held by ticket %d", ErrDuplicatePassport, entry.Person.PassportID, holder)
	}
	if err := entry.Validate(m.clock.Now()); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTicket, err)
	}
	if entry.CreationDate.IsZero() {
		entry.CreationDate = m.clock.Now()
	}

	entry = entry.Clone()
	entry.OwnerID = ownerID
	position, _ := slices.BinarySearchFunc(m.tickets, entry.ID, compareID)
	m.tickets = slices.Insert(m.tickets, position, entry)
	m.ids[entry.ID] = struct{}{}
	m.passports[entry.Person.PassportID] = entry.ID

	for {
		if _, held := m.ids[m.candidate]; !held {
			break
		}
		m.candidate++
	}
	return nil
}

// ByID returns a copy of the ticket with the given id.
func (m *Manager) ByID(id int64) (ticket.Ticket, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	index := m.indexLocked(id)
	if index < 0 {
		return ticket.Ticket{}, false
	}
	return m.tickets[index].Clone(), true
}

// Remove deletes the ticket with the given id regardless of owner.
func (m *Manager) Remove(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	index, err := m.lookupLocked(id)
	if err != nil {
		return err
	}
	m.removeAtLocked(index)
	return nil
}

// RemoveTicket deletes the live ticket with entry's id.
func (m *Manager) RemoveTicket(entry ticket.Ticket) error {
	return m.Remove(entry.ID)
}

// RemoveOwned deletes the ticket with the given id if ownerID owns it.
func (m *Manager) RemoveOwned(id, ownerID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	index, err := m.lookupLocked(id)
	if err != nil {
		return err
	}
	if m.tickets[index].OwnerID != ownerID {
		return ErrNoAccess
	}
	m.removeAtLocked(index)
	return nil
}

// RemoveFirst deletes and returns the head of the id order, provided
// ownerID owns it. The collection is unchanged on any error.
func (m *Manager) RemoveFirst(ownerID int64) (ticket.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.tickets) == 0 {
		return ticket.Ticket{}, ErrEmpty
	}
	head := m.tickets[0]
	if head.OwnerID != ownerID {
		return ticket.Ticket{}, ErrNoAccess
	}
	m.removeAtLocked(0)
	return head, nil
}

func (m *Manager) lookupLocked(id int64) (int, error) {
	if len(m.tickets) == 0 {
		return -1, ErrEmpty
	}
	index := m.indexLocked(id)
	if index < 0 {
		return -1, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return index, nil
}

func (m *Manager) removeAtLocked(index int) {
	removed := m.tickets[index]
	m.tickets = slices.Delete(m.tickets, index, index+1)
	delete(m.ids, removed.ID)
	delete(m.passports, removed.Person.PassportID)
	if removed.ID < m.candidate {
		m.candidate = removed.ID
	}
}

// Update replaces every mutable field of the ticket with entry's id.
// The id, owner, and creation date are kept. Returns a copy of the
// stored ticket.
func (m *Manager) Update(entry ticket.Ticket) (ticket.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateLocked(entry, nil)
}

// UpdateOwned is Update restricted to tickets owned by ownerID.
func (m *Manager) UpdateOwned(entry ticket.Ticket, ownerID int64) (ticket.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateLocked(entry, &ownerID)
}

func (m *Manager) updateLocked(entry ticket.Ticket, ownerID *int64) (ticket.Ticket, error) {
	index := m.indexLocked(entry.ID)
	if index < 0 {
		return ticket.Ticket{}, fmt.Errorf("%w: %d", ErrNotFound, entry.ID)
	}
	current := m.tickets[index]
	if ownerID != nil && current.OwnerID != *ownerID {
		return ticket.Ticket{}, ErrNoAccess
	}
	if holder, exists := m.passports[entry.Person.PassportID]; exists && holder != entry.ID {
		return ticket.Ticket{}, fmt.Errorf("%w: %q is held by ticket %d", ErrDuplicatePassport, entry.Person.PassportID, holder)
	}
	if err := entry.Validate(m.clock.Now()); err != nil {
		return ticket.Ticket{}, fmt.Errorf("%w: %w", ErrInvalidTicket, err)
	}

	replacement := entry.Clone()
	replacement.ID = current.ID
	replacement.OwnerID = current.OwnerID
	replacement.CreationDate = current.CreationDate

	delete(m.passports, current.Person.PassportID)
	m.passports[replacement.Person.PassportID] = replacement.ID
	m.tickets[index] = replacement
	return replacement.Clone(), nil
}

// First returns the ticket with the lowest id.
func (m *Manager) First() (ticket.Ticket, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.tickets) == 0 {
		return ticket.Ticket{}, false
	}
	return m.tickets[0].Clone(), true
}

// Last returns the ticket with the highest id.
func (m *Manager) Last() (ticket.Ticket, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.tickets) == 0 {
		return ticket.Ticket{}, false
	}
	return m.tickets[len(m.tickets)-1].Clone(), true
}

// Size returns the number of live tickets.
func (m *Manager) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tickets)
}

// Clear removes every ticket owned by ownerID and returns how many
// were removed.
func (m *Manager) Clear(ownerID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeWhereLocked(func(entry ticket.Ticket) bool {
		return entry.OwnerID == ownerID
	})
}

// ClearAll removes every ticket. Reserved for administrators.
func (m *Manager) ClearAll() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeWhereLocked(func(ticket.Ticket) bool { return true })
}

func (m *Manager) removeWhereLocked(match func(ticket.Ticket) bool) int {
	before := len(m.tickets)
	m.tickets = slices.DeleteFunc(m.tickets, func(entry ticket.Ticket) bool {
		if !match(entry) {
			return false
		}
		delete(m.ids, entry.ID)
		delete(m.passports, entry.Person.PassportID)
		if entry.ID < m.candidate {
			m.candidate = entry.ID
		}
		return true
	})
	return before - len(m.tickets)
}

// Tickets returns a copy of the collection in id order.
func (m *Manager) Tickets() []ticket.Ticket {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneAll(m.tickets)
}

// Info reports the store kind, the manager's creation time, and the
// current size.
func (m *Manager) Info() Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Info{
		StoreKind: m.storeKind,
		CreatedAt: m.createdAt,
		Size:      len(m.tickets),
	}
}

// Save writes a copy of the collection to the persistence adapter.
// Saves are serialized with each other but not with requests: the
// collection lock is released before the write.
func (m *Manager) Save(ctx context.Context) error {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()
	snapshot := m.Tickets()
	if err := m.persistence.SaveAll(ctx, snapshot); err != nil {
		return fmt.Errorf("saving collection: %w", err)
	}
	m.logger.Debug("collection saved", "store", m.storeKind, "size", len(snapshot))
	return nil
}

func (m *Manager) indexLocked(id int64) int {
	index, found := slices.BinarySearchFunc(m.tickets, id, compareID)
	if !found {
		return -1
	}
	return index
}

func compareID(entry ticket.Ticket, id int64) int {
	return cmp.Compare(entry.ID, id)
}
