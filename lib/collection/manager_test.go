// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package collection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/ticketd/lib/clock"
	"github.com/bureau-foundation/ticketd/lib/testutil"
	"github.com/bureau-foundation/ticketd/lib/ticket"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// makeTicket returns a valid ticket whose holder has the given
// passport. Override fields after construction as needed.
func makeTicket(name, passport string, price float64) ticket.Ticket {
	return ticket.Ticket{
		Name:        name,
		Coordinates: ticket.Coordinates{X: 1, Y: 2},
		Price:       price,
		Type:        ticket.TypeUsual,
		Person: ticket.Person{
			PassportID: passport,
			HairColor:  ticket.ColorBlack,
		},
	}
}

func discount(value int64) *int64 { return &value }

func newManager(t *testing.T) (*Manager, *clock.FakeClock) {
	t.Helper()
	fake := clock.Fake(epoch)
	manager, err := New(context.Background(), Options{Clock: fake})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return manager, fake
}

func mustCreate(t *testing.T, manager *Manager, entry ticket.Ticket, owner int64) ticket.Ticket {
	t.Helper()
	created, err := manager.Create(entry, owner)
	if err != nil {
		t.Fatalf("Create(%q): %v", entry.Name, err)
	}
	return created
}

func ticketIDs(tickets []ticket.Ticket) []int64 {
	ids := make([]int64, len(tickets))
	for i, entry := range tickets {
		ids[i] = entry.ID
	}
	return ids
}

// --- Create / Add / FreeID ---

func TestCreateAssignsIDDateOwner(t *testing.T) {
	manager, _ := newManager(t)

	entry := makeTicket("Concert", "P-1", 50)
	entry.ID = 999
	entry.CreationDate = epoch.Add(-time.Hour)
	created := mustCreate(t, manager, entry, 7)

	if created.ID != 1 {
		t.Errorf("ID = %d, want 1", created.ID)
	}
	if !created.CreationDate.Equal(epoch) {
		t.Errorf("CreationDate = %v, want %v", created.CreationDate, epoch)
	}
	if created.OwnerID != 7 {
		t.Errorf("OwnerID = %d, want 7", created.OwnerID)
	}
	if manager.Size() != 1 {
		t.Errorf("Size = %d, want 1", manager.Size())
	}
}

func TestFreeIDFillsGapsAndIsStable(t *testing.T) {
	manager, _ := newManager(t)
	for i := range 5 {
		mustCreate(t, manager, makeTicket("t", fmt.Sprintf("P-%d", i), 10), 1)
	}
	if got := manager.FreeID(); got != 6 {
		t.Fatalf("FreeID = %d, want 6", got)
	}

	if err := manager.Remove(4); err != nil {
		t.Fatalf("Remove(4): %v", err)
	}
	if err := manager.Remove(2); err != nil {
		t.Fatalf("Remove(2): %v", err)
	}
	if first, second := manager.FreeID(), manager.FreeID(); first != 2 || second != 2 {
		t.Fatalf("FreeID = %d then %d, want 2 twice", first, second)
	}

	created := mustCreate(t, manager, makeTicket("t", "P-new", 10), 1)
	if created.ID != 2 {
		t.Errorf("created ID = %d, want 2", created.ID)
	}
	if got := manager.FreeID(); got != 4 {
		t.Errorf("FreeID after refill = %d, want 4", got)
	}
}

func TestAddExplicitID(t *testing.T) {
	manager, _ := newManager(t)

	entry := makeTicket("Opera", "P-1", 30)
	entry.ID = 1
	if err := manager.Add(entry, 3); err != nil {
		t.Fatalf("Add: %v", err)
	}

	duplicate := makeTicket("Opera again", "P-2", 30)
	duplicate.ID = 1
	if err := manager.Add(duplicate, 3); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("Add duplicate id: got %v, want ErrDuplicateID", err)
	}

	zero := makeTicket("Zero", "P-3", 30)
	if err := manager.Add(zero, 3); !errors.Is(err, ErrInvalidTicket) {
		t.Errorf("Add id 0: got %v, want ErrInvalidTicket", err)
	}

	if got := manager.FreeID(); got != 2 {
		t.Errorf("FreeID = %d, want 2", got)
	}
}

func TestAddKeepsIDOrder(t *testing.T) {
	manager, _ := newManager(t)
	for i, id := range []int64{5, 2, 9, 1} {
		entry := makeTicket("t", fmt.Sprintf("P-%d", i), 10)
		entry.ID = id
		if err := manager.Add(entry, 1); err != nil {
			t.Fatalf("Add(%d): %v", id, err)
		}
	}
	got := ticketIDs(manager.Tickets())
	want := []int64{1, 2, 5, 9}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("order = %v, want %v", got, want)
	}
	if first, _ := manager.First(); first.ID != 1 {
		t.Errorf("First = %d, want 1", first.ID)
	}
	if last, _ := manager.Last(); last.ID != 9 {
		t.Errorf("Last = %d, want 9", last.ID)
	}
	if manager.FreeID() != 3 {
		t.Errorf("FreeID = %d, want 3", manager.FreeID())
	}
}

func TestCreateRejectsDuplicatePassport(t *testing.T) {
	manager, _ := newManager(t)
	mustCreate(t, manager, makeTicket("a", "P-1", 10), 1)

	_, err := manager.Create(makeTicket("b", "P-1", 10), 2)
	if !errors.Is(err, ErrDuplicatePassport) {
		t.Fatalf("Create with duplicate passport: got %v, want ErrDuplicatePassport", err)
	}
	if manager.Size() != 1 || manager.FreeID() != 2 {
		t.Errorf("collection changed: size=%d free=%d", manager.Size(), manager.FreeID())
	}
}

func TestCreateValidates(t *testing.T) {
	manager, fake := newManager(t)

	invalid := makeTicket("", "P-1", 10)
	if _, err := manager.Create(invalid, 1); !errors.Is(err, ErrInvalidTicket) {
		t.Errorf("empty name: got %v, want ErrInvalidTicket", err)
	}

	future := fake.Now().Add(48 * time.Hour)
	entry := makeTicket("Show", "P-2", 10)
	entry.Person.Birthday = &future
	if _, err := manager.Create(entry, 1); !errors.Is(err, ErrInvalidTicket) {
		t.Errorf("future birthday: got %v, want ErrInvalidTicket", err)
	}

	if manager.Size() != 0 {
		t.Errorf("Size = %d, want 0", manager.Size())
	}
}

func TestConcurrentCreatesYieldDistinctIDs(t *testing.T) {
	manager, _ := newManager(t)
	const count = 64

	var waitGroup sync.WaitGroup
	ids := make(chan int64, count)
	for i := range count {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			created, err := manager.Create(makeTicket("t", fmt.Sprintf("P-%d", i), 10), int64(i%4+1))
			if err != nil {
				t.Errorf("Create %d: %v", i, err)
				return
			}
			ids <- created.ID
		}()
	}
	waitGroup.Wait()
	close(ids)

	seen := make(map[int64]bool)
	for id := range ids {
		if seen[id] {
			t.Errorf("id %d assigned twice", id)
		}
		seen[id] = true
	}
	if len(seen) != count || manager.Size() != count {
		t.Errorf("distinct ids = %d, size = %d, want %d", len(seen), manager.Size(), count)
	}
	if manager.FreeID() != count+1 {
		t.Errorf("FreeID = %d, want %d", manager.FreeID(), count+1)
	}
}

// --- AddIfMin ---

func TestAddIfMin(t *testing.T) {
	manager, _ := newManager(t)

	created, _, err := manager.AddIfMin(makeTicket("first", "P-1", 40), 1)
	if err != nil {
		t.Fatalf("AddIfMin on empty: %v", err)
	}
	if created.ID != 1 {
		t.Errorf("ID = %d, want 1", created.ID)
	}

	_, minimum, err := manager.AddIfMin(makeTicket("equal", "P-2", 40), 1)
	if !errors.Is(err, ErrNotMinimum) {
		t.Fatalf("AddIfMin equal price: got %v, want ErrNotMinimum", err)
	}
	if minimum != 40 {
		t.Errorf("reported minimum = %v, want 40", minimum)
	}

	cheaper, _, err := manager.AddIfMin(makeTicket("cheaper", "P-3", 39.5), 2)
	if err != nil {
		t.Fatalf("AddIfMin cheaper: %v", err)
	}
	if cheaper.OwnerID != 2 || manager.Size() != 2 {
		t.Errorf("cheaper ticket owner=%d size=%d", cheaper.OwnerID, manager.Size())
	}
}

// --- Remove ---

func TestRemoveOnEmpty(t *testing.T) {
	manager, _ := newManager(t)

	if err := manager.Remove(1); !errors.Is(err, ErrEmpty) {
		t.Errorf("Remove on empty: got %v, want ErrEmpty", err)
	}
	if _, err := manager.RemoveFirst(1); !errors.Is(err, ErrEmpty) {
		t.Errorf("RemoveFirst on empty: got %v, want ErrEmpty", err)
	}
	if err := manager.RemoveOwned(1, 1); !errors.Is(err, ErrEmpty) {
		t.Errorf("RemoveOwned on empty: got %v, want ErrEmpty", err)
	}
}

func TestRemoveMissing(t *testing.T) {
	manager, _ := newManager(t)
	mustCreate(t, manager, makeTicket("a", "P-1", 10), 1)

	if err := manager.Remove(42); !errors.Is(err, ErrNotFound) {
		t.Errorf("Remove missing: got %v, want ErrNotFound", err)
	}
	if err := manager.RemoveTicket(ticket.Ticket{ID: 42}); !errors.Is(err, ErrNotFound) {
		t.Errorf("RemoveTicket missing: got %v, want ErrNotFound", err)
	}
}

func TestRemoveReleasesPassport(t *testing.T) {
	manager, _ := newManager(t)
	created := mustCreate(t, manager, makeTicket("a", "P-1", 10), 1)

	if err := manager.RemoveTicket(created); err != nil {
		t.Fatalf("RemoveTicket: %v", err)
	}
	if _, err := manager.Create(makeTicket("b", "P-1", 10), 1); err != nil {
		t.Errorf("Create after passport release: %v", err)
	}
}

func TestOwnershipEnforcement(t *testing.T) {
	manager, _ := newManager(t)
	const alice, bob = 1, 2
	owned := mustCreate(t, manager, makeTicket("alice's", "P-1", 10), alice)
	before := manager.Tickets()

	if _, err := manager.RemoveFirst(bob); !errors.Is(err, ErrNoAccess) {
		t.Errorf("RemoveFirst by non-owner: got %v, want ErrNoAccess", err)
	}
	if err := manager.RemoveOwned(owned.ID, bob); !errors.Is(err, ErrNoAccess) {
		t.Errorf("RemoveOwned by non-owner: got %v, want ErrNoAccess", err)
	}
	update := owned
	update.Name = "stolen"
	if _, err := manager.UpdateOwned(update, bob); !errors.Is(err, ErrNoAccess) {
		t.Errorf("UpdateOwned by non-owner: got %v, want ErrNoAccess", err)
	}

	after := manager.Tickets()
	if len(after) != len(before) || !after[0].Equal(before[0]) {
		t.Fatalf("collection changed after refused operations: %+v", after)
	}

	removed, err := manager.RemoveFirst(alice)
	if err != nil {
		t.Fatalf("RemoveFirst by owner: %v", err)
	}
	if removed.ID != owned.ID || manager.Size() != 0 {
		t.Errorf("removed %d, size %d", removed.ID, manager.Size())
	}
}

// --- Update ---

func TestUpdateIdempotent(t *testing.T) {
	manager, _ := newManager(t)
	entry := makeTicket("Ballet", "P-1", 25)
	entry.Discount = discount(10)
	created := mustCreate(t, manager, entry, 1)

	returned, err := manager.Update(created)
	if err != nil {
		t.Fatalf("Update unchanged: %v", err)
	}
	got, _ := manager.ByID(created.ID)
	if !got.Equal(created) || !returned.Equal(created) {
		t.Errorf("after idempotent update:\n got  %+v\n want %+v", got, created)
	}
}

func TestUpdateReplacesMutableFields(t *testing.T) {
	manager, fake := newManager(t)
	created := mustCreate(t, manager, makeTicket("Ballet", "P-1", 25), 1)
	fake.Advance(time.Hour)

	replacement := makeTicket("Ballet matinee", "P-9", 30)
	replacement.ID = created.ID
	replacement.OwnerID = 99
	replacement.CreationDate = epoch.Add(24 * time.Hour)
	returned, err := manager.UpdateOwned(replacement, 1)
	if err != nil {
		t.Fatalf("UpdateOwned: %v", err)
	}

	got, _ := manager.ByID(created.ID)
	if !returned.Equal(got) {
		t.Errorf("UpdateOwned returned %+v, stored %+v", returned, got)
	}
	returned.Person.PassportID = "mutated"
	if stored, _ := manager.ByID(created.ID); stored.Person.PassportID != "P-9" {
		t.Error("UpdateOwned returned an alias of the stored ticket")
	}
	if got.Name != "Ballet matinee" || got.Price != 30 || got.Person.PassportID != "P-9" {
		t.Errorf("mutable fields not replaced: %+v", got)
	}
	if got.OwnerID != 1 || !got.CreationDate.Equal(created.CreationDate) {
		t.Errorf("immutable fields changed: owner=%d created=%v", got.OwnerID, got.CreationDate)
	}

	// The old passport is free again, the new one is taken.
	if _, err := manager.Create(makeTicket("x", "P-1", 10), 1); err != nil {
		t.Errorf("Create with released passport: %v", err)
	}
	if _, err := manager.Create(makeTicket("y", "P-9", 10), 1); !errors.Is(err, ErrDuplicatePassport) {
		t.Errorf("Create with taken passport: got %v, want ErrDuplicatePassport", err)
	}
}

func TestUpdateErrors(t *testing.T) {
	manager, _ := newManager(t)
	first := mustCreate(t, manager, makeTicket("a", "P-1", 10), 1)
	mustCreate(t, manager, makeTicket("b", "P-2", 10), 1)

	missing := makeTicket("c", "P-3", 10)
	missing.ID = 50
	if _, err := manager.Update(missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update missing: got %v, want ErrNotFound", err)
	}

	stealPassport := first
	stealPassport.Person.PassportID = "P-2"
	if _, err := manager.Update(stealPassport); !errors.Is(err, ErrDuplicatePassport) {
		t.Errorf("Update to taken passport: got %v, want ErrDuplicatePassport", err)
	}

	invalid := first
	invalid.Price = 0
	if _, err := manager.Update(invalid); !errors.Is(err, ErrInvalidTicket) {
		t.Errorf("Update invalid: got %v, want ErrInvalidTicket", err)
	}
}

// --- Clear ---

func TestClearOnlyOwnerTickets(t *testing.T) {
	manager, _ := newManager(t)
	mustCreate(t, manager, makeTicket("a1", "P-1", 10), 1)
	mustCreate(t, manager, makeTicket("b1", "P-2", 10), 2)
	mustCreate(t, manager, makeTicket("a2", "P-3", 10), 1)

	if removed := manager.Clear(1); removed != 2 {
		t.Errorf("Clear(1) removed %d, want 2", removed)
	}
	if got := ticketIDs(manager.Tickets()); len(got) != 1 || got[0] != 2 {
		t.Errorf("remaining = %v, want [2]", got)
	}
	if manager.FreeID() != 1 {
		t.Errorf("FreeID = %d, want 1", manager.FreeID())
	}

	if removed := manager.ClearAll(); removed != 1 {
		t.Errorf("ClearAll removed %d, want 1", removed)
	}
	if manager.Size() != 0 {
		t.Errorf("Size after ClearAll = %d", manager.Size())
	}
}

// --- Queries ---

func TestTicketsReturnsCopies(t *testing.T) {
	manager, _ := newManager(t)
	entry := makeTicket("a", "P-1", 10)
	entry.Discount = discount(5)
	mustCreate(t, manager, entry, 1)

	copies := manager.Tickets()
	copies[0].Name = "mutated"
	*copies[0].Discount = 99

	stored, _ := manager.ByID(1)
	if stored.Name != "a" || *stored.Discount != 5 {
		t.Errorf("stored ticket changed through copy: %+v", stored)
	}
}

func TestInfo(t *testing.T) {
	manager, _ := newManager(t)
	mustCreate(t, manager, makeTicket("a", "P-1", 10), 1)

	info := manager.Info()
	if info.StoreKind != "memory" || info.Size != 1 || !info.CreatedAt.Equal(epoch) {
		t.Errorf("Info = %+v", info)
	}
}

// --- Persistence ---

func TestLoadSkipsInvalidEntries(t *testing.T) {
	valid := makeTicket("valid", "P-1", 10)
	valid.ID = 3
	valid.OwnerID = 5
	valid.CreationDate = epoch.Add(-time.Hour)

	duplicateID := makeTicket("dup id", "P-2", 10)
	duplicateID.ID = 3

	duplicatePassport := makeTicket("dup passport", "P-1", 10)
	duplicatePassport.ID = 4

	invalid := makeTicket("", "P-5", 10)
	invalid.ID = 6

	persistence := NewMemoryPersistence([]ticket.Ticket{valid, duplicateID, duplicatePassport, invalid})
	manager, err := New(context.Background(), Options{
		Clock:       clock.Fake(epoch),
		Persistence: persistence,
		StoreKind:   "snapshot",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tickets := manager.Tickets()
	if len(tickets) != 1 || !tickets[0].Equal(valid) {
		t.Fatalf("loaded = %+v, want only the valid ticket", tickets)
	}
	if manager.FreeID() != 1 {
		t.Errorf("FreeID = %d, want 1", manager.FreeID())
	}
	if manager.Info().StoreKind != "snapshot" {
		t.Errorf("StoreKind = %q", manager.Info().StoreKind)
	}
}

type failingPersistence struct{}

func (failingPersistence) LoadAll(context.Context) ([]ticket.Ticket, error) {
	return nil, errors.New("disk on fire")
}

func (failingPersistence) SaveAll(context.Context, []ticket.Ticket) error {
	return errors.New("disk on fire")
}

func TestLoadFailure(t *testing.T) {
	_, err := New(context.Background(), Options{Persistence: failingPersistence{}})
	if err == nil {
		t.Fatal("New should fail when LoadAll fails")
	}
}

func TestSave(t *testing.T) {
	persistence := NewMemoryPersistence(nil)
	manager, err := New(context.Background(), Options{Clock: clock.Fake(epoch), Persistence: persistence})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mustCreate(t, manager, makeTicket("a", "P-1", 10), 1)
	mustCreate(t, manager, makeTicket("b", "P-2", 10), 1)

	if err := manager.Save(context.Background()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	saved, saves := persistence.Saved()
	if saves != 1 || len(saved) != 2 {
		t.Fatalf("saved %d tickets in %d saves", len(saved), saves)
	}

	reloaded, err := New(context.Background(), Options{Clock: clock.Fake(epoch), Persistence: persistence})
	if err != nil {
		t.Fatalf("New reload: %v", err)
	}
	if reloaded.Size() != 2 || reloaded.FreeID() != 3 {
		t.Errorf("reloaded size=%d free=%d", reloaded.Size(), reloaded.FreeID())
	}
}

// gatedPersistence blocks the first SaveAll until release is closed.
type gatedPersistence struct {
	*MemoryPersistence
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedPersistence) SaveAll(ctx context.Context, tickets []ticket.Ticket) error {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return g.MemoryPersistence.SaveAll(ctx, tickets)
}

func TestConcurrentSavesPersistNewestCollection(t *testing.T) {
	persistence := &gatedPersistence{
		MemoryPersistence: NewMemoryPersistence(nil),
		entered:           make(chan struct{}),
		release:           make(chan struct{}),
	}
	manager, err := New(context.Background(), Options{Clock: clock.Fake(epoch), Persistence: persistence})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	firstDone := make(chan error, 1)
	go func() { firstDone <- manager.Save(context.Background()) }()
	testutil.RequireClosed(t, persistence.entered, 5*time.Second, "first save reaches the adapter")

	mustCreate(t, manager, makeTicket("late", "P-1", 10), 1)
	secondDone := make(chan error, 1)
	go func() { secondDone <- manager.Save(context.Background()) }()

	select {
	case <-secondDone:
		t.Fatal("second save finished while the first was still writing")
	case <-time.After(50 * time.Millisecond): //nolint:realclock test hang prevention
	}
	close(persistence.release)

	if err := testutil.RequireReceive(t, firstDone, 5*time.Second, "first save"); err != nil {
		t.Fatalf("first Save: %v", err)
	}
	if err := testutil.RequireReceive(t, secondDone, 5*time.Second, "second save"); err != nil {
		t.Fatalf("second Save: %v", err)
	}
	saved, saves := persistence.Saved()
	if saves != 2 || len(saved) != 1 {
		t.Errorf("persisted %d tickets after %d saves, want the newer collection of 1", len(saved), saves)
	}
}
