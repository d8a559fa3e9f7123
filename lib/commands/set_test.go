// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/ticketd/lib/auth"
	"github.com/bureau-foundation/ticketd/lib/clock"
	"github.com/bureau-foundation/ticketd/lib/collection"
	"github.com/bureau-foundation/ticketd/lib/dispatch"
	"github.com/bureau-foundation/ticketd/lib/ticket"
	"github.com/bureau-foundation/ticketd/lib/userstore"
	"github.com/bureau-foundation/ticketd/lib/wire"
)

var epoch = time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)

// testEnv wires a full pipeline over a real collection and a real
// user store in a temporary directory.
type testEnv struct {
	pipeline    *dispatch.Pipeline
	set         *Set
	collection  *collection.Manager
	persistence *collection.MemoryPersistence
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	fake := clock.Fake(epoch)

	hasher, err := userstore.NewArgon2Hasher(userstore.HashParams{Time: 1, MemoryKiB: 64, Threads: 1})
	if err != nil {
		t.Fatalf("NewArgon2Hasher: %v", err)
	}
	users, err := userstore.Open(userstore.Config{
		Path:   filepath.Join(t.TempDir(), "users.db"),
		Hasher: hasher,
		Clock:  fake,
	})
	if err != nil {
		t.Fatalf("userstore.Open: %v", err)
	}
	t.Cleanup(func() { users.Close() })

	persistence := collection.NewMemoryPersistence(nil)
	manager, err := collection.New(context.Background(), collection.Options{
		Clock:       fake,
		Persistence: persistence,
	})
	if err != nil {
		t.Fatalf("collection.New: %v", err)
	}

	set := New(Options{
		Collection: manager,
		Users:      users,
		Admins:     []string{"root"},
	})
	builder := dispatch.NewBuilder()
	set.Register(builder)
	pipeline := dispatch.NewPipeline(builder.Build(), auth.NewGate(users, nil), nil, set.Observe)
	set.Bind(pipeline)

	return &testEnv{pipeline: pipeline, set: set, collection: manager, persistence: persistence}
}

// call runs a request as user with password "password1".
func (e *testEnv) call(user, command string, data *wire.Payload) wire.Response {
	return e.pipeline.Execute(context.Background(), wire.Request{
		Success:  true,
		Command:  command,
		Data:     data,
		Login:    user,
		Password: "password1",
	})
}

func (e *testEnv) register(t *testing.T, user string) int64 {
	t.Helper()
	response := e.call(user, wire.CommandRegister, nil)
	if !response.Success {
		t.Fatalf("register %s: %s", user, response.Message)
	}
	id, err := response.Data.Int()
	if err != nil {
		t.Fatalf("register %s: %v", user, err)
	}
	return id
}

func requireSuccess(t *testing.T, response wire.Response) wire.Response {
	t.Helper()
	if !response.Success {
		t.Fatalf("unexpected failure: %q", response.Message)
	}
	return response
}

func requireFailure(t *testing.T, response wire.Response, wantMessage string) {
	t.Helper()
	if response.Success {
		t.Fatalf("unexpected success: %q", response.Message)
	}
	if !strings.Contains(response.Message, wantMessage) {
		t.Errorf("message %q does not contain %q", response.Message, wantMessage)
	}
}

func sampleTicket(name, passport string, price float64) ticket.Ticket {
	return ticket.Ticket{
		Name:        name,
		Coordinates: ticket.Coordinates{X: 3, Y: 4},
		Price:       price,
		Person:      ticket.Person{PassportID: passport, HairColor: ticket.ColorBlue},
	}
}

func TestEveryVerbRegistered(t *testing.T) {
	env := newTestEnv(t)
	for _, name := range wire.Commands {
		if _, ok := env.pipeline.Registry().Lookup(name); !ok {
			t.Errorf("verb %q not registered", name)
		}
	}
	if env.pipeline.Registry().Len() != len(wire.Commands) {
		t.Errorf("registry has %d commands, want %d", env.pipeline.Registry().Len(), len(wire.Commands))
	}
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)
	id := env.register(t, "alice")

	response := requireSuccess(t, env.call("alice", wire.CommandLogin, nil))
	if got, _ := response.Data.Int(); got != id {
		t.Errorf("login user id = %d, want %d", got, id)
	}

	requireFailure(t, env.pipeline.Execute(context.Background(), wire.Request{
		Command: wire.CommandLogin, Login: "alice", Password: "wrong-password",
	}), "invalid username or password")

	requireFailure(t, env.call("alice", wire.CommandRegister, nil), "already taken")
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name     string
		login    string
		password string
		want     string
	}{
		{"empty_username", "", "password1", "username is required"},
		{"blank_username", "   ", "password1", "username is required"},
		{"padded_username", " bob", "password1", "whitespace"},
		{"short_password", "bob", "12345", "at least 6"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			requireFailure(t, env.pipeline.Execute(context.Background(), wire.Request{
				Command: wire.CommandRegister, Login: test.login, Password: test.password,
			}), test.want)
		})
	}
}

func TestUnauthenticatedRejected(t *testing.T) {
	env := newTestEnv(t)
	for _, command := range []string{wire.CommandShow, wire.CommandAdd, wire.CommandPing, wire.CommandHistory} {
		requireFailure(t, env.call("stranger", command, nil), auth.MessageNotLoggedIn)
	}
}

func TestAddThenShow(t *testing.T) {
	env := newTestEnv(t)
	aliceID := env.register(t, "alice")

	added := requireSuccess(t, env.call("alice", wire.CommandAdd, wire.TicketPayload(sampleTicket("Concert", "P-1", 50))))
	created, err := added.Data.Ticket()
	if err != nil {
		t.Fatalf("add payload: %v", err)
	}
	if created.ID != 1 || created.OwnerID != aliceID || !created.CreationDate.Equal(epoch) {
		t.Errorf("created = %+v", created)
	}

	shown := requireSuccess(t, env.call("alice", wire.CommandShow, nil))
	tickets, err := shown.Data.Tickets()
	if err != nil {
		t.Fatalf("show payload: %v", err)
	}
	if len(tickets) != 1 || tickets[0].OwnerID != aliceID || tickets[0].Name != "Concert" {
		t.Errorf("show = %+v", tickets)
	}
}

func TestAddRejectsBadPayload(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")

	requireFailure(t, env.call("alice", wire.CommandAdd, wire.IntPayload(5)), "expected a ticket")
	requireFailure(t, env.call("alice", wire.CommandAdd, nil), "expected a ticket")
	requireFailure(t, env.call("alice", wire.CommandAdd, wire.TicketPayload(sampleTicket("", "P-1", 50))), "invalid ticket")
	requireFailure(t, env.call("alice", wire.CommandRemoveByID, wire.StringPayload("1")), "expected a ticket id")
}

func TestRemoveOnEmptyCollection(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")

	for _, command := range []string{wire.CommandRemoveFirst, wire.CommandRemoveHead} {
		requireFailure(t, env.call("alice", command, nil), collection.ErrEmpty.Error())
	}
	requireFailure(t, env.call("alice", wire.CommandRemoveByID, wire.IntPayload(1)), collection.ErrEmpty.Error())
	for _, command := range []string{wire.CommandSumOfPrice, wire.CommandMinByDiscount, wire.CommandMaxByName} {
		requireFailure(t, env.call("alice", command, nil), collection.ErrEmpty.Error())
	}
}

func TestOwnershipAcrossUsers(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")
	env.register(t, "bob")
	requireSuccess(t, env.call("alice", wire.CommandAdd, wire.TicketPayload(sampleTicket("Opera", "P-1", 20))))

	requireFailure(t, env.call("bob", wire.CommandRemoveFirst, nil), collection.ErrNoAccess.Error())
	requireFailure(t, env.call("bob", wire.CommandRemoveHead, nil), collection.ErrNoAccess.Error())
	requireFailure(t, env.call("bob", wire.CommandRemoveByID, wire.IntPayload(1)), collection.ErrNoAccess.Error())

	stolen := sampleTicket("Stolen", "P-1", 20)
	stolen.ID = 1
	requireFailure(t, env.call("bob", wire.CommandUpdate, wire.TicketPayload(stolen)), collection.ErrNoAccess.Error())

	if env.collection.Size() != 1 {
		t.Fatalf("collection size = %d after refused operations", env.collection.Size())
	}

	head := requireSuccess(t, env.call("alice", wire.CommandRemoveHead, nil))
	removed, err := head.Data.Ticket()
	if err != nil || removed.Name != "Opera" {
		t.Errorf("remove_head returned %+v, %v", removed, err)
	}
}

func TestUpdate(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")
	requireSuccess(t, env.call("alice", wire.CommandAdd, wire.TicketPayload(sampleTicket("Opera", "P-1", 20))))

	replacement := sampleTicket("Opera gala", "P-1", 35)
	replacement.ID = 1
	response := requireSuccess(t, env.call("alice", wire.CommandUpdate, wire.TicketPayload(replacement)))
	updated, err := response.Data.Ticket()
	if err != nil || updated.ID != 1 || updated.OwnerID == 0 || updated.Name != "Opera gala" || updated.Price != 35 || !updated.CreationDate.Equal(epoch) {
		t.Errorf("updated = %+v, %v", updated, err)
	}

	missing := sampleTicket("Ghost", "P-2", 10)
	missing.ID = 77
	requireFailure(t, env.call("alice", wire.CommandUpdate, wire.TicketPayload(missing)), "not found")
}

func TestAddIfMin(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")

	requireSuccess(t, env.call("alice", wire.CommandAddIfMin, wire.TicketPayload(sampleTicket("a", "P-1", 30))))

	declined := env.call("alice", wire.CommandAddIfMin, wire.TicketPayload(sampleTicket("b", "P-2", 30)))
	requireFailure(t, declined, "not below the current minimum")
	if minimum, err := declined.Data.Float(); err != nil || minimum != 30 {
		t.Errorf("declined payload = %v, %v", minimum, err)
	}

	requireSuccess(t, env.call("alice", wire.CommandAddIfMin, wire.TicketPayload(sampleTicket("c", "P-3", 29))))
	if env.collection.Size() != 2 {
		t.Errorf("size = %d, want 2", env.collection.Size())
	}
}

func TestAggregates(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")
	withDiscount := sampleTicket("Zoo", "P-1", 10)
	discount := int64(40)
	withDiscount.Discount = &discount
	requireSuccess(t, env.call("alice", wire.CommandAdd, wire.TicketPayload(sampleTicket("Aquarium", "P-2", 15.5))))
	requireSuccess(t, env.call("alice", wire.CommandAdd, wire.TicketPayload(withDiscount)))

	sum := requireSuccess(t, env.call("alice", wire.CommandSumOfPrice, nil))
	if value, err := sum.Data.Float(); err != nil || value != 25.5 {
		t.Errorf("sum = %v, %v", value, err)
	}
	minimum := requireSuccess(t, env.call("alice", wire.CommandMinByDiscount, nil))
	if found, err := minimum.Data.Ticket(); err != nil || found.Name != "Zoo" {
		t.Errorf("min_by_discount = %+v, %v", found, err)
	}
	maximum := requireSuccess(t, env.call("alice", wire.CommandMaxByName, nil))
	if found, err := maximum.Data.Ticket(); err != nil || found.Name != "Zoo" {
		t.Errorf("max_by_name = %+v, %v", found, err)
	}
}

func TestClear(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")
	env.register(t, "bob")
	env.register(t, "root")
	requireSuccess(t, env.call("alice", wire.CommandAdd, wire.TicketPayload(sampleTicket("a", "P-1", 10))))
	requireSuccess(t, env.call("bob", wire.CommandAdd, wire.TicketPayload(sampleTicket("b", "P-2", 10))))
	requireSuccess(t, env.call("bob", wire.CommandAdd, wire.TicketPayload(sampleTicket("c", "P-3", 10))))

	response := requireSuccess(t, env.call("bob", wire.CommandClear, nil))
	if removed, _ := response.Data.Int(); removed != 2 {
		t.Errorf("bob cleared %d, want 2", removed)
	}
	requireFailure(t, env.call("alice", wire.CommandClear, wire.StringPayload(ClearAllKeyword)), "administrator")
	requireFailure(t, env.call("root", wire.CommandClear, wire.StringPayload("everything")), "no payload")
	if env.collection.Size() != 1 {
		t.Fatalf("size = %d, want 1", env.collection.Size())
	}

	response = requireSuccess(t, env.call("root", wire.CommandClear, wire.StringPayload(ClearAllKeyword)))
	if removed, _ := response.Data.Int(); removed != 1 || env.collection.Size() != 0 {
		t.Errorf("admin clear removed %d, size %d", removed, env.collection.Size())
	}
}

func TestHistory(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")
	env.register(t, "bob")

	for range 12 {
		env.call("alice", wire.CommandPing, nil)
	}
	env.call("alice", wire.CommandInfo, nil)
	env.call("alice", "no_such_command", nil)
	env.call("bob", wire.CommandShow, nil)

	response := requireSuccess(t, env.call("alice", wire.CommandHistory, nil))
	recent, err := response.Data.Strings()
	if err != nil {
		t.Fatalf("history payload: %v", err)
	}
	// The history call itself is recorded after it responds.
	if len(recent) != DefaultHistorySize {
		t.Fatalf("history length = %d, want %d: %v", len(recent), DefaultHistorySize, recent)
	}
	if recent[len(recent)-1] != wire.CommandInfo {
		t.Errorf("last entry = %q, want info", recent[len(recent)-1])
	}
	if slices.Contains(recent, "no_such_command") || slices.Contains(recent, wire.CommandShow) {
		t.Errorf("history leaked unknown or other users' commands: %v", recent)
	}
}

func TestHelpAndInfo(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")

	help := requireSuccess(t, env.call("alice", wire.CommandHelp, nil))
	lines, err := help.Data.Strings()
	if err != nil || len(lines) != len(wire.Commands) {
		t.Fatalf("help = %v, %v", lines, err)
	}
	if !strings.HasPrefix(lines[0], wire.CommandHelp+": ") {
		t.Errorf("first help line = %q", lines[0])
	}

	info := requireSuccess(t, env.call("alice", wire.CommandInfo, nil))
	if !strings.Contains(info.Message, "store: memory") || !strings.Contains(info.Message, "size: 0") {
		t.Errorf("info = %q", info.Message)
	}
}

func TestExecuteScript(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")

	script := []wire.Request{
		{Command: wire.CommandAdd, Data: wire.TicketPayload(sampleTicket("one", "P-1", 10))},
		{Command: wire.CommandAdd, Data: wire.TicketPayload(sampleTicket("two", "P-2", 20))},
		{Command: wire.CommandExecuteScript, Data: wire.RequestsPayload(nil)},
		{Command: wire.CommandExit},
		{Command: wire.CommandSumOfPrice},
		// Credentials inside the script are replaced by the caller's.
		{Command: wire.CommandRemoveByID, Data: wire.IntPayload(1), Login: "mallory", Password: "x"},
	}
	response := requireSuccess(t, env.call("alice", wire.CommandExecuteScript, wire.RequestsPayload(script)))
	results, err := response.Data.Responses()
	if err != nil {
		t.Fatalf("script payload: %v", err)
	}
	if len(results) != len(script) {
		t.Fatalf("results = %d, want %d", len(results), len(script))
	}

	wantSuccess := []bool{true, true, false, false, true, true}
	for i, want := range wantSuccess {
		if results[i].Success != want {
			t.Errorf("result %d (%s): success=%v message=%q", i, script[i].Command, results[i].Success, results[i].Message)
		}
	}
	if sum, _ := results[4].Data.Float(); sum != 30 {
		t.Errorf("scripted sum = %v, want 30", sum)
	}
	if env.collection.Size() != 1 {
		t.Errorf("size after script = %d, want 1", env.collection.Size())
	}
	if !strings.Contains(response.Message, "4 of 6") {
		t.Errorf("message = %q", response.Message)
	}
}

func TestExecuteScriptRequiresCallerAuth(t *testing.T) {
	env := newTestEnv(t)
	requireFailure(t, env.call("nobody", wire.CommandExecuteScript, wire.RequestsPayload([]wire.Request{{Command: wire.CommandPing}})), auth.MessageNotLoggedIn)
}

func TestSaveAndExit(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")
	requireSuccess(t, env.call("alice", wire.CommandAdd, wire.TicketPayload(sampleTicket("a", "P-1", 10))))

	requireSuccess(t, env.call("alice", wire.CommandSave, nil))
	saved, saves := env.persistence.Saved()
	if saves != 1 || len(saved) != 1 {
		t.Fatalf("after save: %d tickets in %d saves", len(saved), saves)
	}

	exit := requireSuccess(t, env.call("alice", wire.CommandExit, nil))
	if exit.Message != "goodbye" {
		t.Errorf("exit message = %q", exit.Message)
	}
	if _, saves := env.persistence.Saved(); saves != 2 {
		t.Errorf("saves after exit = %d, want 2", saves)
	}
}

func TestPing(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")
	response := requireSuccess(t, env.call("alice", wire.CommandPing, nil))
	if text, err := response.Data.Text(); err != nil || text != "pong" {
		t.Errorf("ping = %q, %v", text, err)
	}
}

func TestHistoryRing(t *testing.T) {
	history := NewHistory(3)
	for i := range 5 {
		history.Record(1, fmt.Sprintf("c%d", i))
	}
	history.Record(2, "other")
	got := history.Recent(1)
	if fmt.Sprint(got) != "[c2 c3 c4]" {
		t.Errorf("Recent(1) = %v", got)
	}
	if len(history.Recent(3)) != 0 {
		t.Error("unknown user has history")
	}
}
