// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/bureau-foundation/ticketd/lib/userstore"
	"github.com/bureau-foundation/ticketd/lib/wire"
)

// fakeUsers is an in-memory Users keyed by username. Passwords are
// compared in plain text.
type fakeUsers struct {
	users     map[string]userstore.User
	passwords map[string]string
	failWith  error
	verified  []string
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{
		users:     map[string]userstore.User{"alice": {ID: 11, Username: "alice"}},
		passwords: map[string]string{"alice": "password1"},
	}
}

func (f *fakeUsers) FindByUsername(_ context.Context, username string) (userstore.User, error) {
	if f.failWith != nil {
		return userstore.User{}, f.failWith
	}
	user, ok := f.users[username]
	if !ok {
		return userstore.User{}, userstore.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeUsers) VerifyPassword(user userstore.User, password string) bool {
	f.verified = append(f.verified, user.Username)
	if user.Username == decoyName {
		return false
	}
	return f.passwords[user.Username] == password
}

const decoyName = "(decoy)"

func (f *fakeUsers) Decoy() userstore.User {
	return userstore.User{Username: decoyName}
}

func TestUnknownUserPaysVerificationCost(t *testing.T) {
	tests := []struct {
		name  string
		login string
		want  []string
	}{
		{"unknown user verifies against the decoy", "mallory", []string{decoyName}},
		{"known user verifies once", "alice", []string{"alice"}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			users := newFakeUsers()
			gate := NewGate(users, nil)
			request := &wire.Request{Command: wire.CommandShow, Login: test.login, Password: "wrong"}
			if decision := gate.Authenticate(context.Background(), request); decision.State != StateRejected {
				t.Fatalf("state = %v, want rejected", decision.State)
			}
			if len(users.verified) != len(test.want) || users.verified[0] != test.want[0] {
				t.Errorf("verified %v, want %v", users.verified, test.want)
			}
		})
	}
}

func TestAuthenticate(t *testing.T) {
	tests := []struct {
		name       string
		command    string
		login      string
		password   string
		wantState  State
		wantUserID int64
	}{
		{name: "valid", command: wire.CommandShow, login: "alice", password: "password1", wantState: StateAuthorized, wantUserID: 11},
		{name: "wrong_password", command: wire.CommandShow, login: "alice", password: "nope", wantState: StateRejected},
		{name: "unknown_user", command: wire.CommandAdd, login: "mallory", password: "password1", wantState: StateRejected},
		{name: "no_credentials", command: wire.CommandPing, wantState: StateRejected},
		{name: "login_bypass", command: wire.CommandLogin, login: "alice", password: "nope", wantState: StateUnauthenticated},
		{name: "register_bypass", command: wire.CommandRegister, login: "newcomer", password: "secret1", wantState: StateUnauthenticated},
		{name: "login_valid", command: wire.CommandLogin, login: "alice", password: "password1", wantState: StateAuthorized, wantUserID: 11},
	}
	gate := NewGate(newFakeUsers(), nil)

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			request := wire.Request{Command: test.command, Login: test.login, Password: test.password}
			decision := gate.Authenticate(context.Background(), &request)

			if decision.State != test.wantState {
				t.Fatalf("State = %v, want %v", decision.State, test.wantState)
			}
			if decision.UserID != test.wantUserID || request.ResolvedUserID() != test.wantUserID {
				t.Errorf("user id: decision %d, request %d, want %d",
					decision.UserID, request.ResolvedUserID(), test.wantUserID)
			}
			if test.wantState == StateRejected {
				if decision.Allowed() || !errors.Is(decision.Err, ErrRejected) {
					t.Errorf("rejected decision: allowed=%v err=%v", decision.Allowed(), decision.Err)
				}
				if decision.Err.Error() != MessageNotLoggedIn {
					t.Errorf("message = %q, want %q", decision.Err.Error(), MessageNotLoggedIn)
				}
			} else if !decision.Allowed() {
				t.Error("decision not allowed")
			}
		})
	}
}

func TestAuthenticateDiscardsClientUserID(t *testing.T) {
	gate := NewGate(newFakeUsers(), nil)

	request := wire.Request{Command: wire.CommandRegister, Login: "nobody"}
	request.SetUserID(11)
	decision := gate.Authenticate(context.Background(), &request)

	if decision.State != StateUnauthenticated {
		t.Fatalf("State = %v, want unauthenticated", decision.State)
	}
	if request.UserID != nil {
		t.Errorf("client-supplied user id survived: %d", *request.UserID)
	}
}

func TestAuthenticateStoreFailure(t *testing.T) {
	users := newFakeUsers()
	users.failWith = errors.New("database is locked")
	gate := NewGate(users, nil)

	for _, command := range []string{wire.CommandShow, wire.CommandLogin} {
		request := wire.Request{Command: command, Login: "alice", Password: "password1"}
		decision := gate.Authenticate(context.Background(), &request)
		if decision.State != StateRejected || !errors.Is(decision.Err, ErrStore) {
			t.Errorf("%s: decision = %+v, want rejected with ErrStore", command, decision)
		}
	}
}

func TestStateString(t *testing.T) {
	for state, want := range map[State]string{
		StateUnauthenticated: "unauthenticated",
		StateResolving:       "resolving",
		StateAuthorized:      "authorized",
		StateRejected:        "rejected",
		State(9):             "State(9)",
	} {
		if got := state.String(); got != want {
			t.Errorf("String(%d) = %q, want %q", int(state), got, want)
		}
	}
}
