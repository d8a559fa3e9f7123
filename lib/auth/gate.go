// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/ticketd/lib/userstore"
	"github.com/bureau-foundation/ticketd/lib/wire"
)

// MessageNotLoggedIn is the only failure message a rejected request
// receives.
const MessageNotLoggedIn = "not logged in"

var (
	// ErrRejected means the credentials did not resolve to a user and
	// the command requires one.
	ErrRejected = errors.New(MessageNotLoggedIn)

	// ErrStore means the user store failed for a reason other than a
	// missing user.
	ErrStore = errors.New("user store unavailable")
)

// State is the gate's progress on one request.
type State int

const (
	StateUnauthenticated State = iota
	StateResolving
	StateAuthorized
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateResolving:
		return "resolving"
	case StateAuthorized:
		return "authorized"
	case StateRejected:
		return "rejected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Users is the part of the user store the gate needs.
type Users interface {
	FindByUsername(ctx context.Context, username string) (userstore.User, error)
	VerifyPassword(user userstore.User, password string) bool
	Decoy() userstore.User
}

// Decision is the outcome of Authenticate. State is one of
// StateAuthorized, StateRejected, or StateUnauthenticated (a bypass
// command whose credentials did not resolve).
type Decision struct {
	State  State
	UserID int64

	// Err is set when State is StateRejected.
	Err error
}

// Allowed reports whether the request may proceed to dispatch.
func (d Decision) Allowed() bool {
	return d.State != StateRejected
}

// Gate authenticates requests against a user store.
type Gate struct {
	users  Users
	bypass map[string]bool
	logger *slog.Logger
}

// NewGate returns a gate over users. The login and register commands
// bypass authentication.
func NewGate(users Users, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Gate{
		users: users,
		bypass: map[string]bool{
			wire.CommandLogin:    true,
			wire.CommandRegister: true,
		},
		logger: logger,
	}
}

// Bypasses reports whether command may run without a resolved user.
func (g *Gate) Bypasses(command string) bool {
	return g.bypass[command]
}

// Authenticate resolves the request's credentials. Any user id the
// client put on the request is discarded first; on success the
// resolved id is attached.
func (g *Gate) Authenticate(ctx context.Context, request *wire.Request) Decision {
	request.UserID = nil

	user, err := g.resolve(ctx, request.Login, request.Password)
	if err == nil {
		request.SetUserID(user.ID)
		return Decision{State: StateAuthorized, UserID: user.ID}
	}

	if errors.Is(err, ErrStore) {
		g.logger.Error("authentication failed on user store",
			"command", request.Command,
			"error", err,
		)
		return Decision{State: StateRejected, Err: err}
	}
	if g.Bypasses(request.Command) {
		return Decision{State: StateUnauthenticated}
	}
	g.logger.Debug("request rejected",
		"command", request.Command,
		"login", request.Login,
	)
	return Decision{State: StateRejected, Err: ErrRejected}
}

// resolve walks Unauthenticated to Resolving and returns the user or
// ErrRejected (no such user, wrong password) or a wrapped ErrStore.
func (g *Gate) resolve(ctx context.Context, login, password string) (userstore.User, error) {
	if login == "" {
		return userstore.User{}, ErrRejected
	}
	user, err := g.users.FindByUsername(ctx, login)
	if errors.Is(err, userstore.ErrUserNotFound) {
		// Same hashing cost as a wrong password.
		g.users.VerifyPassword(g.users.Decoy(), password)
		return userstore.User{}, ErrRejected
	}
	if err != nil {
		return userstore.User{}, fmt.Errorf("%w: %w", ErrStore, err)
	}
	if !g.users.VerifyPassword(user, password) {
		return userstore.User{}, ErrRejected
	}
	return user, nil
}
