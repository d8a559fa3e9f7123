// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bureau-foundation/ticketd/lib/collection"
	"github.com/bureau-foundation/ticketd/lib/dispatch"
	"github.com/bureau-foundation/ticketd/lib/userstore"
	"github.com/bureau-foundation/ticketd/lib/wire"
)

// MinPasswordLength is the shortest password register accepts.
const MinPasswordLength = 6

// MaxScriptLength bounds the number of requests in one
// execute_script batch.
const MaxScriptLength = 1000

// ClearAllKeyword is the string payload that asks clear to remove
// every ticket rather than only the caller's.
const ClearAllKeyword = "all"

// Users is the part of the user store the session commands need.
type Users interface {
	Insert(ctx context.Context, username, password string) (userstore.User, error)
	TouchLogin(ctx context.Context, id int64) error
}

// Options configures a Set. Collection and Users are required.
type Options struct {
	Collection *collection.Manager
	Users      Users

	// Admins lists usernames allowed to clear the whole collection.
	Admins []string

	// HistorySize defaults to DefaultHistorySize.
	HistorySize int

	Logger *slog.Logger
}

// Set holds the state shared by the command handlers.
type Set struct {
	collection *collection.Manager
	users      Users
	admins     map[string]bool
	history    *History
	logger     *slog.Logger

	// pipeline is attached by Bind after the registry is built.
	pipeline *dispatch.Pipeline
}

// New returns a Set over the given collection and user store.
func New(options Options) *Set {
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}
	admins := make(map[string]bool, len(options.Admins))
	for _, name := range options.Admins {
		admins[name] = true
	}
	return &Set{
		collection: options.Collection,
		users:      options.Users,
		admins:     admins,
		history:    NewHistory(options.HistorySize),
		logger:     options.Logger,
	}
}

// Register adds every reserved verb to builder.
func (s *Set) Register(builder *dispatch.Builder) {
	builder.Register(wire.CommandHelp, "list available commands", s.help)
	builder.Register(wire.CommandInfo, "describe the collection", s.info)
	builder.Register(wire.CommandShow, "list every ticket", s.show)
	builder.Register(wire.CommandAdd, "add a ticket", s.add)
	builder.Register(wire.CommandUpdate, "replace a ticket you own", s.update)
	builder.Register(wire.CommandRemoveByID, "remove a ticket you own by id", s.removeByID)
	builder.Register(wire.CommandClear, "remove your tickets (\"all\": every ticket, admins only)", s.clear)
	builder.Register(wire.CommandRemoveFirst, "remove the first ticket if you own it", s.removeFirst)
	builder.Register(wire.CommandRemoveHead, "show and remove the first ticket if you own it", s.removeHead)
	builder.Register(wire.CommandAddIfMin, "add a ticket if its price is below every other", s.addIfMin)
	builder.Register(wire.CommandSumOfPrice, "sum of all ticket prices", s.sumOfPrice)
	builder.Register(wire.CommandMinByDiscount, "ticket with the smallest discount", s.minByDiscount)
	builder.Register(wire.CommandMaxByName, "ticket with the greatest name", s.maxByName)
	builder.Register(wire.CommandHistory, "your last commands", s.historyCommand)
	builder.Register(wire.CommandExecuteScript, "run a batch of commands", s.executeScript)
	builder.Register(wire.CommandLogin, "check credentials", s.login)
	builder.Register(wire.CommandRegister, "create an account", s.register)
	builder.Register(wire.CommandExit, "save and disconnect", s.exit)
	builder.Register(wire.CommandSave, "save the collection", s.save)
	builder.Register(wire.CommandPing, "check the connection", s.ping)
}

// Bind attaches the pipeline used by help and execute_script.
func (s *Set) Bind(pipeline *dispatch.Pipeline) {
	s.pipeline = pipeline
}

// Observe records authenticated requests in the history. It is a
// dispatch.Observer.
func (s *Set) Observe(_ context.Context, request *wire.Request, _ wire.Response, _ time.Duration) {
	userID := request.ResolvedUserID()
	if userID == 0 {
		return
	}
	if s.pipeline != nil {
		if _, known := s.pipeline.Registry().Lookup(request.Command); !known {
			return
		}
	}
	s.history.Record(userID, request.Command)
}

// History returns the set's history for inspection.
func (s *Set) History() *History { return s.history }

// failure maps a collection error to its response. Unexpected errors
// are logged and reported generically.
func (s *Set) failure(request *wire.Request, err error) wire.Response {
	switch {
	case errors.Is(err, collection.ErrEmpty),
		errors.Is(err, collection.ErrNoAccess),
		errors.Is(err, collection.ErrNotFound),
		errors.Is(err, collection.ErrDuplicateID),
		errors.Is(err, collection.ErrDuplicatePassport),
		errors.Is(err, collection.ErrInvalidTicket),
		errors.Is(err, collection.ErrNotMinimum):
		return wire.Fail(err.Error())
	default:
		s.logger.Error("command failed",
			"command", request.Command,
			"user_id", request.ResolvedUserID(),
			"error", err,
		)
		return wire.Fail(dispatch.MessageInternal)
	}
}

func payloadFailure(expected string, err error) wire.Response {
	return wire.Failf("expected %s: %v", expected, err)
}
