// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bureau-foundation/ticketd/lib/dispatch"
	"github.com/bureau-foundation/ticketd/lib/userstore"
	"github.com/bureau-foundation/ticketd/lib/wire"
)

func (s *Set) help(_ context.Context, request *wire.Request) wire.Response {
	if s.pipeline == nil {
		return wire.Fail(dispatch.MessageInternal)
	}
	entries := s.pipeline.Registry().Entries()
	lines := make([]string, len(entries))
	for i, entry := range entries {
		lines[i] = entry.Name + ": " + entry.Summary
	}
	return wire.OK(fmt.Sprintf("%d commands", len(lines)), wire.StringsPayload(lines))
}

func (s *Set) info(_ context.Context, request *wire.Request) wire.Response {
	info := s.collection.Info()
	text := fmt.Sprintf("store: %s, created: %s, size: %d",
		info.StoreKind, info.CreatedAt.Format(time.RFC3339), info.Size)
	return wire.OK(text, wire.StringPayload(text))
}

func (s *Set) historyCommand(_ context.Context, request *wire.Request) wire.Response {
	recent := s.history.Recent(request.ResolvedUserID())
	return wire.OK(fmt.Sprintf("%d commands", len(recent)), wire.StringsPayload(recent))
}

// executeScript runs each request of the batch through the pipeline
// with the caller's credentials. Entries that would nest a script or
// close the connection are refused individually.
func (s *Set) executeScript(ctx context.Context, request *wire.Request) wire.Response {
	if s.pipeline == nil {
		return wire.Fail(dispatch.MessageInternal)
	}
	batch, err := request.Data.Requests()
	if err != nil {
		return payloadFailure("a list of requests", err)
	}
	if len(batch) > MaxScriptLength {
		return wire.Failf("script has %d commands, limit is %d", len(batch), MaxScriptLength)
	}

	results := make([]wire.Response, len(batch))
	succeeded := 0
	for i, entry := range batch {
		if entry.Command == wire.CommandExecuteScript || entry.Command == wire.CommandExit {
			results[i] = wire.Failf("command %q is not allowed in a script", entry.Command)
			continue
		}
		entry.Login = request.Login
		entry.Password = request.Password
		entry.Success = true
		results[i] = s.pipeline.Execute(ctx, entry)
		if results[i].Success {
			succeeded++
		}
	}
	return wire.OK(
		fmt.Sprintf("script executed: %d of %d commands succeeded", succeeded, len(batch)),
		wire.ResponsesPayload(results),
	)
}

// login reports whether the gate resolved the credentials. The gate
// lets login through unauthenticated, so a missing user id here means
// the credentials were wrong.
func (s *Set) login(ctx context.Context, request *wire.Request) wire.Response {
	userID := request.ResolvedUserID()
	if userID == 0 {
		return wire.Fail("invalid username or password")
	}
	if err := s.users.TouchLogin(ctx, userID); err != nil {
		s.logger.Warn("recording login time", "user_id", userID, "error", err)
	}
	return wire.OK(fmt.Sprintf("logged in as %s", request.Login), wire.IntPayload(userID))
}

func (s *Set) register(ctx context.Context, request *wire.Request) wire.Response {
	username := strings.TrimSpace(request.Login)
	if username == "" {
		return wire.Fail("username is required")
	}
	if username != request.Login {
		return wire.Fail("username must not begin or end with whitespace")
	}
	if len(request.Password) < MinPasswordLength {
		return wire.Failf("password must be at least %d characters", MinPasswordLength)
	}

	user, err := s.users.Insert(ctx, username, request.Password)
	if errors.Is(err, userstore.ErrUsernameTaken) {
		return wire.Failf("username %q is already taken", username)
	}
	if err != nil {
		s.logger.Error("registering user", "username", username, "error", err)
		return wire.Fail(dispatch.MessageInternal)
	}
	return wire.OK(fmt.Sprintf("registered %s", username), wire.IntPayload(user.ID))
}

// exit saves the collection and says goodbye. The server closes the
// connection after writing the response.
func (s *Set) exit(ctx context.Context, request *wire.Request) wire.Response {
	if err := s.collection.Save(ctx); err != nil {
		s.logger.Error("saving collection on exit", "user_id", request.ResolvedUserID(), "error", err)
		return wire.Fail("goodbye (collection could not be saved)")
	}
	return wire.OK("goodbye", nil)
}

func (s *Set) save(ctx context.Context, request *wire.Request) wire.Response {
	if err := s.collection.Save(ctx); err != nil {
		s.logger.Error("saving collection", "user_id", request.ResolvedUserID(), "error", err)
		return wire.Fail("collection could not be saved")
	}
	return wire.OK("collection saved", wire.IntPayload(int64(s.collection.Size())))
}

func (s *Set) ping(context.Context, *wire.Request) wire.Response {
	return wire.OK("pong", wire.StringPayload("pong"))
}
