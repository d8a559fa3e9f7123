// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/bureau-foundation/ticketd/lib/auth"
	"github.com/bureau-foundation/ticketd/lib/wire"
)

const (
	// MessageCommandNotFound prefixes the response to an unregistered
	// command name.
	MessageCommandNotFound = "command not found"

	// MessageInternal is returned when a handler panics or the user
	// store fails. Details go to the log only.
	MessageInternal = "internal server error"
)

// Authenticator resolves the caller of a request.
type Authenticator interface {
	Authenticate(ctx context.Context, request *wire.Request) auth.Decision
}

// Observer is called after every dispatched request, including
// rejected and unknown ones. request carries the resolved user id.
// Observers run on the worker's goroutine and must not block.
type Observer func(ctx context.Context, request *wire.Request, response wire.Response, elapsed time.Duration)

// Pipeline runs requests through the gate and the registry.
type Pipeline struct {
	registry  *Registry
	gate      Authenticator
	observers []Observer
	logger    *slog.Logger
}

// NewPipeline returns a pipeline dispatching to registry after gate.
func NewPipeline(registry *Registry, gate Authenticator, logger *slog.Logger, observers ...Observer) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{
		registry:  registry,
		gate:      gate,
		observers: observers,
		logger:    logger,
	}
}

// Registry returns the pipeline's command table.
func (p *Pipeline) Registry() *Registry { return p.registry }

// Execute authenticates, looks up, and runs the handler for request,
// always producing exactly one response.
func (p *Pipeline) Execute(ctx context.Context, request wire.Request) wire.Response {
	started := time.Now()
	response := p.execute(ctx, &request)
	elapsed := time.Since(started)
	for _, observe := range p.observers {
		observe(ctx, &request, response, elapsed)
	}
	return response
}

func (p *Pipeline) execute(ctx context.Context, request *wire.Request) wire.Response {
	decision := p.gate.Authenticate(ctx, request)
	if !decision.Allowed() {
		if errors.Is(decision.Err, auth.ErrStore) {
			return wire.Fail(MessageInternal)
		}
		return wire.Fail(auth.MessageNotLoggedIn)
	}

	handler, ok := p.registry.Lookup(request.Command)
	if !ok {
		return wire.Failf("%s: %q", MessageCommandNotFound, request.Command)
	}
	return p.invoke(ctx, handler, request)
}

func (p *Pipeline) invoke(ctx context.Context, handler Handler, request *wire.Request) (response wire.Response) {
	defer func() {
		if recovered := recover(); recovered != nil {
			p.logger.Error("command handler panicked",
				"command", request.Command,
				"user_id", request.ResolvedUserID(),
				"panic", fmt.Sprint(recovered),
				"stack", string(debug.Stack()),
			)
			response = wire.Fail(MessageInternal)
		}
	}()
	return handler(ctx, request)
}
