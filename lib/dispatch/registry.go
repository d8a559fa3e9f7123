// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/ticketd/lib/wire"
)

// Handler processes one request. The request's user id is already
// resolved when the gate authorized it. Handlers report every failure,
// including a payload of the wrong kind, as an unsuccessful Response.
type Handler func(ctx context.Context, request *wire.Request) wire.Response

// Entry is one registered command.
type Entry struct {
	Name    string
	Summary string
	Handler Handler
}

// Builder collects handlers before the registry is frozen.
type Builder struct {
	entries []Entry
	index   map[string]int
	built   bool
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{index: make(map[string]int)}
}

// Register adds a handler. Panics on an empty name, a nil handler, a
// duplicate name, or registration after Build.
func (b *Builder) Register(name, summary string, handler Handler) {
	if b.built {
		panic(fmt.Sprintf("dispatch.Builder: Register(%q) after Build", name))
	}
	if name == "" || handler == nil {
		panic("dispatch.Builder: name and handler are required")
	}
	if _, exists := b.index[name]; exists {
		panic(fmt.Sprintf("dispatch.Builder: duplicate handler for command %q", name))
	}
	b.index[name] = len(b.entries)
	b.entries = append(b.entries, Entry{Name: name, Summary: summary, Handler: handler})
}

// Build freezes the registered handlers. The builder cannot be used
// afterwards.
func (b *Builder) Build() *Registry {
	b.built = true
	registry := &Registry{
		entries: make([]Entry, len(b.entries)),
		index:   make(map[string]Handler, len(b.entries)),
	}
	copy(registry.entries, b.entries)
	for _, entry := range b.entries {
		registry.index[entry.Name] = entry.Handler
	}
	return registry
}

// Registry is an immutable command table, safe for concurrent use.
type Registry struct {
	entries []Entry
	index   map[string]Handler
}

// Lookup returns the handler for name.
func (r *Registry) Lookup(name string) (Handler, bool) {
	handler, ok := r.index[name]
	return handler, ok
}

// Entries returns the registered commands in registration order.
func (r *Registry) Entries() []Entry {
	entries := make([]Entry, len(r.entries))
	copy(entries, r.entries)
	return entries
}

// Len returns the number of registered commands.
func (r *Registry) Len() int { return len(r.entries) }
