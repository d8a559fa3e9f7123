// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package dispatch routes authenticated requests to command handlers.
//
// Handlers are registered on a [Builder] at startup; [Builder.Build]
// freezes them into an immutable [Registry] that the server's workers
// share without locking. A [Pipeline] runs every request through the
// same sequence: authentication gate, registry lookup, handler. A
// handler that panics yields a failure response instead of taking the
// worker down.
package dispatch
