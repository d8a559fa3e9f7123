// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package collection

import "errors"

var (
	// ErrEmpty is the distinguished outcome of an operation that needs
	// at least one ticket.
	ErrEmpty = errors.New("collection is empty")

	// ErrNotFound means no live ticket has the requested id.
	ErrNotFound = errors.New("ticket not found")

	// ErrNoAccess means the caller does not own the ticket.
	ErrNoAccess = errors.New("no access to this ticket")

	// ErrDuplicateID means a live ticket already holds the id.
	ErrDuplicateID = errors.New("ticket id already exists")

	// ErrDuplicatePassport means another ticket's holder already has
	// the passport id.
	ErrDuplicatePassport = errors.New("passport id already registered")

	// ErrNotMinimum is returned by AddIfMin when the candidate's price
	// is not strictly below the current minimum.
	ErrNotMinimum = errors.New("price is not below the current minimum")

	// ErrInvalidTicket wraps a field validation failure.
	ErrInvalidTicket = errors.New("invalid ticket")
)
