// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ticket defines the records stored by ticketd: Ticket,
// Coordinates, and the embedded Person, together with their field
// validation.
//
// The types carry json tags so that the same structs are CBOR-encoded
// on the wire and in snapshots (through lib/codec's json-tag fallback)
// and printed as JSON by ticketctl.
//
// Validation covers only client-controlled fields. Identifier
// allocation, creation timestamps, ownership, and passport uniqueness
// are collection-level invariants enforced by lib/collection.
package ticket
