// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire defines ticketd's request/response protocol.
//
// A client holds one TCP connection and exchanges envelopes with the
// server strictly in turn: one Request frame, then exactly one
// Response frame. Every envelope travels as
//
//	[4 bytes payload length, big-endian uint32] [CBOR envelope]
//
// The explicit length prefix bounds each request regardless of how TCP
// segments the stream, so the server reads exactly one frame per
// readiness event and never consumes bytes belonging to the next
// request.
//
// Envelopes carry an optional polymorphic Payload: a Kind tag and the
// CBOR body of a ticket, person, number, string, or list. Handlers ask
// for the kind they expect (Payload.Ticket, Payload.Int, ...) and get
// ErrPayloadKind when the client sent something else.
//
// The verb names shared by server handlers and client builders are the
// Command* constants.
package wire
