// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package client speaks the ticket protocol over a persistent TCP
// connection.
//
// A [Client] sends one request at a time and waits for its response.
// Connecting is bounded by the dial timeout and every response wait by
// the response timeout (or the context deadline, whichever is sooner).
// A timeout or I/O failure leaves the stream at an unknown frame
// boundary, so the client drops the connection and dials again on the
// next call.
//
// Unsuccessful responses are returned as [*ResponseError] from the
// typed helpers; [Client.Do] returns the raw response instead.
package client
