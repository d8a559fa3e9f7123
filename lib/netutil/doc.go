// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil classifies network errors for the ticket server and
// its client.
//
// [IsExpectedCloseError] separates normal peer disconnects from
// genuine I/O failures so that callers log the former at debug level.
// [IsTimeout] reports deadline expiry on a connection.
package netutil
