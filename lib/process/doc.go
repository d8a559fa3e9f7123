// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers for ticketd and
// ticketctl. These functions centralize the raw I/O that happens before
// or around the structured logger:
//
//   - [Fatal] reports an error from run() to stderr and exits.
//   - [NewLogger] builds the slog logger, JSON for servers and text
//     for an interactive terminal.
package process
