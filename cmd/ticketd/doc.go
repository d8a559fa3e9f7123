// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Ticketd serves the ticket collection over TCP.
//
// It loads the configuration file (--config or TICKETD_CONFIG), opens
// the SQLite user store and the collection snapshot, and runs the epoll
// server, the optional Prometheus endpoint, and the optional autosave
// loop until SIGINT or SIGTERM. The collection is saved on shutdown.
package main
