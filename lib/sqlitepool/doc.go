// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool wraps zombiezen.com/go/sqlite's sqlitex.Pool
// with the pragmas and schema bootstrap the user store needs.
//
// Every connection is initialized with:
//
//   - journal_mode=WAL: readers never block the writer.
//   - synchronous=NORMAL: commits survive a process crash without an
//     fsync per transaction.
//   - busy_timeout: writers wait for the lock instead of failing with
//     SQLITE_BUSY immediately.
//   - temp_store=MEMORY.
//
// followed by the caller's idempotent schema script.
//
// Callers borrow connections through [Pool.WithConn] for reads and
// [Pool.Write] for writes; both return the connection to the pool
// when the callback returns.
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:   "/var/lib/ticketd/users.db",
//	    Schema: schema,
//	    Logger: logger,
//	})
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
package sqlitepool
