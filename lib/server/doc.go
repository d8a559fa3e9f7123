// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package server runs the ticket protocol over TCP.
//
// A single loop goroutine owns an epoll instance holding the listener,
// an eventfd used to wake the loop for shutdown, and every client
// connection. Connections are registered with EPOLLONESHOT: the kernel
// withdraws read interest at the moment a connection becomes readable,
// the loop hands the connection to the worker pool, and the worker
// re-arms interest only after it has read one frame, dispatched the
// request, and written the response. Requests on one connection are
// therefore strictly sequential while many connections proceed in
// parallel on a fixed number of workers.
//
// The loop never performs blocking I/O. Frames are read and written by
// workers under per-connection deadlines. A clean disconnect, a reset,
// a frame above the size limit, or a failed write closes only the
// affected connection. After the exit command the connection is closed
// once its response has been written.
//
// The epoll loop is Linux-only; on other platforms [Server.Serve]
// returns [ErrUnsupportedPlatform].
package server
