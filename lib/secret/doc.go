// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret keeps key material and passwords out of the Go heap.
//
// A [Buffer] is an anonymous mmap region, locked against swap and
// excluded from core dumps, that is zeroed when closed. ticketd reads
// its snapshot age identities through [ReadFile]; ticketctl holds a
// prompted password in a Buffer through [ReadLine] until it is handed
// to the client.
package secret
