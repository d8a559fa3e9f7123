// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// Components that stamp times (ticket creation dates, user
// registration and login times) or run periodic work (snapshot
// autosave) hold a Clock instead of calling the time package. In
// production Real() is used; tests use Fake() and move time with
// Advance or Set:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	manager := collection.New(collection.Options{Clock: c})
//	c.Advance(time.Hour)
package clock
