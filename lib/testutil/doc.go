// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [RequireReceive], [RequireClosed], and [RequireEventually] bound
// every wait with a wall-clock timeout, so a hung server or worker
// fails the test instead of stalling the run. Code under test takes a
// clock.Clock; these helpers are the only place tests wait on real
// time.
//
// [LocalListener] opens a loopback TCP listener on an ephemeral port.
// [UniqueID] generates non-colliding usernames and passport ids.
package testutil
