// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics holds the Prometheus collectors for a ticket server.
//
// Each [Server] owns a private registry so that several servers (in
// tests, for instance) never collide on global registration. The
// registry is exposed over HTTP by [Server.Handler]. Command labels are
// limited to the reserved verb set; anything else is counted as
// "unknown" so a misbehaving client cannot grow label cardinality.
package metrics
