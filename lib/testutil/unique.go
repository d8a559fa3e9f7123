// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"sync/atomic"
)

var uniqueCounter atomic.Uint64

// UniqueID returns a string of the form "prefix-N" where N is a
// monotonically increasing integer. Tests use it for usernames and
// passport ids that must not collide across clients.
//
//	username := testutil.UniqueID("user")     // "user-1", "user-2", ...
//	passport := testutil.UniqueID("passport") // "passport-3", ...
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, uniqueCounter.Add(1))
}
