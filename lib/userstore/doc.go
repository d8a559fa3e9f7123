// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package userstore persists ticketd accounts in SQLite.
//
// Each row holds the username, an argon2id hash of the password, the
// random salt it was derived with, and the cost parameters used, so a
// change of configured cost does not invalidate existing accounts.
// Usernames are unique; inserting a taken name fails with
// [ErrUsernameTaken].
package userstore
