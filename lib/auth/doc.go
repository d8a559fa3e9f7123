// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package auth implements the per-request authentication gate.
//
// Every request carries the caller's login and password and is
// re-authenticated before dispatch; there is no session. The gate
// resolves the login against the user store, verifies the password
// against the stored argon2id hash, and either attaches the user id
// to the request or rejects it with the fixed message
// [MessageNotLoggedIn], which does not reveal whether the username
// exists. The login and register commands pass through unauthenticated
// so that they can establish identity.
package auth
