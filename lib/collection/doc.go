// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package collection holds the server's in-memory ticket collection.
//
// A [Manager] owns the id-ordered ticket slice, the free-id candidate,
// and the person registry (passport id to ticket id). Every mutation
// runs under a single write lock for its whole effect, so two
// concurrent creates can never observe the same free id and readers
// never see a half-applied change. Tickets leave the manager only as
// deep copies.
//
// Persistence is injected: the constructor calls [Persistence.LoadAll]
// once and [Manager.Save] hands a copy of the collection to
// [Persistence.SaveAll]. The snapshot package provides the file-backed
// implementation.
package collection
