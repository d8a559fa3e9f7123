// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides ticketd's standard CBOR encoding configuration.
//
// Every CBOR byte that ticketd produces goes through this package: the
// request/response envelopes in lib/wire, payload bodies, and the
// on-disk snapshot in lib/snapshot. Sharing one encoder mode keeps the
// output deterministic (RFC 8949 §4.2: sorted map keys, smallest
// integer encoding, no indefinite-length items), so structurally equal
// values always encode to identical bytes.
//
// Time values are written as tag 0 RFC 3339 strings. The zone offset
// is preserved; fractional seconds are dropped.
//
// For buffer-oriented operations (frames, snapshots):
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// # Struct Tag Rules
//
// Types that only ever travel as CBOR use `cbor` tags. Types that are
// also printed as JSON by ticketctl use `json` tags; fxamacker/cbor
// falls back to them when no `cbor` tag is present. Never put both tags
// on one field.
package codec
