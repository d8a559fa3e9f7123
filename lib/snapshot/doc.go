// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package snapshot persists the ticket collection to a single file.
//
// The file is the CBOR encoding of a header and a body:
//
//	{version, compression, digest, size, body}
//
// body is the deterministic CBOR encoding of the ticket list,
// compressed with zstd or LZ4 block mode (or stored as is). digest is
// the BLAKE3-256 hash of the uncompressed body and size its length,
// both checked on load. When age recipients are configured the whole
// file is encrypted to them; loading an encrypted file requires the
// matching identity.
//
// Writes go to a temporary file in the target directory and are
// renamed into place, so a crash mid-save leaves the previous snapshot
// intact. A missing file loads as an empty collection.
package snapshot
