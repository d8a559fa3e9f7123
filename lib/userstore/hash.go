// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package userstore

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// SaltLength is the length of a freshly generated salt in bytes.
const SaltLength = 16

// keyLength is the argon2id output length in bytes.
const keyLength = 32

// HashParams are argon2id cost parameters. Every request
// re-authenticates, so the defaults favor latency over the stronger
// interactive-login recommendations.
type HashParams struct {
	Time      uint32 `yaml:"time"`
	MemoryKiB uint32 `yaml:"memory_kib"`
	Threads   uint8  `yaml:"threads"`
}

// DefaultHashParams returns the default cost parameters.
func DefaultHashParams() HashParams {
	return HashParams{Time: 1, MemoryKiB: 8 * 1024, Threads: 1}
}

// Validate rejects zero parameters, which argon2 does not accept.
func (p HashParams) Validate() error {
	if p.Time == 0 || p.MemoryKiB == 0 || p.Threads == 0 {
		return fmt.Errorf("argon2 parameters must be positive (time=%d memory_kib=%d threads=%d)",
			p.Time, p.MemoryKiB, p.Threads)
	}
	return nil
}

// Hasher derives and checks password hashes.
type Hasher interface {
	// Hash returns a new salt and the hash of password under it.
	Hash(password string) (hash, salt []byte, err error)

	// Check reports whether password matches hash under salt and
	// params. The comparison is constant-time.
	Check(password string, hash, salt []byte, params HashParams) bool

	// Params returns the parameters new hashes are derived with.
	Params() HashParams
}

// Argon2Hasher implements Hasher with argon2id.
type Argon2Hasher struct {
	params HashParams
}

// NewArgon2Hasher returns a hasher using params.
func NewArgon2Hasher(params HashParams) (*Argon2Hasher, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Argon2Hasher{params: params}, nil
}

func (h *Argon2Hasher) Hash(password string) ([]byte, []byte, error) {
	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, nil, fmt.Errorf("generating salt: %w", err)
	}
	return derive(password, salt, h.params), salt, nil
}

func (h *Argon2Hasher) Check(password string, hash, salt []byte, params HashParams) bool {
	if params.Validate() != nil || len(hash) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare(derive(password, salt, params), hash) == 1
}

func (h *Argon2Hasher) Params() HashParams { return h.params }

func derive(password string, salt []byte, params HashParams) []byte {
	return argon2.IDKey([]byte(password), salt, params.Time, params.MemoryKiB, params.Threads, keyLength)
}
