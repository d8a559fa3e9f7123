// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"filippo.io/age"
	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/ticketd/lib/codec"
	"github.com/bureau-foundation/ticketd/lib/secret"
	"github.com/bureau-foundation/ticketd/lib/ticket"
)

// FormatVersion is the header version written by this package.
const FormatVersion = 1

// maxBodySize bounds the uncompressed body a header may announce.
const maxBodySize = 1 << 30

// ageHeader is the first line of every age-encrypted file.
const ageHeader = "age-encryption.org/"

var (
	// ErrCorrupt means the file decoded but failed an integrity check.
	ErrCorrupt = errors.New("snapshot is corrupt")

	// ErrEncrypted means the file is age-encrypted and no identity is
	// configured.
	ErrEncrypted = errors.New("snapshot is encrypted and no identity is configured")
)

// header is the on-disk layout.
type header struct {
	Version     int         `cbor:"version"`
	Compression Compression `cbor:"compression"`
	Digest      []byte      `cbor:"digest"`
	Size        int         `cbor:"size"`
	Body        []byte      `cbor:"body"`
}

// Config configures a Store. Path is required.
type Config struct {
	Path string

	// Compression defaults to zstd.
	Compression Compression

	// Recipients are age X25519 public keys (age1...). When any are
	// set, snapshots are encrypted to all of them.
	Recipients []string

	// IdentityFile holds age identities (AGE-SECRET-KEY-1...) used to
	// decrypt encrypted snapshots.
	IdentityFile string

	Logger *slog.Logger
}

// Store reads and writes one snapshot file. It implements
// collection.Persistence. Saves are serialized.
type Store struct {
	path        string
	compression Compression
	recipients  []age.Recipient
	identities  []age.Identity
	logger      *slog.Logger

	mu sync.Mutex
}

// Open validates cfg and parses the age keys. It does not touch the
// snapshot file.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("snapshot: Path is required")
	}
	compression, err := ParseCompression(string(cfg.Compression))
	if err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	store := &Store{
		path:        cfg.Path,
		compression: compression,
		logger:      cfg.Logger,
	}
	for _, key := range cfg.Recipients {
		recipient, err := age.ParseX25519Recipient(strings.TrimSpace(key))
		if err != nil {
			return nil, fmt.Errorf("parsing age recipient %q: %w", key, err)
		}
		store.recipients = append(store.recipients, recipient)
	}
	if cfg.IdentityFile != "" {
		keys, err := secret.ReadFile(cfg.IdentityFile)
		if err != nil {
			return nil, fmt.Errorf("reading age identity file: %w", err)
		}
		defer keys.Close()
		identities, err := age.ParseIdentities(bytes.NewReader(keys.Bytes()))
		if err != nil {
			return nil, fmt.Errorf("parsing age identity file %s: %w", cfg.IdentityFile, err)
		}
		store.identities = identities
	}
	return store, nil
}

// Kind describes the store for the info command.
func (s *Store) Kind() string {
	kind := "snapshot:" + string(s.compression)
	if len(s.recipients) > 0 {
		kind += "+age"
	}
	return kind
}

// Path returns the snapshot file path.
func (s *Store) Path() string { return s.path }

// LoadAll reads the snapshot. A missing file yields no tickets.
func (s *Store) LoadAll(ctx context.Context) ([]ticket.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Info("no snapshot found, starting empty", "path", s.path)
		return []ticket.Ticket{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot %s: %w", s.path, err)
	}
	tickets, err := s.decode(data)
	if err != nil {
		return nil, fmt.Errorf("loading snapshot %s: %w", s.path, err)
	}
	s.logger.Info("snapshot loaded", "path", s.path, "tickets", len(tickets))
	return tickets, nil
}

// SaveAll atomically replaces the snapshot with tickets.
func (s *Store) SaveAll(ctx context.Context, tickets []ticket.Ticket) error {
	data, err := s.encode(tickets)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := writeAtomic(s.path, data); err != nil {
		return err
	}
	s.logger.Debug("snapshot written",
		"path", s.path,
		"tickets", len(tickets),
		"bytes", len(data),
	)
	return nil
}

func (s *Store) encode(tickets []ticket.Ticket) ([]byte, error) {
	if tickets == nil {
		tickets = []ticket.Ticket{}
	}
	body, err := codec.Marshal(tickets)
	if err != nil {
		return nil, fmt.Errorf("encoding tickets: %w", err)
	}
	digest := blake3.Sum256(body)
	compressed, used, err := compress(body, s.compression)
	if err != nil {
		return nil, err
	}
	data, err := codec.Marshal(header{
		Version:     FormatVersion,
		Compression: used,
		Digest:      digest[:],
		Size:        len(body),
		Body:        compressed,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot header: %w", err)
	}
	if len(s.recipients) == 0 {
		return data, nil
	}

	var encrypted bytes.Buffer
	writer, err := age.Encrypt(&encrypted, s.recipients...)
	if err != nil {
		return nil, fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := writer.Write(data); err != nil {
		return nil, fmt.Errorf("encrypting snapshot: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalizing snapshot encryption: %w", err)
	}
	return encrypted.Bytes(), nil
}

func (s *Store) decode(data []byte) ([]ticket.Ticket, error) {
	if bytes.HasPrefix(data, []byte(ageHeader)) {
		if len(s.identities) == 0 {
			return nil, ErrEncrypted
		}
		reader, err := age.Decrypt(bytes.NewReader(data), s.identities...)
		if err != nil {
			return nil, fmt.Errorf("decrypting snapshot: %w", err)
		}
		data, err = io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("decrypting snapshot: %w", err)
		}
	}

	var file header
	if err := codec.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if file.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d (want %d)", file.Version, FormatVersion)
	}
	if file.Size < 0 || file.Size > maxBodySize {
		return nil, fmt.Errorf("%w: body size %d out of range", ErrCorrupt, file.Size)
	}
	body, err := decompress(file.Body, file.Compression, file.Size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	digest := blake3.Sum256(body)
	if !bytes.Equal(digest[:], file.Digest) {
		return nil, fmt.Errorf("%w: digest mismatch", ErrCorrupt)
	}

	var tickets []ticket.Ticket
	if err := codec.Unmarshal(body, &tickets); err != nil {
		return nil, fmt.Errorf("%w: tickets: %v", ErrCorrupt, err)
	}
	return tickets, nil
}

// writeAtomic writes data to a temporary file next to path and renames
// it into place.
func writeAtomic(path string, data []byte) error {
	directory := filepath.Dir(path)
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}
	tmpFile, err := os.CreateTemp(directory, ".snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp snapshot file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("syncing snapshot: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp snapshot file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming snapshot to %s: %w", path, err)
	}
	success = true
	return nil
}
