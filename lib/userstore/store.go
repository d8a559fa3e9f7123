// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package userstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/ticketd/lib/clock"
	"github.com/bureau-foundation/ticketd/lib/sqlitepool"
)

var (
	// ErrUserNotFound means no account matches the lookup.
	ErrUserNotFound = errors.New("user not found")

	// ErrUsernameTaken means an account with the username exists.
	ErrUsernameTaken = errors.New("username already taken")
)

const schema = `
	CREATE TABLE IF NOT EXISTS users (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		username       TEXT    NOT NULL UNIQUE,
		password_hash  BLOB    NOT NULL,
		salt           BLOB    NOT NULL,
		argon_time     INTEGER NOT NULL,
		argon_memory   INTEGER NOT NULL,
		argon_threads  INTEGER NOT NULL,
		registered_at  TEXT    NOT NULL,
		last_login_at  TEXT
	);
`

const selectColumns = `id, username, password_hash, salt, argon_time, argon_memory, argon_threads, registered_at, last_login_at`

// User is one account.
type User struct {
	ID           int64
	Username     string
	PasswordHash []byte
	Salt         []byte
	Params       HashParams
	RegisteredAt time.Time
	LastLoginAt  *time.Time
}

// Config configures a Store. Path is required.
type Config struct {
	Path     string
	PoolSize int

	// Hasher defaults to argon2id with DefaultHashParams.
	Hasher Hasher

	// Clock stamps registration and login times. Defaults to the real
	// clock.
	Clock clock.Clock

	Logger *slog.Logger
}

// Store is the SQLite-backed user store. Safe for concurrent use.
type Store struct {
	pool   *sqlitepool.Pool
	hasher Hasher
	clock  clock.Clock
	logger *slog.Logger
}

// Open opens (creating if needed) the user database at cfg.Path.
func Open(cfg Config) (*Store, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Hasher == nil {
		hasher, err := NewArgon2Hasher(DefaultHashParams())
		if err != nil {
			return nil, err
		}
		cfg.Hasher = hasher
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: cfg.PoolSize,
		Schema:   schema,
		Logger:   cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("opening user store: %w", err)
	}
	return &Store{
		pool:   pool,
		hasher: cfg.Hasher,
		clock:  cfg.Clock,
		logger: cfg.Logger,
	}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.pool.Close()
}

// Insert registers a new account with a freshly salted hash of
// password.
func (s *Store) Insert(ctx context.Context, username, password string) (User, error) {
	hash, salt, err := s.hasher.Hash(password)
	if err != nil {
		return User{}, err
	}
	user := User{
		Username:     username,
		PasswordHash: hash,
		Salt:         salt,
		Params:       s.hasher.Params(),
		RegisteredAt: s.clock.Now().UTC().Truncate(time.Second),
	}

	err = s.pool.Write(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn, `
			INSERT INTO users (username, password_hash, salt, argon_time, argon_memory, argon_threads, registered_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			&sqlitex.ExecOptions{
				Args: []any{
					user.Username,
					user.PasswordHash,
					user.Salt,
					int64(user.Params.Time),
					int64(user.Params.MemoryKiB),
					int64(user.Params.Threads),
					formatTime(user.RegisteredAt),
				},
			})
		if err != nil {
			return err
		}
		user.ID = conn.LastInsertRowID()
		return nil
	})
	if err != nil {
		if sqlite.ErrCode(err) == sqlite.ResultConstraintUnique {
			return User{}, fmt.Errorf("%w: %q", ErrUsernameTaken, username)
		}
		return User{}, fmt.Errorf("inserting user %q: %w", username, err)
	}

	s.logger.Info("user registered", "user_id", user.ID, "username", username)
	return user, nil
}

// FindByUsername returns the account with the given username.
func (s *Store) FindByUsername(ctx context.Context, username string) (User, error) {
	return s.findOne(ctx, "username = ?", username)
}

// FindByID returns the account with the given id.
func (s *Store) FindByID(ctx context.Context, id int64) (User, error) {
	return s.findOne(ctx, "id = ?", id)
}

func (s *Store) findOne(ctx context.Context, where string, arg any) (User, error) {
	var (
		user  User
		found bool
		scan  error
	)
	err := s.pool.WithConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT "+selectColumns+" FROM users WHERE "+where, &sqlitex.ExecOptions{
			Args: []any{arg},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				user, scan = scanUser(stmt)
				found = true
				return nil
			},
		})
	})
	if err != nil {
		return User{}, fmt.Errorf("querying users: %w", err)
	}
	if scan != nil {
		return User{}, scan
	}
	if !found {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

// VerifyPassword reports whether password matches the user's stored
// hash.
func (s *Store) VerifyPassword(user User, password string) bool {
	return s.hasher.Check(password, user.PasswordHash, user.Salt, user.Params)
}

// Decoy returns a user that no password verifies against. Passing it
// to VerifyPassword costs one full hash derivation, which callers use
// to make an unknown username take as long as a wrong password.
func (s *Store) Decoy() User {
	return User{
		PasswordHash: make([]byte, keyLength),
		Salt:         make([]byte, SaltLength),
		Params:       s.hasher.Params(),
	}
}

// TouchLogin records the current time as the user's last login.
func (s *Store) TouchLogin(ctx context.Context, id int64) error {
	now := formatTime(s.clock.Now().UTC().Truncate(time.Second))
	var changed int
	err := s.pool.Write(ctx, func(conn *sqlite.Conn) error {
		if err := sqlitex.Execute(conn, "UPDATE users SET last_login_at = ? WHERE id = ?", &sqlitex.ExecOptions{
			Args: []any{now, id},
		}); err != nil {
			return err
		}
		changed = conn.Changes()
		return nil
	})
	if err != nil {
		return fmt.Errorf("updating last login for user %d: %w", id, err)
	}
	if changed == 0 {
		return ErrUserNotFound
	}
	return nil
}

func scanUser(stmt *sqlite.Stmt) (User, error) {
	user := User{
		ID:       stmt.ColumnInt64(0),
		Username: stmt.ColumnText(1),
		Params: HashParams{
			Time:      uint32(stmt.ColumnInt64(4)),
			MemoryKiB: uint32(stmt.ColumnInt64(5)),
			Threads:   uint8(stmt.ColumnInt64(6)),
		},
	}
	user.PasswordHash = make([]byte, stmt.ColumnLen(2))
	stmt.ColumnBytes(2, user.PasswordHash)
	user.Salt = make([]byte, stmt.ColumnLen(3))
	stmt.ColumnBytes(3, user.Salt)

	registered, err := parseTime(stmt.ColumnText(7))
	if err != nil {
		return User{}, fmt.Errorf("user %d: registered_at: %w", user.ID, err)
	}
	user.RegisteredAt = registered

	if stmt.ColumnType(8) != sqlite.TypeNull {
		lastLogin, err := parseTime(stmt.ColumnText(8))
		if err != nil {
			return User{}, fmt.Errorf("user %d: last_login_at: %w", user.ID, err)
		}
		user.LastLoginAt = &lastLogin
	}
	return user, nil
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}

func parseTime(value string) (time.Time, error) {
	return time.Parse(time.RFC3339, strings.TrimSpace(value))
}
