package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/xform/internal/engine"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - graphs and evaluations
const currentSchemaVersion = 1

// ErrNotFound is returned when a fingerprint or evaluation id has no row.
var ErrNotFound = errors.New("not found")

// Sequencer stamps rows with increasing sequence numbers. Implemented by
// Clock and, in tests, by testutil.DeterministicClock.
type Sequencer interface {
	Next() int64
	Current() int64
}

// Store provides durable storage for staged graphs and evaluations.
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db    *sql.DB
	clock Sequencer
	ids   engine.TraceIDGenerator
}

// Option configures Open.
type Option func(*Store)

// WithClock replaces the clock that is otherwise resumed from the highest
// stored seq.
func WithClock(c Sequencer) Option {
	return func(s *Store) {
		s.clock = c
	}
}

// WithIDs sets the generator for evaluation ids. Default: UUIDv7.
func WithIDs(gen engine.TraceIDGenerator) Option {
	return func(s *Store) {
		s.ids = gen
	}
}

// Open creates or opens a SQLite database at the given path (":memory:"
// for a private in-memory database). Applies required pragmas and the
// schema automatically.
//
// This function is idempotent - safe to call multiple times.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time; a single connection also
	// keeps an in-memory database alive for the life of the store.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &Store{db: db, ids: engine.UUIDv7Generator{}}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		last, err := maxSeq(db)
		if err != nil {
			db.Close()
			return nil, err
		}
		s.clock = NewClockAt(last)
	}

	slog.Debug("store opened", "path", path, "seq", s.clock.Current())
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Seq returns the last sequence number handed out.
func (s *Store) Seq() int64 {
	return s.clock.Current()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and records the schema
// version. A database written by a newer schema is refused.
func applySchema(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

func maxSeq(db *sql.DB) (int64, error) {
	var last int64
	err := db.QueryRow(`
		SELECT COALESCE(MAX(seq), 0) FROM (
			SELECT seq FROM graphs
			UNION ALL
			SELECT seq FROM evaluations
		)
	`).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("read max seq: %w", err)
	}
	return last, nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(ctx context.Context, name, expected string) error {
	var value string
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
