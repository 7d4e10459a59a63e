package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements SlotStore using a local SQLite database. Every client
// instance on the machine opens the same file, which makes it the shared
// storage between windows.
type SQLiteStore struct {
	db   *sqlx.DB
	path string
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// One connection: pragmas apply to it and ":memory:" stays a single database.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Other client instances may hold the write lock briefly.
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{db: db, path: dbPath}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// slotRow maps a session_slots row.
type slotRow struct {
	Key   string `db:"key"`
	Value string `db:"value"`
}

// ReadSlots loads both slots with a single statement, so the result always
// reflects one committed state.
func (s *SQLiteStore) ReadSlots(ctx context.Context) (Slots, error) {
	var rows []slotRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT key, value FROM session_slots WHERE key IN (?, ?)",
		SlotToken, SlotIdentity,
	)
	if err != nil {
		return Slots{}, fmt.Errorf("reading session slots: %w", err)
	}

	var slots Slots
	for _, r := range rows {
		switch r.Key {
		case SlotToken:
			slots.Token = r.Value
		case SlotIdentity:
			slots.Identity = r.Value
		}
	}
	return slots, nil
}

// WriteSlots replaces both slots in one transaction.
func (s *SQLiteStore) WriteSlots(ctx context.Context, token, identity string) error {
	if token == "" || identity == "" {
		return ErrEmptySlot
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	const query = `INSERT OR REPLACE INTO session_slots (key, value, updated_at) VALUES (?, ?, ?)`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing slot statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, slot := range []slotRow{
		{Key: SlotToken, Value: token},
		{Key: SlotIdentity, Value: identity},
	} {
		if _, err := stmt.ExecContext(ctx, slot.Key, slot.Value, now); err != nil {
			return fmt.Errorf("writing slot %s: %w", slot.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing session slots: %w", err)
	}
	return nil
}

// ClearSlots removes both slots in one statement.
func (s *SQLiteStore) ClearSlots(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM session_slots WHERE key IN (?, ?)",
		SlotToken, SlotIdentity,
	)
	if err != nil {
		return fmt.Errorf("clearing session slots: %w", err)
	}
	return nil
}
