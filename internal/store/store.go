// Package store persists per-name resolution outcomes in SQLite.
// The stored outcomes drive the idempotent-resume skip rule.
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaFS embed.FS

const sqliteParams = "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON"

// Outcome is one stored resolution record.
type Outcome struct {
	Name       string
	Email      string
	Status     string
	Alternates string
	Confidence string
	UpdatedAt  time.Time
}

// Store wraps the outcome database.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Open opens or creates the database at the given path.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+sqliteParams)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db, dbPath: dbPath}, nil
}

// InitSchema creates the tables when missing. Safe to call repeatedly.
func (s *Store) InitSchema() error {
	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("read embedded schema: %w", err)
	}
	if _, err := s.db.Exec(string(schema)); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// SaveOutcome inserts or replaces the outcome for a name.
func (s *Store) SaveOutcome(ctx context.Context, name string, o Outcome) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO outcomes (name_key, name, email, status, alternates, confidence, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(name_key) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			status = excluded.status,
			alternates = excluded.alternates,
			confidence = excluded.confidence,
			updated_at = CURRENT_TIMESTAMP`,
		nameKey(name), name, o.Email, o.Status, o.Alternates, o.Confidence)
	if err != nil {
		return fmt.Errorf("save outcome: %w", err)
	}
	return nil
}

// GetOutcome returns the stored outcome for a name, or nil when the
// name has never been resolved.
func (s *Store) GetOutcome(ctx context.Context, name string) (*Outcome, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT name, email, status, alternates, confidence, updated_at
		FROM outcomes WHERE name_key = ?`, nameKey(name))

	var o Outcome
	err := row.Scan(&o.Name, &o.Email, &o.Status, &o.Alternates, &o.Confidence, &o.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get outcome: %w", err)
	}
	return &o, nil
}

// ListOutcomes returns stored outcomes, most recently updated first.
func (s *Store) ListOutcomes(ctx context.Context, limit int) ([]Outcome, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, email, status, alternates, confidence, updated_at
		FROM outcomes ORDER BY updated_at DESC, name_key LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list outcomes: %w", err)
	}
	defer rows.Close()

	var out []Outcome
	for rows.Next() {
		var o Outcome
		if err := rows.Scan(&o.Name, &o.Email, &o.Status, &o.Alternates, &o.Confidence, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// CountOutcomes returns the number of stored outcomes.
func (s *Store) CountOutcomes(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM outcomes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count outcomes: %w", err)
	}
	return n, nil
}
