// Package store persists notebook records in SQLite.
//
// The engine itself is persistence-free; the store is a CLI-side
// collaborator that keeps executed notebooks addressable by path.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/justapithecus/slate/notebook"
	"github.com/justapithecus/slate/types"
)

// ErrNotFound reports a lookup for a path with no stored record.
var ErrNotFound = errors.New("notebook not found")

// Record is one stored notebook with its persistence metadata.
type Record struct {
	Path      string
	Name      string
	Cells     []types.Cell
	UpdatedAt time.Time
}

// Store is a SQLite-backed notebook record store.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS notebooks (
	path       TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	cells      TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
`

// Open opens (creating if necessary) the store at the given path.
// Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	// Serialized access; the driver is not safe for concurrent writers
	// on one connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save upserts a notebook keyed by its path.
func (s *Store) Save(ctx context.Context, nb *notebook.Notebook) error {
	if nb.Path == "" {
		return fmt.Errorf("notebook has no path")
	}
	cells, err := json.Marshal(nb.Cells)
	if err != nil {
		return fmt.Errorf("failed to encode cells: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notebooks (path, name, cells, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			name       = excluded.name,
			cells      = excluded.cells,
			updated_at = excluded.updated_at
	`, nb.Path, nb.Name, string(cells), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save notebook: %w", err)
	}
	return nil
}

// Get returns the stored record for a path.
func (s *Store) Get(ctx context.Context, path string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT path, name, cells, updated_at
		FROM notebooks
		WHERE path = ?
	`, path)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return rec, err
}

// GetAll returns every stored record, most recently updated first.
func (s *Store) GetAll(ctx context.Context) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, name, cells, updated_at
		FROM notebooks
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list notebooks: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notebooks: %w", err)
	}
	return records, nil
}

// Delete removes the record for a path. Deleting an absent path is an
// error so callers can distinguish it from a successful removal.
func (s *Store) Delete(ctx context.Context, path string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notebooks WHERE path = ?`, path)
	if err != nil {
		return fmt.Errorf("failed to delete notebook: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to confirm deletion: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return nil
}

// likeEscaper neutralizes LIKE wildcards in a literal operand.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ExistsUnder reports whether any stored path begins with the prefix.
// The prefix is matched literally; LIKE wildcards in it carry no
// special meaning.
func (s *Store) ExistsUnder(ctx context.Context, prefix string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM notebooks WHERE path LIKE ? || '%' ESCAPE '\'
	`, likeEscaper.Replace(prefix)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to query prefix: %w", err)
	}
	return n > 0, nil
}

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*Record, error) {
	var rec Record
	var cells string
	if err := s.Scan(&rec.Path, &rec.Name, &cells, &rec.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan notebook record: %w", err)
	}
	if err := json.Unmarshal([]byte(cells), &rec.Cells); err != nil {
		return nil, fmt.Errorf("failed to decode cells: %w", err)
	}
	return &rec, nil
}
