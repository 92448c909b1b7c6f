// Package sqlitestore persists runpacks in SQLite. The pack body is stored
// as encoded JSON next to its fingerprint; integrity is re-checked on read.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/verdict-labs/verdict/pkg/ident"
	"github.com/verdict-labs/verdict/pkg/runpack"
	"github.com/verdict-labs/verdict/pkg/store"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path. Use ":memory:" for an
// ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open %s: %w", path, err)
	}
	return New(db)
}

// New wraps an existing handle and ensures the schema.
func New(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	query := `
    CREATE TABLE IF NOT EXISTS runpacks (
        run_id TEXT PRIMARY KEY,
        scenario_id TEXT NOT NULL,
        fingerprint TEXT NOT NULL,
        steps INTEGER NOT NULL,
        body BLOB NOT NULL
    );
    CREATE INDEX IF NOT EXISTS runpacks_scenario ON runpacks(scenario_id);`
	_, err := s.db.ExecContext(context.Background(), query)
	if err != nil {
		return fmt.Errorf("sqlitestore: migrate: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) PutRunpack(ctx context.Context, p *runpack.Pack) error {
	raw, err := p.Encode()
	if err != nil {
		return err
	}
	query := `INSERT INTO runpacks (run_id, scenario_id, fingerprint, steps, body)
        VALUES (?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query,
		string(p.RunID), string(p.ScenarioID), p.Fingerprint, len(p.Steps), raw)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("sqlitestore: insert: %w", err)
	}
	return nil
}

func (s *Store) GetRunpack(ctx context.Context, run ident.RunID) (*runpack.Pack, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM runpacks WHERE run_id = ?`, string(run)).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: select: %w", err)
	}
	p, err := runpack.Decode(body)
	if err != nil {
		return nil, err
	}
	if idx, err := runpack.Verify(p); err != nil {
		return nil, fmt.Errorf("sqlitestore: stored pack %s corrupt at step %d: %w", run, idx, err)
	}
	return p, nil
}

func (s *Store) ListRunpacks(ctx context.Context, scenario ident.ScenarioID) ([]ident.RunID, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id FROM runpacks WHERE scenario_id = ? ORDER BY run_id`, string(scenario))
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: list: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []ident.RunID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, ident.RunID(id))
	}
	return out, rows.Err()
}

// isUniqueViolation matches the driver's primary key violation message;
// modernc.org/sqlite does not export typed errors for constraint failures.
func isUniqueViolation(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "constraint violation"))
}

var _ store.Store = (*Store)(nil)
