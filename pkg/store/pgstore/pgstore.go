// Package pgstore persists runpacks in PostgreSQL via lib/pq.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/verdict-labs/verdict/pkg/ident"
	"github.com/verdict-labs/verdict/pkg/runpack"
	"github.com/verdict-labs/verdict/pkg/store"
)

// uniqueViolation is the PostgreSQL SQLSTATE for duplicate keys.
const uniqueViolation = "23505"

type Store struct {
	db *sql.DB
}

// Open connects with a lib/pq DSN and ensures the schema.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("pgstore: open: %w", err)
	}
	s := &Store{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing handle without touching the schema. Callers that
// manage migrations themselves use this with Migrate.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Migrate(ctx context.Context) error {
	query := `
    CREATE TABLE IF NOT EXISTS runpacks (
        run_id TEXT PRIMARY KEY,
        scenario_id TEXT NOT NULL,
        fingerprint TEXT NOT NULL,
        steps INTEGER NOT NULL,
        body JSONB NOT NULL
    );
    CREATE INDEX IF NOT EXISTS runpacks_scenario ON runpacks(scenario_id);`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("pgstore: migrate: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) PutRunpack(ctx context.Context, p *runpack.Pack) error {
	raw, err := p.Encode()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runpacks (run_id, scenario_id, fingerprint, steps, body)
         VALUES ($1, $2, $3, $4, $5)`,
		string(p.RunID), string(p.ScenarioID), p.Fingerprint, len(p.Steps), raw)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return store.ErrDuplicate
		}
		return fmt.Errorf("pgstore: insert: %w", err)
	}
	return nil
}

func (s *Store) GetRunpack(ctx context.Context, run ident.RunID) (*runpack.Pack, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM runpacks WHERE run_id = $1`, string(run)).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pgstore: select: %w", err)
	}
	p, err := runpack.Decode(body)
	if err != nil {
		return nil, err
	}
	if idx, err := runpack.Verify(p); err != nil {
		return nil, fmt.Errorf("pgstore: stored pack %s corrupt at step %d: %w", run, idx, err)
	}
	return p, nil
}

func (s *Store) ListRunpacks(ctx context.Context, scenario ident.ScenarioID) ([]ident.RunID, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id FROM runpacks WHERE scenario_id = $1 ORDER BY run_id`, string(scenario))
	if err != nil {
		return nil, fmt.Errorf("pgstore: list: %w", err)
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

var _ store.Store = (*Store)(nil)
