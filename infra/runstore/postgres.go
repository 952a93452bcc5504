package runstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/yaswanthhh/ev-charge-optimizer/core/runs"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS runs (
        id BIGSERIAL PRIMARY KEY,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
        input JSONB NOT NULL,
        output JSONB NOT NULL
    );`

// PostgresStore persists runs to PostgreSQL as jsonb documents.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects to dsn, checks the connection and ensures
// schema.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

// Save inserts a run and returns the id and timestamp assigned by the
// database.
func (s *PostgresStore) Save(ctx context.Context, input, output json.RawMessage) (runs.Saved, error) {
	if err := runs.CheckDocuments(input, output); err != nil {
		return runs.Saved{}, err
	}
	var saved runs.Saved
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO runs (input, output) VALUES ($1::jsonb, $2::jsonb) RETURNING id, created_at`,
		string(input), string(output)).Scan(&saved.ID, &saved.CreatedAt)
	if err != nil {
		return runs.Saved{}, fmt.Errorf("insert run: %w", err)
	}
	return saved, nil
}

// Get returns the run with the given id.
func (s *PostgresStore) Get(ctx context.Context, id int64) (runs.Record, error) {
	rec := runs.Record{ID: id}
	var input, output []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT created_at, input, output FROM runs WHERE id = $1`, id).
		Scan(&rec.CreatedAt, &input, &output)
	if errors.Is(err, sql.ErrNoRows) {
		return runs.Record{}, runs.ErrNotFound
	}
	if err != nil {
		return runs.Record{}, fmt.Errorf("select run %d: %w", id, err)
	}
	rec.Input = json.RawMessage(input)
	rec.Output = json.RawMessage(output)
	return rec, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error { return s.db.Close() }
