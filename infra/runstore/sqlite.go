package runstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/yaswanthhh/ev-charge-optimizer/core/runs"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS runs (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        created_at TEXT NOT NULL,
        input TEXT NOT NULL,
        output TEXT NOT NULL
    );`

// SQLiteStore persists runs to a SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// a single connection keeps in-memory databases shared and serializes
	// writers
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Save inserts a run and returns its id and creation time.
func (s *SQLiteStore) Save(ctx context.Context, input, output json.RawMessage) (runs.Saved, error) {
	if err := runs.CheckDocuments(input, output); err != nil {
		return runs.Saved{}, err
	}
	created := s.now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (created_at, input, output) VALUES (?, ?, ?)`,
		created.Format(time.RFC3339Nano), string(input), string(output))
	if err != nil {
		return runs.Saved{}, fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return runs.Saved{}, fmt.Errorf("insert run: %w", err)
	}
	return runs.Saved{ID: id, CreatedAt: created}, nil
}

// Get returns the run with the given id.
func (s *SQLiteStore) Get(ctx context.Context, id int64) (runs.Record, error) {
	var (
		created       string
		input, output string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT created_at, input, output FROM runs WHERE id = ?`, id).
		Scan(&created, &input, &output)
	if errors.Is(err, sql.ErrNoRows) {
		return runs.Record{}, runs.ErrNotFound
	}
	if err != nil {
		return runs.Record{}, fmt.Errorf("select run %d: %w", id, err)
	}
	ts, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return runs.Record{}, fmt.Errorf("run %d: created_at: %w", id, err)
	}
	return runs.Record{
		ID:        id,
		CreatedAt: ts,
		Input:     json.RawMessage(input),
		Output:    json.RawMessage(output),
	}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
