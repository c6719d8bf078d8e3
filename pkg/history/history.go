// Package history persists completed runs and suite runs in SQLite.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/pario-ai/routebench/pkg/models"
)

// ErrNotFound is returned by GetSuite for an unknown id.
var ErrNotFound = errors.New("history entry not found")

// Store records and queries run history.
type Store interface {
	// Record stores a single run and returns its id.
	Record(ctx context.Context, res models.RunResult) (string, error)
	// List returns up to limit runs, newest first. limit <= 0 means all.
	List(ctx context.Context, limit int) ([]Entry, error)
	// RecordSuite stores a suite run and returns its id.
	RecordSuite(ctx context.Context, res models.SuiteRunResult) (string, error)
	// ListSuites returns up to limit suite runs, newest first.
	ListSuites(ctx context.Context, limit int) ([]SuiteEntry, error)
	// GetSuite returns one suite run by id.
	GetSuite(ctx context.Context, id string) (*SuiteEntry, error)
	// Prune keeps only the newest keep rows of each kind.
	Prune(ctx context.Context, keep int) error
	// Clear deletes all history.
	Clear(ctx context.Context) error
	// Close releases resources.
	Close() error
}

// Entry is a stored single run.
type Entry struct {
	ID        string           `json:"id"`
	CreatedAt time.Time        `json:"createdAt"`
	Result    models.RunResult `json:"result"`
}

// SuiteEntry is a stored suite run.
type SuiteEntry struct {
	ID        string                `json:"id"`
	CreatedAt time.Time             `json:"createdAt"`
	Result    models.SuiteRunResult `json:"result"`
}

// SQLiteStore implements Store with a SQLite database.
type SQLiteStore struct {
	db       *sql.DB
	maxItems int
	now      func() time.Time
}

const createTables = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	model TEXT NOT NULL,
	provider TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	result TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
CREATE TABLE IF NOT EXISTS suite_runs (
	id TEXT PRIMARY KEY,
	suite_id TEXT NOT NULL,
	model TEXT NOT NULL,
	provider TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	result TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_suite_runs_created ON suite_runs(created_at);
`

// New opens the history database and runs auto-migration. maxItems bounds
// each table after every insert; zero disables trimming.
func New(dbPath string, maxItems int) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	if _, err := db.Exec(createTables); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}

	return &SQLiteStore{db: db, maxItems: maxItems, now: time.Now}, nil
}

// Record stores a run and trims the table to the configured size.
func (s *SQLiteStore) Record(ctx context.Context, res models.RunResult) (string, error) {
	body, err := json.Marshal(res)
	if err != nil {
		return "", fmt.Errorf("encode run: %w", err)
	}
	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, model, provider, created_at, result) VALUES (?, ?, ?, ?, ?)`,
		id, res.Model, res.Provider, s.now().UnixNano(), string(body),
	)
	if err != nil {
		return "", fmt.Errorf("record run: %w", err)
	}
	if err := s.trim(ctx, "runs", s.maxItems); err != nil {
		return id, err
	}
	return id, nil
}

// List returns stored runs, newest first.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, result FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		sqlLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var created int64
		var body string
		if err := rows.Scan(&e.ID, &created, &body); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if err := json.Unmarshal([]byte(body), &e.Result); err != nil {
			return nil, fmt.Errorf("decode run %s: %w", e.ID, err)
		}
		e.CreatedAt = time.Unix(0, created).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// RecordSuite stores a suite run and trims the table to the configured size.
func (s *SQLiteStore) RecordSuite(ctx context.Context, res models.SuiteRunResult) (string, error) {
	body, err := json.Marshal(res)
	if err != nil {
		return "", fmt.Errorf("encode suite run: %w", err)
	}
	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO suite_runs (id, suite_id, model, provider, created_at, result) VALUES (?, ?, ?, ?, ?, ?)`,
		id, res.SuiteID, res.Model, res.Provider, s.now().UnixNano(), string(body),
	)
	if err != nil {
		return "", fmt.Errorf("record suite run: %w", err)
	}
	if err := s.trim(ctx, "suite_runs", s.maxItems); err != nil {
		return id, err
	}
	return id, nil
}

// ListSuites returns stored suite runs, newest first.
func (s *SQLiteStore) ListSuites(ctx context.Context, limit int) ([]SuiteEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, result FROM suite_runs ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		sqlLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("list suite runs: %w", err)
	}
	defer rows.Close()

	var entries []SuiteEntry
	for rows.Next() {
		e, err := scanSuite(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// GetSuite returns one suite run by id.
func (s *SQLiteStore) GetSuite(ctx context.Context, id string) (*SuiteEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, result FROM suite_runs WHERE id = ?`, id)
	e, err := scanSuite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("suite run %s: %w", id, ErrNotFound)
	}
	return e, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSuite(sc scanner) (*SuiteEntry, error) {
	var e SuiteEntry
	var created int64
	var body string
	if err := sc.Scan(&e.ID, &created, &body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan suite run: %w", err)
	}
	if err := json.Unmarshal([]byte(body), &e.Result); err != nil {
		return nil, fmt.Errorf("decode suite run %s: %w", e.ID, err)
	}
	e.CreatedAt = time.Unix(0, created).UTC()
	return &e, nil
}

// Prune keeps the newest keep rows in each table. keep <= 0 is a no-op.
func (s *SQLiteStore) Prune(ctx context.Context, keep int) error {
	if err := s.trim(ctx, "runs", keep); err != nil {
		return err
	}
	return s.trim(ctx, "suite_runs", keep)
}

func (s *SQLiteStore) trim(ctx context.Context, table string, keep int) error {
	if keep <= 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM %[1]s WHERE rowid NOT IN (SELECT rowid FROM %[1]s ORDER BY created_at DESC, rowid DESC LIMIT ?)`,
		table), keep)
	if err != nil {
		return fmt.Errorf("prune %s: %w", table, err)
	}
	return nil
}

// Clear deletes every stored run and suite run.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM runs`); err != nil {
		return fmt.Errorf("clear runs: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM suite_runs`); err != nil {
		return fmt.Errorf("clear suite runs: %w", err)
	}
	return nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

// Nop is a Store that keeps nothing. It backs disabled history.
type Nop struct{}

func (Nop) Record(context.Context, models.RunResult) (string, error)           { return "", nil }
func (Nop) List(context.Context, int) ([]Entry, error)                         { return nil, nil }
func (Nop) RecordSuite(context.Context, models.SuiteRunResult) (string, error) { return "", nil }
func (Nop) ListSuites(context.Context, int) ([]SuiteEntry, error)              { return nil, nil }
func (Nop) Prune(context.Context, int) error                                   { return nil }
func (Nop) Clear(context.Context) error                                        { return nil }
func (Nop) Close() error                                                       { return nil }

func (Nop) GetSuite(_ context.Context, id string) (*SuiteEntry, error) {
	return nil, fmt.Errorf("suite run %s: %w", id, ErrNotFound)
}

// Open returns a SQLite store when enabled and a Nop store otherwise.
func Open(dbPath string, enabled bool, maxItems int) (Store, error) {
	if !enabled {
		return Nop{}, nil
	}
	st, err := New(dbPath, maxItems)
	if err != nil {
		return nil, err
	}
	return st, nil
}
