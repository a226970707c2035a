package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mwhitley/crucible/internal/storage"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements storage.Store backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path and runs
// migrations. Use ":memory:" for an in-memory database (useful for
// testing).
func Open(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) CreateExecution(ctx context.Context, e *storage.Execution) error {
	e.CreatedAt = time.Now().UTC()
	if e.Status == "" {
		e.Status = storage.StatusPending
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO executions (id, code, output, status, session_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Code, e.Output, e.Status, e.SessionID,
		e.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting execution: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetExecution(ctx context.Context, id string) (*storage.Execution, error) {
	// Try exact match first, then prefix match
	e, err := s.getExecutionExact(ctx, id)
	if err == nil {
		return e, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, code, output, status, session_id, created_at
		FROM executions WHERE id LIKE ? || '%'`, id)
	if err != nil {
		return nil, fmt.Errorf("querying execution: %w", err)
	}
	defer rows.Close()

	var matches []*storage.Execution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, e)
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("execution not found: %s", id)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("ambiguous execution prefix %q matches %d records", id, len(matches))
	}
}

func (s *SQLiteStore) getExecutionExact(ctx context.Context, id string) (*storage.Execution, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, code, output, status, session_id, created_at
		FROM executions WHERE id = ?`, id)
	return scanExecutionFromScanner(row)
}

func (s *SQLiteStore) ListExecutions(ctx context.Context, opts storage.ListOptions) ([]storage.Execution, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, code, output, status, session_id, created_at FROM executions`
	var args []any

	if opts.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(opts.Status))
	}

	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing executions: %w", err)
	}
	defer rows.Close()

	var executions []storage.Execution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		executions = append(executions, *e)
	}
	return executions, rows.Err()
}

func (s *SQLiteStore) SetResult(ctx context.Context, id string, status storage.Status, output string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE executions SET status = ?, output = ? WHERE id = ?`,
		string(status), output, id,
	)
	if err != nil {
		return fmt.Errorf("updating execution: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("execution not found: %s", id)
	}
	return nil
}

func (s *SQLiteStore) DeleteExecution(ctx context.Context, id string) error {
	// Resolve prefix first
	e, err := s.GetExecution(ctx, id)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `DELETE FROM executions WHERE id = ?`, e.ID)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Scanner interface to work with both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanExecutionFromScanner(s scanner) (*storage.Execution, error) {
	var e storage.Execution
	var createdAt string
	err := s.Scan(&e.ID, &e.Code, &e.Output, &e.Status, &e.SessionID, &createdAt)
	if err != nil {
		return nil, err
	}
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &e, nil
}

func scanExecution(rows *sql.Rows) (*storage.Execution, error) {
	return scanExecutionFromScanner(rows)
}
