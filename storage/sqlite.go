// SQLite turn storage.
//
// Information Hiding:
// - SQLite connection management hidden behind interface
// - Schema and turn numbering encapsulated
// - Thread-safe via sql.DB's built-in connection pooling

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SqliteStorage implements TurnStore using SQLite.
// Thread-safe: sql.DB handles connection pooling and concurrent access.
type SqliteStorage struct {
	db *sql.DB
}

// OpenSqlite opens or creates a SQLite database at the given path.
// Creates parent directories if they don't exist.
func OpenSqlite(path string) (*SqliteStorage, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	return newSqlite(db)
}

// NewSqliteInMemory creates an in-memory database (useful for testing).
func NewSqliteInMemory() (*SqliteStorage, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite: %w", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	return newSqlite(db)
}

func newSqlite(db *sql.DB) (*SqliteStorage, error) {
	storage := &SqliteStorage{db: db}
	if err := storage.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return storage, nil
}

// Close closes the database connection.
func (s *SqliteStorage) Close() error {
	return s.db.Close()
}

func (s *SqliteStorage) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS turns (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			turn_index INTEGER NOT NULL,
			flow TEXT NOT NULL,
			request TEXT NOT NULL,
			subject TEXT NOT NULL,
			response TEXT NOT NULL,
			continuation TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id) ON DELETE CASCADE,
			UNIQUE(session_id, turn_index)
		);

		CREATE INDEX IF NOT EXISTS idx_turns_session
		ON turns(session_id, turn_index);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func ensureSession(ctx context.Context, tx *sql.Tx, sessionID string, now int64) error {
	_, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO sessions (session_id, created_at, updated_at) VALUES (?, ?, ?)",
		sessionID, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to ensure session: %w", err)
	}
	return nil
}

// AppendTurn stores turn at the end of its session.
func (s *SqliteStorage) AppendTurn(ctx context.Context, turn Turn) (Turn, error) {
	if turn.SessionID == "" {
		return Turn{}, fmt.Errorf("turn has no session id")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Turn{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	// defer tx.Rollback() is safe even after Commit() - it becomes a no-op
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	if err := ensureSession(ctx, tx, turn.SessionID, now.UnixNano()); err != nil {
		return Turn{}, err
	}

	var next int
	err = tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(turn_index) + 1, 0) FROM turns WHERE session_id = ?",
		turn.SessionID).Scan(&next)
	if err != nil {
		return Turn{}, fmt.Errorf("failed to number turn: %w", err)
	}
	turn = stamp(turn, next)

	_, err = tx.ExecContext(ctx,
		`INSERT INTO turns (id, session_id, turn_index, flow, request, subject, response, continuation, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		turn.ID, turn.SessionID, turn.Index, turn.Flow, turn.Request, turn.Subject,
		turn.Response, turn.Continuation, turn.CreatedAt.UnixNano())
	if err != nil {
		return Turn{}, fmt.Errorf("failed to insert turn: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE sessions SET updated_at = ? WHERE session_id = ?",
		now.UnixNano(), turn.SessionID)
	if err != nil {
		return Turn{}, fmt.Errorf("failed to update session timestamp: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Turn{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return turn, nil
}

const turnColumns = "id, session_id, turn_index, flow, request, subject, response, continuation, created_at"

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTurn(row rowScanner) (Turn, error) {
	var t Turn
	var created int64
	err := row.Scan(&t.ID, &t.SessionID, &t.Index, &t.Flow, &t.Request, &t.Subject,
		&t.Response, &t.Continuation, &created)
	if err != nil {
		return Turn{}, err
	}
	t.CreatedAt = time.Unix(0, created).UTC()
	return t, nil
}

// Turns returns a session's turns in order.
// Returns empty slice if session doesn't exist.
func (s *SqliteStorage) Turns(ctx context.Context, sessionID string) ([]Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+turnColumns+" FROM turns WHERE session_id = ? ORDER BY turn_index ASC",
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	turns := []Turn{}
	for rows.Next() {
		t, err := scanTurn(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		turns = append(turns, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating turns: %w", err)
	}
	return turns, nil
}

// LastTurn returns the most recent turn, or nil if the session has none.
func (s *SqliteStorage) LastTurn(ctx context.Context, sessionID string) (*Turn, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+turnColumns+" FROM turns WHERE session_id = ? ORDER BY turn_index DESC LIMIT 1",
		sessionID)
	t, err := scanTurn(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load last turn: %w", err)
	}
	return &t, nil
}

// Delete deletes a session and its turns.
func (s *SqliteStorage) Delete(ctx context.Context, sessionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Foreign keys are off by default in SQLite, so cascade by hand.
	if _, err := tx.ExecContext(ctx, "DELETE FROM turns WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to delete turns: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM sessions WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListSessions lists all session IDs, most recently updated first.
func (s *SqliteStorage) ListSessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT session_id FROM sessions ORDER BY updated_at DESC, session_id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []string{}
	for rows.Next() {
		var sessionID string
		if err := rows.Scan(&sessionID); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, sessionID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}
	return sessions, nil
}

// Exists checks if a session exists.
func (s *SqliteStorage) Exists(ctx context.Context, sessionID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sessions WHERE session_id = ?",
		sessionID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check session existence: %w", err)
	}
	return count > 0, nil
}

var _ TurnStore = (*SqliteStorage)(nil)
