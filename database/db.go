package database

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	log "github.com/sirupsen/logrus"

	"github.com/CrowderSoup/scheduler/validation"
)

// InitDB opens the SQLite database at path and creates the schema.
//
// Transactions are opened with BEGIN IMMEDIATE so a write transaction holds
// the database write lock from its first statement. History sequence numbers
// are read and written under that lock.
func InitDB(path string) (*sqlx.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("database path is required")
	}

	params := url.Values{}
	params.Set("_foreign_keys", "1")
	params.Set("_busy_timeout", "5000")
	params.Set("_txlock", "immediate")
	params.Set("_journal_mode", "WAL")
	dsn := fmt.Sprintf("file:%s?%s", path, params.Encode())

	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	for i, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute schema statement %d: %w", i+1, err)
		}
	}

	log.Printf("Database initialized at %s", path)
	return db, nil
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		user_name TEXT NOT NULL,
		password TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tasks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		detail TEXT,
		priority INTEGER NOT NULL DEFAULT 1 CHECK (priority IN (1, 2, 3)),
		deadline DATE,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		user_id TEXT REFERENCES users(user_id) ON DELETE SET NULL
	)`,
	`CREATE TABLE IF NOT EXISTS task_history (
		task_id INTEGER NOT NULL,
		history_seq INTEGER NOT NULL CHECK (history_seq >= 1),
		title TEXT NOT NULL,
		detail TEXT,
		priority INTEGER NOT NULL CHECK (priority IN (1, 2, 3)),
		deadline DATE,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		processed_flag INTEGER NOT NULL CHECK (processed_flag IN (1, 2, 3)),
		user_id TEXT REFERENCES users(user_id) ON DELETE SET NULL,
		PRIMARY KEY (task_id, history_seq)
	)`,
	`CREATE TABLE IF NOT EXISTS notes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		body TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		processed_flag INTEGER NOT NULL DEFAULT 1 CHECK (processed_flag IN (1, 2, 3)),
		user_id TEXT REFERENCES users(user_id) ON DELETE SET NULL
	)`,
	`CREATE TABLE IF NOT EXISTS note_history (
		note_id INTEGER NOT NULL,
		history_seq INTEGER NOT NULL CHECK (history_seq >= 1),
		body TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		processed_flag INTEGER NOT NULL CHECK (processed_flag IN (1, 2, 3)),
		user_id TEXT REFERENCES users(user_id) ON DELETE SET NULL,
		PRIMARY KEY (note_id, history_seq)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_user_deadline ON tasks(user_id, deadline)`,
	`CREATE INDEX IF NOT EXISTS idx_notes_user ON notes(user_id)`,
}

// withTx runs fn inside a write transaction and commits when fn succeeds.
// When SQLite reports the database as busy past the busy timeout the whole
// transaction is retried, so fn must not have effects outside tx.
func withTx(ctx context.Context, db *sqlx.DB, fn func(*sqlx.Tx) error) error {
	return retry.Do(
		func() error {
			return runTx(ctx, db, fn)
		},
		retry.Context(ctx),
		retry.Attempts(txAttempts),
		retry.Delay(50*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isBusy),
		retry.OnRetry(func(n uint, err error) {
			log.WithError(err).Warnf("database busy, retrying transaction (attempt %d)", n+2)
		}),
	)
}

const txAttempts = 3

func runTx(ctx context.Context, db *sqlx.DB, fn func(*sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func isBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
}

func userExists(ctx context.Context, q sqlx.QueryerContext, userID string) (bool, error) {
	var count int
	if err := sqlx.GetContext(ctx, q, &count, "SELECT COUNT(*) FROM users WHERE user_id = ?", userID); err != nil {
		return false, fmt.Errorf("failed to query user: %w", err)
	}
	return count > 0, nil
}

// checkOwner reports a field error when userID names a user that does not
// exist. A nil userID means the row has no owner.
func checkOwner(ctx context.Context, q sqlx.QueryerContext, userID *string) error {
	if userID == nil {
		return nil
	}
	ok, err := userExists(ctx, q, *userID)
	if err != nil {
		return err
	}
	if !ok {
		return validation.FieldErrors{
			"user": {fmt.Sprintf("Invalid pk %q - object does not exist.", *userID)},
		}
	}
	return nil
}
