package stores

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	_ "modernc.org/sqlite"
)

/*
SQLitePrefs stores overrides in a single-file SQLite database so a user's
choice of agent survives process restarts. The schema is created on open;
parent directories too.
*/
type SQLitePrefs struct {
	db *sql.DB
}

func NewSQLitePrefs(path string) (*SQLitePrefs, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)

	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL keeps reads unblocked while an override is being written.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS user_prefs (
			user_id    TEXT PRIMARY KEY,
			server_url TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	log.Info("preference store ready", "path", path)

	return &SQLitePrefs{db: db}, nil
}

func (prefs *SQLitePrefs) Override(ctx context.Context, userID string) (string, bool, error) {
	var url string

	err := prefs.db.QueryRowContext(
		ctx, `SELECT server_url FROM user_prefs WHERE user_id = ?`, userID,
	).Scan(&url)

	if err == sql.ErrNoRows {
		return "", false, nil
	}

	if err != nil {
		return "", false, fmt.Errorf("querying override: %w", err)
	}

	return url, true, nil
}

func (prefs *SQLitePrefs) SetOverride(ctx context.Context, userID string, serverURL string) error {
	now := time.Now().UTC().Format(time.RFC3339)

	_, err := prefs.db.ExecContext(ctx, `
		INSERT INTO user_prefs (user_id, server_url, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			server_url = excluded.server_url,
			updated_at = excluded.updated_at
	`, userID, serverURL, now, now)

	if err != nil {
		return fmt.Errorf("saving override: %w", err)
	}

	log.Info("server override saved", "user_id", userID, "url", serverURL)

	return nil
}

func (prefs *SQLitePrefs) ClearOverride(ctx context.Context, userID string) error {
	_, err := prefs.db.ExecContext(
		ctx, `DELETE FROM user_prefs WHERE user_id = ?`, userID,
	)

	if err != nil {
		return fmt.Errorf("clearing override: %w", err)
	}

	log.Info("server override cleared", "user_id", userID)

	return nil
}

func (prefs *SQLitePrefs) Close() error {
	return prefs.db.Close()
}

var _ PreferenceStore = (*SQLitePrefs)(nil)
