// Package storage persists the session record in a local sqlite database.
// There is exactly one record, kept under a single well-known key; only the
// session store reads or writes it.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"smartcash/internal/core"
	"smartcash/internal/log"

	_ "modernc.org/sqlite"
)

// sessionKey is the single well-known key the session record lives under.
const sessionKey = "current"

type SQLiteRepository struct {
	db     *sql.DB
	logger *log.Logger
}

// SessionRecord is the persisted shape of a session. Timestamps are epoch
// milliseconds.
type SessionRecord struct {
	User      core.User
	IssuedAt  int64
	ExpiresAt int64
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:     db,
		logger: logger.WithComponent(log.ComponentStorage),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SaveSession replaces whatever record exists under the well-known key.
func (r *SQLiteRepository) SaveSession(ctx context.Context, rec SessionRecord) error {
	userJSON, err := json.Marshal(rec.User)
	if err != nil {
		return fmt.Errorf("encode session user: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO session (key, user_json, issued_at_ms, expires_at_ms)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		   user_json = excluded.user_json,
		   issued_at_ms = excluded.issued_at_ms,
		   expires_at_ms = excluded.expires_at_ms`,
		sessionKey, string(userJSON), rec.IssuedAt, rec.ExpiresAt)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	r.logger.DebugContext(ctx, "Session persisted",
		log.FieldUserID, rec.User.ID,
		log.FieldExpiresAt, rec.ExpiresAt)
	return nil
}

// LoadSession reads the persisted record. Absence returns (nil, nil).
// A corrupted record is deleted and also normalized to (nil, nil): an
// unreadable session must never present as a logged-in user.
func (r *SQLiteRepository) LoadSession(ctx context.Context) (*SessionRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT user_json, issued_at_ms, expires_at_ms FROM session WHERE key = ?`,
		sessionKey)

	var (
		userJSON  string
		issuedAt  int64
		expiresAt int64
	)
	if err := row.Scan(&userJSON, &issuedAt, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	var user core.User
	if err := json.Unmarshal([]byte(userJSON), &user); err != nil {
		r.logger.WarnContext(ctx, "Discarding corrupted session record",
			log.FieldError, err.Error())
		if delErr := r.DeleteSession(ctx); delErr != nil {
			return nil, delErr
		}
		return nil, nil
	}

	return &SessionRecord{User: user, IssuedAt: issuedAt, ExpiresAt: expiresAt}, nil
}

// DeleteSession removes the record. Deleting an absent record is not an
// error.
func (r *SQLiteRepository) DeleteSession(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM session WHERE key = ?`, sessionKey); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
