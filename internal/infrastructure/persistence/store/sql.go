package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/AtRiskMedia/zori-go/internal/infrastructure/clock"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/persistence/database"
)

//go:embed schema.sql
var schemaSQL string

// SQLBackend persists cookies and local values in SQLite or libSQL, so a CLI
// or server-side caller keeps its visitor across process restarts.
type SQLBackend struct {
	db    *database.DB
	clock clock.Clock
}

// OpenSQLBackend connects to target and applies the schema.
func OpenSQLBackend(target database.Target, c clock.Clock, logger *logging.ChanneledLogger) (*SQLBackend, error) {
	db, err := database.NewConnectionWithLogger(target, logger)
	if err != nil {
		return nil, err
	}

	if db.Driver == database.DriverSQLite {
		pragmas := []string{
			"PRAGMA journal_mode = WAL",
			"PRAGMA synchronous = NORMAL",
			"PRAGMA busy_timeout = 5000",
		}
		for _, p := range pragmas {
			if _, err := db.Exec(p); err != nil {
				db.Close()
				return nil, fmt.Errorf("failed to set pragma %q: %w", p, err)
			}
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	if c == nil {
		c = clock.System{}
	}
	return &SQLBackend{db: db, clock: c}, nil
}

// Close releases the connection.
func (s *SQLBackend) Close() error {
	return s.db.Close()
}

// ClearSessionCookies drops every cookie without an expiry, ending the
// simulated browser session.
func (s *SQLBackend) ClearSessionCookies(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cookies WHERE expires_at IS NULL`); err != nil {
		return errors.Join(ErrUnavailable, err)
	}
	return nil
}

// PurgeExpired implements Purger.
func (s *SQLBackend) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM cookies WHERE expires_at IS NOT NULL AND expires_at <= ?`, s.clock.Now().UnixMilli())
	if err != nil {
		return 0, errors.Join(ErrUnavailable, err)
	}
	return res.RowsAffected()
}

// GetCookie implements Backend.
func (s *SQLBackend) GetCookie(ctx context.Context, name string) (string, bool, error) {
	var value string
	var expiresAt sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM cookies WHERE name = ?`, name).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Join(ErrUnavailable, err)
	}
	if expiresAt.Valid && s.clock.Now().UnixMilli() >= expiresAt.Int64 {
		return "", false, nil
	}
	return value, true, nil
}

// SetCookie implements Backend.
func (s *SQLBackend) SetCookie(ctx context.Context, name, value string, days int) error {
	var expiresAt sql.NullInt64
	if days != SessionCookie {
		expiresAt = sql.NullInt64{
			Int64: s.clock.Now().Add(time.Duration(days) * 24 * time.Hour).UnixMilli(),
			Valid: true,
		}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cookies (name, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		name, value, expiresAt)
	if err != nil {
		return errors.Join(ErrUnavailable, err)
	}
	return nil
}

// DeleteCookie implements Backend.
func (s *SQLBackend) DeleteCookie(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cookies WHERE name = ?`, name); err != nil {
		return errors.Join(ErrUnavailable, err)
	}
	return nil
}

// Get implements Backend.
func (s *SQLBackend) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Join(ErrUnavailable, err)
	}
	return value, true, nil
}

// Set implements Backend.
func (s *SQLBackend) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return errors.Join(ErrUnavailable, err)
	}
	return nil
}

// Remove implements Backend.
func (s *SQLBackend) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return errors.Join(ErrUnavailable, err)
	}
	return nil
}
