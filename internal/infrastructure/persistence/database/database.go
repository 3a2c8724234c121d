// Package database provides connection management for the SQL-backed client
// store: local SQLite files or remote libSQL databases.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AtRiskMedia/zori-go/internal/infrastructure/observability/logging"
	_ "github.com/mattn/go-sqlite3"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
)

// Driver names registered by the imported drivers.
const (
	DriverSQLite = "sqlite3"
	DriverLibSQL = "libsql"
)

// DB represents a wrapper around the standard SQL database connection.
type DB struct {
	*sql.DB
	Driver string
}

// Target describes where client state lives. A Path selects a local SQLite file;
// a URL (libsql://, https://, wss://) selects a remote libSQL database.
type Target struct {
	Path      string
	URL       string
	AuthToken string
}

// Resolve returns the driver name and data source name for t.
func (t Target) Resolve() (driver, dsn string, err error) {
	if t.URL != "" {
		if !isRemote(t.URL) {
			return "", "", fmt.Errorf("unsupported database URL %q", t.URL)
		}
		dsn = t.URL
		if t.AuthToken != "" {
			sep := "?"
			if strings.Contains(dsn, "?") {
				sep = "&"
			}
			dsn += sep + "authToken=" + t.AuthToken
		}
		return DriverLibSQL, dsn, nil
	}
	if t.Path == "" {
		return "", "", fmt.Errorf("database target needs a path or URL")
	}
	return DriverSQLite, t.Path, nil
}

func isRemote(u string) bool {
	for _, scheme := range []string{"libsql://", "https://", "http://", "wss://", "ws://"} {
		if strings.HasPrefix(u, scheme) {
			return true
		}
	}
	return false
}

// NewConnectionWithLogger establishes a new database connection for the target.
func NewConnectionWithLogger(target Target, logger *logging.ChanneledLogger) (*DB, error) {
	start := time.Now()

	driver, dsn, err := target.Resolve()
	if err != nil {
		return nil, err
	}

	if driver == DriverSQLite && target.Path != ":memory:" {
		if dir := filepath.Dir(target.Path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	logger.Storage().Debug("Creating new database connection", "driverName", driver)

	db, err := sql.Open(driver, dsn)
	if err != nil {
		logger.Storage().Error("Failed to open database connection", "error", err.Error(), "driverName", driver)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err = db.Ping(); err != nil {
		db.Close()
		logger.Storage().Error("Database ping failed", "error", err.Error(), "driverName", driver)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == DriverSQLite {
		// SQLite only supports one writer at a time
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	logger.Storage().Info("Database connection established", "driverName", driver, "duration", time.Since(start))

	return &DB{DB: db, Driver: driver}, nil
}
