package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/whatsdrip/dashboard/internal/config"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

type DB struct {
	*sqlx.DB
}

// ParseURL maps a storage URL onto a driver name and DSN. Postgres URLs pass
// through untouched; sqlite://, file: and bare paths select sqlite3.
func ParseURL(storageURL string) (driver, dsn string, err error) {
	switch {
	case storageURL == "":
		return "", "", fmt.Errorf("storage url is empty")
	case strings.HasPrefix(storageURL, "postgres://"), strings.HasPrefix(storageURL, "postgresql://"):
		return DriverPostgres, storageURL, nil
	case strings.HasPrefix(storageURL, "sqlite://"):
		return DriverSQLite, strings.TrimPrefix(storageURL, "sqlite://"), nil
	case strings.HasPrefix(storageURL, "file:"):
		return DriverSQLite, storageURL, nil
	case strings.Contains(storageURL, "://"):
		return "", "", fmt.Errorf("unsupported storage url scheme: %s", storageURL)
	default:
		return DriverSQLite, storageURL, nil
	}
}

func Connect(storageURL string) (*DB, error) {
	driver, dsn, err := ParseURL(storageURL)
	if err != nil {
		return nil, err
	}

	if driver == DriverSQLite && dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(config.DBMaxOpenConns)
	db.SetMaxIdleConns(config.DBMaxIdleConns)
	db.SetConnMaxLifetime(config.DBConnMaxLifetime)
	if driver == DriverSQLite {
		// a single writer keeps sqlite from returning SQLITE_BUSY
		db.SetMaxOpenConns(1)
	}

	return &DB{db}, nil
}

func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}

func (db *DB) Close() error {
	return db.DB.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS local_storage (
	storage_key TEXT PRIMARY KEY,
	value       TEXT NOT NULL,
	updated_at  TIMESTAMP NOT NULL
)`

// Migrate creates the tables the dashboard needs. It is safe to run on every start.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate local storage: %w", err)
	}
	return nil
}
