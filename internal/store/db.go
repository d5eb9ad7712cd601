package store

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/erenuysaldev/Erotify/internal/constants"
)

// DB holds saved settings and the provider search cache. Jobs live in memory
// and are never written here.
type DB struct {
	*sqlx.DB
}

// NewSQLiteDB opens (creating if needed) the database file at path and brings
// its schema up to date.
func NewSQLiteDB(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, constants.DirPermissions); err != nil {
			return nil, fmt.Errorf("failed to create db directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	// one writer at a time
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	sqlDB := &DB{db}
	if err := sqlDB.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return sqlDB, nil
}

// dsn applies the pragmas on every new connection.
func dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "busy_timeout(30000)")
	return "file:" + path + "?" + q.Encode()
}

// migrate runs every migration newer than the stored user_version.
func (db *DB) migrate() error {
	version, err := db.schemaVersion()
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for i := version; i < len(migrations); i++ {
		tx, err := db.Beginx()
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", i+1, err)
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to apply migration %d: %w", i+1, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", i+1, err)
		}
	}
	return nil
}

// schemaVersion reports the applied migration count.
func (db *DB) schemaVersion() (int, error) {
	var version int
	err := db.Get(&version, "PRAGMA user_version")
	return version, err
}

func (db *DB) Close() error {
	return db.DB.Close()
}
