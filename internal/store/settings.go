package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type SettingsRepo struct {
	db *DB
}

func NewSettingsRepo(db *DB) *SettingsRepo {
	return &SettingsRepo{db: db}
}

// Get returns the stored value, or "" when the key was never set.
func (r *SettingsRepo) Get(key string) (string, error) {
	var value string
	err := r.db.Get(&value, "SELECT value FROM settings WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

func (r *SettingsRepo) Set(key, value string) error {
	return r.SetMany(map[string]string{key: value})
}

// SetMany writes every pair in one transaction so readers never see half of them.
func (r *SettingsRepo) SetMany(values map[string]string) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin settings tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	for key, value := range values {
		if _, err := tx.Exec(`
			INSERT INTO settings (key, value, updated_at)
			VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
		`, key, value, now); err != nil {
			return fmt.Errorf("failed to set %s: %w", key, err)
		}
	}
	return tx.Commit()
}

const (
	SettingSpotifyClientID     = "spotify_client_id"
	SettingSpotifyClientSecret = "spotify_client_secret"
)
