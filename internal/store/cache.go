package store

import (
	"database/sql"
	"errors"
	"time"
)

// GetCache returns nil, nil on a miss. Expired rows read as a miss and are
// left for PurgeExpiredCache.
func (db *DB) GetCache(key string) ([]byte, error) {
	var data []byte
	err := db.Get(&data,
		"SELECT data FROM cache WHERE key = ? AND (expires_at IS NULL OR expires_at > ?)",
		key, time.Now().Unix())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// SetCache stores data under key. A ttl of zero or less never expires.
func (db *DB) SetCache(key string, data []byte, ttl time.Duration) error {
	var expiresAt sql.NullInt64
	if ttl > 0 {
		expiresAt = sql.NullInt64{Int64: time.Now().Add(ttl).Unix(), Valid: true}
	}

	_, err := db.Exec(`
		INSERT INTO cache (key, data, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET data = excluded.data, expires_at = excluded.expires_at
	`, key, data, expiresAt)
	return err
}

// PurgeExpiredCache deletes expired rows and returns how many were removed.
func (db *DB) PurgeExpiredCache() (int64, error) {
	res, err := db.Exec("DELETE FROM cache WHERE expires_at IS NOT NULL AND expires_at <= ?", time.Now().Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
