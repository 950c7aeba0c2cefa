package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/sigreer/hwgod/internal/hardware"
)

var _ hardware.Settings = (*DB)(nil)

// Get returns the value stored under key. ok is false when the key is
// not set.
func (d *DB) Get(key string) (string, bool, error) {
	var value string
	err := d.conn.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key, replacing any previous value
func (d *DB) Set(key, value string) error {
	_, err := d.conn.Exec(`
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, key, value, d.now())
	if err != nil {
		return fmt.Errorf("failed to write setting %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (d *DB) Delete(key string) error {
	if _, err := d.conn.Exec("DELETE FROM settings WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete setting %s: %w", key, err)
	}
	return nil
}

// KeysWithSuffix returns every key ending in "/"+suffix, sorted
func (d *DB) KeysWithSuffix(suffix string) ([]string, error) {
	pattern := "%/" + escapeLike(suffix)
	rows, err := d.conn.Query(`SELECT key FROM settings WHERE key LIKE ? ESCAPE '\' ORDER BY key`, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
