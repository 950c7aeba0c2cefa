package db

import (
	"database/sql"
	"fmt"
	"time"
)

// RecordSamples writes one tick of sensor values in a single transaction
func (d *DB) RecordSamples(samples []SampleRecord) error {
	if len(samples) == 0 {
		return nil
	}

	tx, err := d.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin sample write: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO sensor_samples (session, identifier, value, timestamp)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare sample write: %w", err)
	}
	defer stmt.Close()

	for _, s := range samples {
		var value sql.NullFloat64
		if s.Value != nil {
			value = sql.NullFloat64{Float64: *s.Value, Valid: true}
		}
		if _, err := stmt.Exec(s.Session, s.Identifier, value, s.Timestamp.UTC()); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record sample for %s: %w", s.Identifier, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit samples: %w", err)
	}
	return nil
}

// GetSamples returns the samples of one sensor after since, oldest first
func (d *DB) GetSamples(identifier string, since time.Time, limit int) ([]SampleRecord, error) {
	if limit <= 0 {
		limit = 1000
	}

	rows, err := d.conn.Query(`
		SELECT session, identifier, value, timestamp
		FROM sensor_samples
		WHERE identifier = ? AND timestamp > ?
		ORDER BY timestamp, id
		LIMIT ?
	`, identifier, since.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var samples []SampleRecord
	for rows.Next() {
		var s SampleRecord
		var value sql.NullFloat64
		if err := rows.Scan(&s.Session, &s.Identifier, &value, &s.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		if value.Valid {
			v := value.Float64
			s.Value = &v
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// PruneSamples deletes samples older than before and returns how many
// were removed
func (d *DB) PruneSamples(before time.Time) (int64, error) {
	result, err := d.conn.Exec("DELETE FROM sensor_samples WHERE timestamp < ?", before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune samples: %w", err)
	}
	return result.RowsAffected()
}
