package db

import (
	"database/sql"
	"fmt"
	"time"
)

// RecordEvent appends an entry to the hardware journal
func (d *DB) RecordEvent(e *HardwareEvent) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = d.now()
	}

	result, err := d.conn.Exec(`
		INSERT INTO hardware_events (session, identifier, name, hardware_type, event_type, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.Session, e.Identifier, nullString(e.Name), nullString(e.HardwareType), e.EventType, e.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		e.ID = id
	}
	return nil
}

// GetRecentEvents returns the most recent events, newest first
func (d *DB) GetRecentEvents(limit int) ([]*HardwareEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := d.conn.Query(`
		SELECT id, session, identifier, name, hardware_type, event_type, timestamp
		FROM hardware_events
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// GetEventsFor returns events for identifier and everything below it,
// newest first
func (d *DB) GetEventsFor(identifier string, limit int) ([]*HardwareEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := d.conn.Query(`
		SELECT id, session, identifier, name, hardware_type, event_type, timestamp
		FROM hardware_events
		WHERE identifier = ? OR identifier LIKE ? ESCAPE '\'
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, identifier, escapeLike(identifier)+"/%", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// GetEventsSince returns events after a given timestamp, newest first
func (d *DB) GetEventsSince(since time.Time) ([]*HardwareEvent, error) {
	rows, err := d.conn.Query(`
		SELECT id, session, identifier, name, hardware_type, event_type, timestamp
		FROM hardware_events
		WHERE timestamp > ?
		ORDER BY timestamp DESC, id DESC
	`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query events since: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]*HardwareEvent, error) {
	var events []*HardwareEvent
	for rows.Next() {
		var event HardwareEvent
		var name, hardwareType sql.NullString

		err := rows.Scan(
			&event.ID, &event.Session, &event.Identifier,
			&name, &hardwareType, &event.EventType, &event.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		event.Name = name.String
		event.HardwareType = hardwareType.String
		events = append(events, &event)
	}

	return events, rows.Err()
}
