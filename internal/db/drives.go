package db

import (
	"database/sql"
	"errors"
	"fmt"
)

// UpsertDrive inserts or updates a drive record keyed by serial
func (d *DB) UpsertDrive(drive *DriveRecord) error {
	if drive.Serial == "" {
		return errors.New("drive record has no serial")
	}
	now := d.now()

	_, err := d.conn.Exec(`
		INSERT INTO drives (serial, model, firmware, size_bytes, identifier, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(serial) DO UPDATE SET
			model = COALESCE(excluded.model, model),
			firmware = COALESCE(excluded.firmware, firmware),
			size_bytes = COALESCE(excluded.size_bytes, size_bytes),
			identifier = COALESCE(excluded.identifier, identifier),
			last_seen = excluded.last_seen
	`,
		drive.Serial, nullString(drive.Model), nullString(drive.Firmware),
		nullInt64(drive.SizeBytes), nullString(drive.Identifier), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert drive: %w", err)
	}

	// LastInsertId is unreliable for the update branch
	existing, err := d.GetDriveBySerial(drive.Serial)
	if err != nil {
		return err
	}
	if existing != nil {
		*drive = *existing
	}
	return nil
}

// GetDriveBySerial returns a drive by its serial number, or nil
func (d *DB) GetDriveBySerial(serial string) (*DriveRecord, error) {
	row := d.conn.QueryRow(`
		SELECT id, serial, model, firmware, size_bytes, identifier, first_seen, last_seen
		FROM drives WHERE serial = ?
	`, serial)

	drive, err := scanDrive(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return drive, err
}

// GetAllDrives returns all known drives, most recently seen first
func (d *DB) GetAllDrives() ([]*DriveRecord, error) {
	rows, err := d.conn.Query(`
		SELECT id, serial, model, firmware, size_bytes, identifier, first_seen, last_seen
		FROM drives ORDER BY last_seen DESC, serial
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query drives: %w", err)
	}
	defer rows.Close()

	var drives []*DriveRecord
	for rows.Next() {
		drive, err := scanDrive(rows)
		if err != nil {
			return nil, err
		}
		drives = append(drives, drive)
	}

	return drives, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDrive(row scanner) (*DriveRecord, error) {
	var drive DriveRecord
	var model, firmware, identifier sql.NullString
	var size sql.NullInt64

	err := row.Scan(
		&drive.ID, &drive.Serial, &model, &firmware, &size, &identifier,
		&drive.FirstSeen, &drive.LastSeen,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan drive: %w", err)
	}

	drive.Model = model.String
	drive.Firmware = firmware.String
	drive.SizeBytes = size.Int64
	drive.Identifier = identifier.String
	return &drive, nil
}
