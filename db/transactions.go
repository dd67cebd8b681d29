package db

import (
	"database/sql"
	"fmt"
	"time"
)

// StartTransaction starts a new database transaction.
func StartTransaction(db *sql.DB) (*sql.Tx, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	return tx, nil
}

// CommitTransaction commits the given transaction.
func CommitTransaction(tx *sql.Tx) error {
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// UpdateDeviceName records the display name a unit reported when it was connected.
func UpdateDeviceName(db *sql.DB, id, name string, resolvedAt time.Time) error {
	res, err := db.Exec(`UPDATE devices SET name = ?, resolved_at = ? WHERE id = ?`, name, resolvedAt.UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("update device name: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update device name: %w", sql.ErrNoRows)
	}
	return nil
}
