package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/thatsimonsguy/daikin-climate/internal/model"
)

// GetAllDevices returns every registered unit ordered by id.
func GetAllDevices(conn *sql.DB) ([]model.DeviceRecord, error) {
	rows, err := conn.Query(`SELECT id, ipaddress, name, sensors, resolved_at FROM devices ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	var devices []model.DeviceRecord
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

// GetDeviceByID returns sql.ErrNoRows (wrapped) for an unknown id.
func GetDeviceByID(conn *sql.DB, id string) (*model.DeviceRecord, error) {
	row := conn.QueryRow(`SELECT id, ipaddress, name, sensors, resolved_at FROM devices WHERE id = ?`, id)
	d, err := scanDevice(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get device %s: %w", id, err)
	}
	return &d, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDevice(s scanner) (model.DeviceRecord, error) {
	var d model.DeviceRecord
	var sensors string
	var resolvedAt sql.NullString

	if err := s.Scan(&d.ID, &d.IPAddress, &d.Name, &sensors, &resolvedAt); err != nil {
		return d, err
	}
	if err := json.Unmarshal([]byte(sensors), &d.Sensors); err != nil {
		return d, fmt.Errorf("failed to decode sensors of %s: %w", d.ID, err)
	}
	if resolvedAt.Valid {
		d.ResolvedAt, _ = time.Parse(time.RFC3339, resolvedAt.String)
	}
	return d, nil
}
