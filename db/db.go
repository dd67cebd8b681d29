package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/daikin-climate/internal/config"
)

const schema = `
CREATE TABLE IF NOT EXISTS devices (
	id TEXT PRIMARY KEY,
	ipaddress TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL DEFAULT '',
	sensors TEXT NOT NULL,
	resolved_at TEXT
);
`

// Open opens (creating if needed) the registry database and applies the schema.
func Open(dbPath string) (*sql.DB, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single connection keeps :memory: databases alive and serialises writers
	conn.SetMaxOpenConns(1)

	if err := ApplySchema(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func ApplySchema(conn *sql.DB) error {
	if _, err := conn.Exec(schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// SeedDevices makes the registry match the configured devices. Names already
// resolved for an unchanged address are kept.
func SeedDevices(conn *sql.DB, devices []config.Device) error {
	tx, err := StartTransaction(conn)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM devices`+notInClause(len(devices)), deviceIDs(devices)...); err != nil {
		return fmt.Errorf("failed to prune devices: %w", err)
	}

	for _, d := range devices {
		_, err = tx.Exec(`
			INSERT INTO devices (id, ipaddress, sensors) VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = CASE WHEN devices.ipaddress = excluded.ipaddress THEN devices.name ELSE '' END,
				resolved_at = CASE WHEN devices.ipaddress = excluded.ipaddress THEN devices.resolved_at ELSE NULL END,
				ipaddress = excluded.ipaddress,
				sensors = excluded.sensors`,
			d.ID, d.IPAddress, marshalJSON(d.Sensors))
		if err != nil {
			return fmt.Errorf("failed to insert device %s: %w", d.ID, err)
		}
	}

	if err := CommitTransaction(tx); err != nil {
		return err
	}

	log.Info().Int("devices", len(devices)).Msg("Device registry seeded from config")
	return nil
}

func notInClause(n int) string {
	if n == 0 {
		return ""
	}
	clause := " WHERE id NOT IN (?"
	for i := 1; i < n; i++ {
		clause += ", ?"
	}
	return clause + ")"
}

func deviceIDs(devices []config.Device) []interface{} {
	ids := make([]interface{}, 0, len(devices))
	for _, d := range devices {
		ids = append(ids, d.ID)
	}
	return ids
}

func marshalJSON(v interface{}) string {
	b, _ := json.Marshal(v)
	return string(b)
}
