// Package storage provides SQLite persistence for pathwatch.
package storage

import (
	"database/sql"
	"fmt"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database connection.
type DB struct {
	*sql.DB
}

// Open creates (if needed) and opens the database under dataDir.
func Open(dataDir string) (*DB, error) {
	dbPath := filepath.Join(dataDir, "pathwatch.db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	d := &DB{DB: db}
	if err := d.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return d, nil
}

// OpenMemory opens an in-memory database, used by tests.
func OpenMemory() (*DB, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	d := &DB{DB: db}
	if err := d.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

func (db *DB) createTables() error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS targets (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			host TEXT NOT NULL,
			label TEXT,
			active INTEGER DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			packet_type TEXT DEFAULT 'icmp',
			packet_size INTEGER DEFAULT 56,
			max_hops INTEGER DEFAULT 30,
			timeout_ms INTEGER DEFAULT 3000,
			inter_probe_delay_ms INTEGER DEFAULT 25,
			trace_interval_ms INTEGER DEFAULT 10000,
			final_hop_only INTEGER DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS samples (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			target_id INTEGER NOT NULL,
			sampled_at DATETIME NOT NULL,
			hop_num INTEGER NOT NULL,
			addr TEXT,
			name TEXT,
			rtt_ms REAL,
			is_timeout INTEGER DEFAULT 0,
			FOREIGN KEY (target_id) REFERENCES targets(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_samples_target_hop_time
			ON samples(target_id, hop_num, sampled_at)`,

		`CREATE TABLE IF NOT EXISTS route_snapshots (
			target_id INTEGER PRIMARY KEY,
			addrs TEXT NOT NULL,
			updated_at DATETIME NOT NULL,
			FOREIGN KEY (target_id) REFERENCES targets(id) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS route_changes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			target_id INTEGER NOT NULL,
			detected_at DATETIME NOT NULL,
			old_route TEXT,
			new_route TEXT,
			FOREIGN KEY (target_id) REFERENCES targets(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_route_changes_target
			ON route_changes(target_id, detected_at)`,

		`CREATE TABLE IF NOT EXISTS alert_rules (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			target_id INTEGER NOT NULL,
			metric TEXT NOT NULL,
			operator TEXT NOT NULL,
			threshold REAL NOT NULL,
			duration_samples INTEGER DEFAULT 1,
			hop TEXT DEFAULT 'final',
			action TEXT,
			action_config TEXT,
			enabled INTEGER DEFAULT 1,
			FOREIGN KEY (target_id) REFERENCES targets(id) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS alert_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			rule_id INTEGER NOT NULL,
			target_id INTEGER NOT NULL,
			kind TEXT NOT NULL,
			metric TEXT,
			value REAL,
			message TEXT,
			at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alert_events_target
			ON alert_events(target_id, at)`,
	}

	for _, table := range tables {
		if _, err := db.Exec(table); err != nil {
			return fmt.Errorf("failed to execute: %s: %w", table, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.DB.Close()
}
