package store

import (
	"database/sql"
	"fmt"
	"log"
	"time"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "Initial schema",
		SQL: `
CREATE TABLE IF NOT EXISTS locations (
    location TEXT PRIMARY KEY,
    name TEXT,
    latitude REAL,
    longitude REAL,
    altitude REAL
);

CREATE TABLE IF NOT EXISTS daily_weather (
    location TEXT NOT NULL,
    date DATE NOT NULL,
    temp_max REAL,
    temp_min REAL,
    sunshine_hours REAL,
    precipitation REAL,
    gdd REAL,
    source TEXT NOT NULL DEFAULT 'history',
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (location, date)
);

CREATE TABLE IF NOT EXISTS hourly_temps (
    location TEXT NOT NULL,
    observed_at DATETIME NOT NULL,
    temp REAL NOT NULL,
    PRIMARY KEY (location, observed_at)
);

CREATE TABLE IF NOT EXISTS bloom_records (
    location TEXT NOT NULL,
    year INTEGER NOT NULL,
    latitude REAL,
    longitude REAL,
    altitude REAL,
    bloom_date DATE NOT NULL,
    bloom_doy INTEGER NOT NULL,
    PRIMARY KEY (location, year)
);

CREATE INDEX IF NOT EXISTS idx_daily_location_date ON daily_weather(location, date);
CREATE INDEX IF NOT EXISTS idx_hourly_location_time ON hourly_temps(location, observed_at);
`,
	},
}

func (s *Store) Migrate() error {
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("ensure migrations table: %w", err)
	}

	applied, err := s.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}

		log.Printf("migrations: applying %d - %s", m.Version, m.Description)

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx for migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Description, time.Now().UTC(),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

func (s *Store) ensureMigrationsTable() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at DATETIME
		)
	`)
	return err
}

func (s *Store) getAppliedMigrations() (map[int]bool, error) {
	rows, err := s.db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func (s *Store) MigrationVersion() (int, error) {
	var version sql.NullInt64
	err := s.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, err
	}
	if !version.Valid {
		return 0, nil
	}
	return int(version.Int64), nil
}
