package storage

import (
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"netpool/pkg/pool"
)

// MySQLStore implements Store using a MySQL backend
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore creates a new MySQL-backed store from a DSN
func NewMySQLStore(dsn string) (Store, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	store := &MySQLStore{db: db}
	if err := store.initDB(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// initDB initializes the database schema
func (s *MySQLStore) initDB() error {
	schema := `
	CREATE TABLE IF NOT EXISTS pool_snapshots (
		id BIGINT PRIMARY KEY AUTO_INCREMENT,
		recorded_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		entries INT,
		active INT,
		idle INT,
		in_use INT,
		stats TEXT,
		INDEX idx_snapshots_recorded_at (recorded_at)
	)`
	_, err := s.db.Exec(schema)
	return err
}

// Save records one snapshot
func (s *MySQLStore) Save(stats pool.Stats) error {
	blob, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO pool_snapshots (recorded_at, entries, active, idle, in_use, stats)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		time.Now(), stats.Entries, stats.Active, stats.Idle, stats.InUse, string(blob))
	return err
}

// Recent returns up to n snapshots, newest first
func (s *MySQLStore) Recent(n int) ([]Snapshot, error) {
	rows, err := s.db.Query(
		`SELECT id, recorded_at, stats FROM pool_snapshots
		 ORDER BY recorded_at DESC, id DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

// Close releases the backing database
func (s *MySQLStore) Close() error {
	return s.db.Close()
}
