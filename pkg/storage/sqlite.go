package storage

import (
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"netpool/pkg/pool"
)

// SQLiteStore implements Store using a SQLite backend
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed store
func NewSQLiteStore(dbPath string) (Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initDB(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// initDB initializes the database schema
func (s *SQLiteStore) initDB() error {
	schema := `
	CREATE TABLE IF NOT EXISTS pool_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		recorded_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		entries INTEGER,
		active INTEGER,
		idle INTEGER,
		in_use INTEGER,
		stats TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_snapshots_recorded_at
		ON pool_snapshots(recorded_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Save records one snapshot
func (s *SQLiteStore) Save(stats pool.Stats) error {
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
func (s *SQLiteStore) Recent(n int) ([]Snapshot, error) {
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
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// scanSnapshots decodes snapshot rows; shared with the MySQL backend
func scanSnapshots(rows *sql.Rows) ([]Snapshot, error) {
	var out []Snapshot
	for rows.Next() {
		var snap Snapshot
		var blob string
		if err := rows.Scan(&snap.ID, &snap.RecordedAt, &blob); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(blob), &snap.Stats); err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}
