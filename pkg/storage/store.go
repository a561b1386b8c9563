// Package storage persists periodic pool-stats snapshots so operators
// can inspect pool behavior over time through the stats API.
package storage

import (
	"time"

	"netpool/pkg/pool"
)

// Snapshot is one persisted sample of pool counters
type Snapshot struct {
	ID         int64      `json:"id"`
	RecordedAt time.Time  `json:"recorded_at"`
	Stats      pool.Stats `json:"stats"`
}

// Store persists pool stats snapshots
type Store interface {
	// Save records one snapshot
	Save(stats pool.Stats) error

	// Recent returns up to n snapshots, newest first
	Recent(n int) ([]Snapshot, error)

	// Close releases the backing database
	Close() error
}
