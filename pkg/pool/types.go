package pool

import (
	"context"
	"fmt"
	"time"

	"netpool/pkg/errors"
)

// Default configuration values
const (
	DefaultMaxEntries   = 10              // Maximum pooled resources
	DefaultMaxMultiplex = 1               // Concurrent holders per resource
	DefaultIdleTimeout  = 5 * time.Minute // Idle timeout, 0 disables expiry
)

// Config holds the pool tuning knobs
type Config struct {
	// MaxEntries caps live plus reserved entries
	MaxEntries int

	// MaxMultiplex caps concurrent holders per entry
	MaxMultiplex int

	// Strategy selects entries on acquire; fixed for the pool lifetime
	Strategy Strategy

	// IdleTimeout removes entries that stay fully idle this long.
	// Zero disables idle expiry.
	IdleTimeout time.Duration
}

// DefaultConfig returns a single-holder pool configuration
func DefaultConfig() Config {
	return Config{
		MaxEntries:   DefaultMaxEntries,
		MaxMultiplex: DefaultMaxMultiplex,
		Strategy:     StrategyFirstFit,
		IdleTimeout:  DefaultIdleTimeout,
	}
}

func (c *Config) validate() error {
	if c.MaxEntries < 1 {
		return fmt.Errorf("%w: max entries must be at least 1", errors.ErrInvalidConfig)
	}
	if c.MaxMultiplex < 1 {
		return fmt.Errorf("%w: max multiplex must be at least 1", errors.ErrInvalidConfig)
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("%w: idle timeout cannot be negative", errors.ErrInvalidConfig)
	}
	return nil
}

// Factory creates and destroys the underlying pooled resources. Create
// may block; the pool only reserves capacity synchronously and calls
// Create outside its own critical sections.
type Factory[T any] interface {
	Create(ctx context.Context) (T, error)
	Destroy(res T) error
}

// FactoryFuncs adapts a pair of functions to the Factory interface
type FactoryFuncs[T any] struct {
	CreateFunc  func(ctx context.Context) (T, error)
	DestroyFunc func(res T) error
}

func (f FactoryFuncs[T]) Create(ctx context.Context) (T, error) {
	return f.CreateFunc(ctx)
}

func (f FactoryFuncs[T]) Destroy(res T) error {
	if f.DestroyFunc == nil {
		return nil
	}
	return f.DestroyFunc(res)
}

// Stats is a point-in-time snapshot of pool counters
type Stats struct {
	Entries      int    `json:"entries"`
	Active       int    `json:"active"`
	Idle         int    `json:"idle"`
	Reserved     int    `json:"reserved"`
	InUse        int    `json:"in_use"`
	MaxEntries   int    `json:"max_entries"`
	MaxMultiplex int    `json:"max_multiplex"`
	Strategy     string `json:"strategy"`
	Acquires     uint64 `json:"acquires"`
	Hits         uint64 `json:"hits"`
	Misses       uint64 `json:"misses"`
	Created      uint64 `json:"created"`
	Expired      uint64 `json:"expired"`
	Removed      uint64 `json:"removed"`
}
