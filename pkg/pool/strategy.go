package pool

import (
	"fmt"
	"math/rand"
	"strings"

	"netpool/pkg/errors"
)

// Strategy selects which admissible entry satisfies an acquire
type Strategy int

const (
	// StrategyFirstFit scans in insertion order and fills earlier
	// entries before opening later ones
	StrategyFirstFit Strategy = iota

	// StrategyRandom probes uniformly at random, spreading load and
	// avoiding hot entries under adversarial timing
	StrategyRandom

	// StrategyRoundRobin rotates a cursor so consecutive acquires
	// prefer different entries
	StrategyRoundRobin
)

// randomProbes bounds random selection retries before falling back to a
// first-fit scan
const randomProbes = 3

func (s Strategy) String() string {
	switch s {
	case StrategyRandom:
		return "random"
	case StrategyRoundRobin:
		return "round-robin"
	default:
		return "first-fit"
	}
}

// ParseStrategy maps a configuration string to a Strategy
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "first-fit", "firstfit", "":
		return StrategyFirstFit, nil
	case "random":
		return StrategyRandom, nil
	case "round-robin", "roundrobin":
		return StrategyRoundRobin, nil
	default:
		return StrategyFirstFit, fmt.Errorf("%w: unknown strategy %q", errors.ErrInvalidConfig, s)
	}
}

// selectEntry picks and atomically acquires one admissible entry from
// the snapshot, or returns nil when none can be taken. The per-entry
// CAS in tryAcquire is the correctness gate; the snapshot may be stale.
func (p *Pool[T]) selectEntry(entries []*Entry[T]) *Entry[T] {
	n := len(entries)
	if n == 0 {
		return nil
	}

	switch p.cfg.Strategy {
	case StrategyRandom:
		for i := 0; i < randomProbes; i++ {
			if e := entries[rand.Intn(n)]; e.tryAcquire() {
				return e
			}
		}
		return firstFit(entries, 0)

	case StrategyRoundRobin:
		// The cursor is re-derived modulo the live length each call,
		// so concurrent removals only skew fairness, never indexing
		start := int((p.cursor.Add(1) - 1) % uint64(n))
		return firstFit(entries, start)

	default:
		return firstFit(entries, 0)
	}
}

// firstFit scans the snapshot from start, wrapping once around
func firstFit[T any](entries []*Entry[T], start int) *Entry[T] {
	n := len(entries)
	for i := 0; i < n; i++ {
		if e := entries[(start+i)%n]; e.tryAcquire() {
			return e
		}
	}
	return nil
}
