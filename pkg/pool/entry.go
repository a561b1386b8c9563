package pool

import (
	"sync/atomic"

	"netpool/pkg/errors"
	"netpool/pkg/timeout"
)

// State describes an entry's position in its lifecycle
type State int

const (
	StateCreating State = iota
	StateIdle
	StateActive
	StateRemoved
)

func (s State) String() string {
	switch s {
	case StateCreating:
		return "creating"
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Entry state is packed into one atomic word so acquire and release are
// single CAS operations: the low 32 bits hold the multiplex count, the
// flag bits above mark the creating and removed conditions.
const (
	flagCreating = int64(1) << 32
	flagRemoved  = int64(1) << 33
	countMask    = int64(1)<<32 - 1
)

// Entry wraps one pooled resource and its bookkeeping. The pool owns
// the entry's lifecycle; holders only ever own a lease on it.
type Entry[T any] struct {
	id           uint64
	pool         *Pool[T]
	resource     T
	maxMultiplex int

	state atomic.Int64

	// idle expires the entry after it stays fully idle too long
	idle *timeout.CyclicTimeout
}

// ID returns the entry's pool-assigned identity
func (e *Entry[T]) ID() uint64 {
	return e.id
}

// Resource returns the wrapped resource. The pool never interprets it.
func (e *Entry[T]) Resource() T {
	return e.resource
}

// State derives the lifecycle state from the packed state word
func (e *Entry[T]) State() State {
	s := e.state.Load()
	switch {
	case s&flagRemoved != 0:
		return StateRemoved
	case s&flagCreating != 0:
		return StateCreating
	case s&countMask == 0:
		return StateIdle
	default:
		return StateActive
	}
}

// Multiplex returns the current number of concurrent holders
func (e *Entry[T]) Multiplex() int {
	return int(e.state.Load() & countMask)
}

// Acquire takes an additional lease directly on this entry, bypassing
// strategy selection. Unlike selection, which simply skips inadmissible
// entries, direct misuse is reported: ErrMultiplexLimit at the limit,
// ErrEntryRemoved for a removed or still-creating entry.
func (e *Entry[T]) Acquire() (*Lease[T], error) {
	for {
		s := e.state.Load()
		if s&(flagCreating|flagRemoved) != 0 {
			return nil, errors.ErrEntryRemoved
		}
		if int(s&countMask) >= e.maxMultiplex {
			return nil, errors.ErrMultiplexLimit
		}
		if e.state.CompareAndSwap(s, s+1) {
			return &Lease[T]{entry: e}, nil
		}
	}
}

// tryAcquire is the selection gate: a stale snapshot pick that turns
// out removed or full just fails here and the strategy moves on
func (e *Entry[T]) tryAcquire() bool {
	for {
		s := e.state.Load()
		if s&(flagCreating|flagRemoved) != 0 {
			return false
		}
		if int(s&countMask) >= e.maxMultiplex {
			return false
		}
		if e.state.CompareAndSwap(s, s+1) {
			return true
		}
	}
}

// release drops one holder. It reports whether the entry became idle,
// and whether this release must complete a deferred removal.
func (e *Entry[T]) release() (idle, removed bool) {
	for {
		s := e.state.Load()
		if s&countMask == 0 {
			// lease double-release is caught before this point
			return false, false
		}
		ns := s - 1
		if e.state.CompareAndSwap(s, ns) {
			if ns&countMask != 0 {
				return false, false
			}
			return ns&flagRemoved == 0, ns&flagRemoved != 0
		}
	}
}

// flagRemove marks the entry removed so selection never returns it
// again. It reports whether the caller must physically remove the entry
// now (no holders in flight) and whether it was already flagged.
func (e *Entry[T]) flagRemove() (removeNow, already bool) {
	for {
		s := e.state.Load()
		if s&flagRemoved != 0 {
			return false, true
		}
		ns := s | flagRemoved
		if e.state.CompareAndSwap(s, ns) {
			return ns&countMask == 0 && ns&flagCreating == 0, false
		}
	}
}

// tryExpire transitions a fully idle entry to removed. A concurrently
// re-acquired entry is left alone; its next release re-arms the idle
// timeout.
func (e *Entry[T]) tryExpire() bool {
	for {
		s := e.state.Load()
		if s&(flagCreating|flagRemoved) != 0 || s&countMask != 0 {
			return false
		}
		if e.state.CompareAndSwap(s, s|flagRemoved) {
			return true
		}
	}
}
