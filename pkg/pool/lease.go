package pool

import (
	"sync/atomic"

	"netpool/pkg/errors"
)

// Lease is a holder's temporary right to use an entry's resource. It
// must be released exactly once.
type Lease[T any] struct {
	entry    *Entry[T]
	released atomic.Bool
}

// Resource returns the leased resource
func (l *Lease[T]) Resource() T {
	return l.entry.resource
}

// Entry returns the entry backing this lease
func (l *Lease[T]) Entry() *Entry[T] {
	return l.entry
}

// Release returns the lease to the pool
func (l *Lease[T]) Release() error {
	return l.entry.pool.Release(l)
}

// Remove flags the leased entry for removal, typically because the
// holder found the resource broken. The lease must still be released.
func (l *Lease[T]) Remove() error {
	return l.entry.pool.Remove(l.entry)
}

// Slot is a reserved capacity slot awaiting a resource. The caller
// establishes the underlying connection out-of-band and either attaches
// it with Created or gives the reservation back with Abort. A slot
// resolves exactly once.
type Slot[T any] struct {
	pool     *Pool[T]
	entry    *Entry[T]
	resolved atomic.Bool
}

// Entry returns the reserved entry, in creating state until attached
func (s *Slot[T]) Entry() *Entry[T] {
	return s.entry
}

// Created attaches the established resource to the reserved slot and
// returns the first lease on it
func (s *Slot[T]) Created(res T) (*Lease[T], error) {
	if !s.resolved.CompareAndSwap(false, true) {
		return nil, errors.ErrSlotResolved
	}
	return s.pool.attach(s.entry, res)
}

// Abort releases the reservation after a failed resource creation.
// Aborting an already resolved slot is a no-op.
func (s *Slot[T]) Abort() {
	if !s.resolved.CompareAndSwap(false, true) {
		return
	}
	s.entry.state.Store(flagRemoved)
	s.pool.unreserve()
}
