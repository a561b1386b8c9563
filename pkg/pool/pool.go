package pool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"netpool/pkg/errors"
	"netpool/pkg/logger"
	"netpool/pkg/timeout"
	"netpool/pkg/timer"
)

// Pool owns a bounded set of entries and coordinates acquire, release
// and removal under concurrent load. Acquire and release on existing
// entries are lock-free; the pool mutex only guards entry-set mutation
// and capacity reservation.
type Pool[T any] struct {
	cfg       Config
	log       *logger.Logger
	source    timer.Source
	factory   Factory[T]
	destroyer func(T) error

	// entries is a copy-on-write snapshot; readers never block writers
	entries atomic.Pointer[[]*Entry[T]]
	mu      sync.Mutex

	closed   atomic.Bool
	reserved atomic.Int32
	nextID   atomic.Uint64
	cursor   atomic.Uint64

	acquires atomic.Uint64
	hits     atomic.Uint64
	misses   atomic.Uint64
	created  atomic.Uint64
	expired  atomic.Uint64
	removed  atomic.Uint64
}

// Option configures optional pool collaborators
type Option[T any] func(*Pool[T])

// WithFactory installs the resource factory used by Get and, unless
// overridden by WithDestroyer, the destroyer used on removal
func WithFactory[T any](f Factory[T]) Option[T] {
	return func(p *Pool[T]) {
		p.factory = f
	}
}

// WithDestroyer installs the destructor invoked when an entry's
// resource is removed from the pool
func WithDestroyer[T any](fn func(T) error) Option[T] {
	return func(p *Pool[T]) {
		p.destroyer = fn
	}
}

// WithTimerSource substitutes the wake-up scheduler used for idle
// timeouts; tests install a deterministic source here
func WithTimerSource[T any](src timer.Source) Option[T] {
	return func(p *Pool[T]) {
		p.source = src
	}
}

// WithLogger substitutes the pool's logger
func WithLogger[T any](l *logger.Logger) Option[T] {
	return func(p *Pool[T]) {
		p.log = l
	}
}

// New returns a pool for the given configuration
func New[T any](cfg Config, opts ...Option[T]) (*Pool[T], error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	p := &Pool[T]{
		cfg:    cfg,
		log:    logger.Get(),
		source: timer.NewSystemSource(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.destroyer == nil && p.factory != nil {
		p.destroyer = p.factory.Destroy
	}

	empty := make([]*Entry[T], 0, cfg.MaxEntries)
	p.entries.Store(&empty)
	return p, nil
}

func (p *Pool[T]) snapshot() []*Entry[T] {
	return *p.entries.Load()
}

// Acquire hands out a lease on an existing entry, or a reserved slot
// when the caller should establish a new resource, or ErrNoCapacity
// when the pool is full with nothing admissible. Queuing on
// ErrNoCapacity is the caller's policy, not the pool's.
func (p *Pool[T]) Acquire() (*Lease[T], *Slot[T], error) {
	if p.closed.Load() {
		return nil, nil, errors.ErrPoolClosed
	}
	p.acquires.Add(1)

	if e := p.selectEntry(p.snapshot()); e != nil {
		p.hits.Add(1)
		return &Lease[T]{entry: e}, nil, nil
	}

	p.mu.Lock()
	if p.closed.Load() {
		p.mu.Unlock()
		return nil, nil, errors.ErrPoolClosed
	}
	if int(p.reserved.Load())+len(p.snapshot()) >= p.cfg.MaxEntries {
		p.mu.Unlock()
		p.misses.Add(1)
		return nil, nil, errors.ErrNoCapacity
	}
	p.reserved.Add(1)
	p.mu.Unlock()

	e := &Entry[T]{
		id:           p.nextID.Add(1),
		pool:         p,
		maxMultiplex: p.cfg.MaxMultiplex,
	}
	e.state.Store(flagCreating)
	return nil, &Slot[T]{pool: p, entry: e}, nil
}

// Get acquires a lease, dialing a new resource through the configured
// factory when the pool hands back a slot. The dial happens outside the
// pool's critical sections.
func (p *Pool[T]) Get(ctx context.Context) (*Lease[T], error) {
	lease, slot, err := p.Acquire()
	if err != nil {
		return nil, err
	}
	if lease != nil {
		return lease, nil
	}
	if p.factory == nil {
		slot.Abort()
		return nil, fmt.Errorf("%w: no factory configured", errors.ErrResourceCreation)
	}
	res, err := p.factory.Create(ctx)
	if err != nil {
		slot.Abort()
		return nil, fmt.Errorf("%w: %v", errors.ErrResourceCreation, err)
	}
	return slot.Created(res)
}

// attach completes a reservation: creating -> idle -> active with the
// first lease taken
func (p *Pool[T]) attach(e *Entry[T], res T) (*Lease[T], error) {
	e.resource = res
	e.idle = timeout.New(p.source, func() {
		p.expireIdle(e)
	})

	p.mu.Lock()
	if p.closed.Load() {
		p.mu.Unlock()
		e.state.Store(flagRemoved)
		p.unreserve()
		e.idle.Destroy()
		p.destroyResource(res)
		return nil, errors.ErrPoolClosed
	}
	e.state.Store(1)
	cur := p.snapshot()
	next := make([]*Entry[T], len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, e)
	// Reservation is given back before the entry becomes visible so
	// observers never count the same slot twice
	p.reserved.Add(-1)
	p.entries.Store(&next)
	p.mu.Unlock()

	p.created.Add(1)
	p.log.Debug("pool entry attached", "entry", e.id, "entries", len(next))
	return &Lease[T]{entry: e}, nil
}

func (p *Pool[T]) unreserve() {
	p.reserved.Add(-1)
}

// Release returns a lease. A release that brings the entry fully idle
// arms its idle timeout; one that completes a deferred removal removes
// the entry instead.
func (p *Pool[T]) Release(l *Lease[T]) error {
	if !l.released.CompareAndSwap(false, true) {
		return errors.ErrLeaseReleased
	}
	idle, removed := l.entry.release()
	switch {
	case removed:
		p.removeEntry(l.entry)
	case idle && p.cfg.IdleTimeout > 0:
		l.entry.idle.Schedule(p.cfg.IdleTimeout)
	}
	return nil
}

// Remove flags the entry for removal. With no holders in flight it is
// removed immediately; otherwise it disappears from selection now and
// is physically removed on the release that brings its count to zero.
func (p *Pool[T]) Remove(e *Entry[T]) error {
	removeNow, already := e.flagRemove()
	if already {
		return errors.ErrEntryRemoved
	}
	if removeNow {
		p.removeEntry(e)
	}
	return nil
}

// expireIdle is the idle timeout hook: it removes the entry only if it
// is still fully idle at expiry time
func (p *Pool[T]) expireIdle(e *Entry[T]) {
	if !e.tryExpire() {
		return
	}
	p.expired.Add(1)
	p.log.Debug("pool entry expired idle", "entry", e.id)
	p.removeEntry(e)
}

// removeEntry physically removes a flagged entry. Exactly one caller
// reaches it per entry: the winner of the removed-flag CAS when the
// count is zero, or the release that brought the count to zero.
func (p *Pool[T]) removeEntry(e *Entry[T]) {
	p.mu.Lock()
	cur := p.snapshot()
	next := make([]*Entry[T], 0, len(cur))
	for _, x := range cur {
		if x != e {
			next = append(next, x)
		}
	}
	p.entries.Store(&next)
	p.mu.Unlock()

	if e.idle != nil {
		e.idle.Destroy()
	}
	p.destroyResource(e.resource)
	p.removed.Add(1)
	p.log.Debug("pool entry removed", "entry", e.id, "entries", len(next))
}

func (p *Pool[T]) destroyResource(res T) {
	if p.destroyer == nil {
		return
	}
	if err := p.destroyer(res); err != nil {
		p.log.ErrorWithErr("destroying pooled resource failed", err)
	}
}

// RemoveIdle removes every entry that is fully idle right now, without
// waiting for its idle timeout. Returns the number removed.
func (p *Pool[T]) RemoveIdle() int {
	n := 0
	for _, e := range p.snapshot() {
		if e.tryExpire() {
			p.removeEntry(e)
			n++
		}
	}
	return n
}

// Close removes every entry and shuts the pool down. Entries with
// holders in flight stay usable for them and are removed as their last
// leases land. Further acquires fail with ErrPoolClosed.
func (p *Pool[T]) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	// Serialize with attach so no entry slips in after the sweep
	p.mu.Lock()
	entries := p.snapshot()
	p.mu.Unlock()
	for _, e := range entries {
		if removeNow, already := e.flagRemove(); removeNow && !already {
			p.removeEntry(e)
		}
	}
	p.log.Info("pool closed", "strategy", p.cfg.Strategy.String())
}

// Closed reports whether Close has been called
func (p *Pool[T]) Closed() bool {
	return p.closed.Load()
}

// Stats returns a point-in-time snapshot of the pool counters
func (p *Pool[T]) Stats() Stats {
	entries := p.snapshot()
	st := Stats{
		Entries:      len(entries),
		Reserved:     int(p.reserved.Load()),
		MaxEntries:   p.cfg.MaxEntries,
		MaxMultiplex: p.cfg.MaxMultiplex,
		Strategy:     p.cfg.Strategy.String(),
		Acquires:     p.acquires.Load(),
		Hits:         p.hits.Load(),
		Misses:       p.misses.Load(),
		Created:      p.created.Load(),
		Expired:      p.expired.Load(),
		Removed:      p.removed.Load(),
	}
	for _, e := range entries {
		if n := e.Multiplex(); n > 0 {
			st.Active++
			st.InUse += n
		} else if e.State() == StateIdle {
			st.Idle++
		}
	}
	return st
}
