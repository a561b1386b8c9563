package pool

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"netpool/pkg/errors"
)

// countingFactory hands out integer resources and records destructions
type countingFactory struct {
	created   atomic.Int32
	destroyed atomic.Int32
	failNext  atomic.Bool
}

func (f *countingFactory) Create(ctx context.Context) (int, error) {
	if f.failNext.Load() {
		return 0, fmt.Errorf("dial refused")
	}
	return int(f.created.Add(1)), nil
}

func (f *countingFactory) Destroy(res int) error {
	f.destroyed.Add(1)
	return nil
}

func newTestPool(t *testing.T, cfg Config, factory *countingFactory) *Pool[int] {
	t.Helper()
	p, err := New(cfg, WithFactory[int](factory))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(p.Close)
	return p
}

// lease acquires through the Get facade, failing the test on error
func lease(t *testing.T, p *Pool[int]) *Lease[int] {
	t.Helper()
	l, err := p.Get(context.Background())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	return l
}

// TestAcquireReservesSlot tests the reserve-then-attach creation flow
func TestAcquireReservesSlot(t *testing.T) {
	p := newTestPool(t, Config{MaxEntries: 2, MaxMultiplex: 1}, &countingFactory{})

	l, slot, err := p.Acquire()
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if l != nil {
		t.Fatal("empty pool cannot hand out a lease")
	}
	if slot == nil {
		t.Fatal("expected a reserved slot")
	}
	if got := slot.Entry().State(); got != StateCreating {
		t.Errorf("reserved entry state = %v, want creating", got)
	}
	if got := p.Stats().Reserved; got != 1 {
		t.Errorf("reserved = %d, want 1", got)
	}

	l, err = slot.Created(42)
	if err != nil {
		t.Fatalf("Created failed: %v", err)
	}
	if got := l.Resource(); got != 42 {
		t.Errorf("leased resource = %d, want 42", got)
	}
	if got := l.Entry().State(); got != StateActive {
		t.Errorf("attached entry state = %v, want active", got)
	}

	st := p.Stats()
	if st.Entries != 1 || st.Reserved != 0 {
		t.Errorf("entries=%d reserved=%d, want 1/0", st.Entries, st.Reserved)
	}
}

// TestSlotResolvesOnce tests that Created and Abort pair exactly once
func TestSlotResolvesOnce(t *testing.T) {
	p := newTestPool(t, Config{MaxEntries: 1, MaxMultiplex: 1}, &countingFactory{})

	_, slot, err := p.Acquire()
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if _, err := slot.Created(1); err != nil {
		t.Fatalf("Created failed: %v", err)
	}
	if _, err := slot.Created(2); !stderrors.Is(err, errors.ErrSlotResolved) {
		t.Errorf("second Created error = %v, want ErrSlotResolved", err)
	}
}

// TestSlotAbortReleasesReservation tests the failed-creation path
func TestSlotAbortReleasesReservation(t *testing.T) {
	p := newTestPool(t, Config{MaxEntries: 1, MaxMultiplex: 1}, &countingFactory{})

	_, slot, err := p.Acquire()
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	// The reservation holds the only capacity slot
	if _, _, err := p.Acquire(); !stderrors.Is(err, errors.ErrNoCapacity) {
		t.Errorf("acquire with reserved capacity error = %v, want ErrNoCapacity", err)
	}

	slot.Abort()
	if got := p.Stats().Reserved; got != 0 {
		t.Errorf("reserved after abort = %d, want 0", got)
	}

	// Capacity is available again
	if _, slot2, err := p.Acquire(); err != nil || slot2 == nil {
		t.Errorf("acquire after abort = (%v, %v), want a slot", slot2, err)
	}
}

// TestGetWrapsCreationFailure tests ErrResourceCreation propagation
func TestGetWrapsCreationFailure(t *testing.T) {
	factory := &countingFactory{}
	factory.failNext.Store(true)
	p := newTestPool(t, Config{MaxEntries: 1, MaxMultiplex: 1}, factory)

	_, err := p.Get(context.Background())
	if !stderrors.Is(err, errors.ErrResourceCreation) {
		t.Fatalf("Get error = %v, want ErrResourceCreation", err)
	}
	if got := p.Stats().Reserved; got != 0 {
		t.Errorf("reservation leaked on failed creation: reserved = %d", got)
	}

	// The original caller's retry succeeds
	factory.failNext.Store(false)
	if _, err := p.Get(context.Background()); err != nil {
		t.Errorf("retry after creation failure: %v", err)
	}
}

// TestSingleEntryContention tests maxEntries=1 maxMultiplex=1: one
// winner, one ErrNoCapacity, success after release
func TestSingleEntryContention(t *testing.T) {
	p := newTestPool(t, Config{MaxEntries: 1, MaxMultiplex: 1}, &countingFactory{})

	l1 := lease(t, p)
	if _, _, err := p.Acquire(); !stderrors.Is(err, errors.ErrNoCapacity) {
		t.Fatalf("second acquire error = %v, want ErrNoCapacity", err)
	}

	if err := l1.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	l2, slot, err := p.Acquire()
	if err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
	if l2 == nil || slot != nil {
		t.Fatal("acquire after release should reuse the idle entry")
	}
}

// TestMultiplexSharing tests four holders on one entry and rejection
// of the fifth when no capacity remains
func TestMultiplexSharing(t *testing.T) {
	p := newTestPool(t, Config{MaxEntries: 1, MaxMultiplex: 4}, &countingFactory{})

	first := lease(t, p)
	entry := first.Entry()
	leases := []*Lease[int]{first}
	for i := 0; i < 3; i++ {
		l := lease(t, p)
		if l.Entry() != entry {
			t.Fatalf("acquire %d landed on a different entry", i+2)
		}
		leases = append(leases, l)
	}

	if got := entry.Multiplex(); got != 4 {
		t.Errorf("multiplex = %d, want 4", got)
	}
	if _, _, err := p.Acquire(); !stderrors.Is(err, errors.ErrNoCapacity) {
		t.Errorf("fifth acquire error = %v, want ErrNoCapacity", err)
	}

	for _, l := range leases {
		if err := l.Release(); err != nil {
			t.Errorf("Release failed: %v", err)
		}
	}
	if got := entry.Multiplex(); got != 0 {
		t.Errorf("multiplex after releases = %d, want 0", got)
	}
}

// TestMultiplexRoutesToNewEntry tests that a full entry routes the next
// acquire to a fresh slot while capacity allows
func TestMultiplexRoutesToNewEntry(t *testing.T) {
	p := newTestPool(t, Config{MaxEntries: 2, MaxMultiplex: 2}, &countingFactory{})

	l1 := lease(t, p)
	l2 := lease(t, p)
	if l1.Entry() != l2.Entry() {
		t.Fatal("second acquire should multiplex onto the first entry")
	}

	l3 := lease(t, p)
	if l3.Entry() == l1.Entry() {
		t.Error("third acquire should have opened a new entry")
	}
}

// TestDirectAcquireLimit tests direct entry acquisition misuse
func TestDirectAcquireLimit(t *testing.T) {
	p := newTestPool(t, Config{MaxEntries: 1, MaxMultiplex: 2}, &countingFactory{})

	l := lease(t, p)
	entry := l.Entry()

	if _, err := entry.Acquire(); err != nil {
		t.Fatalf("direct acquire within limit failed: %v", err)
	}
	if _, err := entry.Acquire(); !stderrors.Is(err, errors.ErrMultiplexLimit) {
		t.Errorf("direct acquire past limit error = %v, want ErrMultiplexLimit", err)
	}
}

// TestDoubleRelease tests that a lease releases exactly once
func TestDoubleRelease(t *testing.T) {
	p := newTestPool(t, Config{MaxEntries: 1, MaxMultiplex: 1}, &countingFactory{})

	l := lease(t, p)
	if err := l.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if err := l.Release(); !stderrors.Is(err, errors.ErrLeaseReleased) {
		t.Errorf("double release error = %v, want ErrLeaseReleased", err)
	}
	if got := l.Entry().Multiplex(); got != 0 {
		t.Errorf("multiplex corrupted by double release: %d", got)
	}
}

// TestDeferredRemoval tests removal flagged while two holders are in
// flight: gone from selection at once, physically removed on the last
// release
func TestDeferredRemoval(t *testing.T) {
	factory := &countingFactory{}
	p := newTestPool(t, Config{MaxEntries: 1, MaxMultiplex: 2}, factory)

	l1 := lease(t, p)
	l2 := lease(t, p)
	entry := l1.Entry()

	if err := p.Remove(entry); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if got := entry.State(); got != StateRemoved {
		t.Errorf("state after flag = %v, want removed", got)
	}

	// Selection must skip the flagged entry: the pool is at capacity,
	// so the next acquire reserves nothing and reports no capacity
	if _, _, err := p.Acquire(); !stderrors.Is(err, errors.ErrNoCapacity) {
		t.Errorf("acquire on flagged entry error = %v, want ErrNoCapacity", err)
	}

	// In-flight holders keep their leases; nothing destroyed yet
	if err := l1.Release(); err != nil {
		t.Fatalf("first release failed: %v", err)
	}
	if got := factory.destroyed.Load(); got != 0 {
		t.Fatalf("destroyed after first release = %d, want 0", got)
	}

	if err := l2.Release(); err != nil {
		t.Fatalf("second release failed: %v", err)
	}
	if got := factory.destroyed.Load(); got != 1 {
		t.Errorf("destroyed after last release = %d, want 1", got)
	}
	if got := p.Stats().Entries; got != 0 {
		t.Errorf("entries after physical removal = %d, want 0", got)
	}
}

// TestRemoveIdleEntry tests immediate removal with no holders
func TestRemoveIdleEntry(t *testing.T) {
	factory := &countingFactory{}
	p := newTestPool(t, Config{MaxEntries: 1, MaxMultiplex: 1}, factory)

	l := lease(t, p)
	entry := l.Entry()
	if err := l.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	if err := p.Remove(entry); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if got := factory.destroyed.Load(); got != 1 {
		t.Errorf("destroyed = %d, want 1", got)
	}
	if err := p.Remove(entry); !stderrors.Is(err, errors.ErrEntryRemoved) {
		t.Errorf("second remove error = %v, want ErrEntryRemoved", err)
	}
}

// TestLeaseRemove tests flagging a broken resource through its lease
func TestLeaseRemove(t *testing.T) {
	factory := &countingFactory{}
	p := newTestPool(t, Config{MaxEntries: 1, MaxMultiplex: 1}, factory)

	l := lease(t, p)
	if err := l.Remove(); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if got := factory.destroyed.Load(); got != 0 {
		t.Fatalf("destroyed with the lease still held = %d, want 0", got)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if got := factory.destroyed.Load(); got != 1 {
		t.Errorf("destroyed after release = %d, want 1", got)
	}
}

// TestIdleTimeoutExpiresEntry tests timer-driven removal of an entry
// that stays fully idle past its idle budget
func TestIdleTimeoutExpiresEntry(t *testing.T) {
	factory := &countingFactory{}
	p := newTestPool(t, Config{
		MaxEntries:   2,
		MaxMultiplex: 1,
		IdleTimeout:  30 * time.Millisecond,
	}, factory)

	l := lease(t, p)
	if err := l.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for p.Stats().Entries != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	st := p.Stats()
	if st.Entries != 0 {
		t.Fatalf("idle entry not expired, entries = %d", st.Entries)
	}
	if st.Expired != 1 {
		t.Errorf("expired counter = %d, want 1", st.Expired)
	}
	if got := factory.destroyed.Load(); got != 1 {
		t.Errorf("destroyed = %d, want 1", got)
	}
}

// TestIdleTimeoutSkipsBusyEntry tests that a re-acquired entry survives
// its previously armed idle deadline
func TestIdleTimeoutSkipsBusyEntry(t *testing.T) {
	p := newTestPool(t, Config{
		MaxEntries:   1,
		MaxMultiplex: 1,
		IdleTimeout:  30 * time.Millisecond,
	}, &countingFactory{})

	l := lease(t, p)
	if err := l.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	// Re-acquire before the idle deadline elapses
	l = lease(t, p)
	time.Sleep(100 * time.Millisecond)

	if got := p.Stats().Entries; got != 1 {
		t.Fatalf("busy entry was expired, entries = %d", got)
	}
	if got := l.Entry().State(); got != StateActive {
		t.Errorf("state = %v, want active", got)
	}
}

// TestClosedPoolFailsFast tests terminal behavior after Close
func TestClosedPoolFailsFast(t *testing.T) {
	factory := &countingFactory{}
	p := newTestPool(t, Config{MaxEntries: 2, MaxMultiplex: 1}, factory)

	l := lease(t, p)
	p.Close()

	if _, _, err := p.Acquire(); !stderrors.Is(err, errors.ErrPoolClosed) {
		t.Errorf("acquire after close error = %v, want ErrPoolClosed", err)
	}
	if _, err := p.Get(context.Background()); !stderrors.Is(err, errors.ErrPoolClosed) {
		t.Errorf("get after close error = %v, want ErrPoolClosed", err)
	}

	// The in-flight lease drains through and completes removal
	if err := l.Release(); err != nil {
		t.Fatalf("release after close failed: %v", err)
	}
	if got := factory.destroyed.Load(); got != 1 {
		t.Errorf("destroyed after drain = %d, want 1", got)
	}
	if got := p.Stats().Entries; got != 0 {
		t.Errorf("entries after drain = %d, want 0", got)
	}
}

// TestCreatedAfterCloseDestroysResource tests the attach-vs-close race
// resolution: the fresh resource must not leak
func TestCreatedAfterCloseDestroysResource(t *testing.T) {
	factory := &countingFactory{}
	p := newTestPool(t, Config{MaxEntries: 1, MaxMultiplex: 1}, factory)

	_, slot, err := p.Acquire()
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	p.Close()

	if _, err := slot.Created(7); !stderrors.Is(err, errors.ErrPoolClosed) {
		t.Errorf("Created after close error = %v, want ErrPoolClosed", err)
	}
	if got := factory.destroyed.Load(); got != 1 {
		t.Errorf("fresh resource not destroyed, destroyed = %d", got)
	}
	if got := p.Stats().Reserved; got != 0 {
		t.Errorf("reservation leaked through close, reserved = %d", got)
	}
}

// TestRemoveIdleSweep tests the forced idle sweep operation
func TestRemoveIdleSweep(t *testing.T) {
	p := newTestPool(t, Config{MaxEntries: 3, MaxMultiplex: 1}, &countingFactory{})

	l1 := lease(t, p)
	l2 := lease(t, p)
	l3 := lease(t, p)
	l1.Release()
	l2.Release()

	if got := p.RemoveIdle(); got != 2 {
		t.Errorf("RemoveIdle = %d, want 2", got)
	}
	st := p.Stats()
	if st.Entries != 1 || st.Active != 1 {
		t.Errorf("entries=%d active=%d after sweep, want 1/1", st.Entries, st.Active)
	}
	l3.Release()
}

// TestConcurrentAcquireRelease hammers the pool and checks the
// capacity and multiplex invariants at every observable point
func TestConcurrentAcquireRelease(t *testing.T) {
	cfg := Config{MaxEntries: 4, MaxMultiplex: 3, Strategy: StrategyRandom}
	p := newTestPool(t, cfg, &countingFactory{})

	var violations atomic.Int32
	check := func() {
		st := p.Stats()
		if st.Entries+st.Reserved > cfg.MaxEntries {
			violations.Add(1)
		}
		if st.InUse > st.Entries*cfg.MaxMultiplex {
			violations.Add(1)
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				l, err := p.Get(context.Background())
				if err != nil {
					if !stderrors.Is(err, errors.ErrNoCapacity) {
						t.Errorf("unexpected error: %v", err)
						return
					}
					continue
				}
				check()
				if err := l.Release(); err != nil {
					t.Errorf("release failed: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	if got := violations.Load(); got != 0 {
		t.Errorf("observed %d invariant violations", got)
	}
	for _, e := range p.snapshot() {
		if n := e.Multiplex(); n != 0 {
			t.Errorf("entry %d leaked multiplex count %d", e.ID(), n)
		}
	}
}

// TestConfigValidation tests constructor rejection of bad settings
func TestConfigValidation(t *testing.T) {
	cases := []Config{
		{MaxEntries: 0, MaxMultiplex: 1},
		{MaxEntries: 1, MaxMultiplex: 0},
		{MaxEntries: 1, MaxMultiplex: 1, IdleTimeout: -time.Second},
	}
	for i, cfg := range cases {
		if _, err := New[int](cfg); !stderrors.Is(err, errors.ErrInvalidConfig) {
			t.Errorf("case %d: error = %v, want ErrInvalidConfig", i, err)
		}
	}
}
