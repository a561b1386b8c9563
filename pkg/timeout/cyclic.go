package timeout

import (
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"netpool/pkg/errors"
	"netpool/pkg/logger"
	"netpool/pkg/timer"
)

// notSet marks an instance with no armed deadline
const notSet = math.MaxInt64

// CyclicTimeout tracks a single recurring deadline for one entity, such
// as an idle pooled connection. Schedule moves the deadline forward with
// a plain atomic store; the pending wake-up task is reused in place and
// only replaced when a strictly earlier wake-up is needed.
//
// At most one wake-up task is outstanding at any time. A task that fires
// and finds the live deadline pushed further out re-arms itself for the
// remainder instead of invoking the expiry hook, so overwritten
// deadlines never fire.
type CyclicTimeout struct {
	source    timer.Source
	onExpired func()
	onError   func(error)
	log       *logger.Logger

	// epoch anchors the monotonic clock for this instance
	epoch time.Time

	// deadline holds nanoseconds since epoch, or notSet
	deadline atomic.Int64

	// wakeup holds the single outstanding scheduled task, if any
	wakeup atomic.Pointer[wakeup]

	destroyed atomic.Bool
}

// wakeup pairs a scheduled task with the deadline it was armed for.
// The task is stored after the wakeup is published, so it is held in an
// atomic value and cancelled through cancelTask.
type wakeup struct {
	ct   *CyclicTimeout
	at   int64
	task atomic.Value // timer.Task
}

func (w *wakeup) cancelTask() {
	if t, ok := w.task.Load().(timer.Task); ok {
		t.Cancel()
	}
}

// New returns a CyclicTimeout that invokes onExpired when an armed
// deadline elapses with no further reschedule
func New(src timer.Source, onExpired func()) *CyclicTimeout {
	ct := &CyclicTimeout{
		source:    src,
		onExpired: onExpired,
		log:       logger.Get(),
		epoch:     time.Now(),
	}
	ct.deadline.Store(notSet)
	return ct
}

// SetErrorHandler installs a handler for expiry hook panics. Must be
// called before the first Schedule.
func (ct *CyclicTimeout) SetErrorHandler(fn func(error)) {
	ct.onError = fn
}

func (ct *CyclicTimeout) now() int64 {
	return time.Since(ct.epoch).Nanoseconds()
}

// Schedule arms or advances the deadline to now+d. It reports whether a
// previously armed deadline was replaced. Safe for concurrent use; the
// stored deadline is always the most recently requested one.
func (ct *CyclicTimeout) Schedule(d time.Duration) bool {
	if ct.destroyed.Load() {
		return false
	}
	at := ct.now() + d.Nanoseconds()
	replaced := ct.deadline.Swap(at) != notSet
	ct.arm(at)
	return replaced
}

// Cancel clears the deadline. A wake-up already in flight discovers the
// clear and does nothing. Idempotent.
func (ct *CyclicTimeout) Cancel() {
	ct.deadline.Store(notSet)
}

// Destroy cancels the deadline and releases the pending wake-up task.
// Schedule calls after Destroy arm nothing.
func (ct *CyclicTimeout) Destroy() {
	ct.destroyed.Store(true)
	ct.deadline.Store(notSet)
	if w := ct.wakeup.Swap(nil); w != nil {
		w.cancelTask()
	}
}

// arm ensures a wake-up exists that fires at or before the given
// deadline. An existing earlier wake-up is left alone; it will re-arm
// for the remainder when it fires. The wake-up is published before its
// task is scheduled so a near-immediate fire always finds itself
// installed; a wake-up that loses its installed status before firing is
// inert (fire's identity check fails) and is cancelled best-effort.
func (ct *CyclicTimeout) arm(at int64) {
	for {
		if ct.destroyed.Load() {
			return
		}
		w := ct.wakeup.Load()
		if w != nil && w.at <= at {
			return
		}
		nw := &wakeup{ct: ct, at: at}
		if !ct.wakeup.CompareAndSwap(w, nw) {
			continue
		}
		if w != nil {
			w.cancelTask()
		}
		nw.task.Store(ct.source.ScheduleOnce(time.Duration(at-ct.now()), nw.fire))
		// A racing Destroy or replacement may have uninstalled nw
		// between publish and schedule; reap the stray task
		if ct.destroyed.Load() || ct.wakeup.Load() != nw {
			nw.cancelTask()
		}
		return
	}
}

// fire runs on the timer source goroutine when a wake-up elapses
func (w *wakeup) fire() {
	ct := w.ct
	// A superseded wake-up is not the installed one anymore; ignore it
	if !ct.wakeup.CompareAndSwap(w, nil) {
		return
	}
	now := ct.now()
	for {
		at := ct.deadline.Load()
		switch {
		case at == notSet:
			// cancelled since arming
			return
		case at <= now:
			if ct.deadline.CompareAndSwap(at, notSet) {
				ct.expire()
				return
			}
		default:
			// deadline was pushed out; re-arm for the remainder
			ct.arm(at)
			return
		}
	}
}

// expire invokes the hook, containing panics so the instance stays
// usable and destroyable afterwards
func (ct *CyclicTimeout) expire() {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: %v", errors.ErrTimeoutCallback, r)
			if ct.onError != nil {
				ct.onError(err)
				return
			}
			ct.log.ErrorWithErr("timeout expiry hook panicked", err)
		}
	}()
	ct.onExpired()
}
