// Package timer provides the wake-up scheduling facility used by the
// timeout and pool packages. It abstracts one-shot callback scheduling
// so tests can substitute a deterministic source.
package timer

import "time"

// Task is a handle to a scheduled wake-up callback
type Task interface {
	// Cancel stops the callback if it has not fired yet and reports
	// whether it was prevented from running
	Cancel() bool
}

// Source schedules one-shot wake-up callbacks after a delay
type Source interface {
	ScheduleOnce(d time.Duration, fn func()) Task
}

// SystemSource schedules callbacks on the runtime timer heap
type SystemSource struct{}

// NewSystemSource returns a Source backed by time.AfterFunc
func NewSystemSource() SystemSource {
	return SystemSource{}
}

// ScheduleOnce runs fn once after d elapses
func (SystemSource) ScheduleOnce(d time.Duration, fn func()) Task {
	if d < 0 {
		d = 0
	}
	return systemTask{t: time.AfterFunc(d, fn)}
}

type systemTask struct {
	t *time.Timer
}

func (st systemTask) Cancel() bool {
	return st.t.Stop()
}
