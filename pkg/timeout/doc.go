// Package timeout implements a cyclic deadline tracker. Many callers can
// repeatedly push out a single deadline cheaply: rescheduling updates an
// atomic deadline instead of cancelling and recreating the underlying
// timer task, so at most one wake-up is ever pending per instance.
package timeout
