// Package pool provides a pooled, multiplexed resource manager for
// network connections. Entries can be shared by several concurrent
// holders up to a multiplex limit, acquisition is lock-free on the hot
// path, and fully idle entries are expired through a per-entry cyclic
// timeout instead of periodic sweeps.
package pool
