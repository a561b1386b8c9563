package errors

import "errors"

// Pool lifecycle errors
var (
	// ErrPoolClosed is returned by any pool operation after Close
	ErrPoolClosed = errors.New("pool closed")

	// ErrNoCapacity is returned when no entry is admissible and the pool
	// is at its entry limit; callers may retry, queue or fail fast
	ErrNoCapacity = errors.New("pool at capacity")
)

// Lease and slot misuse errors
var (
	// ErrMultiplexLimit is returned when an acquire would push an entry
	// past its multiplex limit
	ErrMultiplexLimit = errors.New("multiplex limit exceeded")

	// ErrLeaseReleased is returned when a lease is released more than once
	ErrLeaseReleased = errors.New("lease already released")

	// ErrSlotResolved is returned when a reserved slot is attached or
	// aborted more than once
	ErrSlotResolved = errors.New("slot already resolved")

	// ErrEntryRemoved is returned when an operation targets an entry that
	// has already been removed from the pool
	ErrEntryRemoved = errors.New("entry removed")
)

// Collaborator errors
var (
	// ErrResourceCreation is returned when the connection factory fails
	ErrResourceCreation = errors.New("resource creation failed")

	// ErrTimeoutCallback is reported when a timeout expiry hook panics
	ErrTimeoutCallback = errors.New("timeout callback failed")
)

// Configuration errors
var (
	// ErrConfigNotFound is returned when configuration file is not found
	ErrConfigNotFound = errors.New("configuration not found")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")
)
