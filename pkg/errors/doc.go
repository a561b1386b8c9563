// Package errors provides standardized error definitions for the netpool
// library. All error definitions are centralized here to ensure consistency
// across the pool, timeout and transport packages.
package errors
