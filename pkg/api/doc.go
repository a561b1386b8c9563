// Package api exposes pool statistics and health over HTTP. It is a
// read-mostly observability surface; nothing here feeds back into pool
// selection or capacity decisions.
package api
