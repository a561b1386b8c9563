// Package transport provides the connection-establishment collaborators
// handed to the pool: dialers that create and destroy the underlying
// resources. The pool never dials by itself; it only reserves capacity
// and leaves the blocking work here.
package transport

import (
	"context"
	"net"
	"time"
)

// TCPDialer establishes plain TCP connections to a fixed address. It
// implements pool.Factory[net.Conn].
type TCPDialer struct {
	Addr    string
	Timeout time.Duration
}

// NewTCPDialer returns a dialer for the given address
func NewTCPDialer(addr string, timeout time.Duration) *TCPDialer {
	return &TCPDialer{Addr: addr, Timeout: timeout}
}

// Create dials the configured address
func (d *TCPDialer) Create(ctx context.Context) (net.Conn, error) {
	dialer := net.Dialer{Timeout: d.Timeout}
	return dialer.DialContext(ctx, "tcp", d.Addr)
}

// Destroy closes the connection
func (d *TCPDialer) Destroy(conn net.Conn) error {
	return conn.Close()
}
