package transport

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// WSDialer establishes WebSocket connections to a fixed URL. It
// implements pool.Factory[*websocket.Conn]; multiplexed holders share
// one socket, which is what the pool's multiplex limit is for.
type WSDialer struct {
	URL     string
	Header  http.Header
	Timeout time.Duration
}

// NewWSDialer returns a dialer for the given ws:// or wss:// URL
func NewWSDialer(url string, timeout time.Duration) *WSDialer {
	return &WSDialer{URL: url, Timeout: timeout}
}

// Create performs the WebSocket handshake
func (d *WSDialer) Create(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: d.Timeout}
	conn, resp, err := dialer.DialContext(ctx, d.URL, d.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Destroy sends a close frame and drops the socket
func (d *WSDialer) Destroy(conn *websocket.Conn) error {
	deadline := time.Now().Add(time.Second)
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return conn.Close()
}
