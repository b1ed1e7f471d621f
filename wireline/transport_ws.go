// Copyright 2025 The Wireline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package wireline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wireline-go/wireline/internal/util"
)

// wsSubprotocol is negotiated during the WebSocket upgrade so that
// unrelated WebSocket traffic on the same port is never mistaken for a
// wireline connection.
const wsSubprotocol = "wireline"

// WebSocketClientTransport dials a WebSocket server and speaks the wireline
// wire protocol (binary frames) over it.
type WebSocketClientTransport struct {
	// URL is the WebSocket server URL (e.g. "wss://example.com/wireline").
	URL string
	// Dialer is the WebSocket dialer to use. If nil, a default dialer is
	// used.
	Dialer *websocket.Dialer
	// Header specifies additional HTTP headers for the handshake.
	Header http.Header
}

// Connect implements ClientTransport.
func (t *WebSocketClientTransport) Connect(ctx context.Context) (Connection, error) {
	dialer := t.Dialer
	if dialer == nil {
		d := *websocket.DefaultDialer
		dialer = &d
	}
	dialer.Subprotocols = []string{wsSubprotocol}

	conn, resp, err := dialer.DialContext(ctx, t.URL, t.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("wireline: websocket dial failed: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("wireline: websocket dial failed: %w", err)
	}
	return &wsConn{conn: conn}, nil
}

// wsConn adapts a *websocket.Conn to the Connection interface. Authentication
// payloads travel as the first binary message inside this channel, so they
// are TLS-encrypted along with everything else: there is nothing
// special-cased here about the first frame.
type wsConn struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
}

// Read implements Connection.
func (c *wsConn) Read(ctx context.Context) ([]byte, error) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			c.conn.Close()
		case <-done:
		}
	}()

	msgType, data, err := c.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("wireline: websocket read: %w", err)
	}
	if msgType != websocket.BinaryMessage {
		return nil, fmt.Errorf("wireline: unexpected websocket message type %d (want binary)", msgType)
	}
	return data, nil
}

// Write implements Connection.
func (c *wsConn) Write(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetWriteDeadline(deadline)
		defer c.conn.SetWriteDeadline(time.Time{})
	}
	if err := c.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return fmt.Errorf("wireline: websocket write: %w", err)
	}
	return nil
}

// Close implements Connection.
func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.Close()
	})
	return err
}

// WebSocketServerTransport upgrades incoming HTTP requests to WebSocket
// connections speaking the wireline wire protocol. Wire it into a Server via
// Server.Accept in a http.HandlerFunc, e.g.:
//
//	t := wireline.NewWebSocketServerTransport(nil)
//	http.HandleFunc("/wireline", func(w http.ResponseWriter, r *http.Request) {
//	    conn, err := t.Upgrade(w, r)
//	    if err != nil { return }
//	    server.Accept(context.Background(), conn)
//	})
type WebSocketServerTransport struct {
	upgrader websocket.Upgrader
}

// NewWebSocketServerTransport creates a WebSocketServerTransport. checkOrigin
// is passed through to the underlying websocket.Upgrader; if nil, defaultCheckOrigin
// is used instead of gorilla's own wide-open default (callers serving across
// the public internet should still supply an explicit policy).
func NewWebSocketServerTransport(checkOrigin func(r *http.Request) bool) *WebSocketServerTransport {
	if checkOrigin == nil {
		checkOrigin = defaultCheckOrigin
	}
	return &WebSocketServerTransport{
		upgrader: websocket.Upgrader{
			Subprotocols: []string{wsSubprotocol},
			CheckOrigin:  checkOrigin,
		},
	}
}

// defaultCheckOrigin allows same-origin requests and, for loopback listeners
// (the typical "go run" dev setup), any loopback origin regardless of port,
// since local dev servers routinely run their UI and their wireline endpoint
// on different ports of 127.0.0.1/localhost.
func defaultCheckOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Host == r.Host {
		return true
	}
	return util.IsLoopback(u.Host) && util.IsLoopback(r.Host)
}

// Upgrade upgrades a single HTTP request to a WebSocket Connection.
func (t *WebSocketServerTransport) Upgrade(w http.ResponseWriter, r *http.Request) (Connection, error) {
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("wireline: websocket upgrade failed: %w", err)
	}
	return &wsConn{conn: conn}, nil
}
