// Copyright 2025 The Wireline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package wireline

import "sync"

// outboundItem is one queued egress frame. requestID is zero for plain
// messages and heartbeats, and nonzero for a request frame — the writer
// loop uses it to consult the request registry (for an abort check) before
// writing, and to report the outcome after.
type outboundItem struct {
	frame     []byte
	requestID RequestID
}

// clientConn bundles one physical connection's egress buffer with the
// session identity the client locally assigned it. A fresh clientConn is
// created per connect attempt.
type clientConn struct {
	conn      Connection
	sessionID SessionID

	egress chan outboundItem
	done   chan struct{}

	closeOnce sync.Once
}

func newClientConn(conn Connection, sessionID SessionID) *clientConn {
	return &clientConn{
		conn:      conn,
		sessionID: sessionID,
		egress:    make(chan outboundItem, 64),
		done:      make(chan struct{}),
	}
}

// tryEnqueue offers item to the egress buffer without blocking. It reports
// false if the connection is already closed or the buffer is full.
func (c *clientConn) tryEnqueue(item outboundItem) bool {
	select {
	case c.egress <- item:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

// close marks the connection done, idempotently.
func (c *clientConn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}
