// Copyright 2025 The Wireline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package wireline

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
)

// memConn frames an underlying net.Conn (typically one half of a net.Pipe)
// with a 4-byte big-endian length prefix per frame, giving it the same
// whole-frame Read/Write semantics as the WebSocket transport.
type memConn struct {
	conn      net.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
}

// NewInMemoryConnPair returns two connected, in-process Connections
// suitable for deterministic tests.
func NewInMemoryConnPair() (client, server Connection) {
	a, b := net.Pipe()
	return &memConn{conn: a}, &memConn{conn: b}
}

func (c *memConn) Read(ctx context.Context) ([]byte, error) {
	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		var lenBuf [4]byte
		if _, err := io.ReadFull(c.conn, lenBuf[:]); err != nil {
			done <- result{nil, err}
			return
		}
		n := binary.BigEndian.Uint32(lenBuf[:])
		data := make([]byte, n)
		if _, err := io.ReadFull(c.conn, data); err != nil {
			done <- result{nil, err}
			return
		}
		done <- result{data, nil}
	}()

	select {
	case <-ctx.Done():
		c.conn.Close()
		<-done
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			if r.err == io.EOF {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("wireline: in-memory read: %w", r.err)
		}
		return r.data, nil
	}
}

func (c *memConn) Write(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(frame)))

	type writeResult struct{ err error }
	done := make(chan writeResult, 1)
	go func() {
		if _, err := c.conn.Write(lenBuf[:]); err != nil {
			done <- writeResult{err}
			return
		}
		_, err := c.conn.Write(frame)
		done <- writeResult{err}
	}()

	select {
	case <-ctx.Done():
		c.conn.Close()
		return ctx.Err()
	case r := <-done:
		if r.err != nil {
			return fmt.Errorf("wireline: in-memory write: %w", r.err)
		}
		return nil
	}
}

func (c *memConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.Close()
	})
	return err
}
