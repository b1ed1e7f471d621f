// Copyright 2025 The Wireline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package wireline

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// session is the server-side state for one continuous transport connection.
// Its egress is serialized by a single writer goroutine draining a buffered
// channel; its ingress is decoded in receipt order by the read loop that
// owns it.
type session[Connect, CM, CReq, SM, SResp any] struct {
	id      SessionID
	conn    Connection
	pending *pendingStore
	limiter *sessionLimiter

	egress chan []byte
	done   chan struct{}

	closeOnce sync.Once

	server *Server[Connect, CM, CReq, SM, SResp]
}

func newSession[Connect, CM, CReq, SM, SResp any](id SessionID, conn Connection, cfg ServerConfig, srv *Server[Connect, CM, CReq, SM, SResp]) *session[Connect, CM, CReq, SM, SResp] {
	return &session[Connect, CM, CReq, SM, SResp]{
		id:      id,
		conn:    conn,
		pending: newPendingStore(),
		limiter: newSessionLimiter(cfg.RateLimit),
		egress:  make(chan []byte, 64),
		done:    make(chan struct{}),
		server:  srv,
	}
}

// enqueue schedules frame for the egress writer goroutine. Once the buffered
// channel fills, enqueue blocks the caller (wire-order backpressure).
func (s *session[Connect, CM, CReq, SM, SResp]) enqueue(ctx context.Context, frame []byte) error {
	select {
	case s.egress <- frame:
		return nil
	case <-s.done:
		return ErrDead
	case <-ctx.Done():
		return ctx.Err()
	}
}

// writerLoop drains egress and writes frames to the transport in order,
// until done is closed.
func (s *session[Connect, CM, CReq, SM, SResp]) writerLoop(logger *slog.Logger) {
	for {
		select {
		case <-s.done:
			return
		case frame := <-s.egress:
			if err := s.conn.Write(context.Background(), frame); err != nil {
				logger.Debug("wireline: session write failed", "session", s.id.String(), "err", err)
				s.close()
				return
			}
		}
	}
}

// heartbeatLoop sends a heartbeat-tagged frame every interval and marks the
// session dead if no inbound frame is observed within timeout. It does
// nothing if interval is zero, in which case the timeout is not enforced
// either; a zero timeout disables only the timeout check.
func (s *session[Connect, CM, CReq, SM, SResp]) heartbeatLoop(interval, timeout time.Duration, lastRead *lastReadClock) {
	if interval <= 0 {
		return
	}
	heartbeatFrame, err := encodeEnvelope(newServerHeartbeat[SM, SResp](), 0)
	if err != nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if timeout > 0 && time.Since(lastRead.get()) > timeout {
				s.close()
				return
			}
			select {
			case s.egress <- heartbeatFrame:
			case <-s.done:
				return
			}
		}
	}
}

// close marks the session done, idempotently. writerLoop (on a write
// failure) and heartbeatLoop (on a timeout) can both call this concurrently
// with a destroySession-triggered close from the read loop, so the guard
// must be a sync.Once rather than a done-channel check-then-close.
func (s *session[Connect, CM, CReq, SM, SResp]) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

// lastReadClock tracks the time of the most recent inbound frame, for
// heartbeat timeout detection.
type lastReadClock struct {
	ch chan time.Time
}

func newLastReadClock() *lastReadClock {
	c := &lastReadClock{ch: make(chan time.Time, 1)}
	c.ch <- time.Now()
	return c
}

func (c *lastReadClock) touch() {
	select {
	case <-c.ch:
	default:
	}
	c.ch <- time.Now()
}

func (c *lastReadClock) get() time.Time {
	t := <-c.ch
	c.ch <- t
	return t
}
