// Copyright 2025 The Wireline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package wireline

import (
	"crypto/tls"
	"math/rand"
	"time"
)

// RateLimitConfig bounds the rate of inbound frames a single session will
// accept before the server closes it with CloseRateLimited.
type RateLimitConfig struct {
	Period   time.Duration
	MaxCount int
}

// AcceptorConfig names how the server's connections are terminated. Go has
// exactly one idiomatic TLS stack (crypto/tls), so unlike the source's
// Rustls/Openssl split there are only two variants here. Server does not
// read it: Server.Accept is handed an already established Connection, and
// any TLS termination happens in whatever produced that Connection.
type AcceptorConfig interface {
	isAcceptorConfig()
}

// DefaultAcceptor names plaintext WebSocket (e.g. behind a TLS-terminating
// proxy, or for local development).
type DefaultAcceptor struct{}

func (DefaultAcceptor) isAcceptorConfig() {}

// TLSAcceptor names TLS termination with Config.
type TLSAcceptor struct {
	Config *tls.Config
}

func (TLSAcceptor) isAcceptorConfig() {}

// ServerConfig configures a Server.
type ServerConfig struct {
	// MaxConnections caps the number of concurrent live sessions. Zero means
	// unlimited.
	MaxConnections int
	// MaxMsgSize caps the size, in bytes, of any single envelope. Zero means
	// unlimited.
	MaxMsgSize int
	// RateLimit bounds inbound frames per session. The zero value disables
	// rate limiting.
	RateLimit RateLimitConfig
	// HeartbeatInterval is how often the server sends a heartbeat frame to
	// each session, whether or not other traffic is flowing. Zero disables
	// heartbeats.
	HeartbeatInterval time.Duration
	// HeartbeatTimeout is how long the server waits for any inbound frame
	// before treating a session as dead. It is checked on each heartbeat
	// tick, so it has no effect when HeartbeatInterval is zero. Zero disables
	// the timeout.
	HeartbeatTimeout time.Duration
	// Acceptor names plaintext or TLS termination. Server does not read
	// this field (see AcceptorConfig).
	Acceptor AcceptorConfig
	// Authenticator selects the authentication policy. Nil means AuthNone{}.
	Authenticator Authenticator
}

// Backoff computes the delay before the n'th (zero-indexed) reconnect
// attempt.
type Backoff interface {
	Delay(attempt int) time.Duration
}

// FixedBackoff reconnects after a constant interval, every attempt.
type FixedBackoff struct {
	Interval time.Duration
}

func (f FixedBackoff) Delay(int) time.Duration { return f.Interval }

// ExponentialBackoff doubles the delay each attempt, up to Max, with up to
// 50% jitter added.
type ExponentialBackoff struct {
	Initial time.Duration
	Max     time.Duration
	// rnd is overridable in tests for determinism; nil means a new
	// time-seeded source on each Delay call.
	rnd *rand.Rand
}

func (e ExponentialBackoff) Delay(attempt int) time.Duration {
	d := e.Initial
	for i := 0; i < attempt; i++ {
		d *= 2
		if e.Max > 0 && d > e.Max {
			d = e.Max
			break
		}
	}
	r := e.rnd
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if d <= 0 {
		return 0
	}
	jitter := time.Duration(r.Int63n(int64(d)/2 + 1))
	return d + jitter
}

// ClientConfig configures a Client.
type ClientConfig struct {
	// ReconnectOnDisconnect enables automatic reconnect after a
	// transport-level drop.
	ReconnectOnDisconnect bool
	// ReconnectOnServerClose enables automatic reconnect after a
	// server-ordered close with a non-fatal reason (IdInUse, OverCapacity).
	ReconnectOnServerClose bool
	// Backoff selects the delay strategy between reconnect attempts. Nil
	// means FixedBackoff{Interval: time.Second}.
	Backoff Backoff
	// MaxReconnectAttempts bounds the number of reconnect attempts. Zero
	// means "no auto-reconnect".
	MaxReconnectAttempts int
	// MaxMsgSize caps the size, in bytes, of any single envelope. Zero means
	// unlimited.
	MaxMsgSize int
	// ConnectTimeout bounds a single connect/reconnect attempt. Zero means
	// no timeout.
	ConnectTimeout time.Duration
	// HeartbeatInterval is how often the client sends a keepalive frame,
	// whether or not other traffic is flowing. Zero disables it. Set this to
	// something comfortably shorter than the server's HeartbeatTimeout, or
	// a quiet connection will be dropped as dead.
	HeartbeatInterval time.Duration
}

func (c ClientConfig) backoff() Backoff {
	if c.Backoff != nil {
		return c.Backoff
	}
	return FixedBackoff{Interval: time.Second}
}
