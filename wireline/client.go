// Copyright 2025 The Wireline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package wireline

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Client is the client-side endpoint handle: it owns a single logical
// session identity (ClientID) across however many physical connections the
// reconnect policy opens over the handle's lifetime, and surfaces inbound
// traffic, request outcomes, and connection-lifecycle notices on its event
// queue.
type Client[Connect, CM, CReq, SM, SResp any] struct {
	config     ClientConfig
	logger     *slog.Logger
	clientID   ClientID
	connectMsg Connect
	credential Credential
	transport  ClientTransport

	registry *requestRegistry
	events   *eventQueue[ClientEvent[SM, SResp]]

	state atomic.Int32 // clientState

	mu         sync.Mutex
	generation uint64
	conn       *clientConn

	closeOnce     sync.Once
	selfCloseOnce sync.Once
	closed        chan struct{}
	done          chan struct{}
}

// NewClient creates a Client for the given identity and configuration. It
// does not dial anything; call Run to start the connect loop. A nil logger
// uses slog.Default(), and a nil credential uses NoCredential{}.
func NewClient[Connect, CM, CReq, SM, SResp any](
	clientID ClientID,
	connectMsg Connect,
	credential Credential,
	transport ClientTransport,
	cfg ClientConfig,
	logger *slog.Logger,
) *Client[Connect, CM, CReq, SM, SResp] {
	if logger == nil {
		logger = slog.Default()
	}
	if credential == nil {
		credential = NoCredential{}
	}
	return &Client[Connect, CM, CReq, SM, SResp]{
		config:     cfg,
		logger:     logger,
		clientID:   clientID,
		connectMsg: connectMsg,
		credential: credential,
		transport:  transport,
		registry:   newRequestRegistry(),
		events:     newEventQueue[ClientEvent[SM, SResp]](),
		closed:     make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Run drives the connect loop until the client reaches Dead, either because
// the context was canceled, Close was called, a fatal close reason was
// observed, a TokenCredential's token has expired (checked before every
// connect attempt, with no wire I/O), or the reconnect policy gave up. It is
// meant to be called once,
// in its own goroutine; use Next/Wait to consume events concurrently.
func (c *Client[Connect, CM, CReq, SM, SResp]) Run(ctx context.Context) {
	defer close(c.done)
	defer c.events.Close()

	attempt := 0
	for {
		if c.isClosing() {
			c.pushDead(nil)
			return
		}
		if tc, ok := c.credential.(TokenCredential); ok {
			raw, err := base64.URLEncoding.DecodeString(tc.Token)
			if err == nil && len(raw) >= tokenPreimageLen &&
				time.Now().After(time.Unix(int64(binary.LittleEndian.Uint64(raw[16:24])), 0)) {
				c.pushDead(ErrTokenExpired)
				return
			}
		}

		c.state.Store(int32(stateConnecting))
		sessID, conn, err := c.connectOnce(ctx)
		if err != nil {
			if c.isClosing() || ctx.Err() != nil {
				c.pushDead(nil)
				return
			}
			if !c.config.ReconnectOnDisconnect {
				c.pushDead(err)
				return
			}
			attempt++
			if attempt > c.config.MaxReconnectAttempts {
				c.pushDead(err)
				return
			}
			if !c.sleepBackoff(ctx, attempt-1) {
				c.pushDead(nil)
				return
			}
			continue
		}
		attempt = 0

		c.state.Store(int32(stateConnected))
		c.events.Push(ClientConnectedEvent[SM, SResp]{})

		cause, reason, connErr := c.serveConnection(ctx, conn)
		c.sweepSession(sessID)

		switch cause {
		case endSelfClose:
			c.pushDead(nil)
			return
		case endServerClose:
			c.events.Push(ClientClosedByServerEvent[SM, SResp]{Reason: reason})
			if reason.Fatal() || !c.config.ReconnectOnServerClose {
				c.pushDead(connErr)
				return
			}
		default: // endTransport
			c.events.Push(ClientDisconnectedEvent[SM, SResp]{})
			if !c.config.ReconnectOnDisconnect {
				c.pushDead(connErr)
				return
			}
		}

		if c.config.MaxReconnectAttempts == 0 {
			c.pushDead(connErr)
			return
		}
		c.state.Store(int32(stateReconnecting))
		attempt = 1 // the reconnect about to be made counts as attempt 1
		if !c.sleepBackoff(ctx, 0) {
			c.pushDead(nil)
			return
		}
	}
}

func (c *Client[Connect, CM, CReq, SM, SResp]) sleepBackoff(ctx context.Context, attempt int) bool {
	d := c.config.backoff().Delay(attempt)
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-c.closed:
		return false
	case <-ctx.Done():
		return false
	}
}

// pushDead pushes the terminal Dead event, always from Run's own goroutine.
// If the client is closing, ClientClosedBySelfEvent is pushed first (exactly
// once, however many of Run's return paths observe isClosing()), so the two
// events are never racing against each other the way they would if Close
// pushed ClosedBySelf itself from its own caller's goroutine.
func (c *Client[Connect, CM, CReq, SM, SResp]) pushDead(_ error) {
	if c.isClosing() {
		c.selfCloseOnce.Do(func() {
			c.events.Push(ClientClosedBySelfEvent[SM, SResp]{})
		})
	}
	c.state.Store(int32(stateDead))
	c.events.Push(ClientIsDeadEvent[SM, SResp]{PendingRequestIDs: c.registry.pendingIDs()})
}

func (c *Client[Connect, CM, CReq, SM, SResp]) isClosing() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// connectOnce dials a fresh connection and sends the opening handshake.
// Admission itself is implicit: the server either starts exchanging normal
// traffic or sends a close-tagged frame, which serveConnection observes like
// any other inbound frame.
func (c *Client[Connect, CM, CReq, SM, SResp]) connectOnce(ctx context.Context) (SessionID, *clientConn, error) {
	dialCtx := ctx
	if c.config.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, c.config.ConnectTimeout)
		defer cancel()
	}

	raw, err := c.transport.Connect(dialCtx)
	if err != nil {
		return SessionID{}, nil, err
	}

	tag, secret, token := c.credential.handshakeFields()
	hs := handshake[Connect]{
		ProtocolVersion: ProtocolVersion,
		Tag:             tag,
		ClientID:        c.clientID,
		Secret:          secret,
		Token:           token,
		ConnectMsg:      c.connectMsg,
	}
	frame, err := encodeEnvelope(hs, c.config.MaxMsgSize)
	if err != nil {
		raw.Close()
		return SessionID{}, nil, err
	}
	if err := raw.Write(dialCtx, frame); err != nil {
		raw.Close()
		return SessionID{}, nil, err
	}

	c.mu.Lock()
	c.generation++
	sessID := SessionID{Client: c.clientID, Generation: c.generation}
	conn := newClientConn(raw, sessID)
	c.conn = conn
	c.mu.Unlock()

	return sessID, conn, nil
}

// serveConnection runs the write and read loops for one physical connection
// until it ends, reporting why.
func (c *Client[Connect, CM, CReq, SM, SResp]) serveConnection(ctx context.Context, conn *clientConn) (endCause, CloseReason, error) {
	defer func() {
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		conn.close()
	}()

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	var selfClosed atomic.Bool
	stopWatch := make(chan struct{})
	defer close(stopWatch)
	go func() {
		select {
		case <-c.closed:
			selfClosed.Store(true)
			cancel()
		case <-stopWatch:
		}
	}()

	go c.writerLoop(connCtx, conn)
	if c.config.HeartbeatInterval > 0 {
		go c.heartbeatLoop(connCtx, conn)
	}

	for {
		frame, err := conn.conn.Read(connCtx)
		if err != nil {
			if selfClosed.Load() {
				return endSelfClose, CloseNormal, nil
			}
			return endTransport, CloseNormal, err
		}

		var env ServerEnvelope[SM, SResp]
		if err := decodeEnvelope(frame, &env, c.config.MaxMsgSize); err != nil {
			return endTransport, CloseNormal, err
		}

		if logFrames() {
			c.logger.Debug("wireline: inbound frame", "session", conn.sessionID, "tag", env.Tag, "size", len(frame))
		}

		switch env.Tag {
		case tagHeartbeat:
			// idle keepalive; nothing to deliver.
		case tagClose:
			return endServerClose, env.Reason, nil
		case tagMsg:
			if env.Msg != nil {
				c.events.Push(ClientMsgEvent[SM, SResp]{Msg: *env.Msg})
			}
		case tagResponse:
			if _, ok := c.registry.resolve(env.RequestID, StatusResponded); ok && env.Resp != nil {
				c.events.Push(ClientResponseEvent[SM, SResp]{RequestID: env.RequestID, Resp: *env.Resp})
			}
		case tagAck:
			if _, ok := c.registry.resolve(env.RequestID, StatusAcknowledged); ok {
				c.events.Push(ClientAckEvent[SM, SResp]{RequestID: env.RequestID})
			}
		case tagReject:
			if _, ok := c.registry.resolve(env.RequestID, StatusRejected); ok {
				c.events.Push(ClientRejectEvent[SM, SResp]{RequestID: env.RequestID})
			}
		}
	}
}

// writerLoop drains conn's egress in order. A request item is checked
// against the registry first: an aborted-while-Sending request is dropped
// without ever touching the wire; otherwise the frame is written and the
// request advances to Waiting, or to SendFailed if the write itself fails.
func (c *Client[Connect, CM, CReq, SM, SResp]) writerLoop(ctx context.Context, conn *clientConn) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-conn.done:
			return
		case item := <-conn.egress:
			if item.requestID != 0 {
				sig, ok := c.registry.lookup(item.requestID)
				if !ok {
					continue
				}
				if sig.Aborted() {
					if _, applied := c.registry.abort(item.requestID); applied {
						c.events.Push(ClientAbortedEvent[SM, SResp]{RequestID: item.requestID})
					}
					continue
				}
			}
			if err := conn.conn.Write(ctx, item.frame); err != nil {
				if item.requestID != 0 {
					if _, ok := c.registry.markFailed(item.requestID); ok {
						c.events.Push(ClientSendFailedEvent[SM, SResp]{RequestID: item.requestID})
					}
				}
				conn.close()
				return
			}
			if item.requestID != 0 {
				c.registry.markSent(item.requestID)
			}
		}
	}
}

// heartbeatLoop periodically offers an idle keepalive frame so a quiet
// connection doesn't trip the server's inbound heartbeat timeout.
func (c *Client[Connect, CM, CReq, SM, SResp]) heartbeatLoop(ctx context.Context, conn *clientConn) {
	frame, err := encodeEnvelope(newClientHeartbeat[CM, CReq](), 0)
	if err != nil {
		return
	}
	ticker := time.NewTicker(c.config.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-conn.done:
			return
		case <-ticker.C:
			select {
			case conn.egress <- outboundItem{frame: frame}:
			case <-conn.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}
}

// sweepSession terminalizes every request that was sent under, or never
// made it out under, the session that just ended.
func (c *Client[Connect, CM, CReq, SM, SResp]) sweepSession(sessID SessionID) {
	for _, sw := range c.registry.sessionDeathSweep(sessID) {
		switch sw.status {
		case StatusSendFailed:
			c.events.Push(ClientSendFailedEvent[SM, SResp]{RequestID: sw.id})
		case StatusResponseLost:
			c.events.Push(ClientResponseLostEvent[SM, SResp]{RequestID: sw.id})
		}
	}
}

// Send enqueues a fire-and-forget message on the current connection and
// returns MessageSending once it is queued. It reports MessageFailed, without
// blocking, if there is no live connection or its egress buffer is full.
func (c *Client[Connect, CM, CReq, SM, SResp]) Send(payload CM) MessageStatus {
	frame, err := encodeEnvelope(NewClientMsg[CM, CReq](payload), c.config.MaxMsgSize)
	if err != nil {
		return MessageFailed
	}
	conn := c.currentConn()
	if conn == nil {
		return MessageFailed
	}
	if !conn.tryEnqueue(outboundItem{frame: frame}) {
		return MessageFailed
	}
	return MessageSending
}

// Request sends a request on the current connection and returns a
// RequestSignal observing its eventual outcome. If there is no live
// connection, the returned signal is already SendFailed.
func (c *Client[Connect, CM, CReq, SM, SResp]) Request(payload CReq) RequestSignal {
	conn := c.currentConn()
	var sessID SessionID
	if conn != nil {
		sessID = conn.sessionID
	}
	sig := c.registry.register(sessID)

	frame, err := encodeEnvelope(NewClientRequest[CM, CReq](sig.ID(), payload), c.config.MaxMsgSize)
	if err != nil || conn == nil || !conn.tryEnqueue(outboundItem{frame: frame, requestID: sig.ID()}) {
		c.registry.markFailed(sig.ID())
		c.events.Push(ClientSendFailedEvent[SM, SResp]{RequestID: sig.ID()})
	}
	return sig
}

func (c *Client[Connect, CM, CReq, SM, SResp]) currentConn() *clientConn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// Next returns the next client event, or false if none is currently
// available. It never blocks.
func (c *Client[Connect, CM, CReq, SM, SResp]) Next() (ClientEvent[SM, SResp], bool) {
	return c.events.Next()
}

// Wait blocks until an event is available or the client has reached Dead and
// the queue has drained.
func (c *Client[Connect, CM, CReq, SM, SResp]) Wait() (ClientEvent[SM, SResp], bool) {
	return c.events.Wait()
}

// State returns the client's current lifecycle phase.
func (c *Client[Connect, CM, CReq, SM, SResp]) State() string {
	return clientState(c.state.Load()).String()
}

// IsDead reports whether the client has reached the Dead state.
func (c *Client[Connect, CM, CReq, SM, SResp]) IsDead() bool {
	return clientState(c.state.Load()) == stateDead
}

// Close requests an orderly shutdown: the current connection (if any) is
// closed and the connect loop exits without reconnecting. Run's own
// goroutine observes the closed signal and enqueues ClientClosedBySelfEvent
// followed by ClientIsDeadEvent, so the two are always delivered in that
// order regardless of which of Run's goroutines or Close's caller happens to
// run first. Close does not block for the loop to finish; wait on Run's
// goroutine or drain the event queue for that.
func (c *Client[Connect, CM, CReq, SM, SResp]) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		if conn := c.currentConn(); conn != nil {
			conn.close()
		}
	})
	return nil
}
