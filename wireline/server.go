// Copyright 2025 The Wireline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package wireline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/wireline-go/wireline/internal/wirelinedebug"
)

// logFrames reports whether per-frame debug logging is enabled via
// WIRELINEDEBUG=logframes=1. Checked once per frame rather than cached,
// since it's a plain map lookup and the env var is fixed at process start.
func logFrames() bool {
	return wirelinedebug.Value("logframes") == "1"
}

// Server is the server-side endpoint handle: admits connections, dispatches
// inbound messages/requests as events, and lets handler code answer
// requests via RequestToken. Connect/ClientMsg/ClientRequest/ServerMsg/
// ServerResponse are the five payload types an application fixes once, by
// instantiating Server with its own concrete types.
type Server[Connect, CM, CReq, SM, SResp any] struct {
	config ServerConfig
	logger *slog.Logger

	mu          sync.Mutex
	sessions    map[ClientID]*session[Connect, CM, CReq, SM, SResp]
	generations map[ClientID]uint64
	closed      bool

	events *eventQueue[ServerEvent[Connect, CM, CReq]]
}

// NewServer creates a Server with the given configuration. A nil logger uses
// slog.Default().
func NewServer[Connect, CM, CReq, SM, SResp any](cfg ServerConfig, logger *slog.Logger) *Server[Connect, CM, CReq, SM, SResp] {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Authenticator == nil {
		cfg.Authenticator = AuthNone{}
	}
	return &Server[Connect, CM, CReq, SM, SResp]{
		config:      cfg,
		logger:      logger,
		sessions:    make(map[ClientID]*session[Connect, CM, CReq, SM, SResp]),
		generations: make(map[ClientID]uint64),
		events:      newEventQueue[ServerEvent[Connect, CM, CReq]](),
	}
}

// Accept runs the admission handshake over conn and, if admitted, drives the
// session's read loop until the connection dies. It is meant to be called in
// its own goroutine per incoming connection.
func (s *Server[Connect, CM, CReq, SM, SResp]) Accept(ctx context.Context, conn Connection) {
	sess, connectMsg, clientID, err := s.admit(ctx, conn)
	if err != nil {
		s.logger.Debug("wireline: admission failed", "err", err)
		conn.Close()
		return
	}

	s.events.Push(ServerConnectedEvent[Connect, CM, CReq]{
		ClientID:   clientID,
		Session:    sess.id,
		ConnectMsg: connectMsg,
	})

	go sess.writerLoop(s.logger)
	lastRead := newLastReadClock()
	go sess.heartbeatLoop(s.config.HeartbeatInterval, s.config.HeartbeatTimeout, lastRead)

	s.readLoop(ctx, sess, clientID, lastRead)
}

// admit performs the opening handshake and, on success, atomically installs
// the new session into the client_id -> session map together with its
// freshly allocated session id: the map update and the generation bump
// happen under the same lock, so no racing acceptance can observe a
// client_id mapped to a session whose generation doesn't match what was
// just allocated.
func (s *Server[Connect, CM, CReq, SM, SResp]) admit(ctx context.Context, conn Connection) (*session[Connect, CM, CReq, SM, SResp], Connect, ClientID, error) {
	var zeroConnect Connect
	var zeroID ClientID

	frame, err := conn.Read(ctx)
	if err != nil {
		return nil, zeroConnect, zeroID, err
	}

	var hs handshake[Connect]
	if err := decodeEnvelope(frame, &hs, s.config.MaxMsgSize); err != nil {
		s.closeWith(conn, CloseMessageTooLarge)
		return nil, zeroConnect, zeroID, err
	}
	if hs.ProtocolVersion != ProtocolVersion {
		s.closeWith(conn, CloseProtocolMismatch)
		return nil, zeroConnect, zeroID, ErrProtocolMismatch
	}

	clientID, err := s.config.Authenticator.authenticate(authFields{
		tag:      hs.Tag,
		clientID: hs.ClientID,
		secret:   hs.Secret,
		token:    hs.Token,
	})
	if err != nil {
		s.closeWith(conn, CloseAuthFailed)
		return nil, zeroConnect, zeroID, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.closeWith(conn, CloseNormal)
		return nil, zeroConnect, zeroID, errors.New("wireline: server closed")
	}
	if _, exists := s.sessions[clientID]; exists {
		s.mu.Unlock()
		s.closeWith(conn, CloseIDInUse)
		return nil, zeroConnect, zeroID, ErrIDInUse
	}
	if s.config.MaxConnections > 0 && len(s.sessions) >= s.config.MaxConnections {
		s.mu.Unlock()
		s.closeWith(conn, CloseOverCapacity)
		return nil, zeroConnect, zeroID, ErrOverCapacity
	}
	s.generations[clientID]++
	sessID := SessionID{Client: clientID, Generation: s.generations[clientID]}
	sess := newSession(sessID, conn, s.config, s)
	s.sessions[clientID] = sess
	s.mu.Unlock()

	return sess, hs.ConnectMsg, clientID, nil
}

// closeWith best-effort-sends a close-tagged frame carrying reason before
// closing the raw connection, so a client whose transport preserves frame
// delivery ahead of the close can observe why.
func (s *Server[Connect, CM, CReq, SM, SResp]) closeWith(conn Connection, reason CloseReason) {
	if frame, err := encodeEnvelope(newServerClose[SM, SResp](reason), 0); err == nil {
		conn.Write(context.Background(), frame)
	}
	conn.Close()
}

func (s *Server[Connect, CM, CReq, SM, SResp]) readLoop(ctx context.Context, sess *session[Connect, CM, CReq, SM, SResp], clientID ClientID, lastRead *lastReadClock) {
	for {
		frame, err := sess.conn.Read(ctx)
		if err != nil {
			s.destroySession(clientID, sess.id)
			return
		}
		lastRead.touch()

		if !sess.limiter.Allow() {
			s.closeWith(sess.conn, CloseRateLimited)
			s.destroySession(clientID, sess.id)
			return
		}

		var env ClientEnvelope[CM, CReq]
		if err := decodeEnvelope(frame, &env, s.config.MaxMsgSize); err != nil {
			if errors.Is(err, ErrMessageTooLarge) {
				s.closeWith(sess.conn, CloseMessageTooLarge)
			}
			s.destroySession(clientID, sess.id)
			return
		}

		if logFrames() {
			s.logger.Debug("wireline: inbound frame", "client", clientID, "session", sess.id, "tag", env.Tag, "size", len(frame))
		}

		switch env.Tag {
		case tagHeartbeat:
			// no-op keepalive; lastRead was already touched above.
		case tagMsg:
			if env.Msg != nil {
				s.events.Push(ServerMsgEvent[Connect, CM, CReq]{ClientID: clientID, Session: sess.id, Msg: *env.Msg})
			}
		case tagRequest:
			if env.Req != nil {
				sess.pending.insert(env.RequestID)
				s.events.Push(ServerRequestEvent[Connect, CM, CReq]{
					ClientID: clientID,
					Session:  sess.id,
					Token:    RequestToken{RequestID: env.RequestID, Session: sess.id},
					Req:      *env.Req,
				})
			}
		}
	}
}

// destroySession removes clientID's session from the live map (only if it
// is still the session that was dying — an already-replaced mapping from a
// fresh reconnect must not be torn down), drains its pending-request store
// eagerly (discarding any still-outstanding tokens without ever emitting a
// Reject), and emits Disconnected.
func (s *Server[Connect, CM, CReq, SM, SResp]) destroySession(clientID ClientID, dying SessionID) {
	s.mu.Lock()
	sess, ok := s.sessions[clientID]
	if ok && sess.id == dying {
		delete(s.sessions, clientID)
	} else {
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	sess.pending.drain()
	sess.close()
	s.events.Push(ServerDisconnectedEvent[Connect, CM, CReq]{ClientID: clientID, Session: dying})
}

// liveSession returns the session currently mapped to clientID, if any.
func (s *Server[Connect, CM, CReq, SM, SResp]) liveSession(clientID ClientID) (*session[Connect, CM, CReq, SM, SResp], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[clientID]
	return sess, ok
}

// Respond answers token with a Response payload. If token's session is no
// longer the live session for its client id — because the client
// disconnected and reconnected, or the token was already consumed — this is
// silently suppressed: no wire frame is sent and no error is returned, since
// the client that could receive it is gone.
func (s *Server[Connect, CM, CReq, SM, SResp]) Respond(ctx context.Context, token RequestToken, payload SResp) error {
	return s.answer(ctx, token, func() (ServerEnvelope[SM, SResp], bool) {
		return NewServerResponse[SM, SResp](token.RequestID, payload), true
	})
}

// Acknowledge answers token with an Ack (no payload). See Respond for the
// suppression semantics.
func (s *Server[Connect, CM, CReq, SM, SResp]) Acknowledge(ctx context.Context, token RequestToken) error {
	return s.answer(ctx, token, func() (ServerEnvelope[SM, SResp], bool) {
		return NewServerAck[SM, SResp](token.RequestID), true
	})
}

// Reject answers token with a Reject. See Respond for the suppression
// semantics. Dropping a token without calling any of Respond/Acknowledge/
// Reject does NOT send a Reject on the wire: Go has no destructors, so
// never calling any of these is simply a no-op rather than an implicit
// Reject.
func (s *Server[Connect, CM, CReq, SM, SResp]) Reject(ctx context.Context, token RequestToken) error {
	return s.answer(ctx, token, func() (ServerEnvelope[SM, SResp], bool) {
		return NewServerReject[SM, SResp](token.RequestID), true
	})
}

func (s *Server[Connect, CM, CReq, SM, SResp]) answer(ctx context.Context, token RequestToken, build func() (ServerEnvelope[SM, SResp], bool)) error {
	sess, ok := s.liveSession(token.Session.Client)
	if !ok || sess.id != token.Session {
		return nil // orphan token: silently suppressed
	}
	if !sess.pending.consume(token.RequestID) {
		return nil // already answered, or never outstanding
	}
	env, ok := build()
	if !ok {
		return nil
	}
	frame, err := encodeEnvelope(env, s.config.MaxMsgSize)
	if err != nil {
		return err
	}
	return sess.enqueue(ctx, frame)
}

// Send sends a fire-and-forget message to clientID's current session, if
// any. Returns io.EOF if the client has no live session.
func (s *Server[Connect, CM, CReq, SM, SResp]) Send(ctx context.Context, clientID ClientID, payload SM) error {
	sess, ok := s.liveSession(clientID)
	if !ok {
		return io.EOF
	}
	frame, err := encodeEnvelope(NewServerMsg[SM, SResp](payload), s.config.MaxMsgSize)
	if err != nil {
		return err
	}
	return sess.enqueue(ctx, frame)
}

// NumConnections returns the number of currently live sessions.
func (s *Server[Connect, CM, CReq, SM, SResp]) NumConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Next returns the next server event, or false if none is currently
// available. It never blocks.
func (s *Server[Connect, CM, CReq, SM, SResp]) Next() (ServerEvent[Connect, CM, CReq], bool) {
	return s.events.Next()
}

// Wait blocks until an event is available or the server is closed.
func (s *Server[Connect, CM, CReq, SM, SResp]) Wait() (ServerEvent[Connect, CM, CReq], bool) {
	return s.events.Wait()
}

// Close shuts down every live session and stops admitting new ones.
func (s *Server[Connect, CM, CReq, SM, SResp]) Close() error {
	s.mu.Lock()
	s.closed = true
	sessions := make([]*session[Connect, CM, CReq, SM, SResp], 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.sessions = make(map[ClientID]*session[Connect, CM, CReq, SM, SResp])
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.pending.drain()
		sess.close()
	}
	s.events.Close()
	return nil
}
