// Copyright 2025 The Wireline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package wireline

// ServerEvent is the sum type of events a Server surfaces on its queue:
// connect/disconnect reports plus inbound messages and requests.
type ServerEvent[Connect, CM, CReq any] interface {
	isServerEvent()
}

// ServerConnectedEvent reports that a new session was admitted.
type ServerConnectedEvent[Connect, CM, CReq any] struct {
	ClientID   ClientID
	Session    SessionID
	ConnectMsg Connect
}

func (ServerConnectedEvent[Connect, CM, CReq]) isServerEvent() {}

// ServerDisconnectedEvent reports that a session ended.
type ServerDisconnectedEvent[Connect, CM, CReq any] struct {
	ClientID ClientID
	Session  SessionID
}

func (ServerDisconnectedEvent[Connect, CM, CReq]) isServerEvent() {}

// ServerMsgEvent reports a fire-and-forget message received from a client.
type ServerMsgEvent[Connect, CM, CReq any] struct {
	ClientID ClientID
	Session  SessionID
	Msg      CM
}

func (ServerMsgEvent[Connect, CM, CReq]) isServerEvent() {}

// ServerRequestEvent reports a request received from a client. Handler code
// answers it via Server.Respond/Acknowledge/Reject using Token.
type ServerRequestEvent[Connect, CM, CReq any] struct {
	ClientID ClientID
	Session  SessionID
	Token    RequestToken
	Req      CReq
}

func (ServerRequestEvent[Connect, CM, CReq]) isServerEvent() {}

// ClientEvent is the sum type of events a Client surfaces on its queue.
type ClientEvent[SM, SResp any] interface {
	isClientEvent()
}

// ClientConnectedEvent reports that the client's current session is live.
// It is always enqueued after every sweep event for the previous session
// has been enqueued, so a consumer never observes a reconnect before it has
// seen the fate of every request that didn't survive the disconnect.
type ClientConnectedEvent[SM, SResp any] struct{}

func (ClientConnectedEvent[SM, SResp]) isClientEvent() {}

// ClientDisconnectedEvent reports a transport-level drop.
type ClientDisconnectedEvent[SM, SResp any] struct{}

func (ClientDisconnectedEvent[SM, SResp]) isClientEvent() {}

// ClientClosedByServerEvent reports a server-ordered close.
type ClientClosedByServerEvent[SM, SResp any] struct {
	Reason CloseReason
}

func (ClientClosedByServerEvent[SM, SResp]) isClientEvent() {}

// ClientClosedBySelfEvent reports that the user closed the connection.
type ClientClosedBySelfEvent[SM, SResp any] struct{}

func (ClientClosedBySelfEvent[SM, SResp]) isClientEvent() {}

// ClientIsDeadEvent is always the last event enqueued for a Client. It
// carries the ids of any requests that were still pending at death.
type ClientIsDeadEvent[SM, SResp any] struct {
	PendingRequestIDs []RequestID
}

func (ClientIsDeadEvent[SM, SResp]) isClientEvent() {}

// ClientMsgEvent reports a fire-and-forget message received from the server.
type ClientMsgEvent[SM, SResp any] struct {
	Msg SM
}

func (ClientMsgEvent[SM, SResp]) isClientEvent() {}

// ClientResponseEvent reports a terminal Response to a prior request.
type ClientResponseEvent[SM, SResp any] struct {
	RequestID RequestID
	Resp      SResp
}

func (ClientResponseEvent[SM, SResp]) isClientEvent() {}

// ClientAckEvent reports a terminal Ack to a prior request.
type ClientAckEvent[SM, SResp any] struct {
	RequestID RequestID
}

func (ClientAckEvent[SM, SResp]) isClientEvent() {}

// ClientRejectEvent reports a terminal Reject to a prior request.
type ClientRejectEvent[SM, SResp any] struct {
	RequestID RequestID
}

func (ClientRejectEvent[SM, SResp]) isClientEvent() {}

// ClientSendFailedEvent reports that a request was dropped before it was ever
// flushed: it could not be queued, its write failed, or its session ended
// while it was still Sending. A failed Send is reported only through Send's
// return value, not by this event.
type ClientSendFailedEvent[SM, SResp any] struct {
	RequestID RequestID
}

func (ClientSendFailedEvent[SM, SResp]) isClientEvent() {}

// ClientResponseLostEvent reports that a request was flushed but its session
// died before a terminal reply arrived.
type ClientResponseLostEvent[SM, SResp any] struct {
	RequestID RequestID
}

func (ClientResponseLostEvent[SM, SResp]) isClientEvent() {}

// ClientAbortedEvent reports that Abort was called on a request's signal
// while the request was still queued (Sending): the writer dropped the
// request without writing it, so the server never receives it.
type ClientAbortedEvent[SM, SResp any] struct {
	RequestID RequestID
}

func (ClientAbortedEvent[SM, SResp]) isClientEvent() {}
