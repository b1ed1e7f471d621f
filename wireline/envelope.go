// Copyright 2025 The Wireline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package wireline

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// envelopeTag discriminates the variants of ClientEnvelope and
// ServerEnvelope. The tag space is disjoint per direction: a client envelope
// is never tagged tagResponse, and a server envelope is never tagged
// tagRequest. tagHeartbeat and tagClose are connection-level control frames
// handled before either envelope's payload reaches application code.
type envelopeTag uint8

const (
	tagMsg envelopeTag = iota
	tagRequest
	tagResponse
	tagAck
	tagReject
	tagHeartbeat
	tagClose
)

// ClientEnvelope is the wire frame sent from client to server: either a
// fire-and-forget message, a request awaiting a terminal reply, or an idle
// heartbeat keeping the session's inbound clock fresh.
type ClientEnvelope[CM, CReq any] struct {
	Tag       envelopeTag `cbor:"1,keyasint"`
	Msg       *CM         `cbor:"2,keyasint,omitempty"`
	RequestID RequestID   `cbor:"3,keyasint,omitempty"`
	Req       *CReq       `cbor:"4,keyasint,omitempty"`
}

// NewClientMsg builds a Msg-tagged ClientEnvelope.
func NewClientMsg[CM, CReq any](payload CM) ClientEnvelope[CM, CReq] {
	return ClientEnvelope[CM, CReq]{Tag: tagMsg, Msg: &payload}
}

// NewClientRequest builds a Request-tagged ClientEnvelope.
func NewClientRequest[CM, CReq any](id RequestID, payload CReq) ClientEnvelope[CM, CReq] {
	return ClientEnvelope[CM, CReq]{Tag: tagRequest, RequestID: id, Req: &payload}
}

// newClientHeartbeat builds a heartbeat-tagged ClientEnvelope carrying no
// payload.
func newClientHeartbeat[CM, CReq any]() ClientEnvelope[CM, CReq] {
	return ClientEnvelope[CM, CReq]{Tag: tagHeartbeat}
}

// ServerEnvelope is the wire frame sent from server to client: a
// fire-and-forget message, a terminal reply to a previously received request
// (Response carries a payload, Ack carries none, Reject refuses), an idle
// heartbeat, or a closing notice carrying the reason the connection is about
// to drop.
type ServerEnvelope[SM, SResp any] struct {
	Tag       envelopeTag `cbor:"1,keyasint"`
	Msg       *SM         `cbor:"2,keyasint,omitempty"`
	RequestID RequestID   `cbor:"3,keyasint,omitempty"`
	Resp      *SResp      `cbor:"4,keyasint,omitempty"`
	Reason    CloseReason `cbor:"5,keyasint,omitempty"`
}

// NewServerMsg builds a Msg-tagged ServerEnvelope.
func NewServerMsg[SM, SResp any](payload SM) ServerEnvelope[SM, SResp] {
	return ServerEnvelope[SM, SResp]{Tag: tagMsg, Msg: &payload}
}

// NewServerResponse builds a Response-tagged ServerEnvelope.
func NewServerResponse[SM, SResp any](id RequestID, payload SResp) ServerEnvelope[SM, SResp] {
	return ServerEnvelope[SM, SResp]{Tag: tagResponse, RequestID: id, Resp: &payload}
}

// NewServerAck builds an Ack-tagged ServerEnvelope.
func NewServerAck[SM, SResp any](id RequestID) ServerEnvelope[SM, SResp] {
	return ServerEnvelope[SM, SResp]{Tag: tagAck, RequestID: id}
}

// NewServerReject builds a Reject-tagged ServerEnvelope.
func NewServerReject[SM, SResp any](id RequestID) ServerEnvelope[SM, SResp] {
	return ServerEnvelope[SM, SResp]{Tag: tagReject, RequestID: id}
}

// newServerHeartbeat builds a heartbeat-tagged ServerEnvelope carrying no
// payload.
func newServerHeartbeat[SM, SResp any]() ServerEnvelope[SM, SResp] {
	return ServerEnvelope[SM, SResp]{Tag: tagHeartbeat}
}

// newServerClose builds a Close-tagged ServerEnvelope carrying reason. It is
// the last frame written before the connection is torn down.
func newServerClose[SM, SResp any](reason CloseReason) ServerEnvelope[SM, SResp] {
	return ServerEnvelope[SM, SResp]{Tag: tagClose, Reason: reason}
}

// encodeEnvelope cbor-encodes v and enforces maxSize on the result. A
// maxSize of 0 means "no limit", matching ServerConfig/ClientConfig's
// documented zero-value semantics.
func encodeEnvelope(v any, maxSize int) ([]byte, error) {
	data, err := cbor.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("wireline: encode envelope: %w", err)
	}
	if maxSize > 0 && len(data) > maxSize {
		return nil, ErrMessageTooLarge
	}
	return data, nil
}

// decodeEnvelope cbor-decodes data into v and enforces maxSize on the input.
func decodeEnvelope(data []byte, v any, maxSize int) error {
	if maxSize > 0 && len(data) > maxSize {
		return ErrMessageTooLarge
	}
	if err := cbor.Unmarshal(data, v); err != nil {
		return fmt.Errorf("wireline: decode envelope: %w", err)
	}
	return nil
}
