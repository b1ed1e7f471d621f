// Copyright 2025 The Wireline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package wireline

import (
	"crypto/ed25519"
	"crypto/subtle"
	"fmt"
	"time"
)

// ProtocolVersion is compared, verbatim, between client and server as part
// of the opening handshake. A mismatch closes the connection with
// CloseProtocolMismatch.
const ProtocolVersion = 1

// authTag discriminates the three authentication variants.
type authTag uint8

const (
	authTagNone authTag = iota
	authTagSecret
	authTagToken
)

// handshake is the first frame sent by the client after the WebSocket
// upgrade, carrying the protocol version and the chosen authentication
// variant plus the user's connect message.
type handshake[Connect any] struct {
	ProtocolVersion int        `cbor:"1,keyasint"`
	Tag             authTag    `cbor:"2,keyasint"`
	ClientID        ClientID   `cbor:"3,keyasint,omitempty"`
	Secret          []byte     `cbor:"4,keyasint,omitempty"`
	Token           string     `cbor:"5,keyasint,omitempty"`
	ConnectMsg      Connect    `cbor:"6,keyasint"`
}

// Authenticator is the server-side authentication policy, one of AuthNone,
// AuthSecret, or AuthToken.
type Authenticator interface {
	// authenticate verifies hs and returns the authenticated ClientID, or an
	// error wrapping ErrAuthFailed (AuthToken returns ErrTokenExpired for a
	// validly signed but expired token).
	authenticate(hs authFields) (ClientID, error)
}

// authFields is the subset of handshake fields an Authenticator needs; it
// lets Authenticator stay free of the Connect type parameter.
type authFields struct {
	tag      authTag
	clientID ClientID
	secret   []byte
	token    string
}

// AuthNone accepts any client_id with no credential check. Only valid when
// the client also sends the None variant.
type AuthNone struct{}

func (AuthNone) authenticate(f authFields) (ClientID, error) {
	if f.tag != authTagNone {
		return ClientID{}, fmt.Errorf("%w: server requires no-auth but client sent a credential", ErrAuthFailed)
	}
	return f.clientID, nil
}

// AuthSecret accepts a client_id accompanied by a shared secret, compared in
// constant time.
type AuthSecret struct {
	Secret []byte
}

func (a AuthSecret) authenticate(f authFields) (ClientID, error) {
	if f.tag != authTagSecret {
		return ClientID{}, fmt.Errorf("%w: server requires a shared secret", ErrAuthFailed)
	}
	if len(f.secret) != len(a.Secret) || subtle.ConstantTimeCompare(f.secret, a.Secret) != 1 {
		return ClientID{}, fmt.Errorf("%w: bad secret", ErrAuthFailed)
	}
	return f.clientID, nil
}

// AuthToken accepts an Ed25519-signed token; the client_id is taken from the
// verified token, never from a client-supplied field.
type AuthToken struct {
	PublicKey ed25519.PublicKey
	// Now returns the current time; defaults to time.Now if nil. Exposed for
	// deterministic expiry tests.
	Now func() time.Time
}

func (a AuthToken) authenticate(f authFields) (ClientID, error) {
	if f.tag != authTagToken {
		return ClientID{}, fmt.Errorf("%w: server requires a signed token", ErrAuthFailed)
	}
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	return VerifyAuthToken(a.PublicKey, f.token, now())
}

// Credential is the client-side counterpart of Authenticator: it fills in
// the handshake's authentication fields for whichever variant the server
// expects. A Client is constructed with exactly one.
type Credential interface {
	handshakeFields() (tag authTag, secret []byte, token string)
}

// NoCredential authenticates with AuthNone on the server side.
type NoCredential struct{}

func (NoCredential) handshakeFields() (authTag, []byte, string) {
	return authTagNone, nil, ""
}

// SecretCredential authenticates with AuthSecret on the server side.
type SecretCredential struct {
	Secret []byte
}

func (c SecretCredential) handshakeFields() (authTag, []byte, string) {
	return authTagSecret, c.Secret, ""
}

// TokenCredential authenticates with AuthToken on the server side. Token is
// normally produced by MakeAuthToken/MakeAuthTokenFromLifetime ahead of
// time, by whoever holds the signing key.
type TokenCredential struct {
	Token string
}

func (c TokenCredential) handshakeFields() (authTag, []byte, string) {
	return authTagToken, nil, c.Token
}
