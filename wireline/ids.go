// Copyright 2025 The Wireline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package wireline

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// ClientID is a 128-bit identifier chosen by the client at connect time. It
// uniquely identifies a logical client across reconnects.
type ClientID [16]byte

// NewClientID returns a random ClientID suitable for a new logical client.
func NewClientID() ClientID {
	var id ClientID
	if _, err := rand.Read(id[:]); err != nil {
		panic("wireline: failed to read random bytes: " + err.Error())
	}
	return id
}

// String renders the ClientID as lowercase hex.
func (id ClientID) String() string {
	return hex.EncodeToString(id[:])
}

// SessionID identifies one continuous, uninterrupted transport connection.
// It equals the ClientID of the client that owns the session for its
// lifetime, plus a generation counter that distinguishes successive sessions
// opened by the same client id (so a dead session A and its successor
// session B, both for ClientID 7, compare unequal).
type SessionID struct {
	Client     ClientID
	Generation uint64
}

// String renders the SessionID for logging.
func (s SessionID) String() string {
	return fmt.Sprintf("%s#%d", s.Client, s.Generation)
}

// RequestID is allocated at Request() call time. It is monotonically
// increasing and unique within a client's lifetime (it is never reused,
// even across reconnects).
type RequestID uint64
