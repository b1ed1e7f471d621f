// Copyright 2025 The Wireline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package wireline

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"time"

	"crypto/ed25519"
	"crypto/rand"
)

// tokenPreimageLen is the length, in bytes, of the signed preimage:
// client_id (16) + expiry_unix_seconds (8).
const tokenPreimageLen = 16 + 8

// GenerateAuthTokenKeys generates a fresh Ed25519 key pair for signing and
// verifying auth tokens.
func GenerateAuthTokenKeys() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("wireline: generate auth token keys: %w", err)
	}
	return pub, priv, nil
}

// MakeAuthTokenFromLifetime signs a token for id that is valid for lifetime
// from now, and returns it base64url-encoded for transport.
func MakeAuthTokenFromLifetime(priv ed25519.PrivateKey, lifetime time.Duration, id ClientID) string {
	return MakeAuthToken(priv, id, time.Now().Add(lifetime))
}

// MakeAuthToken signs a token for id that expires at expiry, and returns it
// base64url-encoded.
func MakeAuthToken(priv ed25519.PrivateKey, id ClientID, expiry time.Time) string {
	preimage := make([]byte, tokenPreimageLen)
	copy(preimage[:16], id[:])
	binary.LittleEndian.PutUint64(preimage[16:24], uint64(expiry.Unix()))

	sig := ed25519.Sign(priv, preimage)

	out := make([]byte, 0, tokenPreimageLen+ed25519.SignatureSize)
	out = append(out, preimage...)
	out = append(out, sig...)
	return base64.URLEncoding.EncodeToString(out)
}

// VerifyAuthToken verifies token against pub at the given wall-clock time,
// returning the embedded ClientID on success. The client_id is taken from
// the verified token: callers must not trust any other source of client
// identity for Token-authenticated connections.
func VerifyAuthToken(pub ed25519.PublicKey, token string, now time.Time) (ClientID, error) {
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return ClientID{}, fmt.Errorf("%w: malformed base64: %v", ErrAuthFailed, err)
	}
	if len(raw) != tokenPreimageLen+ed25519.SignatureSize {
		return ClientID{}, fmt.Errorf("%w: wrong token length", ErrAuthFailed)
	}
	preimage, sig := raw[:tokenPreimageLen], raw[tokenPreimageLen:]
	if !ed25519.Verify(pub, preimage, sig) {
		return ClientID{}, fmt.Errorf("%w: bad signature", ErrAuthFailed)
	}

	var id ClientID
	copy(id[:], preimage[:16])
	expiry := time.Unix(int64(binary.LittleEndian.Uint64(preimage[16:24])), 0)
	if now.After(expiry) {
		return ClientID{}, ErrTokenExpired
	}
	return id, nil
}
