// Copyright 2025 The Wireline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package wireline

import (
	"encoding/base64"
	"errors"
	"testing"
	"time"
)

func TestAuthTokenRoundTrip(t *testing.T) {
	pub, priv, err := GenerateAuthTokenKeys()
	if err != nil {
		t.Fatalf("GenerateAuthTokenKeys: %v", err)
	}
	id := NewClientID()
	now := time.Now()
	token := MakeAuthToken(priv, id, now.Add(time.Hour))

	got, err := VerifyAuthToken(pub, token, now)
	if err != nil {
		t.Fatalf("VerifyAuthToken: %v", err)
	}
	if got != id {
		t.Fatalf("VerifyAuthToken recovered %v, want %v", got, id)
	}
}

func TestAuthTokenExpired(t *testing.T) {
	pub, priv, err := GenerateAuthTokenKeys()
	if err != nil {
		t.Fatalf("GenerateAuthTokenKeys: %v", err)
	}
	id := NewClientID()
	now := time.Now()
	token := MakeAuthToken(priv, id, now.Add(-time.Second))

	if _, err := VerifyAuthToken(pub, token, now); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("got err %v, want ErrTokenExpired", err)
	}
}

func TestAuthTokenTamperedSignature(t *testing.T) {
	pub, priv, err := GenerateAuthTokenKeys()
	if err != nil {
		t.Fatalf("GenerateAuthTokenKeys: %v", err)
	}
	id := NewClientID()
	now := time.Now()
	token := MakeAuthToken(priv, id, now.Add(time.Hour))

	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		t.Fatalf("decode token: %v", err)
	}
	raw[len(raw)-1] ^= 0xff // last byte of the signature
	tampered := base64.URLEncoding.EncodeToString(raw)

	if _, err := VerifyAuthToken(pub, tampered, now); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("got err %v, want ErrAuthFailed", err)
	}
}

func TestAuthTokenWrongLength(t *testing.T) {
	pub, _, err := GenerateAuthTokenKeys()
	if err != nil {
		t.Fatalf("GenerateAuthTokenKeys: %v", err)
	}
	if _, err := VerifyAuthToken(pub, "dG9vLXNob3J0", time.Now()); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("got err %v, want ErrAuthFailed", err)
	}
}

func TestAuthTokenMalformedBase64(t *testing.T) {
	pub, _, err := GenerateAuthTokenKeys()
	if err != nil {
		t.Fatalf("GenerateAuthTokenKeys: %v", err)
	}
	if _, err := VerifyAuthToken(pub, "not-valid-base64!!", time.Now()); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("got err %v, want ErrAuthFailed", err)
	}
}

func TestAuthTokenDifferentKeyRejected(t *testing.T) {
	_, priv, err := GenerateAuthTokenKeys()
	if err != nil {
		t.Fatalf("GenerateAuthTokenKeys: %v", err)
	}
	otherPub, _, err := GenerateAuthTokenKeys()
	if err != nil {
		t.Fatalf("GenerateAuthTokenKeys: %v", err)
	}
	id := NewClientID()
	token := MakeAuthToken(priv, id, time.Now().Add(time.Hour))

	if _, err := VerifyAuthToken(otherPub, token, time.Now()); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("got err %v, want ErrAuthFailed", err)
	}
}
