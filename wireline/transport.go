// Copyright 2025 The Wireline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package wireline

import "context"

// Connection is the opaque duplex byte-frame transport the engine is built
// on. It carries whole binary frames, not a raw byte stream: one Write call
// corresponds to exactly one frame, and one successful Read call returns
// exactly one frame.
type Connection interface {
	// Read blocks until a frame is available, ctx is done, or the
	// connection is closed (in which case it returns an error: io.EOF for
	// an orderly close by the peer).
	Read(ctx context.Context) ([]byte, error)
	// Write sends a single binary frame.
	Write(ctx context.Context, frame []byte) error
	// Close closes the connection. Safe to call more than once.
	Close() error
}

// ClientTransport dials a new Connection to a server.
type ClientTransport interface {
	Connect(ctx context.Context) (Connection, error)
}
