// Copyright 2025 The Wireline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package wireline

// clientState is the coarse lifecycle phase of a Client, readable via
// Client.State for diagnostics. It does not gate behavior directly; the
// connect loop in client.go drives it.
type clientState int32

const (
	stateConnecting clientState = iota
	stateConnected
	stateReconnecting
	stateDead
)

func (s clientState) String() string {
	switch s {
	case stateConnecting:
		return "Connecting"
	case stateConnected:
		return "Connected"
	case stateReconnecting:
		return "Reconnecting"
	case stateDead:
		return "Dead"
	default:
		return "Unknown"
	}
}

// endCause classifies why serveConnection returned, driving the connect
// loop's decision between reconnecting and going Dead.
type endCause int

const (
	endTransport endCause = iota
	endServerClose
	endSelfClose
)
