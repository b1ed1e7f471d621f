// Copyright 2025 The Wireline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package wireline_test

import (
	"context"

	"github.com/wireline-go/wireline/wireline"
)

type connectMsg struct{ Name string }
type clientMsg struct{ Text string }
type clientReq struct{ Op string }
type serverMsg struct{ Text string }
type serverResp struct{ Result int }

type testServer = wireline.Server[connectMsg, clientMsg, clientReq, serverMsg, serverResp]
type testClient = wireline.Client[connectMsg, clientMsg, clientReq, serverMsg, serverResp]
type testServerEvent = wireline.ServerEvent[connectMsg, clientMsg, clientReq]
type testClientEvent = wireline.ClientEvent[serverMsg, serverResp]

// funcTransport adapts a plain function to wireline.ClientTransport, letting
// each test decide exactly what happens on (re)connect.
type funcTransport struct {
	connect func(ctx context.Context) (wireline.Connection, error)
}

func (f funcTransport) Connect(ctx context.Context) (wireline.Connection, error) {
	return f.connect(ctx)
}

// singleShotTransport hands out one pre-made Connection and fails every
// subsequent Connect call, for tests with no reconnect.
func singleShotTransport(conn wireline.Connection) *funcTransport {
	used := false
	return &funcTransport{connect: func(ctx context.Context) (wireline.Connection, error) {
		if used {
			return nil, context.Canceled
		}
		used = true
		return conn, nil
	}}
}

func waitForClientEvent(t interface {
	Fatalf(format string, args ...any)
}, cl *testClient) testClientEvent {
	ev, ok := cl.Wait()
	if !ok {
		t.Fatalf("client event queue closed unexpectedly")
	}
	return ev
}

func waitForServerEvent(t interface {
	Fatalf(format string, args ...any)
}, srv *testServer) testServerEvent {
	ev, ok := srv.Wait()
	if !ok {
		t.Fatalf("server event queue closed unexpectedly")
	}
	return ev
}

func isClientConnected(ev testClientEvent) bool {
	_, ok := ev.(wireline.ClientConnectedEvent[serverMsg, serverResp])
	return ok
}

func isClientDead(ev testClientEvent) bool {
	_, ok := ev.(wireline.ClientIsDeadEvent[serverMsg, serverResp])
	return ok
}
