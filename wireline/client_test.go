// Copyright 2025 The Wireline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package wireline_test

import (
	"context"
	"testing"
	"time"

	"github.com/wireline-go/wireline/wireline"
)

func TestClientSendWithNoConnectionFails(t *testing.T) {
	blocked := make(chan struct{})
	transport := &funcTransport{connect: func(ctx context.Context) (wireline.Connection, error) {
		<-blocked // never returns within the test
		return nil, context.Canceled
	}}
	cl := wireline.NewClient[connectMsg, clientMsg, clientReq, serverMsg, serverResp](
		wireline.NewClientID(), connectMsg{}, nil, transport, wireline.ClientConfig{}, nil)
	go cl.Run(context.Background())

	if got := cl.Send(clientMsg{Text: "hi"}); got != wireline.MessageFailed {
		t.Fatalf("Send before any connection = %v, want MessageFailed", got)
	}

	close(blocked)
	cl.Close()
}

// TestSweepPrecedesDisconnectEvent checks the ordering guarantee a consumer
// relies on: a request's fate (here, ResponseLost) is always visible before
// or in the same pass as the Disconnected event for the session it died
// under, never after.
func TestSweepPrecedesDisconnectEvent(t *testing.T) {
	srv := wireline.NewServer[connectMsg, clientMsg, clientReq, serverMsg, serverResp](wireline.ServerConfig{}, nil)
	clientConn, serverConn := wireline.NewInMemoryConnPair()
	go srv.Accept(context.Background(), serverConn)

	cl := wireline.NewClient[connectMsg, clientMsg, clientReq, serverMsg, serverResp](
		wireline.NewClientID(), connectMsg{}, nil, singleShotTransport(clientConn), wireline.ClientConfig{}, nil)
	go cl.Run(context.Background())
	waitForServerEvent(t, srv)
	waitForClientEvent(t, cl)

	sig := cl.Request(clientReq{Op: "slow"})
	waitForServerEvent(t, srv) // ServerRequestEvent: the request reached the wire

	serverConn.Close() // transport-level drop, from the server side

	lost := waitForClientEvent(t, cl).(wireline.ClientResponseLostEvent[serverMsg, serverResp])
	if lost.RequestID != sig.ID() {
		t.Fatalf("ResponseLost RequestID = %v, want %v", lost.RequestID, sig.ID())
	}
	if got := sig.Status(); got != wireline.StatusResponseLost {
		t.Fatalf("signal status = %v, want StatusResponseLost", got)
	}

	if _, ok := waitForClientEvent(t, cl).(wireline.ClientDisconnectedEvent[serverMsg, serverResp]); !ok {
		t.Fatal("ClientDisconnectedEvent must follow the sweep, not precede it")
	}

	cl.Close()
	srv.Close()
}

func TestFatalCloseReasonSkipsReconnect(t *testing.T) {
	srv := wireline.NewServer[connectMsg, clientMsg, clientReq, serverMsg, serverResp](wireline.ServerConfig{
		Authenticator: wireline.AuthSecret{Secret: []byte("correct-secret")},
	}, nil)
	clientConn, serverConn := wireline.NewInMemoryConnPair()
	go srv.Accept(context.Background(), serverConn)

	// No credential supplied: the server expects AuthSecret and will reject.
	cl := wireline.NewClient[connectMsg, clientMsg, clientReq, serverMsg, serverResp](
		wireline.NewClientID(), connectMsg{}, nil, singleShotTransport(clientConn),
		wireline.ClientConfig{ReconnectOnServerClose: true, MaxReconnectAttempts: 5}, nil)
	go cl.Run(context.Background())

	ev := waitForClientEvent(t, cl).(wireline.ClientClosedByServerEvent[serverMsg, serverResp])
	if ev.Reason != wireline.CloseAuthFailed {
		t.Fatalf("Reason = %v, want CloseAuthFailed", ev.Reason)
	}
	if !ev.Reason.Fatal() {
		t.Fatal("CloseAuthFailed must be Fatal")
	}

	if !isClientDead(waitForClientEvent(t, cl)) {
		t.Fatal("a fatal close reason must go straight to Dead, ignoring ReconnectOnServerClose")
	}
	if !cl.IsDead() {
		t.Fatal("client should report Dead")
	}

	cl.Close()
	srv.Close()
}

// TestAbortAfterSentHasNoEffect confirms abort only preempts a request still
// in Sending: once the server has observed it, calling Abort is too late to
// suppress the reply.
func TestAbortAfterSentHasNoEffect(t *testing.T) {
	srv := wireline.NewServer[connectMsg, clientMsg, clientReq, serverMsg, serverResp](wireline.ServerConfig{}, nil)
	clientConn, serverConn := wireline.NewInMemoryConnPair()
	go srv.Accept(context.Background(), serverConn)

	cl := wireline.NewClient[connectMsg, clientMsg, clientReq, serverMsg, serverResp](
		wireline.NewClientID(), connectMsg{}, nil, singleShotTransport(clientConn), wireline.ClientConfig{}, nil)
	go cl.Run(context.Background())
	waitForServerEvent(t, srv)
	waitForClientEvent(t, cl)

	sig := cl.Request(clientReq{Op: "real"})
	reqEvent := waitForServerEvent(t, srv).(wireline.ServerRequestEvent[connectMsg, clientMsg, clientReq])

	// By the time the server has observed and reported the request, it has
	// necessarily left Sending on the client side too.
	time.Sleep(5 * time.Millisecond)
	sig.Abort()

	if err := srv.Respond(context.Background(), reqEvent.Token, serverResp{Result: 9}); err != nil {
		t.Fatalf("Respond: %v", err)
	}

	resp := waitForClientEvent(t, cl).(wireline.ClientResponseEvent[serverMsg, serverResp])
	if resp.RequestID != sig.ID() || resp.Resp.Result != 9 {
		t.Fatalf("got %+v, want RequestID=%v Result=9", resp, sig.ID())
	}
	if got := sig.Status(); got != wireline.StatusResponded {
		t.Fatalf("status = %v, want StatusResponded (late Abort must not preempt an already-sent request)", got)
	}

	cl.Close()
	srv.Close()
}

func TestClientHeartbeatKeepsIdleSessionAlive(t *testing.T) {
	srv := wireline.NewServer[connectMsg, clientMsg, clientReq, serverMsg, serverResp](wireline.ServerConfig{
		HeartbeatInterval: 5 * time.Millisecond,
		HeartbeatTimeout:  40 * time.Millisecond,
	}, nil)
	clientConn, serverConn := wireline.NewInMemoryConnPair()
	go srv.Accept(context.Background(), serverConn)

	cl := wireline.NewClient[connectMsg, clientMsg, clientReq, serverMsg, serverResp](
		wireline.NewClientID(), connectMsg{}, nil, singleShotTransport(clientConn),
		wireline.ClientConfig{HeartbeatInterval: 5 * time.Millisecond}, nil)
	go cl.Run(context.Background())
	waitForServerEvent(t, srv)
	waitForClientEvent(t, cl)

	// Stay idle well past the server's heartbeat timeout; the client's own
	// outbound heartbeats should keep lastRead fresh on the server side.
	time.Sleep(120 * time.Millisecond)

	if srv.NumConnections() != 1 {
		t.Fatal("an idle client sending its own heartbeats should not be dropped")
	}

	cl.Close()
	srv.Close()
}
