// Copyright 2025 The Wireline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package wireline

import "testing"

func TestRegistryMarkSentThenResolve(t *testing.T) {
	r := newRequestRegistry()
	sess := SessionID{Client: NewClientID(), Generation: 1}
	sig := r.register(sess)

	if _, ok := r.markSent(sig.ID()); !ok {
		t.Fatal("markSent should apply from Sending")
	}
	if got := sig.Status(); got != StatusWaiting {
		t.Fatalf("status after markSent = %v, want StatusWaiting", got)
	}

	resolved, ok := r.resolve(sig.ID(), StatusResponded)
	if !ok {
		t.Fatal("resolve should apply from Waiting")
	}
	if got := resolved.Status(); got != StatusResponded {
		t.Fatalf("status after resolve = %v, want StatusResponded", got)
	}

	if _, ok := r.lookup(sig.ID()); ok {
		t.Fatal("a resolved request should no longer be registered")
	}
}

func TestRegistryAbortOnlyAppliesWhileSending(t *testing.T) {
	r := newRequestRegistry()
	sess := SessionID{Client: NewClientID(), Generation: 1}
	sig := r.register(sess)

	r.markSent(sig.ID())
	if _, ok := r.abort(sig.ID()); ok {
		t.Fatal("abort should not apply once the request has left Sending")
	}

	sig2 := r.register(sess)
	if _, ok := r.abort(sig2.ID()); !ok {
		t.Fatal("abort should apply while still Sending")
	}
	if got := sig2.Status(); got != StatusAborted {
		t.Fatalf("status = %v, want StatusAborted", got)
	}
}

func TestSessionDeathSweepOrderAndClassification(t *testing.T) {
	r := newRequestRegistry()
	dying := SessionID{Client: NewClientID(), Generation: 1}
	other := SessionID{Client: NewClientID(), Generation: 1}

	unflushed := r.register(dying) // stays Sending: -> SendFailed
	flushed := r.register(dying)   // markSent -> Waiting: -> ResponseLost
	r.markSent(flushed.ID())
	unrelated := r.register(other) // different session: untouched

	swept := r.sessionDeathSweep(dying)
	if len(swept) != 2 {
		t.Fatalf("len(swept) = %d, want 2", len(swept))
	}
	if swept[0].id != unflushed.ID() || swept[0].status != StatusSendFailed {
		t.Errorf("swept[0] = %+v, want {%v SendFailed}", swept[0], unflushed.ID())
	}
	if swept[1].id != flushed.ID() || swept[1].status != StatusResponseLost {
		t.Errorf("swept[1] = %+v, want {%v ResponseLost}", swept[1], flushed.ID())
	}

	if _, ok := r.lookup(unrelated.ID()); !ok {
		t.Fatal("a request on a different session must survive the sweep")
	}

	// A second sweep of the same (now-empty) session is a no-op.
	if swept := r.sessionDeathSweep(dying); len(swept) != 0 {
		t.Fatalf("second sweep returned %d entries, want 0", len(swept))
	}
}

func TestPendingIDsReflectsInsertionOrder(t *testing.T) {
	r := newRequestRegistry()
	sess := SessionID{Client: NewClientID(), Generation: 1}
	a := r.register(sess)
	b := r.register(sess)
	r.resolve(a.ID(), StatusResponded)
	c := r.register(sess)

	got := r.pendingIDs()
	want := []RequestID{b.ID(), c.ID()}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("pendingIDs() = %v, want %v", got, want)
	}
}
