// Copyright 2025 The Wireline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package wireline

import "sync/atomic"

// signalState is the shared, reference-counted state backing every clone of
// a RequestSignal. It is allocated once, at Register time, and lives until
// all clones are garbage.
type signalState struct {
	status atomic.Int32
	abort  atomic.Bool
}

// RequestSignal is a shareable, client-side observer handle for one
// outstanding request's status and abort flag. Cloning a RequestSignal
// duplicates observation, not the request itself: aborting one clone is
// visible to all.
type RequestSignal struct {
	id    RequestID
	state *signalState
}

// ID returns the request id this signal observes.
func (s RequestSignal) ID() RequestID {
	return s.id
}

// Status returns the current status. Once terminal, it never changes.
func (s RequestSignal) Status() RequestStatus {
	return RequestStatus(s.state.status.Load())
}

// Abort marks the request as no longer wanted by the caller, visibly to
// every clone of this signal. It does not cancel anything already written to
// the wire: if the request is still queued (Sending) when the writer reaches
// it, the writer drops it unwritten and it becomes Aborted; otherwise Abort
// has no effect on the request.
func (s RequestSignal) Abort() {
	s.state.abort.Store(true)
}

// Aborted reports whether Abort was called.
func (s RequestSignal) Aborted() bool {
	return s.state.abort.Load()
}

// Clone returns a new handle observing the same underlying state.
func (s RequestSignal) Clone() RequestSignal {
	return s
}

// newSignal allocates fresh signalState for id, starting in StatusSending.
func newSignal(id RequestID) RequestSignal {
	s := RequestSignal{id: id, state: &signalState{}}
	s.state.status.Store(int32(StatusSending))
	return s
}

// transition moves the signal to status unless it is already terminal.
// Reports whether the transition was applied (false means the status was
// already terminal and is left unchanged).
func (s RequestSignal) transition(status RequestStatus) bool {
	for {
		cur := RequestStatus(s.state.status.Load())
		if cur.IsTerminal() {
			return false
		}
		if s.state.status.CompareAndSwap(int32(cur), int32(status)) {
			return true
		}
	}
}
