// Copyright 2025 The Wireline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package wireline

import "sync"

// registryEntry is the bookkeeping kept per outstanding request.
type registryEntry struct {
	signal    RequestSignal
	sessionAt SessionID
}

// requestRegistry maps a request id to its status cell, abort flag, and the
// session it was sent under. It also keeps entries in insertion order so
// that a session-death sweep terminalizes and emits events in the order the
// requests were originally registered.
type requestRegistry struct {
	mu      sync.Mutex
	entries map[RequestID]*registryEntry
	order   []RequestID
	nextID  RequestID
}

func newRequestRegistry() *requestRegistry {
	return &requestRegistry{entries: make(map[RequestID]*registryEntry)}
}

// register allocates a new RequestID, inserts it with StatusSending, and
// returns its signal. sessionAt is the session the request is being sent
// under (the zero SessionID if the client isn't currently connected, in
// which case the caller is expected to immediately fail the request).
func (r *requestRegistry) register(sessionAt SessionID) RequestSignal {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	sig := newSignal(id)
	r.entries[id] = &registryEntry{signal: sig, sessionAt: sessionAt}
	r.order = append(r.order, id)
	return sig
}

// markSent advances id from Sending to Waiting, unless it has already left
// Sending (e.g. SendFailed or Aborted raced ahead of the flush notice).
func (r *requestRegistry) markSent(id RequestID) (sig RequestSignal, ok bool) {
	r.mu.Lock()
	e, found := r.entries[id]
	r.mu.Unlock()
	if !found {
		return RequestSignal{}, false
	}
	if e.signal.Status() != StatusSending {
		return e.signal, false
	}
	e.signal.transition(StatusWaiting)
	return e.signal, true
}

// lookup returns the signal currently registered for id, without changing
// its status.
func (r *requestRegistry) lookup(id RequestID) (RequestSignal, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, found := r.entries[id]
	if !found {
		return RequestSignal{}, false
	}
	return e.signal, true
}

// markFailed transitions id to SendFailed and removes it from the registry
// (it is now terminal). Returns the signal and whether the transition was
// applied (false if already terminal).
func (r *requestRegistry) markFailed(id RequestID) (RequestSignal, bool) {
	return r.resolve(id, StatusSendFailed)
}

// resolve transitions id to the given terminal status and removes it from
// the registry. Returns the signal and whether the transition took effect.
func (r *requestRegistry) resolve(id RequestID, status RequestStatus) (RequestSignal, bool) {
	r.mu.Lock()
	e, found := r.entries[id]
	if found {
		delete(r.entries, id)
		r.removeFromOrder(id)
	}
	r.mu.Unlock()
	if !found {
		return RequestSignal{}, false
	}
	applied := e.signal.transition(status)
	return e.signal, applied
}

func (r *requestRegistry) removeFromOrder(id RequestID) {
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}

// abort marks id Aborted, and removes it from the registry, if it is still
// Sending. The writer loop calls it for a queued request whose signal has
// been aborted, just before the request would have been written.
func (r *requestRegistry) abort(id RequestID) (RequestSignal, bool) {
	r.mu.Lock()
	e, found := r.entries[id]
	r.mu.Unlock()
	if !found {
		return RequestSignal{}, false
	}
	if e.signal.Status() != StatusSending {
		return e.signal, false
	}
	applied := e.signal.transition(StatusAborted)
	if applied {
		r.mu.Lock()
		delete(r.entries, id)
		r.removeFromOrder(id)
		r.mu.Unlock()
	}
	return e.signal, applied
}

// sessionDeathSweep terminalizes, in registry-insertion order, every entry
// whose recorded session-at-send equals dying: Sending entries (never
// flushed) become SendFailed; Waiting entries (flushed) become ResponseLost. It returns the list of (id, newStatus) results for
// the caller to turn into events, in the exact order they must be enqueued.
func (r *requestRegistry) sessionDeathSweep(dying SessionID) []sweptRequest {
	r.mu.Lock()
	var ids []RequestID
	for _, id := range r.order {
		e := r.entries[id]
		if e.sessionAt == dying {
			ids = append(ids, id)
		}
	}
	r.mu.Unlock()

	var swept []sweptRequest
	for _, id := range ids {
		r.mu.Lock()
		e, found := r.entries[id]
		r.mu.Unlock()
		if !found {
			continue
		}
		status := e.signal.Status()
		var target RequestStatus
		switch status {
		case StatusSending:
			target = StatusSendFailed
		case StatusWaiting:
			target = StatusResponseLost
		default:
			continue // already terminal (e.g. resolved concurrently)
		}
		if _, ok := r.resolve(id, target); ok {
			swept = append(swept, sweptRequest{id: id, status: target})
		}
	}
	return swept
}

// pendingIDs returns the ids of every still-non-terminal request, in
// insertion order. Used to populate ClientIsDeadEvent.PendingRequestIDs.
func (r *requestRegistry) pendingIDs() []RequestID {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]RequestID, len(r.order))
	copy(ids, r.order)
	return ids
}

type sweptRequest struct {
	id     RequestID
	status RequestStatus
}
