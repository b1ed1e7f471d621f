// Copyright 2025 The Wireline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package wireline

import (
	"time"

	"golang.org/x/time/rate"
)

// sessionLimiter wraps a token-bucket rate limiter scoped to a single
// session's inbound frames. A zero RateLimitConfig disables limiting
// entirely (Allow always reports true).
type sessionLimiter struct {
	limiter *rate.Limiter
}

func newSessionLimiter(cfg RateLimitConfig) *sessionLimiter {
	if cfg.Period <= 0 || cfg.MaxCount <= 0 {
		return &sessionLimiter{}
	}
	// MaxCount tokens refill over Period; burst equals MaxCount so a session
	// can use its whole budget up front, then must wait for the window to
	// refill, matching a classic token-bucket reading of "period, max_count".
	r := rate.Every(cfg.Period / time.Duration(cfg.MaxCount))
	return &sessionLimiter{limiter: rate.NewLimiter(r, cfg.MaxCount)}
}

// Allow reports whether one more inbound frame is permitted right now.
func (s *sessionLimiter) Allow() bool {
	if s.limiter == nil {
		return true
	}
	return s.limiter.Allow()
}
