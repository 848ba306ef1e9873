// Package ratelimit provides per-client admission control for job
// submissions. The limiters are load-shedding devices, not accounting
// systems: they bound how fast any one client can enqueue work.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Defaults applied when a constructor receives non-positive values.
const (
	DefaultLimit  = 30
	DefaultWindow = 60 * time.Second
)

// Limiter decides whether a client's submission is admitted right now.
type Limiter interface {
	// Allow reports whether clientID may submit. A rejected call does not
	// consume quota; only admitted submissions count against the window.
	Allow(ctx context.Context, clientID string) bool
}

// SlidingWindow is an in-process trailing-window limiter. Each client gets a
// timestamp list; a call prunes entries older than the window, rejects when
// the remainder has reached the limit, and otherwise records itself.
type SlidingWindow struct {
	mu      sync.Mutex
	clients map[string][]time.Time

	limit  int
	window time.Duration
	now    func() time.Time
}

// NewSlidingWindow creates a limiter admitting at most limit submissions per
// client inside a trailing window.
func NewSlidingWindow(limit int, window time.Duration) *SlidingWindow {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &SlidingWindow{
		clients: make(map[string][]time.Time),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

// Allow implements Limiter. A client never seen before has zero usage. The
// context is unused; it exists so the in-process and networked limiters share
// one signature.
func (s *SlidingWindow) Allow(_ context.Context, clientID string) bool {
	now := s.now()
	cutoff := now.Add(-s.window)

	s.mu.Lock()
	defer s.mu.Unlock()

	stamps := s.clients[clientID]
	kept := stamps[:0]
	for _, ts := range stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= s.limit {
		s.clients[clientID] = kept
		return false
	}

	s.clients[clientID] = append(kept, now)
	return true
}

// Sweep drops clients whose newest entry has aged out of the window and
// reports how many were dropped. Run it periodically so one-off clients do
// not grow the map forever.
func (s *SlidingWindow) Sweep() int {
	cutoff := s.now().Add(-s.window)

	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for id, stamps := range s.clients {
		if len(stamps) == 0 || !stamps[len(stamps)-1].After(cutoff) {
			delete(s.clients, id)
			dropped++
		}
	}
	return dropped
}
