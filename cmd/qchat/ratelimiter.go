package main

import (
	"sync"
	"time"
)

// RateLimiter is a fixed-window per-client limiter used to shield the
// webhook endpoint from floods. Entries for idle clients are pruned
// opportunistically on each call.
type RateLimiter struct {
	limit   int
	window  time.Duration
	mu      sync.Mutex
	clients map[string][]time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  window,
		clients: make(map[string][]time.Time),
	}
}

// Allow reports whether another request from this client fits inside the
// current window.
func (rl *RateLimiter) Allow(clientID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-rl.window)

	kept := rl.clients[clientID][:0]
	for _, t := range rl.clients[clientID] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= rl.limit {
		rl.clients[clientID] = kept
		return false
	}

	rl.clients[clientID] = append(kept, now)
	rl.pruneLocked(cutoff)
	return true
}

func (rl *RateLimiter) pruneLocked(cutoff time.Time) {
	for id, times := range rl.clients {
		if len(times) == 0 || !times[len(times)-1].After(cutoff) {
			delete(rl.clients, id)
		}
	}
}
