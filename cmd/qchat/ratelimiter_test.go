package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterAllowsUnderLimit(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)

	assert.True(t, rl.Allow("client-1"))
	assert.True(t, rl.Allow("client-1"))
	assert.True(t, rl.Allow("client-1"))
	assert.False(t, rl.Allow("client-1"))
}

func TestRateLimiterIsolatesClients(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)

	assert.True(t, rl.Allow("client-1"))
	assert.False(t, rl.Allow("client-1"))
	assert.True(t, rl.Allow("client-2"))
}

func TestRateLimiterWindowExpiry(t *testing.T) {
	rl := NewRateLimiter(1, 20*time.Millisecond)

	assert.True(t, rl.Allow("client-1"))
	assert.False(t, rl.Allow("client-1"))

	time.Sleep(30 * time.Millisecond)
	assert.True(t, rl.Allow("client-1"))
}

func TestRateLimiterPrunesIdleClients(t *testing.T) {
	rl := NewRateLimiter(5, 20*time.Millisecond)

	assert.True(t, rl.Allow("idle-client"))
	time.Sleep(30 * time.Millisecond)

	// A request from another client prunes the idle entry.
	assert.True(t, rl.Allow("active-client"))

	rl.mu.Lock()
	_, exists := rl.clients["idle-client"]
	rl.mu.Unlock()
	assert.False(t, exists)
}
