package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diegolsarmond/qchat/internal/constants"
)

func TestSchedulerDefaults(t *testing.T) {
	s := NewScheduler(newMockStorage(), 0, 0, newTestLogger())
	assert.Equal(t, constants.DefaultRetentionDays, s.retentionDays)
	assert.Equal(t, constants.CleanupSchedulerIntervalHours, s.intervalHours)

	s = NewScheduler(newMockStorage(), 7, 12, newTestLogger())
	assert.Equal(t, 7, s.retentionDays)
	assert.Equal(t, 12, s.intervalHours)
}

func TestSchedulerRunsCleanupOnStart(t *testing.T) {
	db := newMockStorage()
	s := NewScheduler(db, 30, 24, newTestLogger())

	done := make(chan struct{})
	go func() {
		s.Start(context.Background())
		close(done)
	}()

	// The first cleanup runs immediately, before the first tick.
	require.Eventually(t, func() bool {
		db.mu.Lock()
		defer db.mu.Unlock()
		return len(db.cleanupCalls) == 1
	}, time.Second, 10*time.Millisecond)

	s.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	assert.Equal(t, []int{30}, db.cleanupCalls)
}

func TestSchedulerStopsOnContextCancel(t *testing.T) {
	s := NewScheduler(newMockStorage(), 30, 24, newTestLogger())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop on context cancel")
	}
}
