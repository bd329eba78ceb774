package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestJobTracker_Eviction(t *testing.T) {
	clock := &fakeClock{now: time.Date(2023, 10, 5, 8, 0, 0, 0, time.UTC)}
	tracker := newJobTracker(time.Minute)
	tracker.now = clock.Now
	ctx := context.Background()

	release := make(chan struct{})
	running := tracker.start("org1", JobImportSheet, func(context.Context) (interface{}, error) {
		<-release
		return ImportResult{Imported: 1}, nil
	})
	finished := tracker.start("org1", JobConnect, func(context.Context) (interface{}, error) {
		return nil, errors.New("invalid_grant")
	})
	done, err := tracker.wait(ctx, finished.ID)
	require.NoError(t, err)
	assert.Equal(t, JobFailed, done.Status)

	clock.Advance(30 * time.Second)
	_, err = tracker.get(finished.ID)
	assert.NoError(t, err, "kept within retention")

	clock.Advance(time.Minute)
	_, err = tracker.get(finished.ID)
	assert.Equal(t, ErrJobNotFound, err)

	// unfinished jobs are never evicted
	_, err = tracker.get(running.ID)
	require.NoError(t, err)
	close(release)
	done, err = tracker.wait(ctx, running.ID)
	require.NoError(t, err)
	assert.Equal(t, JobSucceeded, done.Status)

	clock.Advance(2 * time.Minute)
	tracker.start("org2", JobConnect, func(context.Context) (interface{}, error) { return nil, nil })
	tracker.mu.RLock()
	_, ok := tracker.jobs[running.ID]
	tracker.mu.RUnlock()
	assert.False(t, ok, "start sweeps expired jobs")
}

func TestNewJobTracker_DefaultRetention(t *testing.T) {
	assert.Equal(t, defaultJobRetention, newJobTracker(0).retention)
}
