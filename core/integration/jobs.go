package integration

import (
	"context"
	"sync"
	"time"

	"github.com/trezcool/halaqat/core"
)

var ErrJobNotFound = &core.NotFoundError{Entity: "job"}

type jobEntry struct {
	job  Job
	done chan struct{}
}

const defaultJobRetention = time.Hour

// jobTracker keeps the state of background gateway calls in memory.
// Jobs finished for longer than retention are evicted on the next start or get.
type jobTracker struct {
	mu        sync.RWMutex
	jobs      map[string]*jobEntry
	retention time.Duration
	now       func() time.Time
}

func newJobTracker(retention time.Duration) *jobTracker {
	if retention <= 0 {
		retention = defaultJobRetention
	}
	return &jobTracker{
		jobs:      make(map[string]*jobEntry),
		retention: retention,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// sweep evicts expired jobs. Must be called with mu held.
func (t *jobTracker) sweep() {
	cutoff := t.now().Add(-t.retention)
	for id, entry := range t.jobs {
		if fin := entry.job.FinishedAt; fin != nil && fin.Before(cutoff) {
			delete(t.jobs, id)
		}
	}
}

// start runs fn in the background, detached from the caller's context.
func (t *jobTracker) start(orgID string, kind JobKind, fn func(ctx context.Context) (interface{}, error)) Job {
	entry := &jobEntry{
		job: Job{
			ID:        core.NewID(),
			OrgID:     orgID,
			Kind:      kind,
			Status:    JobPending,
			CreatedAt: t.now(),
		},
		done: make(chan struct{}),
	}
	t.mu.Lock()
	t.sweep()
	t.jobs[entry.job.ID] = entry
	job := entry.job
	t.mu.Unlock()

	go func() {
		defer close(entry.done)

		t.update(entry, func(j *Job) { j.Status = JobRunning })
		result, err := fn(context.Background())
		t.update(entry, func(j *Job) {
			now := t.now()
			j.FinishedAt = &now
			if err != nil {
				j.Status = JobFailed
				j.Err = err
				j.Error = err.Error()
				return
			}
			j.Status = JobSucceeded
			j.Result = result
		})
	}()
	return job
}

func (t *jobTracker) update(entry *jobEntry, fn func(j *Job)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&entry.job)
}

func (t *jobTracker) get(id string) (Job, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sweep()
	if entry, ok := t.jobs[id]; ok {
		return entry.job, nil
	}
	return Job{}, ErrJobNotFound
}

// wait blocks until the job is done or ctx is over.
func (t *jobTracker) wait(ctx context.Context, id string) (Job, error) {
	t.mu.RLock()
	entry, ok := t.jobs[id]
	t.mu.RUnlock()
	if !ok {
		return Job{}, ErrJobNotFound
	}
	select {
	case <-entry.done:
		return t.get(id)
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
}
