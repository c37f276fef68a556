package worker

import (
	"context"
	"errors"
	"sync"
)

var ErrQueueClosed = errors.New("queue closed")

// Job is one listing to build and run.
type Job struct {
	Name   string `json:"name"`
	Source []byte `json:"source"`
}

// JobQueue defines the interface for a job queue
type JobQueue interface {
	// Push adds a job to the queue
	Push(ctx context.Context, job Job) error

	// Pop blocks until a job is available. It returns ErrQueueClosed once the
	// queue is closed and drained.
	Pop(ctx context.Context) (Job, error)

	// Close stops accepting jobs; queued jobs are still handed out
	Close() error
}

// MemoryQueue is a bounded in-process queue.
type MemoryQueue struct {
	jobs      chan Job
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

func NewMemoryQueue(capacity int) *MemoryQueue {
	return &MemoryQueue{jobs: make(chan Job, capacity)}
}

func (q *MemoryQueue) Push(ctx context.Context, job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Pop(ctx context.Context) (Job, error) {
	select {
	case job, ok := <-q.jobs:
		if !ok {
			return Job{}, ErrQueueClosed
		}
		return job, nil
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
}

func (q *MemoryQueue) Close() error {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		close(q.jobs)
		q.mu.Unlock()
	})
	return nil
}

func (q *MemoryQueue) Len() int { return len(q.jobs) }
