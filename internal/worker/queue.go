// Package worker runs best-effort background jobs off the request path.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Job is one unit of background work.
type Job func(ctx context.Context) error

type task struct {
	name string
	job  Job
}

// Queue is a bounded job queue served by a single goroutine. Submit never
// blocks: when the queue is full the job is dropped with a warning.
type Queue struct {
	name    string
	timeout time.Duration
	tasks   chan task
	done    chan struct{}

	mu     sync.RWMutex
	closed bool

	statsMu   sync.Mutex
	completed int64
	failed    int64
	dropped   int64
}

// Stats counts what happened to submitted jobs.
type Stats struct {
	Pending   int   `json:"pending"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Dropped   int64 `json:"dropped"`
}

// NewQueue starts a queue holding up to size jobs. Each job runs with the
// given timeout; zero means no limit.
func NewQueue(name string, size int, timeout time.Duration) *Queue {
	if size <= 0 {
		size = 1
	}
	q := &Queue{
		name:    name,
		timeout: timeout,
		tasks:   make(chan task, size),
		done:    make(chan struct{}),
	}
	go q.run()
	return q
}

// Submit queues job and reports whether it was accepted.
func (q *Queue) Submit(name string, job Job) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return false
	}

	select {
	case q.tasks <- task{name: name, job: job}:
		return true
	default:
		q.statsMu.Lock()
		q.dropped++
		q.statsMu.Unlock()
		log.Warnf("%s queue full, dropping %s", q.name, name)
		return false
	}
}

func (q *Queue) run() {
	defer close(q.done)
	for t := range q.tasks {
		err := q.exec(t)
		q.statsMu.Lock()
		if err != nil {
			q.failed++
		} else {
			q.completed++
		}
		q.statsMu.Unlock()
		if err != nil {
			log.Warnf("%s: %s failed: %v", q.name, t.name, err)
		}
	}
}

func (q *Queue) exec(t task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	ctx := context.Background()
	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}
	return t.job(ctx)
}

// Stats returns a snapshot of the queue counters.
func (q *Queue) Stats() Stats {
	q.statsMu.Lock()
	defer q.statsMu.Unlock()
	return Stats{Pending: len(q.tasks), Completed: q.completed, Failed: q.failed, Dropped: q.dropped}
}

// Close stops accepting jobs and waits for the queued ones to finish, or for
// ctx to end. It is safe to call more than once.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.tasks)
	}
	q.mu.Unlock()

	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s queue: %d jobs abandoned: %w", q.name, len(q.tasks), ctx.Err())
	}
}
