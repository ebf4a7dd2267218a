package provider

import (
	"context"
	"sync"
	"time"
)

// pollQueue serializes status polling for backends with hard rate limits:
// one ticker drains registered identifiers round-robin, never one timer per
// identifier. Jobs whose context is done are dropped on their next turn.
type pollQueue struct {
	interval time.Duration

	mu   sync.Mutex
	jobs []*pollJob
	stop chan struct{}
	once sync.Once
}

type pollJob struct {
	ctx context.Context
	run func(context.Context)
	// done is closed by the owner to deregister without cancelling ctx.
	done chan struct{}
}

func newPollQueue(interval time.Duration) *pollQueue {
	q := &pollQueue{interval: interval, stop: make(chan struct{})}
	go q.loop()
	return q
}

func (q *pollQueue) loop() {
	t := time.NewTicker(q.interval)
	defer t.Stop()
	for {
		select {
		case <-q.stop:
			return
		case <-t.C:
		}

		job := q.next()
		if job == nil {
			continue
		}
		job.run(job.ctx)
	}
}

// next rotates the queue, pruning finished jobs.
func (q *pollQueue) next() *pollJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.jobs) > 0 {
		job := q.jobs[0]
		q.jobs = q.jobs[1:]
		select {
		case <-job.ctx.Done():
			continue
		case <-job.done:
			continue
		default:
		}
		q.jobs = append(q.jobs, job)
		return job
	}
	return nil
}

// Add registers a poll function and returns an idempotent deregister.
func (q *pollQueue) Add(ctx context.Context, run func(context.Context)) func() {
	job := &pollJob{ctx: ctx, run: run, done: make(chan struct{})}
	q.mu.Lock()
	q.jobs = append(q.jobs, job)
	q.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { close(job.done) }) }
}

func (q *pollQueue) Close() {
	q.once.Do(func() { close(q.stop) })
}
