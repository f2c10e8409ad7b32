package gateway

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// dispatchQueue runs jobs through a fixed pool of workers fed by a
// bounded FIFO channel. At most `workers` jobs execute at once; the
// channel preserves strict enqueue order.
type dispatchQueue struct {
	tasks       chan *queuedTask
	waitTimeout time.Duration
	wg          sync.WaitGroup
}

// queuedTask is one pending job. The claimed flag is the race between a
// worker starting the task and its wait timeout firing: whoever wins
// the CAS owns the task, so a timed-out task is never started.
type queuedTask struct {
	fn      jobFunc
	claimed atomic.Bool
	out     chan jobOutcome
}

type jobFunc func() (attemptResult, error)

type jobOutcome struct {
	res attemptResult
	err error
}

func newDispatchQueue(workers, depth int, waitTimeout time.Duration) *dispatchQueue {
	q := &dispatchQueue{
		tasks:       make(chan *queuedTask, depth),
		waitTimeout: waitTimeout,
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

func (q *dispatchQueue) worker() {
	defer q.wg.Done()
	for t := range q.tasks {
		if !t.claimed.CompareAndSwap(false, true) {
			continue // wait timeout already fired, skip without starting
		}
		res, err := t.fn()
		t.out <- jobOutcome{res: res, err: err}
	}
}

// Do submits fn and blocks until it ran or the wait timeout fired.
// A full backlog is reported as ErrQueueTimeout immediately: the system
// is overloaded and the caller should retry later. Once a worker has
// claimed the task it is not cancellable by the queue; Do waits for the
// outcome even if ctx ends.
func (q *dispatchQueue) Do(ctx context.Context, fn jobFunc) (attemptResult, error) {
	t := &queuedTask{fn: fn, out: make(chan jobOutcome, 1)}

	select {
	case q.tasks <- t:
	default:
		return attemptResult{}, ErrQueueTimeout
	}

	timer := time.NewTimer(q.waitTimeout)
	defer timer.Stop()

	select {
	case o := <-t.out:
		return o.res, o.err
	case <-timer.C:
		if t.claimed.CompareAndSwap(false, true) {
			return attemptResult{}, ErrQueueTimeout
		}
		o := <-t.out
		return o.res, o.err
	case <-ctx.Done():
		if t.claimed.CompareAndSwap(false, true) {
			return attemptResult{}, ctx.Err()
		}
		o := <-t.out
		return o.res, o.err
	}
}

// Close stops the workers after draining already-queued tasks.
func (q *dispatchQueue) Close() {
	close(q.tasks)
	q.wg.Wait()
}
