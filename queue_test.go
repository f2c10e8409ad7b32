package gateway

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_ConcurrencyCeiling(t *testing.T) {
	q := newDispatchQueue(3, 64, time.Second)
	defer q.Close()

	var inFlight, maxSeen atomic.Int64
	job := func() (attemptResult, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			max := maxSeen.Load()
			if n <= max || maxSeen.CompareAndSwap(max, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		return attemptResult{}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := q.Do(context.Background(), job)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, maxSeen.Load(), int64(3))
}

func TestQueue_WaitTimeoutNeverStartsTask(t *testing.T) {
	q := newDispatchQueue(1, 64, 30*time.Millisecond)

	release := make(chan struct{})
	blocker := func() (attemptResult, error) {
		<-release
		return attemptResult{}, nil
	}

	var blockerDone sync.WaitGroup
	blockerDone.Add(1)
	go func() {
		defer blockerDone.Done()
		_, _ = q.Do(context.Background(), blocker)
	}()

	// Give the worker time to pick up the blocker.
	time.Sleep(10 * time.Millisecond)

	var started atomic.Int64
	_, err := q.Do(context.Background(), func() (attemptResult, error) {
		started.Add(1)
		return attemptResult{}, nil
	})
	require.ErrorIs(t, err, ErrQueueTimeout)

	close(release)
	blockerDone.Wait()
	q.Close()

	// The worker drained the queue on Close; the timed-out task must
	// have been skipped, not run.
	assert.Equal(t, int64(0), started.Load())
}

func TestQueue_StrictFIFO(t *testing.T) {
	q := newDispatchQueue(1, 64, time.Second)
	defer q.Close()

	release := make(chan struct{})
	var gate sync.WaitGroup
	gate.Add(1)
	go func() {
		defer gate.Done()
		_, _ = q.Do(context.Background(), func() (attemptResult, error) {
			<-release
			return attemptResult{}, nil
		})
	}()
	time.Sleep(10 * time.Millisecond)

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = q.Do(context.Background(), func() (attemptResult, error) {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return attemptResult{}, nil
			})
		}()
		// Stagger submissions so enqueue order is deterministic.
		time.Sleep(5 * time.Millisecond)
	}

	close(release)
	wg.Wait()
	gate.Wait()

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestQueue_FullBacklogRejectsImmediately(t *testing.T) {
	q := newDispatchQueue(1, 1, time.Second)
	defer q.Close()

	release := make(chan struct{})
	defer close(release)

	var bg sync.WaitGroup
	// One running, one queued: the backlog is now full.
	for i := 0; i < 2; i++ {
		bg.Add(1)
		go func() {
			defer bg.Done()
			_, _ = q.Do(context.Background(), func() (attemptResult, error) {
				<-release
				return attemptResult{}, nil
			})
		}()
		time.Sleep(10 * time.Millisecond)
	}

	start := time.Now()
	_, err := q.Do(context.Background(), func() (attemptResult, error) {
		return attemptResult{}, nil
	})
	assert.ErrorIs(t, err, ErrQueueTimeout)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}
