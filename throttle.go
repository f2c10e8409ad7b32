package gateway

import (
	"context"
	"sync"
	"time"
)

// providerThrottle paces outbound calls per provider: consecutive calls
// to the same provider are spaced at least minInterval apart.
//
// Spacing is best effort, not a mutual-exclusion lock. The new
// timestamp is stamped after the wait, and the wait itself happens
// outside the cell lock, so two callers that read the same timestamp
// can both under-wait slightly.
type providerThrottle struct {
	mu        sync.Mutex
	cells     map[string]*throttleCell
	intervals map[string]time.Duration
}

type throttleCell struct {
	mu   sync.Mutex
	last time.Time
}

func newProviderThrottle(intervals map[string]time.Duration) *providerThrottle {
	return &providerThrottle{
		cells:     make(map[string]*throttleCell),
		intervals: intervals,
	}
}

func (t *providerThrottle) cell(provider string) *throttleCell {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.cells[provider]
	if !ok {
		c = &throttleCell{}
		t.cells[provider] = c
	}
	return c
}

// Wait suspends the caller until the provider's minimum interval has
// elapsed since its last recorded call, then stamps the new timestamp.
func (t *providerThrottle) Wait(ctx context.Context, provider string) error {
	interval := t.intervals[provider]
	if interval <= 0 {
		return nil
	}

	c := t.cell(provider)

	c.mu.Lock()
	last := c.last
	c.mu.Unlock()

	if wait := interval - time.Since(last); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	c.mu.Lock()
	c.last = time.Now()
	c.mu.Unlock()
	return nil
}
