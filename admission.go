package gateway

import (
	"sync"
	"time"
)

// admissionGate enforces the per-user minimum interval between accepted
// requests. State is process-local: each instance enforces its own
// window.
type admissionGate struct {
	mu          sync.Mutex
	lastSeen    map[string]time.Time
	minInterval time.Duration
	highWater   int
}

func newAdmissionGate(minInterval time.Duration, highWater int) *admissionGate {
	return &admissionGate{
		lastSeen:    make(map[string]time.Time),
		minInterval: minInterval,
		highWater:   highWater,
	}
}

// Admit records an accepted request for the user and returns false if
// the previous one was accepted less than minInterval ago.
func (g *admissionGate) Admit(userID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	if last, ok := g.lastSeen[userID]; ok && now.Sub(last) < g.minInterval {
		return false
	}
	g.lastSeen[userID] = now

	// Wholesale clear once the map grows past the high-water mark.
	// Every user's window resets at once, so a short burst of
	// re-admissions can follow a clear.
	// TODO: replace with a bounded LRU so a clear doesn't reset everyone.
	if len(g.lastSeen) > g.highWater {
		g.lastSeen = make(map[string]time.Time, g.highWater/4)
	}

	return true
}
