package profile

import (
	"sync"
	"time"
)

// updateTracker counts in-flight updates per profile id.
type updateTracker struct {
	mu         sync.Mutex
	inProgress map[string]int
	lastUpdate map[string]time.Time
}

func newUpdateTracker() *updateTracker {
	return &updateTracker{
		inProgress: make(map[string]int),
		lastUpdate: make(map[string]time.Time),
	}
}

func (t *updateTracker) start(id string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.inProgress[id]++
	t.lastUpdate[id] = at
}

func (t *updateTracker) complete(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.inProgress[id] <= 1 {
		delete(t.inProgress, id)
		return
	}
	t.inProgress[id]--
}

func (t *updateTracker) inFlight(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inProgress[id] > 0
}

func (t *updateTracker) last(id string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	at, ok := t.lastUpdate[id]
	return at, ok
}
