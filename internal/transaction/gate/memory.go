package gate

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Gate for development and tests. It mirrors the
// Redis semantics: create-if-absent with an expiry, atomic per call.
type Memory struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	markers map[string]time.Time
}

// NewMemory builds a memory gate. A non-positive ttl falls back to DefaultTTL.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Memory{
		ttl:     ttl,
		now:     time.Now,
		markers: make(map[string]time.Time),
	}
}

// Admit reports whether the identifier is new within the dedup window, and
// writes the marker when it is.
func (g *Memory) Admit(_ context.Context, transactionID string) (bool, error) {
	if transactionID == "" {
		return false, ErrEmptyID
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	key := markerKey(transactionID)
	now := g.now()

	if expiry, ok := g.markers[key]; ok && now.Before(expiry) {
		return false, nil
	}

	g.markers[key] = now.Add(g.ttl)
	return true, nil
}
