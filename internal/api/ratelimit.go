package api

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// defaultConnectionsPerMinute is the per-source-IP WebSocket connection
// attempt budget: 5 new connections per minute.
const defaultConnectionsPerMinute = 5

// cleanupIdleDuration bounds memory growth from transient source IPs that
// never reconnect.
const cleanupIdleDuration = 10 * time.Minute

type budgetEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ConnectionBudget enforces a per-source connection-attempt budget ahead of
// the WebSocket upgrade, distinct from Subscriber's per-message rate limit
// which applies only after a connection is already established.
type ConnectionBudget struct {
	perMinute int
	mu        sync.Mutex
	entries   map[string]*budgetEntry
}

// NewConnectionBudget returns a budget allowing perMinute connection
// attempts per source IP, with burst equal to perMinute.
func NewConnectionBudget(perMinute int) *ConnectionBudget {
	if perMinute <= 0 {
		perMinute = defaultConnectionsPerMinute
	}
	b := &ConnectionBudget{
		perMinute: perMinute,
		entries:   make(map[string]*budgetEntry),
	}
	go b.cleanupLoop()
	return b
}

// Allow reports whether sourceIP may attempt another connection now.
func (b *ConnectionBudget) Allow(sourceIP string) bool {
	b.mu.Lock()
	entry, ok := b.entries[sourceIP]
	if !ok {
		entry = &budgetEntry{
			limiter: rate.NewLimiter(rate.Limit(float64(b.perMinute)/60.0), b.perMinute),
		}
		b.entries[sourceIP] = entry
	}
	entry.lastSeen = time.Now()
	b.mu.Unlock()

	return entry.limiter.Allow()
}

func (b *ConnectionBudget) cleanupLoop() {
	ticker := time.NewTicker(cleanupIdleDuration)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-cleanupIdleDuration)
		b.mu.Lock()
		for ip, e := range b.entries {
			if e.lastSeen.Before(cutoff) {
				delete(b.entries, ip)
			}
		}
		b.mu.Unlock()
	}
}
