// Package alerts detects budget and debt threshold crossings and decides
// when the resulting notifications may fire.
package alerts

import (
	"sync"
	"time"

	"github.com/finbeat/finbeat/internal/domain"
)

// Key identifies one logical alert stream. Each (owner, kind, entity)
// combination cools down independently.
type Key struct {
	OwnerID  int64
	Kind     domain.AlertKind
	EntityID int64
}

// DefaultCooldown is the minimum wall-clock spacing between two firings of
// the same key.
const DefaultCooldown = 24 * time.Hour

// sweepThreshold bounds the gate's memory: once the map grows past it,
// expired entries are dropped on the next write.
const sweepThreshold = 4096

// MetricsSink counts suppressed alerts. Non-blocking, fire-and-forget.
type MetricsSink interface {
	AlertSuppressed()
}

// Gate suppresses repeat notifications for the same key inside the cooldown
// window. State is process-local and lost on restart; a restart may
// re-notify each key once.
type Gate struct {
	mu        sync.Mutex
	lastFired map[Key]time.Time
	cooldown  time.Duration
	metrics   MetricsSink // optional, nil = disabled
	clock     func() time.Time
}

func NewGate(cooldown time.Duration) *Gate {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Gate{
		lastFired: make(map[Key]time.Time),
		cooldown:  cooldown,
		clock:     time.Now,
	}
}

// WithMetrics attaches a metrics sink to the gate.
func (g *Gate) WithMetrics(sink MetricsSink) *Gate {
	g.metrics = sink
	return g
}

// ShouldNotify reports whether a notification for key is allowed now.
func (g *Gate) ShouldNotify(key Key) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	fired, ok := g.lastFired[key]
	if !ok {
		return true
	}
	allowed := g.clock().Sub(fired) >= g.cooldown
	if !allowed && g.metrics != nil {
		g.metrics.AlertSuppressed()
	}
	return allowed
}

// RecordFired marks key as fired now, starting its cooldown window.
func (g *Gate) RecordFired(key Key) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock()
	if len(g.lastFired) >= sweepThreshold {
		g.sweepLocked(now)
	}
	g.lastFired[key] = now
}

// sweepLocked drops entries whose cooldown has fully elapsed.
// Caller must hold g.mu.
func (g *Gate) sweepLocked(now time.Time) {
	for key, fired := range g.lastFired {
		if now.Sub(fired) >= g.cooldown {
			delete(g.lastFired, key)
		}
	}
}
