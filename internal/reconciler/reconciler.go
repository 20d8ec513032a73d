// Package reconciler detects and re-emits stale pending notifications.
//
// A notification is stale when its row has status='pending' but delivery
// never finished (buffer overflow, breaker deferral, crash mid-retry).
// The reconciler periodically scans for stale rows and re-emits them to the
// event bus. Idempotency is guaranteed by the notifier's terminal state
// guards: a notification that reached sent/failed in the meantime is
// safely ignored on replay.
package reconciler

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/finbeat/finbeat/internal/domain"
	"github.com/finbeat/finbeat/internal/notifier"
)

// SafetyMargin is added on top of the notifier's worst-case retry window
// when computing the default stale threshold.
const SafetyMargin = 5 * time.Minute

// Store defines the interface for fetching stale pending notifications.
type Store interface {
	GetStalePendingNotifications(ctx context.Context, olderThan time.Time, maxResults int) ([]domain.Notification, error)
}

// EventEmitter defines the interface for re-emitting notification events.
type EventEmitter interface {
	Emit(ctx context.Context, event domain.NotificationEvent) error
}

// MetricsSink receives the stale backlog size each cycle. Optional.
type MetricsSink interface {
	StalePendingUpdate(count int)
}

// Config holds reconciler configuration.
type Config struct {
	// Interval is how often the reconciler runs.
	// Default: 5 minutes.
	Interval time.Duration

	// Threshold is the age after which a pending notification is considered
	// stale. Must exceed the notifier's maximum retry duration, otherwise a
	// notification still inside its retry loop would be delivered twice.
	Threshold time.Duration

	// BatchSize is the maximum number of stale rows to process per cycle.
	// Default: 100.
	BatchSize int
}

// DefaultConfig returns the default reconciler configuration.
func DefaultConfig() Config {
	return Config{
		Interval:  5 * time.Minute,
		Threshold: notifier.MaxRetryDuration() + SafetyMargin,
		BatchSize: 100,
	}
}

// Reconciler detects stale pending notifications and re-emits them.
type Reconciler struct {
	config  Config
	store   Store
	emitter EventEmitter
	metrics MetricsSink // optional, nil = disabled
	clock   func() time.Time
}

// New creates a new Reconciler.
func New(config Config, store Store, emitter EventEmitter) *Reconciler {
	return &Reconciler{
		config:  config,
		store:   store,
		emitter: emitter,
		clock:   time.Now,
	}
}

// WithMetrics attaches a metrics sink to the reconciler.
func (r *Reconciler) WithMetrics(sink MetricsSink) *Reconciler {
	r.metrics = sink
	return r
}

// Run starts the reconciliation loop. It blocks until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	log.Printf("reconciler: started (interval=%s, threshold=%s, batch=%d)",
		r.config.Interval, r.config.Threshold, r.config.BatchSize)

	// Run immediately on startup, then on ticker
	r.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("reconciler: stopped")
			return
		case <-ticker.C:
			r.runCycle(ctx)
		}
	}
}

// runCycle executes one reconciliation cycle.
func (r *Reconciler) runCycle(ctx context.Context) {
	now := r.clock().UTC()
	threshold := now.Add(-r.config.Threshold)

	stale, err := r.store.GetStalePendingNotifications(ctx, threshold, r.config.BatchSize)
	if err != nil {
		// DB error: log and abort cycle. Will retry next interval.
		log.Printf("reconciler: failed to fetch stale notifications: %v", err)
		return
	}

	if r.metrics != nil {
		r.metrics.StalePendingUpdate(len(stale))
	}

	if len(stale) == 0 {
		// Nothing to do. Silent success.
		return
	}

	log.Printf("reconciler: found %d stale pending notifications", len(stale))

	emitted := 0
	failed := 0

	for _, n := range stale {
		// Check context before each emit to allow graceful shutdown
		if ctx.Err() != nil {
			log.Printf("reconciler: cycle interrupted, processed %d/%d", emitted+failed, len(stale))
			return
		}

		event := domain.NotificationEvent{
			NotificationID: n.ID,
			OwnerID:        n.OwnerID,
			Kind:           n.Kind,
			EntityID:       n.EntityID,
			Title:          n.Title,
			Body:           n.Body,
			SendEmail:      n.SendEmail,
			CreatedAt:      n.CreatedAt,
		}

		if err := r.emitter.Emit(ctx, event); err != nil {
			// Emit failed (buffer full, context cancelled).
			// Log and continue - will retry next cycle.
			log.Printf("reconciler: failed to re-emit notification=%s kind=%s: %v",
				n.ID, n.Kind, err)
			failed++
			continue
		}

		log.Printf("reconciler: re-emitted notification=%s kind=%s (age=%s)",
			n.ID, n.Kind, now.Sub(n.CreatedAt).Round(time.Second))
		emitted++
	}

	log.Printf("reconciler: cycle complete, re-emitted=%d, failed=%d", emitted, failed)
}
