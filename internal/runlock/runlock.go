// Package runlock provides a Postgres advisory lock-based single-flight
// guard for batch runs.
//
// A session-scoped advisory lock serializes execution runs across all
// instances: the cron trigger and concurrent manual API triggers contend on
// the same key, and losers fail fast instead of queueing. The lock is held
// on a dedicated connection for the duration of one run; if the connection
// dies, Postgres releases the lock server-side.
//
// This is the first of two layers. The second is the unique index on
// (scheduled_item_id, execution_date), which makes a duplicate execution
// harmless even if two runs ever overlap.
package runlock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// ErrRunInProgress is returned when another instance holds the run lock.
var ErrRunInProgress = errors.New("an execution run is already in progress")

// MetricsSink records lock contention. Non-blocking, fire-and-forget.
type MetricsSink interface {
	RunLockAcquired()
	RunLockContended()
}

// Guard serializes runs on a Postgres advisory lock.
type Guard struct {
	db      *sql.DB
	lockKey int64
	metrics MetricsSink // optional, nil = disabled
}

func New(db *sql.DB, lockKey int64) *Guard {
	return &Guard{db: db, lockKey: lockKey}
}

// WithMetrics attaches a metrics sink to the guard.
func (g *Guard) WithMetrics(sink MetricsSink) *Guard {
	g.metrics = sink
	return g
}

// Do runs fn while holding the advisory lock. It returns ErrRunInProgress
// without calling fn when the lock is held elsewhere.
func (g *Guard) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	// Advisory lock is session-scoped: must use a dedicated connection.
	conn, err := g.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire dedicated connection: %w", err)
	}
	defer conn.Close()

	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", g.lockKey).Scan(&acquired); err != nil {
		return fmt.Errorf("advisory lock query: %w", err)
	}
	if !acquired {
		if g.metrics != nil {
			g.metrics.RunLockContended()
		}
		return ErrRunInProgress
	}

	if g.metrics != nil {
		g.metrics.RunLockAcquired()
	}

	defer func() {
		// Unlock on the same session. Closing the connection would release
		// it too, but an explicit unlock returns it to the pool clean.
		if _, err := conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock($1)", g.lockKey); err != nil {
			log.Printf("runlock: advisory unlock failed: %v", err)
		}
	}()

	return fn(ctx)
}
