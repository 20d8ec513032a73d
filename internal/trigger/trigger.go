// Package trigger schedules the recurring batch jobs: the daily execution
// run and the debt reminder scan. Jobs fire on standard 5-field cron specs
// and run in UTC so the calendar-day semantics of the executor are stable
// across deployments.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/finbeat/finbeat/internal/recurrence"
	"github.com/finbeat/finbeat/internal/runlock"
)

// DefaultJobTimeout bounds a single cron-fired job.
const DefaultJobTimeout = 10 * time.Minute

// Runner executes the pending scheduled-item batch.
type Runner interface {
	RunPendingExecutions(ctx context.Context) (recurrence.RunResult, error)
}

// DebtScanner emits due-date and overdue debt reminders.
type DebtScanner interface {
	Scan(ctx context.Context) error
}

// RunGuard serializes execution runs across instances.
type RunGuard interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// Config holds the cron specs for the two scheduled jobs.
type Config struct {
	RunSchedule      string // executor run, e.g. "5 0 * * *"
	DebtScanSchedule string // debt reminder scan, e.g. "0 8 * * *"
	JobTimeout       time.Duration
}

// Engine owns the cron scheduler and the jobs registered on it.
type Engine struct {
	config  Config
	cron    *cron.Cron
	runner  Runner
	guard   RunGuard
	scanner DebtScanner // optional, nil = debt scan disabled
}

func New(config Config, runner Runner, guard RunGuard) *Engine {
	if config.JobTimeout <= 0 {
		config.JobTimeout = DefaultJobTimeout
	}
	return &Engine{
		config: config,
		cron:   cron.New(cron.WithLocation(time.UTC)),
		runner: runner,
		guard:  guard,
	}
}

// WithDebtScanner registers a debt scan job alongside the execution run.
func (e *Engine) WithDebtScanner(scanner DebtScanner) *Engine {
	e.scanner = scanner
	return e
}

// Start registers the cron jobs and starts the scheduler. It fails fast on
// an unparseable spec instead of silently running without a job.
func (e *Engine) Start() error {
	if _, err := e.cron.AddFunc(e.config.RunSchedule, e.runExecution); err != nil {
		return fmt.Errorf("register execution run job: %w", err)
	}
	log.Printf("trigger: execution run scheduled at %q", e.config.RunSchedule)

	if e.scanner != nil {
		if _, err := e.cron.AddFunc(e.config.DebtScanSchedule, e.runDebtScan); err != nil {
			return fmt.Errorf("register debt scan job: %w", err)
		}
		log.Printf("trigger: debt scan scheduled at %q", e.config.DebtScanSchedule)
	}

	e.cron.Start()
	return nil
}

// Stop halts the scheduler and waits for any in-flight job to finish.
func (e *Engine) Stop() {
	<-e.cron.Stop().Done()
	log.Printf("trigger: scheduler stopped")
}

// runExecution performs one lock-guarded execution run. Losing the lock to
// another instance is normal operation, not an error.
func (e *Engine) runExecution() {
	ctx, cancel := context.WithTimeout(context.Background(), e.config.JobTimeout)
	defer cancel()

	err := e.guard.Do(ctx, func(ctx context.Context) error {
		_, err := e.runner.RunPendingExecutions(ctx)
		return err
	})
	switch {
	case errors.Is(err, runlock.ErrRunInProgress):
		log.Printf("trigger: execution run skipped, another instance holds the lock")
	case err != nil:
		log.Printf("trigger: execution run error: %v", err)
	}
}

func (e *Engine) runDebtScan() {
	ctx, cancel := context.WithTimeout(context.Background(), e.config.JobTimeout)
	defer cancel()

	if err := e.scanner.Scan(ctx); err != nil {
		log.Printf("trigger: debt scan error: %v", err)
	}
}
