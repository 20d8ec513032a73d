package recurrence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/finbeat/finbeat/internal/domain"
)

// ErrDuplicateExecution is returned by stores when a transaction for the
// same (scheduled item, execution day) already exists. The executor treats
// it as "already executed"; a concurrent run loses the race safely.
var ErrDuplicateExecution = errors.New("transaction already exists for this day")

type Store interface {
	// FindDueScheduledItems returns active items with NextExecutionDate on
	// or before asOf's calendar day.
	FindDueScheduledItems(ctx context.Context, asOf time.Time) ([]domain.ScheduledItem, error)
	UpdateNextExecutionDate(ctx context.Context, itemID int64, next time.Time) error
}

type TransactionStore interface {
	// InsertTransaction must return ErrDuplicateExecution when the
	// (scheduled_item_id, execution_date) uniqueness constraint trips.
	InsertTransaction(ctx context.Context, tx domain.Transaction) error
	SameDayTransactionExists(ctx context.Context, itemID int64, dayStart, dayEnd time.Time) (bool, error)
}

// TransactionObserver sees every transaction the executor creates.
// Implementations must be best-effort: they run after the transaction is
// committed and cannot fail the run.
type TransactionObserver interface {
	Observe(ctx context.Context, tx domain.Transaction)
}

// MetricsSink records executor metrics. Non-blocking, fire-and-forget.
type MetricsSink interface {
	RunStarted()
	RunCompleted(duration time.Duration, executed int, err error)
	ItemOutcome(outcome string)
}

// Item outcome labels.
const (
	OutcomeExecuted    = "executed"
	OutcomeNotDue      = "not_due"
	OutcomeAlreadyDone = "already_done"
	OutcomeFailed      = "failed"
)

// RunResult summarizes one RunPendingExecutions pass. Considered is the
// number of due candidates fetched; Executed counts transactions actually
// created.
type RunResult struct {
	Considered int
	Executed   int
	Skipped    int
	Failed     int
}

// Executor runs pending scheduled-item executions. Items are processed
// sequentially; one item's failure never aborts the batch.
type Executor struct {
	store     Store
	txStore   TransactionStore
	observers []TransactionObserver
	metrics   MetricsSink // optional, nil = disabled
	clock     func() time.Time
}

func NewExecutor(store Store, txStore TransactionStore) *Executor {
	return &Executor{
		store:   store,
		txStore: txStore,
		clock:   time.Now,
	}
}

// WithObserver registers an observer for created transactions.
func (e *Executor) WithObserver(obs TransactionObserver) *Executor {
	e.observers = append(e.observers, obs)
	return e
}

// WithMetrics attaches a metrics sink to the executor.
func (e *Executor) WithMetrics(sink MetricsSink) *Executor {
	e.metrics = sink
	return e
}

// RunPendingExecutions processes every due active scheduled item once.
// It returns an error only when the batch fetch itself fails; per-item
// errors are logged, counted in RunResult.Failed and processing continues.
func (e *Executor) RunPendingExecutions(ctx context.Context) (RunResult, error) {
	start := e.clock().UTC()
	if e.metrics != nil {
		e.metrics.RunStarted()
	}

	items, err := e.store.FindDueScheduledItems(ctx, start)
	if err != nil {
		if e.metrics != nil {
			e.metrics.RunCompleted(time.Since(start), 0, err)
		}
		return RunResult{}, fmt.Errorf("fetch due items: %w", err)
	}

	result := RunResult{Considered: len(items)}

	for _, item := range items {
		outcome := e.processItem(ctx, item, start)
		if e.metrics != nil {
			e.metrics.ItemOutcome(outcome)
		}
		switch outcome {
		case OutcomeExecuted:
			result.Executed++
		case OutcomeFailed:
			result.Failed++
		default:
			result.Skipped++
		}
	}

	if e.metrics != nil {
		e.metrics.RunCompleted(time.Since(start), result.Executed, nil)
	}
	log.Printf("executor: run complete considered=%d executed=%d skipped=%d failed=%d",
		result.Considered, result.Executed, result.Skipped, result.Failed)
	return result, nil
}

// processItem executes one scheduled item and returns its outcome label.
func (e *Executor) processItem(ctx context.Context, item domain.ScheduledItem, today time.Time) string {
	due, err := e.shouldExecute(ctx, item, today)
	if err != nil {
		log.Printf("executor: item=%d eligibility check error: %v", item.ID, err)
		return OutcomeFailed
	}
	if !due {
		// Either a missed day (no backfill: the item waits for its next
		// natural cycle) or a transaction already recorded today.
		if SameDay(item.NextExecutionDate, today) {
			return OutcomeAlreadyDone
		}
		return OutcomeNotDue
	}

	dayStart, _ := DayBounds(today)
	tx := domain.Transaction{
		ID:              uuid.New(),
		OwnerID:         item.OwnerID,
		Description:     item.Description,
		Amount:          item.Amount,
		CategoryID:      item.CategoryID,
		PaymentMethodID: item.PaymentMethodID,
		ScheduledItemID: &item.ID,
		ExecutionDate:   dayStart,
		CreatedAt:       today,
	}

	if err := e.txStore.InsertTransaction(ctx, tx); err != nil {
		if errors.Is(err, ErrDuplicateExecution) {
			// A concurrent run got there first.
			log.Printf("executor: item=%d already executed today, skipping", item.ID)
			return OutcomeAlreadyDone
		}
		log.Printf("executor: item=%d create transaction error: %v", item.ID, err)
		return OutcomeFailed
	}

	next := NextDate(item.NextExecutionDate, item.Frequency)
	if err := e.store.UpdateNextExecutionDate(ctx, item.ID, next); err != nil {
		// The transaction exists; the same-day check keeps the next run from
		// duplicating it even though the date was not advanced.
		log.Printf("executor: item=%d advance next_execution_date error: %v", item.ID, err)
		return OutcomeFailed
	}

	log.Printf("executor: item=%d executed amount=%s next=%s",
		item.ID, item.Amount.String(), next.Format("2006-01-02"))

	for _, obs := range e.observers {
		obs.Observe(ctx, tx)
	}
	return OutcomeExecuted
}

// shouldExecute decides whether item fires today: the stored next execution
// day must equal today's calendar day and no transaction for the item may
// exist yet today.
func (e *Executor) shouldExecute(ctx context.Context, item domain.ScheduledItem, today time.Time) (bool, error) {
	if !item.Active {
		return false, nil
	}
	if !SameDay(item.NextExecutionDate, today) {
		return false, nil
	}

	dayStart, dayEnd := DayBounds(today)
	exists, err := e.txStore.SameDayTransactionExists(ctx, item.ID, dayStart, dayEnd)
	if err != nil {
		return false, fmt.Errorf("same-day lookup: %w", err)
	}
	return !exists, nil
}
