package alerts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/finbeat/finbeat/internal/domain"
)

// ErrNoBudget is returned by stores when an owner has no active budget for
// a category. The watcher treats it as "nothing to track".
var ErrNoBudget = errors.New("no active budget for category")

// Budget usage thresholds, in percent. Each is an independent alert stream.
var budgetThresholds = []struct {
	percent int64
	kind    domain.AlertKind
}{
	{80, domain.AlertBudget80},
	{90, domain.AlertBudget90},
	{100, domain.AlertBudget100},
}

type BudgetStore interface {
	// ApplySpend atomically adds amount to the matching budget's spent total
	// and returns the updated budget plus the previous spent value.
	// Returns ErrNoBudget when no active budget covers (ownerID, categoryID).
	ApplySpend(ctx context.Context, ownerID, categoryID int64, amount decimal.Decimal) (domain.Budget, decimal.Decimal, error)
}

type EventEmitter interface {
	Emit(ctx context.Context, event domain.NotificationEvent) error
}

// BudgetWatcher applies each created transaction to the owner's budget and
// emits a warning whenever usage crosses 80, 90 or 100 percent of the limit.
// It implements the executor's TransactionObserver hook.
type BudgetWatcher struct {
	store   BudgetStore
	gate    *Gate
	emitter EventEmitter
	clock   func() time.Time
}

func NewBudgetWatcher(store BudgetStore, gate *Gate, emitter EventEmitter) *BudgetWatcher {
	return &BudgetWatcher{
		store:   store,
		gate:    gate,
		emitter: emitter,
		clock:   time.Now,
	}
}

// Observe is best-effort: budget tracking must never fail the execution
// that triggered it.
func (w *BudgetWatcher) Observe(ctx context.Context, tx domain.Transaction) {
	budget, prevSpent, err := w.store.ApplySpend(ctx, tx.OwnerID, tx.CategoryID, tx.Amount)
	if err != nil {
		if errors.Is(err, ErrNoBudget) {
			return
		}
		log.Printf("alerts: apply spend owner=%d category=%d error: %v", tx.OwnerID, tx.CategoryID, err)
		return
	}

	w.checkCrossings(ctx, budget, prevSpent)
}

// checkCrossings fires one event per threshold the update crossed, each
// gated by its own cooldown.
func (w *BudgetWatcher) checkCrossings(ctx context.Context, budget domain.Budget, prevSpent decimal.Decimal) {
	if budget.LimitAmount.IsZero() {
		return
	}

	hundred := decimal.NewFromInt(100)
	prevPct := prevSpent.Div(budget.LimitAmount).Mul(hundred)
	newPct := budget.UsedPercent()

	for _, th := range budgetThresholds {
		limit := decimal.NewFromInt(th.percent)
		if prevPct.GreaterThanOrEqual(limit) || newPct.LessThan(limit) {
			continue
		}

		key := Key{OwnerID: budget.OwnerID, Kind: th.kind, EntityID: budget.ID}
		if !w.gate.ShouldNotify(key) {
			continue
		}

		event := domain.NotificationEvent{
			NotificationID: uuid.New(),
			OwnerID:        budget.OwnerID,
			Kind:           th.kind,
			EntityID:       budget.ID,
			Title:          fmt.Sprintf("Budget at %d%%", th.percent),
			Body: fmt.Sprintf("You have used %s%% of your %s budget limit.",
				newPct.Round(1).String(), budget.LimitAmount.String()),
			SendEmail: th.kind == domain.AlertBudget100,
			CreatedAt: w.clock().UTC(),
		}

		if err := w.emitter.Emit(ctx, event); err != nil {
			log.Printf("alerts: emit budget warning budget=%d kind=%s error: %v", budget.ID, th.kind, err)
			continue
		}
		w.gate.RecordFired(key)
	}
}
