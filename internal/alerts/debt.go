package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/finbeat/finbeat/internal/domain"
)

// dueReminderDays are the days-before-due marks that trigger a reminder.
var dueReminderDays = map[int]domain.AlertKind{
	7: domain.AlertDebtDue7,
	3: domain.AlertDebtDue3,
	1: domain.AlertDebtDue1,
}

type DebtStore interface {
	// ListOpenDebtsDueBy returns unsettled debts with a due date on or
	// before the given day, including already-overdue ones.
	ListOpenDebtsDueBy(ctx context.Context, by time.Time) ([]domain.Debt, error)
}

// DebtWatcher scans open debts once per trigger and emits due-date and
// overdue reminders: 7/3/1 days before due, then on the first day overdue
// and every 7th day overdue after that.
type DebtWatcher struct {
	store   DebtStore
	gate    *Gate
	emitter EventEmitter
	clock   func() time.Time
}

func NewDebtWatcher(store DebtStore, gate *Gate, emitter EventEmitter) *DebtWatcher {
	return &DebtWatcher{
		store:   store,
		gate:    gate,
		emitter: emitter,
		clock:   time.Now,
	}
}

// Scan processes all debts due within the reminder horizon. Per-debt
// failures are logged and the scan continues.
func (w *DebtWatcher) Scan(ctx context.Context) error {
	now := w.clock().UTC()
	today, _ := dayBounds(now)

	debts, err := w.store.ListOpenDebtsDueBy(ctx, today.AddDate(0, 0, 7))
	if err != nil {
		return fmt.Errorf("list open debts: %w", err)
	}

	for _, debt := range debts {
		w.checkDebt(ctx, debt, today, now)
	}
	return nil
}

func (w *DebtWatcher) checkDebt(ctx context.Context, debt domain.Debt, today, now time.Time) {
	due, _ := dayBounds(debt.DueDate)
	daysUntil := int(due.Sub(today).Hours() / 24)

	var kind domain.AlertKind
	var title, body string

	switch {
	case daysUntil > 0:
		k, ok := dueReminderDays[daysUntil]
		if !ok {
			return
		}
		kind = k
		title = fmt.Sprintf("Debt due in %d day(s)", daysUntil)
		body = fmt.Sprintf("%s (%s) is due on %s.",
			debt.Description, debt.Amount.String(), due.Format("2006-01-02"))
	case daysUntil == 0:
		// Due today: covered by the 1-day reminder the day before.
		return
	default:
		daysOver := -daysUntil
		if daysOver != 1 && (daysOver-1)%7 != 0 {
			return
		}
		kind = domain.AlertDebtOverdue
		title = fmt.Sprintf("Debt overdue by %d day(s)", daysOver)
		body = fmt.Sprintf("%s (%s) was due on %s and is still unsettled.",
			debt.Description, debt.Amount.String(), due.Format("2006-01-02"))
	}

	key := Key{OwnerID: debt.OwnerID, Kind: kind, EntityID: debt.ID}
	if !w.gate.ShouldNotify(key) {
		return
	}

	event := domain.NotificationEvent{
		NotificationID: uuid.New(),
		OwnerID:        debt.OwnerID,
		Kind:           kind,
		EntityID:       debt.ID,
		Title:          title,
		Body:           body,
		SendEmail:      kind == domain.AlertDebtOverdue,
		CreatedAt:      now,
	}

	if err := w.emitter.Emit(ctx, event); err != nil {
		log.Printf("alerts: emit debt reminder debt=%d kind=%s error: %v", debt.ID, kind, err)
		return
	}
	w.gate.RecordFired(key)
}

// dayBounds mirrors the executor's calendar-day convention.
func dayBounds(t time.Time) (start, end time.Time) {
	y, m, d := t.UTC().Date()
	start = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}
