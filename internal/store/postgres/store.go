package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/finbeat/finbeat/internal/alerts"
	"github.com/finbeat/finbeat/internal/api"
	"github.com/finbeat/finbeat/internal/domain"
	"github.com/finbeat/finbeat/internal/notifier"
	"github.com/finbeat/finbeat/internal/reconciler"
	"github.com/finbeat/finbeat/internal/recurrence"
)

// Store implements the api, recurrence, alerts, notifier and reconciler
// store interfaces using PostgreSQL.
type Store struct {
	db        *sql.DB
	opTimeout time.Duration
}

// New creates a new PostgreSQL store. opTimeout bounds every single
// operation; zero disables the per-op deadline.
func New(db *sql.DB, opTimeout time.Duration) *Store {
	return &Store{db: db, opTimeout: opTimeout}
}

func (s *Store) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

// FindDueScheduledItems returns active items whose next execution day is on
// or before asOf's calendar day.
func (s *Store) FindDueScheduledItems(ctx context.Context, asOf time.Time) ([]domain.ScheduledItem, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, dayEnd := recurrence.DayBounds(asOf)

	rows, err := s.db.QueryContext(ctx, queryFindDueScheduledItems, dayEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ScheduledItem
	for rows.Next() {
		item, err := scanScheduledItem(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

// UpdateNextExecutionDate advances an item's next execution day.
func (s *Store) UpdateNextExecutionDate(ctx context.Context, itemID int64, next time.Time) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	result, err := s.db.ExecContext(ctx, queryUpdateNextExecutionDate, next, itemID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CreateScheduledItem inserts a new scheduled item and returns its id.
func (s *Store) CreateScheduledItem(ctx context.Context, item domain.ScheduledItem) (int64, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var id int64
	err := s.db.QueryRowContext(ctx, queryInsertScheduledItem,
		item.OwnerID,
		item.Description,
		item.Amount,
		item.CategoryID,
		item.PaymentMethodID,
		string(item.Frequency),
		item.NextExecutionDate,
		item.Active,
		item.CreatedAt,
		item.UpdatedAt,
	).Scan(&id)
	return id, err
}

// GetScheduledItemByID returns one item scoped to its owner.
func (s *Store) GetScheduledItemByID(ctx context.Context, itemID, ownerID int64) (domain.ScheduledItem, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	row := s.db.QueryRowContext(ctx, queryGetScheduledItemByID, itemID, ownerID)
	return scanScheduledItem(row)
}

// ListScheduledItems returns an owner's items, newest first.
func (s *Store) ListScheduledItems(ctx context.Context, ownerID int64, limit, offset int) ([]domain.ScheduledItem, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, queryListScheduledItems, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ScheduledItem
	for rows.Next() {
		item, err := scanScheduledItem(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

// DeleteScheduledItem removes an item, detaching its generated transactions.
// Returns sql.ErrNoRows when the item does not exist for the owner.
func (s *Store) DeleteScheduledItem(ctx context.Context, itemID, ownerID int64) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var deletedID int64
	err := s.db.QueryRowContext(ctx, queryDeleteScheduledItem, itemID, ownerID).Scan(&deletedID)
	if err != nil {
		return err
	}
	return nil
}

// InsertTransaction inserts a new transaction record.
// Returns recurrence.ErrDuplicateExecution when the
// (scheduled_item_id, execution_date) unique index trips.
func (s *Store) InsertTransaction(ctx context.Context, tx domain.Transaction) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var itemID sql.NullInt64
	if tx.ScheduledItemID != nil {
		itemID = sql.NullInt64{Int64: *tx.ScheduledItemID, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, queryInsertTransaction,
		tx.ID,
		tx.OwnerID,
		tx.Description,
		tx.Amount,
		tx.CategoryID,
		tx.PaymentMethodID,
		itemID,
		tx.ExecutionDate,
		tx.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return recurrence.ErrDuplicateExecution
		}
		return err
	}
	return nil
}

// SameDayTransactionExists reports whether the item already produced a
// transaction inside [dayStart, dayEnd).
func (s *Store) SameDayTransactionExists(ctx context.Context, itemID int64, dayStart, dayEnd time.Time) (bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var exists bool
	err := s.db.QueryRowContext(ctx, querySameDayTransactionExists, itemID, dayStart, dayEnd).Scan(&exists)
	return exists, err
}

// ListTransactionsForItem returns transactions generated by an item,
// newest execution day first.
func (s *Store) ListTransactionsForItem(ctx context.Context, itemID int64, limit, offset int) ([]domain.Transaction, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, queryListTransactionsForItem, itemID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		var scheduledItemID sql.NullInt64

		err := rows.Scan(
			&tx.ID,
			&tx.OwnerID,
			&tx.Description,
			&tx.Amount,
			&tx.CategoryID,
			&tx.PaymentMethodID,
			&scheduledItemID,
			&tx.ExecutionDate,
			&tx.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		if scheduledItemID.Valid {
			tx.ScheduledItemID = &scheduledItemID.Int64
		}
		result = append(result, tx)
	}
	return result, rows.Err()
}

// ApplySpend atomically adds amount to the matching active budget and
// returns the updated budget plus the previous spent value.
// Returns alerts.ErrNoBudget when no active budget covers the category.
func (s *Store) ApplySpend(ctx context.Context, ownerID, categoryID int64, amount decimal.Decimal) (domain.Budget, decimal.Decimal, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var budget domain.Budget
	var prevSpent decimal.Decimal

	err := s.db.QueryRowContext(ctx, queryApplySpend, ownerID, categoryID, amount).Scan(
		&budget.ID,
		&budget.OwnerID,
		&budget.CategoryID,
		&budget.LimitAmount,
		&budget.Spent,
		&prevSpent,
		&budget.Active,
		&budget.CreatedAt,
		&budget.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Budget{}, decimal.Zero, alerts.ErrNoBudget
		}
		return domain.Budget{}, decimal.Zero, err
	}
	return budget, prevSpent, nil
}

// ListOpenDebtsDueBy returns unsettled debts due on or before the given day.
func (s *Store) ListOpenDebtsDueBy(ctx context.Context, by time.Time) ([]domain.Debt, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, queryListOpenDebtsDueBy, by)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Debt
	for rows.Next() {
		var debt domain.Debt
		err := rows.Scan(
			&debt.ID,
			&debt.OwnerID,
			&debt.Description,
			&debt.Amount,
			&debt.DueDate,
			&debt.Settled,
			&debt.CreatedAt,
			&debt.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		result = append(result, debt)
	}
	return result, rows.Err()
}

// InsertNotification persists a notification row. Idempotent on id so
// reconciler re-emits are safe.
func (s *Store) InsertNotification(ctx context.Context, n domain.Notification) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, queryInsertNotification,
		n.ID,
		n.OwnerID,
		string(n.Kind),
		n.EntityID,
		n.Title,
		n.Body,
		n.SendEmail,
		string(n.Status),
		n.CreatedAt,
	)
	return err
}

// InsertDeliveryAttempt inserts a new delivery attempt record.
func (s *Store) InsertDeliveryAttempt(ctx context.Context, attempt domain.DeliveryAttempt) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, queryInsertDeliveryAttempt,
		attempt.ID,
		attempt.NotificationID,
		attempt.Attempt,
		attempt.StatusCode,
		attempt.Error,
		attempt.StartedAt,
		attempt.FinishedAt,
	)
	return err
}

// UpdateNotificationStatus updates a notification's status.
// Returns notifier.ErrStatusTransitionDenied if the row is already terminal.
// This uses an atomic UPDATE with a WHERE guard to prevent TOCTOU races.
func (s *Store) UpdateNotificationStatus(ctx context.Context, id uuid.UUID, status domain.NotificationStatus) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	result, err := s.db.ExecContext(ctx, queryUpdateNotificationStatus, string(status), id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if affected == 0 {
		// Either the row is missing or it is already terminal.
		var current string
		err := s.db.QueryRowContext(ctx, queryGetNotificationStatus, id).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return sql.ErrNoRows
		}
		if err != nil {
			return err
		}
		return notifier.ErrStatusTransitionDenied
	}

	return nil
}

// GetStalePendingNotifications returns pending notifications created before
// the threshold, oldest first, limited to maxResults.
func (s *Store) GetStalePendingNotifications(ctx context.Context, olderThan time.Time, maxResults int) ([]domain.Notification, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, queryGetStalePendingNotifications, olderThan, maxResults)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

// ListNotifications returns an owner's notifications, newest first.
func (s *Store) ListNotifications(ctx context.Context, ownerID int64, limit, offset int) ([]domain.Notification, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, queryListNotifications, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScheduledItem(row rowScanner) (domain.ScheduledItem, error) {
	var item domain.ScheduledItem
	var frequency string

	err := row.Scan(
		&item.ID,
		&item.OwnerID,
		&item.Description,
		&item.Amount,
		&item.CategoryID,
		&item.PaymentMethodID,
		&frequency,
		&item.NextExecutionDate,
		&item.Active,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return domain.ScheduledItem{}, err
	}
	item.Frequency = domain.Frequency(frequency)
	return item, nil
}

func scanNotification(row rowScanner) (domain.Notification, error) {
	var n domain.Notification
	var kind, status string

	err := row.Scan(
		&n.ID,
		&n.OwnerID,
		&kind,
		&n.EntityID,
		&n.Title,
		&n.Body,
		&n.SendEmail,
		&status,
		&n.CreatedAt,
	)
	if err != nil {
		return domain.Notification{}, err
	}
	n.Kind = domain.AlertKind(kind)
	n.Status = domain.NotificationStatus(status)
	return n, nil
}

// isDuplicateKeyError checks if the error is a PostgreSQL unique violation.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	errStr := err.Error()
	return strings.Contains(errStr, "23505") ||
		strings.Contains(errStr, "unique constraint") ||
		strings.Contains(errStr, "duplicate key")
}

// Compile-time interface assertions
var (
	_ api.Store                   = (*Store)(nil)
	_ recurrence.Store            = (*Store)(nil)
	_ recurrence.TransactionStore = (*Store)(nil)
	_ alerts.BudgetStore          = (*Store)(nil)
	_ alerts.DebtStore            = (*Store)(nil)
	_ notifier.Store              = (*Store)(nil)
	_ reconciler.Store            = (*Store)(nil)
)
