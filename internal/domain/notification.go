package domain

import (
	"time"

	"github.com/google/uuid"
)

// AlertKind identifies the threshold a notification was fired for.
// Each kind is a distinct cooldown key component: crossing 80% and 90% of
// the same budget are independent events.
type AlertKind string

const (
	AlertBudget80  AlertKind = "budget_80"
	AlertBudget90  AlertKind = "budget_90"
	AlertBudget100 AlertKind = "budget_100"

	AlertDebtDue7    AlertKind = "debt_due_7"
	AlertDebtDue3    AlertKind = "debt_due_3"
	AlertDebtDue1    AlertKind = "debt_due_1"
	AlertDebtOverdue AlertKind = "debt_overdue"
)

type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "pending"
	NotificationStatusSent    NotificationStatus = "sent"
	NotificationStatusFailed  NotificationStatus = "failed"
)

// Notification is the persisted record of an alert owed to a user.
type Notification struct {
	ID      uuid.UUID
	OwnerID int64

	Kind     AlertKind
	EntityID int64

	Title     string
	Body      string
	SendEmail bool

	Status NotificationStatus

	CreatedAt time.Time
}

// DeliveryAttempt records one webhook delivery try for a notification.
type DeliveryAttempt struct {
	ID             uuid.UUID
	NotificationID uuid.UUID
	Attempt        int

	StatusCode int
	Error      string

	StartedAt  time.Time
	FinishedAt time.Time
}

// NotificationEvent travels from the watchers to the notifier over the
// event bus. The notification row is persisted before delivery is attempted.
type NotificationEvent struct {
	NotificationID uuid.UUID
	OwnerID        int64

	Kind     AlertKind
	EntityID int64

	Title     string
	Body      string
	SendEmail bool

	CreatedAt time.Time
}
