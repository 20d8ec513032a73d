package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Debt is an amount owed with a due date. Settled debts are never scanned.
type Debt struct {
	ID      int64
	OwnerID int64

	Description string
	Amount      decimal.Decimal

	// DueDate is a calendar day (UTC Y/M/D, same convention as
	// ScheduledItem.NextExecutionDate).
	DueDate time.Time

	Settled bool

	CreatedAt time.Time
	UpdatedAt time.Time
}
