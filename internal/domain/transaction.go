package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction records money movement. Transactions generated by the executor
// carry the originating ScheduledItemID so same-day duplicates can be
// detected; manually recorded ones leave it nil.
type Transaction struct {
	ID      uuid.UUID
	OwnerID int64

	Description     string
	Amount          decimal.Decimal
	CategoryID      int64
	PaymentMethodID int64

	ScheduledItemID *int64

	// ExecutionDate is the calendar day the transaction belongs to.
	ExecutionDate time.Time

	CreatedAt time.Time
}
