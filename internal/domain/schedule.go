package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
)

// Valid reports whether f is a known frequency.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly:
		return true
	}
	return false
}

// ScheduledItem is a recurring transaction template. The executor owns only
// NextExecutionDate; everything else is managed through the API.
type ScheduledItem struct {
	ID      int64
	OwnerID int64

	Description     string
	Amount          decimal.Decimal
	CategoryID      int64
	PaymentMethodID int64

	Frequency Frequency

	// NextExecutionDate is a calendar day; time-of-day carries no meaning
	// and all comparisons are by UTC Y/M/D.
	NextExecutionDate time.Time

	Active bool

	CreatedAt time.Time
	UpdatedAt time.Time
}
