package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Budget caps spending for one category of one owner over the current period.
type Budget struct {
	ID         int64
	OwnerID    int64
	CategoryID int64

	LimitAmount decimal.Decimal
	Spent       decimal.Decimal

	Active bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// UsedPercent returns Spent as a percentage of LimitAmount.
// Returns zero for a zero limit.
func (b Budget) UsedPercent() decimal.Decimal {
	if b.LimitAmount.IsZero() {
		return decimal.Zero
	}
	return b.Spent.Div(b.LimitAmount).Mul(decimal.NewFromInt(100))
}
