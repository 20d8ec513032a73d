package api

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finbeat/finbeat/internal/domain"
)

func validateCreateScheduledItem(req CreateScheduledItemRequest) error {
	if req.Description == "" {
		return fmt.Errorf("description is required")
	}

	if req.Amount == "" {
		return fmt.Errorf("amount is required")
	}
	if err := validateAmount(req.Amount); err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}

	if !domain.Frequency(req.Frequency).Valid() {
		return fmt.Errorf("invalid frequency: must be one of daily, weekly, monthly, yearly")
	}

	if req.NextExecutionDate == "" {
		return fmt.Errorf("next_execution_date is required")
	}
	if _, err := parseDay(req.NextExecutionDate); err != nil {
		return fmt.Errorf("invalid next_execution_date: %w", err)
	}

	if req.CategoryID <= 0 {
		return fmt.Errorf("category_id is required")
	}
	if req.PaymentMethodID <= 0 {
		return fmt.Errorf("payment_method_id is required")
	}

	return nil
}

func validateAmount(raw string) error {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return err
	}
	if !amount.IsPositive() {
		return fmt.Errorf("must be positive")
	}
	return nil
}

// parseDay parses a YYYY-MM-DD calendar day as UTC midnight.
func parseDay(raw string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", raw, time.UTC)
}
