package api

import "time"

type CreateScheduledItemRequest struct {
	Description       string `json:"description"`
	Amount            string `json:"amount"`
	CategoryID        int64  `json:"category_id"`
	PaymentMethodID   int64  `json:"payment_method_id"`
	Frequency         string `json:"frequency"`
	NextExecutionDate string `json:"next_execution_date"` // YYYY-MM-DD
}

type ScheduledItemResponse struct {
	ID                int64  `json:"id"`
	Description       string `json:"description"`
	Amount            string `json:"amount"`
	CategoryID        int64  `json:"category_id"`
	PaymentMethodID   int64  `json:"payment_method_id"`
	Frequency         string `json:"frequency"`
	NextExecutionDate string `json:"next_execution_date"`
	Active            bool   `json:"active"`
	CreatedAt         string `json:"created_at"`
}

type TransactionResponse struct {
	ID              string `json:"id"`
	Description     string `json:"description"`
	Amount          string `json:"amount"`
	CategoryID      int64  `json:"category_id"`
	PaymentMethodID int64  `json:"payment_method_id"`
	ExecutionDate   string `json:"execution_date"`
	CreatedAt       string `json:"created_at"`
}

type NotificationResponse struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	EntityID  int64  `json:"entity_id"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// RunResponse reports the outcome of a manually triggered execution run.
type RunResponse struct {
	ConsideredCount int `json:"considered_count"`
	ExecutedCount   int `json:"executed_count"`
	SkippedCount    int `json:"skipped_count"`
	FailedCount     int `json:"failed_count"`
}

type ListScheduledItemsResponse struct {
	ScheduledItems []ScheduledItemResponse `json:"scheduled_items"`
}

type ListTransactionsResponse struct {
	Transactions []TransactionResponse `json:"transactions"`
}

type ListNotificationsResponse struct {
	Notifications []NotificationResponse `json:"notifications"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
