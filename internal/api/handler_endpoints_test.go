package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/finbeat/finbeat/internal/domain"
	"github.com/finbeat/finbeat/internal/recurrence"
	"github.com/finbeat/finbeat/internal/runlock"
	"github.com/finbeat/finbeat/internal/testutil"
)

const testOwnerID int64 = 1

// mockHandlerStore implements api.Store for handler tests.
type mockHandlerStore struct {
	mu sync.Mutex

	createItemFn        func(ctx context.Context, item domain.ScheduledItem) (int64, error)
	getItemFn           func(ctx context.Context, itemID, ownerID int64) (domain.ScheduledItem, error)
	listItemsFn         func(ctx context.Context, ownerID int64, limit, offset int) ([]domain.ScheduledItem, error)
	deleteItemFn        func(ctx context.Context, itemID, ownerID int64) error
	listTransactionsFn  func(ctx context.Context, itemID int64, limit, offset int) ([]domain.Transaction, error)
	listNotificationsFn func(ctx context.Context, ownerID int64, limit, offset int) ([]domain.Notification, error)
}

func (s *mockHandlerStore) CreateScheduledItem(ctx context.Context, item domain.ScheduledItem) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createItemFn != nil {
		return s.createItemFn(ctx, item)
	}
	return 1, nil
}

func (s *mockHandlerStore) GetScheduledItemByID(ctx context.Context, itemID, ownerID int64) (domain.ScheduledItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getItemFn != nil {
		return s.getItemFn(ctx, itemID, ownerID)
	}
	return domain.ScheduledItem{}, sql.ErrNoRows
}

func (s *mockHandlerStore) ListScheduledItems(ctx context.Context, ownerID int64, limit, offset int) ([]domain.ScheduledItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listItemsFn != nil {
		return s.listItemsFn(ctx, ownerID, limit, offset)
	}
	return nil, nil
}

func (s *mockHandlerStore) DeleteScheduledItem(ctx context.Context, itemID, ownerID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteItemFn != nil {
		return s.deleteItemFn(ctx, itemID, ownerID)
	}
	return nil
}

func (s *mockHandlerStore) ListTransactionsForItem(ctx context.Context, itemID int64, limit, offset int) ([]domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listTransactionsFn != nil {
		return s.listTransactionsFn(ctx, itemID, limit, offset)
	}
	return nil, nil
}

func (s *mockHandlerStore) ListNotifications(ctx context.Context, ownerID int64, limit, offset int) ([]domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listNotificationsFn != nil {
		return s.listNotificationsFn(ctx, ownerID, limit, offset)
	}
	return nil, nil
}

// mockRunner implements api.Runner for manual trigger tests.
type mockRunner struct {
	mu     sync.Mutex
	calls  int
	result recurrence.RunResult
	err    error
}

func (m *mockRunner) RunPendingExecutions(ctx context.Context) (recurrence.RunResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.result, m.err
}

// mockGuard implements api.RunGuard.
type mockGuard struct {
	err error // returned instead of running fn when set
}

func (m *mockGuard) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.err != nil {
		return m.err
	}
	return fn(ctx)
}

// mockHealthChecker implements HealthChecker for handler tests.
type mockHealthChecker struct {
	mu     sync.Mutex
	pingFn func(ctx context.Context) error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pingFn != nil {
		return m.pingFn(ctx)
	}
	return nil
}

func newTestHandler(store *mockHandlerStore) *Handler {
	return NewHandler(store, &mockRunner{}, &mockGuard{}, testOwnerID)
}

// --- Manual Trigger Tests ---

func TestHandler_RunPending_Success(t *testing.T) {
	runner := &mockRunner{result: recurrence.RunResult{Considered: 5, Executed: 3, Skipped: 1, Failed: 1}}
	handler := NewHandler(&mockHandlerStore{}, runner, &mockGuard{}, testOwnerID)

	req := httptest.NewRequest(http.MethodPost, "/scheduled-transactions/pending", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp RunResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if resp.ExecutedCount != 3 {
		t.Errorf("ExecutedCount = %d, want 3", resp.ExecutedCount)
	}
	if resp.ConsideredCount != 5 {
		t.Errorf("ConsideredCount = %d, want 5", resp.ConsideredCount)
	}
	if resp.SkippedCount != 1 || resp.FailedCount != 1 {
		t.Errorf("Skipped/Failed = %d/%d, want 1/1", resp.SkippedCount, resp.FailedCount)
	}
}

func TestHandler_RunPending_Conflict(t *testing.T) {
	runner := &mockRunner{}
	handler := NewHandler(&mockHandlerStore{}, runner, &mockGuard{err: runlock.ErrRunInProgress}, testOwnerID)

	req := httptest.NewRequest(http.MethodPost, "/scheduled-transactions/pending", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", w.Code)
	}
	if runner.calls != 0 {
		t.Errorf("runner should not be called when the lock is held, got %d calls", runner.calls)
	}
}

func TestHandler_RunPending_RunError(t *testing.T) {
	runner := &mockRunner{err: errors.New("batch fetch failed")}
	handler := NewHandler(&mockHandlerStore{}, runner, &mockGuard{}, testOwnerID)

	req := httptest.NewRequest(http.MethodPost, "/scheduled-transactions/pending", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

// --- CreateScheduledItem Tests ---

func TestHandler_CreateScheduledItem_Success(t *testing.T) {
	store := &mockHandlerStore{
		createItemFn: func(ctx context.Context, item domain.ScheduledItem) (int64, error) {
			if item.OwnerID != testOwnerID {
				t.Errorf("OwnerID = %d, want %d", item.OwnerID, testOwnerID)
			}
			if !item.Active {
				t.Error("created item should be active")
			}
			return 42, nil
		},
	}
	handler := newTestHandler(store)

	body := `{
		"description": "Netflix subscription",
		"amount": "15.99",
		"category_id": 3,
		"payment_method_id": 1,
		"frequency": "monthly",
		"next_execution_date": "2024-02-01"
	}`

	req := httptest.NewRequest(http.MethodPost, "/scheduled-items", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp ScheduledItemResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	if resp.ID != 42 {
		t.Errorf("ID = %d, want 42", resp.ID)
	}
	if resp.Description != "Netflix subscription" {
		t.Errorf("Description = %q, want Netflix subscription", resp.Description)
	}
	if resp.Amount != "15.99" {
		t.Errorf("Amount = %q, want 15.99", resp.Amount)
	}
	if resp.Frequency != "monthly" {
		t.Errorf("Frequency = %q, want monthly", resp.Frequency)
	}
	if resp.NextExecutionDate != "2024-02-01" {
		t.Errorf("NextExecutionDate = %q, want 2024-02-01", resp.NextExecutionDate)
	}
}

func TestHandler_CreateScheduledItem_ValidationError(t *testing.T) {
	handler := newTestHandler(&mockHandlerStore{})

	// Missing description
	body := `{"amount": "10", "category_id": 1, "payment_method_id": 1, "frequency": "daily", "next_execution_date": "2024-02-01"}`

	req := httptest.NewRequest(http.MethodPost, "/scheduled-items", strings.NewReader(body))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}

	var resp ErrorResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if !strings.Contains(resp.Error, "description") {
		t.Errorf("error should mention description: %q", resp.Error)
	}
}

func TestHandler_CreateScheduledItem_InvalidJSON(t *testing.T) {
	handler := newTestHandler(&mockHandlerStore{})

	req := httptest.NewRequest(http.MethodPost, "/scheduled-items", strings.NewReader("{invalid"))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandler_CreateScheduledItem_StoreError(t *testing.T) {
	store := &mockHandlerStore{
		createItemFn: func(ctx context.Context, item domain.ScheduledItem) (int64, error) {
			return 0, errors.New("database error")
		},
	}
	handler := newTestHandler(store)

	body := `{
		"description": "Rent",
		"amount": "1200",
		"category_id": 1,
		"payment_method_id": 1,
		"frequency": "monthly",
		"next_execution_date": "2024-02-01"
	}`

	req := httptest.NewRequest(http.MethodPost, "/scheduled-items", strings.NewReader(body))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

func TestHandler_CreateScheduledItem_BodyTooLarge(t *testing.T) {
	handler := newTestHandler(&mockHandlerStore{})

	// Create body larger than 1MB
	largeBody := strings.Repeat("a", 1<<20+1)

	req := httptest.NewRequest(http.MethodPost, "/scheduled-items", strings.NewReader(largeBody))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge && w.Code != http.StatusBadRequest {
		t.Errorf("expected 413 or 400, got %d", w.Code)
	}
}

// --- ListScheduledItems Tests ---

func TestHandler_ListScheduledItems_Success(t *testing.T) {
	now := time.Now().UTC()
	store := &mockHandlerStore{
		listItemsFn: func(ctx context.Context, ownerID int64, limit, offset int) ([]domain.ScheduledItem, error) {
			if ownerID != testOwnerID {
				t.Errorf("ownerID = %d, want %d", ownerID, testOwnerID)
			}
			return []domain.ScheduledItem{
				{
					ID:                7,
					OwnerID:           ownerID,
					Description:       "Gym membership",
					Amount:            testutil.MustDecimal("29.90"),
					CategoryID:        2,
					PaymentMethodID:   1,
					Frequency:         domain.FrequencyMonthly,
					NextExecutionDate: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
					Active:            true,
					CreatedAt:         now,
				},
			}, nil
		},
	}
	handler := newTestHandler(store)

	req := httptest.NewRequest(http.MethodGet, "/scheduled-items", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var resp ListScheduledItemsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}

	if len(resp.ScheduledItems) != 1 {
		t.Fatalf("expected 1 item, got %d", len(resp.ScheduledItems))
	}
	if resp.ScheduledItems[0].Description != "Gym membership" {
		t.Errorf("Description = %q, want Gym membership", resp.ScheduledItems[0].Description)
	}
}

func TestHandler_ListScheduledItems_Empty(t *testing.T) {
	store := &mockHandlerStore{
		listItemsFn: func(ctx context.Context, ownerID int64, limit, offset int) ([]domain.ScheduledItem, error) {
			return []domain.ScheduledItem{}, nil
		},
	}
	handler := newTestHandler(store)

	req := httptest.NewRequest(http.MethodGet, "/scheduled-items", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	// Verify response is empty array, not null
	var resp ListScheduledItemsResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.ScheduledItems == nil {
		t.Error("ScheduledItems should be empty array, not null")
	}
	if len(resp.ScheduledItems) != 0 {
		t.Errorf("expected 0 items, got %d", len(resp.ScheduledItems))
	}
}

func TestHandler_ListScheduledItems_StoreError(t *testing.T) {
	store := &mockHandlerStore{
		listItemsFn: func(ctx context.Context, ownerID int64, limit, offset int) ([]domain.ScheduledItem, error) {
			return nil, errors.New("db error")
		},
	}
	handler := newTestHandler(store)

	req := httptest.NewRequest(http.MethodGet, "/scheduled-items", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

// --- GetScheduledItem Tests ---

func TestHandler_GetScheduledItem_Success(t *testing.T) {
	now := time.Now().UTC()
	store := &mockHandlerStore{
		getItemFn: func(ctx context.Context, itemID, ownerID int64) (domain.ScheduledItem, error) {
			if itemID != 7 {
				t.Errorf("itemID = %d, want 7", itemID)
			}
			if ownerID != testOwnerID {
				t.Errorf("ownerID = %d, want %d", ownerID, testOwnerID)
			}
			return domain.ScheduledItem{
				ID:                7,
				OwnerID:           ownerID,
				Description:       "Gym membership",
				Amount:            testutil.MustDecimal("29.90"),
				CategoryID:        2,
				PaymentMethodID:   1,
				Frequency:         domain.FrequencyMonthly,
				NextExecutionDate: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
				Active:            true,
				CreatedAt:         now,
			}, nil
		},
	}
	handler := newTestHandler(store)

	req := httptest.NewRequest(http.MethodGet, "/scheduled-items/7", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp ScheduledItemResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if resp.ID != 7 {
		t.Errorf("ID = %d, want 7", resp.ID)
	}
	if resp.NextExecutionDate != "2024-02-01" {
		t.Errorf("NextExecutionDate = %q, want 2024-02-01", resp.NextExecutionDate)
	}
}

func TestHandler_GetScheduledItem_NotFound(t *testing.T) {
	handler := newTestHandler(&mockHandlerStore{}) // default getItemFn returns sql.ErrNoRows

	req := httptest.NewRequest(http.MethodGet, "/scheduled-items/99", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestHandler_GetScheduledItem_InvalidID(t *testing.T) {
	handler := newTestHandler(&mockHandlerStore{})

	req := httptest.NewRequest(http.MethodGet, "/scheduled-items/abc", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandler_GetScheduledItem_StoreError(t *testing.T) {
	store := &mockHandlerStore{
		getItemFn: func(ctx context.Context, itemID, ownerID int64) (domain.ScheduledItem, error) {
			return domain.ScheduledItem{}, errors.New("db error")
		},
	}
	handler := newTestHandler(store)

	req := httptest.NewRequest(http.MethodGet, "/scheduled-items/7", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

// --- ListTransactions Tests ---

func TestHandler_ListTransactions_Success(t *testing.T) {
	now := time.Now().UTC()
	itemID := int64(7)

	store := &mockHandlerStore{
		listTransactionsFn: func(ctx context.Context, id int64, limit, offset int) ([]domain.Transaction, error) {
			if id != itemID {
				t.Errorf("itemID = %d, want %d", id, itemID)
			}
			return []domain.Transaction{
				{
					ID:              uuid.New(),
					OwnerID:         testOwnerID,
					Description:     "Gym membership",
					Amount:          testutil.MustDecimal("29.90"),
					ScheduledItemID: &itemID,
					ExecutionDate:   time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
					CreatedAt:       now,
				},
			}, nil
		},
	}
	handler := newTestHandler(store)

	req := httptest.NewRequest(http.MethodGet, "/scheduled-items/7/transactions", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp ListTransactionsResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Transactions) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(resp.Transactions))
	}
	if resp.Transactions[0].ExecutionDate != "2024-02-01" {
		t.Errorf("ExecutionDate = %q, want 2024-02-01", resp.Transactions[0].ExecutionDate)
	}
}

func TestHandler_ListTransactions_InvalidID(t *testing.T) {
	handler := newTestHandler(&mockHandlerStore{})

	req := httptest.NewRequest(http.MethodGet, "/scheduled-items/bad-id/transactions", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

// --- DeleteScheduledItem Tests ---

func TestHandler_DeleteScheduledItem_Success(t *testing.T) {
	store := &mockHandlerStore{
		deleteItemFn: func(ctx context.Context, itemID, ownerID int64) error {
			if itemID != 7 {
				t.Errorf("itemID = %d, want 7", itemID)
			}
			if ownerID != testOwnerID {
				t.Errorf("ownerID = %d, want %d", ownerID, testOwnerID)
			}
			return nil
		},
	}
	handler := newTestHandler(store)

	req := httptest.NewRequest(http.MethodDelete, "/scheduled-items/7", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHandler_DeleteScheduledItem_NotFound(t *testing.T) {
	store := &mockHandlerStore{
		deleteItemFn: func(ctx context.Context, itemID, ownerID int64) error {
			return sql.ErrNoRows
		},
	}
	handler := newTestHandler(store)

	req := httptest.NewRequest(http.MethodDelete, "/scheduled-items/99", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestHandler_DeleteScheduledItem_InvalidID(t *testing.T) {
	handler := newTestHandler(&mockHandlerStore{})

	req := httptest.NewRequest(http.MethodDelete, "/scheduled-items/bad-id", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandler_DeleteScheduledItem_StoreError(t *testing.T) {
	store := &mockHandlerStore{
		deleteItemFn: func(ctx context.Context, itemID, ownerID int64) error {
			return errors.New("db error")
		},
	}
	handler := newTestHandler(store)

	req := httptest.NewRequest(http.MethodDelete, "/scheduled-items/7", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

// --- ListNotifications Tests ---

func TestHandler_ListNotifications_Success(t *testing.T) {
	now := time.Now().UTC()
	store := &mockHandlerStore{
		listNotificationsFn: func(ctx context.Context, ownerID int64, limit, offset int) ([]domain.Notification, error) {
			return []domain.Notification{
				{
					ID:        uuid.New(),
					OwnerID:   ownerID,
					Kind:      domain.AlertBudget90,
					EntityID:  3,
					Title:     "Budget at 90%",
					Status:    domain.NotificationStatusSent,
					CreatedAt: now,
				},
			}, nil
		},
	}
	handler := newTestHandler(store)

	req := httptest.NewRequest(http.MethodGet, "/notifications", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp ListNotificationsResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Notifications) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(resp.Notifications))
	}
	if resp.Notifications[0].Kind != "budget_90" {
		t.Errorf("Kind = %q, want budget_90", resp.Notifications[0].Kind)
	}
	if resp.Notifications[0].Status != "sent" {
		t.Errorf("Status = %q, want sent", resp.Notifications[0].Status)
	}
}

func TestHandler_ListNotifications_StoreError(t *testing.T) {
	store := &mockHandlerStore{
		listNotificationsFn: func(ctx context.Context, ownerID int64, limit, offset int) ([]domain.Notification, error) {
			return nil, errors.New("db error")
		},
	}
	handler := newTestHandler(store)

	req := httptest.NewRequest(http.MethodGet, "/notifications", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

// --- Health Tests ---

func TestHandler_Health_Simple(t *testing.T) {
	handler := newTestHandler(&mockHandlerStore{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var resp HealthResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Status != "ok" {
		t.Errorf("Status = %q, want ok", resp.Status)
	}
}

func TestHandler_Health_Verbose_Healthy(t *testing.T) {
	db := &mockHealthChecker{}
	handler := newTestHandler(&mockHandlerStore{}).WithHealthChecker(db)

	req := httptest.NewRequest(http.MethodGet, "/health?verbose=true", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var resp HealthResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Status != "ok" {
		t.Errorf("Status = %q, want ok", resp.Status)
	}
	if resp.Components["database"] != "healthy" {
		t.Errorf("database = %q, want healthy", resp.Components["database"])
	}
}

func TestHandler_Health_Verbose_Unhealthy(t *testing.T) {
	db := &mockHealthChecker{
		pingFn: func(ctx context.Context) error {
			return errors.New("connection refused")
		},
	}
	handler := newTestHandler(&mockHandlerStore{}).WithHealthChecker(db)

	req := httptest.NewRequest(http.MethodGet, "/health?verbose=true", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}

	var resp HealthResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Status != "degraded" {
		t.Errorf("Status = %q, want degraded", resp.Status)
	}
}

// --- Routing Tests ---

func TestHandler_NotFound(t *testing.T) {
	handler := newTestHandler(&mockHandlerStore{})

	req := httptest.NewRequest(http.MethodGet, "/nonexistent", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	handler := newTestHandler(&mockHandlerStore{})

	req := httptest.NewRequest(http.MethodPut, "/scheduled-items", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}
