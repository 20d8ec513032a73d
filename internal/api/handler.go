package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/finbeat/finbeat/internal/domain"
	"github.com/finbeat/finbeat/internal/recurrence"
	"github.com/finbeat/finbeat/internal/runlock"
)

// Pagination defaults and limits.
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

type Store interface {
	CreateScheduledItem(ctx context.Context, item domain.ScheduledItem) (int64, error)
	GetScheduledItemByID(ctx context.Context, itemID, ownerID int64) (domain.ScheduledItem, error)
	ListScheduledItems(ctx context.Context, ownerID int64, limit, offset int) ([]domain.ScheduledItem, error)
	DeleteScheduledItem(ctx context.Context, itemID, ownerID int64) error
	ListTransactionsForItem(ctx context.Context, itemID int64, limit, offset int) ([]domain.Transaction, error)
	ListNotifications(ctx context.Context, ownerID int64, limit, offset int) ([]domain.Notification, error)
}

// Runner executes the pending scheduled-item batch on demand.
type Runner interface {
	RunPendingExecutions(ctx context.Context) (recurrence.RunResult, error)
}

// RunGuard serializes manual triggers against the cron-scheduled run.
type RunGuard interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// HealthChecker provides database health status for the /health endpoint.
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	store   Store
	runner  Runner
	guard   RunGuard
	ownerID int64 // single-user deployment for now
	db      HealthChecker
}

func NewHandler(store Store, runner Runner, guard RunGuard, ownerID int64) *Handler {
	return &Handler{store: store, runner: runner, guard: guard, ownerID: ownerID}
}

// WithHealthChecker sets the database health checker for verbose /health responses.
func (h *Handler) WithHealthChecker(db HealthChecker) *Handler {
	h.db = db
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	switch {
	case path == "/health" && r.Method == http.MethodGet:
		h.health(w, r)

	case path == "/scheduled-transactions/pending" && r.Method == http.MethodPost:
		h.runPending(w, r)

	case path == "/scheduled-items" && r.Method == http.MethodPost:
		h.createScheduledItem(w, r)

	case path == "/scheduled-items" && r.Method == http.MethodGet:
		h.listScheduledItems(w, r)

	case strings.HasSuffix(path, "/transactions") && r.Method == http.MethodGet:
		h.listTransactions(w, r)

	case strings.HasPrefix(path, "/scheduled-items/") && r.Method == http.MethodGet:
		h.getScheduledItem(w, r)

	case strings.HasPrefix(path, "/scheduled-items/") && r.Method == http.MethodDelete:
		h.deleteScheduledItem(w, r)

	case path == "/notifications" && r.Method == http.MethodGet:
		h.listNotifications(w, r)

	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// HealthResponse represents the /health endpoint response.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	verbose := r.URL.Query().Get("verbose") == "true"

	if !verbose || h.db == nil {
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
		return
	}

	resp := HealthResponse{
		Status:     "ok",
		Components: make(map[string]string),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		resp.Status = "degraded"
		resp.Components["database"] = "unhealthy: " + err.Error()
	} else {
		resp.Components["database"] = "healthy"
	}

	statusCode := http.StatusOK
	if resp.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, resp)
}

// runPending triggers an execution run outside the cron schedule. The run
// lock makes it safe to call while the scheduled run is active: the request
// gets a 409 instead of a second concurrent run.
func (h *Handler) runPending(w http.ResponseWriter, r *http.Request) {
	var result recurrence.RunResult
	err := h.guard.Do(r.Context(), func(ctx context.Context) error {
		var runErr error
		result, runErr = h.runner.RunPendingExecutions(ctx)
		return runErr
	})
	if err != nil {
		if errors.Is(err, runlock.ErrRunInProgress) {
			writeError(w, http.StatusConflict, "an execution run is already in progress")
			return
		}
		log.Printf("api: manual execution run error: %v", err)
		writeError(w, http.StatusInternalServerError, "execution run failed")
		return
	}

	writeJSON(w, http.StatusOK, RunResponse{
		ConsideredCount: result.Considered,
		ExecutedCount:   result.Executed,
		SkippedCount:    result.Skipped,
		FailedCount:     result.Failed,
	})
}

// maxRequestBodySize is the maximum allowed request body size (1MB).
const maxRequestBodySize = 1 << 20

func (h *Handler) createScheduledItem(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req CreateScheduledItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err.Error() == "http: request body too large" {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := validateCreateScheduledItem(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Both parses were validated above.
	amount, _ := decimal.NewFromString(req.Amount)
	nextDate, _ := parseDay(req.NextExecutionDate)

	now := time.Now().UTC()
	item := domain.ScheduledItem{
		OwnerID:           h.ownerID,
		Description:       req.Description,
		Amount:            amount,
		CategoryID:        req.CategoryID,
		PaymentMethodID:   req.PaymentMethodID,
		Frequency:         domain.Frequency(req.Frequency),
		NextExecutionDate: nextDate,
		Active:            true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	id, err := h.store.CreateScheduledItem(r.Context(), item)
	if err != nil {
		log.Printf("api: create scheduled item error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create scheduled item")
		return
	}
	item.ID = id

	writeJSON(w, http.StatusCreated, toScheduledItemResponse(item))
}

func (h *Handler) listScheduledItems(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, err := h.store.ListScheduledItems(r.Context(), h.ownerID, limit, offset)
	if err != nil {
		log.Printf("api: list scheduled items error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list scheduled items")
		return
	}

	resp := ListScheduledItemsResponse{ScheduledItems: make([]ScheduledItemResponse, len(items))}
	for i, item := range items {
		resp.ScheduledItems[i] = toScheduledItemResponse(item)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) getScheduledItem(w http.ResponseWriter, r *http.Request) {
	// Extract item ID from path: /scheduled-items/{id}
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 2 || parts[0] != "scheduled-items" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	itemID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || itemID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid scheduled item id")
		return
	}

	item, err := h.store.GetScheduledItemByID(r.Context(), itemID, h.ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "scheduled item not found")
			return
		}
		log.Printf("api: get scheduled item error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to get scheduled item")
		return
	}

	writeJSON(w, http.StatusOK, toScheduledItemResponse(item))
}

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	// Extract item ID from path: /scheduled-items/{id}/transactions
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 3 || parts[0] != "scheduled-items" || parts[2] != "transactions" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	itemID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || itemID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid scheduled item id")
		return
	}

	limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	transactions, err := h.store.ListTransactionsForItem(r.Context(), itemID, limit, offset)
	if err != nil {
		log.Printf("api: list transactions error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}

	resp := ListTransactionsResponse{Transactions: make([]TransactionResponse, len(transactions))}
	for i, tx := range transactions {
		resp.Transactions[i] = TransactionResponse{
			ID:              tx.ID.String(),
			Description:     tx.Description,
			Amount:          tx.Amount.String(),
			CategoryID:      tx.CategoryID,
			PaymentMethodID: tx.PaymentMethodID,
			ExecutionDate:   formatDay(tx.ExecutionDate),
			CreatedAt:       formatTime(tx.CreatedAt),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) deleteScheduledItem(w http.ResponseWriter, r *http.Request) {
	// Extract item ID from path: /scheduled-items/{id}
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 2 || parts[0] != "scheduled-items" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	itemID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || itemID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid scheduled item id")
		return
	}

	if err := h.store.DeleteScheduledItem(r.Context(), itemID, h.ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "scheduled item not found")
			return
		}
		log.Printf("api: delete scheduled item error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to delete scheduled item")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	notifications, err := h.store.ListNotifications(r.Context(), h.ownerID, limit, offset)
	if err != nil {
		log.Printf("api: list notifications error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list notifications")
		return
	}

	resp := ListNotificationsResponse{Notifications: make([]NotificationResponse, len(notifications))}
	for i, n := range notifications {
		resp.Notifications[i] = NotificationResponse{
			ID:        n.ID.String(),
			Kind:      string(n.Kind),
			EntityID:  n.EntityID,
			Title:     n.Title,
			Body:      n.Body,
			Status:    string(n.Status),
			CreatedAt: formatTime(n.CreatedAt),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func toScheduledItemResponse(item domain.ScheduledItem) ScheduledItemResponse {
	return ScheduledItemResponse{
		ID:                item.ID,
		Description:       item.Description,
		Amount:            item.Amount.String(),
		CategoryID:        item.CategoryID,
		PaymentMethodID:   item.PaymentMethodID,
		Frequency:         string(item.Frequency),
		NextExecutionDate: formatDay(item.NextExecutionDate),
		Active:            item.Active,
		CreatedAt:         formatTime(item.CreatedAt),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: json encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// parsePagination extracts and validates limit/offset query parameters.
// Returns DefaultLimit if limit is not specified, and 0 for offset if not specified.
// Returns an error if limit exceeds MaxLimit or if values are negative/invalid.
func parsePagination(r *http.Request) (limit, offset int, err error) {
	limit = DefaultLimit
	offset = 0

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil {
			return 0, 0, err
		}
		if limit < 0 {
			return 0, 0, strconv.ErrRange
		}
		if limit > MaxLimit {
			return 0, 0, &limitExceededError{max: MaxLimit}
		}
		if limit == 0 {
			limit = DefaultLimit
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		offset, err = strconv.Atoi(offsetStr)
		if err != nil {
			return 0, 0, err
		}
		if offset < 0 {
			return 0, 0, strconv.ErrRange
		}
	}

	return limit, offset, nil
}

type limitExceededError struct {
	max int
}

func (e *limitExceededError) Error() string {
	return "limit exceeds maximum of " + strconv.Itoa(e.max)
}
