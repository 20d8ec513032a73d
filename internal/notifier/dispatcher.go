// Package notifier delivers persisted notifications to the configured
// webhook destination with bounded retries. Email sending stays downstream:
// the payload carries the send_email flag for the mailer behind the webhook.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/finbeat/finbeat/internal/domain"
	"github.com/finbeat/finbeat/internal/metrics"
)

var defaultBackoff = []time.Duration{
	0,
	30 * time.Second,
	2 * time.Minute,
	10 * time.Minute,
}

const maxAttempts = 4

// DefaultSendTimeout bounds a single webhook request when the config does
// not set one.
const DefaultSendTimeout = 30 * time.Second

// MaxRetryDuration returns the worst-case wall time Dispatch can spend on a
// single notification: every backoff plus a full timeout per attempt. The
// reconciler's stale threshold must exceed this to avoid double delivery.
func MaxRetryDuration() time.Duration {
	total := time.Duration(0)
	for _, b := range defaultBackoff {
		total += b
	}
	return total + maxAttempts*DefaultSendTimeout
}

// ErrStatusTransitionDenied is returned when a status update would regress
// from a terminal state (sent/failed).
var ErrStatusTransitionDenied = errors.New("status transition denied: notification already in terminal state")

type Store interface {
	// InsertNotification persists the notification row. It must be
	// idempotent on the notification id so reconciler re-emits are safe.
	InsertNotification(ctx context.Context, n domain.Notification) error
	InsertDeliveryAttempt(ctx context.Context, attempt domain.DeliveryAttempt) error
	// UpdateNotificationStatus sets the status. Implementations MUST reject
	// transitions from terminal states (sent/failed) and return
	// ErrStatusTransitionDenied. This ensures idempotency on replay.
	UpdateNotificationStatus(ctx context.Context, id uuid.UUID, status domain.NotificationStatus) error
}

type WebhookSender interface {
	Send(ctx context.Context, req WebhookRequest) WebhookResult
}

// Breaker gates sends per destination so a dead webhook endpoint is not
// hammered on every event.
type Breaker interface {
	Allow(url string) error
	RecordSuccess(url string)
	RecordFailure(url string)
}

// MetricsSink defines the interface for recording notifier metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	DeliveryAttemptCompleted(attempt int, statusClass string, duration time.Duration)
	DeliveryOutcome(outcome string)
	RetryAttempt(retryable bool)
	EventsInFlightIncr()
	EventsInFlightDecr()
}

type WebhookRequest struct {
	URL       string
	Secret    string
	Timeout   time.Duration
	Payload   WebhookPayload
	AttemptID string
}

type WebhookPayload struct {
	NotificationID string `json:"notification_id"`
	OwnerID        int64  `json:"owner_id"`
	Kind           string `json:"kind"`
	EntityID       int64  `json:"entity_id"`
	Title          string `json:"title"`
	Body           string `json:"body"`
	SendEmail      bool   `json:"send_email"`
	CreatedAt      string `json:"created_at"`
}

type WebhookResult struct {
	StatusCode int
	Error      error
	Duration   time.Duration
}

func (r WebhookResult) IsSuccess() bool {
	return r.Error == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

func (r WebhookResult) IsRetryable() bool {
	if r.Error != nil {
		return true
	}
	if r.StatusCode == 429 {
		return true
	}
	return r.StatusCode >= 500
}

// Config holds the (single-destination) delivery configuration.
type Config struct {
	WebhookURL string
	Secret     string
	Timeout    time.Duration
}

type Dispatcher struct {
	config       Config
	store        Store
	sender       WebhookSender
	breaker      Breaker     // optional, nil = disabled
	metrics      MetricsSink // optional, nil = disabled
	backoff      []time.Duration
	drainTimeout time.Duration
}

func New(config Config, store Store, sender WebhookSender) *Dispatcher {
	return &Dispatcher{
		config:       config,
		store:        store,
		sender:       sender,
		backoff:      defaultBackoff,
		drainTimeout: DrainTimeout,
	}
}

// WithBreaker attaches a circuit breaker to the dispatcher.
func (d *Dispatcher) WithBreaker(b Breaker) *Dispatcher {
	d.breaker = b
	return d
}

// WithMetrics attaches a metrics sink to the dispatcher.
func (d *Dispatcher) WithMetrics(sink MetricsSink) *Dispatcher {
	d.metrics = sink
	return d
}

// WithDrainTimeout overrides the shutdown drain timeout.
func (d *Dispatcher) WithDrainTimeout(timeout time.Duration) *Dispatcher {
	if timeout > 0 {
		d.drainTimeout = timeout
	}
	return d
}

// Run processes events from the channel until context is cancelled.
// After cancellation, it drains remaining buffered events with a timeout.
func (d *Dispatcher) Run(ctx context.Context, ch <-chan domain.NotificationEvent) {
	for {
		select {
		case <-ctx.Done():
			d.drain(ch)
			return
		case event := <-ch:
			if err := d.Dispatch(ctx, event); err != nil {
				log.Printf("notifier: error: %v", err)
			}
		}
	}
}

// DrainTimeout is the default maximum time to wait for buffered events
// during shutdown.
const DrainTimeout = 30 * time.Second

// drain processes remaining events in the channel buffer after shutdown signal.
// Uses a background context since the main context is already cancelled.
func (d *Dispatcher) drain(ch <-chan domain.NotificationEvent) {
	drainCtx, cancel := context.WithTimeout(context.Background(), d.drainTimeout)
	defer cancel()

	count := 0
	for {
		select {
		case <-drainCtx.Done():
			if count > 0 {
				log.Printf("notifier: drain timeout, processed %d events", count)
			}
			return
		case event, ok := <-ch:
			if !ok {
				log.Printf("notifier: drain complete, processed %d events", count)
				return
			}
			if err := d.Dispatch(drainCtx, event); err != nil {
				log.Printf("notifier: drain error: %v", err)
			}
			count++
		default:
			// No more buffered events
			if count > 0 {
				log.Printf("notifier: drain complete, processed %d events", count)
			}
			return
		}
	}
}

// Dispatch persists the notification and attempts webhook delivery.
// A notification left in pending state (breaker open, retries exhausted by
// shutdown) is picked up again by the reconciler.
func (d *Dispatcher) Dispatch(ctx context.Context, event domain.NotificationEvent) error {
	if d.metrics != nil {
		d.metrics.EventsInFlightIncr()
		defer d.metrics.EventsInFlightDecr()
	}

	notification := domain.Notification{
		ID:        event.NotificationID,
		OwnerID:   event.OwnerID,
		Kind:      event.Kind,
		EntityID:  event.EntityID,
		Title:     event.Title,
		Body:      event.Body,
		SendEmail: event.SendEmail,
		Status:    domain.NotificationStatusPending,
		CreatedAt: event.CreatedAt,
	}

	if err := d.store.InsertNotification(ctx, notification); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}

	if d.config.WebhookURL == "" {
		// In-app only: the row is queryable through the API, nothing to push.
		if err := d.markTerminal(ctx, event, domain.NotificationStatusSent); err != nil {
			return err
		}
		if d.metrics != nil {
			d.metrics.DeliveryOutcome(metrics.OutcomeStored)
		}
		return nil
	}

	if d.breaker != nil {
		if err := d.breaker.Allow(d.config.WebhookURL); err != nil {
			// Leave pending; the reconciler re-emits once the cooldown passes.
			log.Printf("notifier: notification=%s delivery deferred: %v", event.NotificationID, err)
			if d.metrics != nil {
				d.metrics.DeliveryOutcome(metrics.OutcomeDeferred)
			}
			return nil
		}
	}

	req := WebhookRequest{
		URL:     d.config.WebhookURL,
		Secret:  d.config.Secret,
		Timeout: d.config.Timeout,
		Payload: WebhookPayload{
			NotificationID: event.NotificationID.String(),
			OwnerID:        event.OwnerID,
			Kind:           string(event.Kind),
			EntityID:       event.EntityID,
			Title:          event.Title,
			Body:           event.Body,
			SendEmail:      event.SendEmail,
			CreatedAt:      event.CreatedAt.UTC().Format(time.RFC3339),
		},
	}

	var lastResult WebhookResult

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if d.metrics != nil {
				d.metrics.RetryAttempt(lastResult.IsRetryable())
			}

			idx := attempt - 1
			if idx >= len(d.backoff) {
				idx = len(d.backoff) - 1
			}
			backoff := d.backoff[idx]

			log.Printf("notifier: notification=%s attempt=%d backoff=%s", event.NotificationID, attempt, backoff)

			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				return ctx.Err()
			case <-timer.C:
			}
		}

		attemptID := uuid.New()
		req.AttemptID = attemptID.String()

		startedAt := time.Now().UTC()
		result := d.sender.Send(ctx, req)
		finishedAt := time.Now().UTC()
		lastResult = result

		if d.metrics != nil {
			statusClass := metrics.ClassifyStatus(result.StatusCode, result.Error)
			d.metrics.DeliveryAttemptCompleted(attempt, statusClass, result.Duration)
		}

		attemptRecord := domain.DeliveryAttempt{
			ID:             attemptID,
			NotificationID: event.NotificationID,
			Attempt:        attempt,
			StatusCode:     result.StatusCode,
			StartedAt:      startedAt,
			FinishedAt:     finishedAt,
		}
		if result.Error != nil {
			attemptRecord.Error = result.Error.Error()
		}

		if err := d.store.InsertDeliveryAttempt(ctx, attemptRecord); err != nil {
			log.Printf("notifier: failed to record attempt: %v", err)
		}

		if result.IsSuccess() {
			if d.breaker != nil {
				d.breaker.RecordSuccess(d.config.WebhookURL)
			}
			log.Printf("notifier: notification=%s delivered attempt=%d", event.NotificationID, attempt)
			if d.metrics != nil {
				d.metrics.DeliveryOutcome(metrics.OutcomeSuccess)
			}
			return d.markTerminal(ctx, event, domain.NotificationStatusSent)
		}

		if d.breaker != nil {
			d.breaker.RecordFailure(d.config.WebhookURL)
		}

		if !result.IsRetryable() {
			log.Printf("notifier: notification=%s non-retryable status=%d", event.NotificationID, result.StatusCode)
			break
		}

		log.Printf("notifier: notification=%s attempt=%d failed status=%d err=%v",
			event.NotificationID, attempt, result.StatusCode, result.Error)
	}

	log.Printf("notifier: notification=%s failed status=%d err=%v",
		event.NotificationID, lastResult.StatusCode, lastResult.Error)
	if d.metrics != nil {
		d.metrics.DeliveryOutcome(metrics.OutcomeFailed)
	}
	return d.markTerminal(ctx, event, domain.NotificationStatusFailed)
}

// markTerminal finalizes the notification status, tolerating replays that
// already reached a terminal state.
func (d *Dispatcher) markTerminal(ctx context.Context, event domain.NotificationEvent, status domain.NotificationStatus) error {
	if err := d.store.UpdateNotificationStatus(ctx, event.NotificationID, status); err != nil {
		if errors.Is(err, ErrStatusTransitionDenied) {
			log.Printf("notifier: notification=%s already terminal, skipping status update", event.NotificationID)
			return nil
		}
		return err
	}
	return nil
}
