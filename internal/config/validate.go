package config

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/finbeat/finbeat/internal/notifier"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:", len(e))
	for _, err := range e {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Validate checks the configuration for errors.
// Returns nil if valid, or ValidationErrors if invalid.
func Validate(cfg Config) error {
	var errs ValidationErrors

	// DATABASE_URL is required
	if cfg.DatabaseURL == "" {
		errs = append(errs, ValidationError{
			Field:   "DATABASE_URL",
			Message: "required",
		})
	}

	// Cron specs must parse in the standard 5-field format.
	if _, err := cron.ParseStandard(cfg.RunSchedule); err != nil {
		errs = append(errs, ValidationError{
			Field:   "RUN_SCHEDULE",
			Message: fmt.Sprintf("invalid cron spec: %v", err),
		})
	}
	if _, err := cron.ParseStandard(cfg.DebtScanSchedule); err != nil {
		errs = append(errs, ValidationError{
			Field:   "DEBT_SCAN_SCHEDULE",
			Message: fmt.Sprintf("invalid cron spec: %v", err),
		})
	}

	// ALERT_COOLDOWN must be a positive duration
	if cfg.AlertCooldownStr != "" {
		d, err := time.ParseDuration(cfg.AlertCooldownStr)
		if err != nil {
			errs = append(errs, ValidationError{
				Field:   "ALERT_COOLDOWN",
				Message: fmt.Sprintf("invalid duration: %v", err),
			})
		} else if d <= 0 {
			errs = append(errs, ValidationError{
				Field:   "ALERT_COOLDOWN",
				Message: "must be positive",
			})
		}
	}

	// A reconcile threshold inside the notifier's retry window would re-emit
	// notifications that are still being retried.
	if cfg.ReconcileEnabled && cfg.ReconcileThreshold <= notifier.MaxRetryDuration() {
		errs = append(errs, ValidationError{
			Field: "RECONCILE_THRESHOLD",
			Message: fmt.Sprintf("must exceed the notifier retry window (%s), got %s",
				notifier.MaxRetryDuration(), cfg.ReconcileThreshold),
		})
	}

	// NOTIFY_WEBHOOK_SECRET is pointless without a URL, but a URL without a
	// secret means unsigned deliveries.
	if cfg.NotifyWebhookURL != "" && cfg.NotifyWebhookSecret == "" {
		errs = append(errs, ValidationError{
			Field:   "NOTIFY_WEBHOOK_SECRET",
			Message: "required when NOTIFY_WEBHOOK_URL is set",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
