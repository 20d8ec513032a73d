package main

import (
	log "github.com/sirupsen/logrus"

	"github.com/finbeat/finbeat/internal/config"
)

// logConfigWarnings flags configurations that work but lose guarantees.
// None of these block startup.
func logConfigWarnings(cfg *config.Config) {
	if !cfg.ReconcileEnabled {
		log.Printf("WARNING [P0]: RECONCILE_ENABLED=false. A crash between persisting a " +
			"notification and delivering it leaves the row pending forever. " +
			"Enable the reconciler in production.")
	}

	if !cfg.MetricsEnabled {
		log.Printf("WARNING [P1]: METRICS_ENABLED=false. Run outcomes and delivery " +
			"failures will not be observable.")
	}

	if cfg.NotifyWebhookURL == "" {
		log.Printf("INFO: NOTIFY_WEBHOOK_URL not set. Notifications are stored " +
			"in-app only; no webhook deliveries will be attempted.")
	}

	if cfg.CircuitBreakerThreshold <= 0 && cfg.NotifyWebhookURL != "" {
		log.Printf("INFO: CIRCUIT_BREAKER_THRESHOLD=0. A dead webhook destination " +
			"will be retried at full rate.")
	}
}
