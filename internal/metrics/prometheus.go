package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

// PrometheusSink implements Sink using the Prometheus client library.
// All methods are non-blocking and fire-and-forget.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	// Executor metrics
	runsTotal           prometheus.Counter
	runErrorsTotal      prometheus.Counter
	transactionsCreated prometheus.Counter
	runDuration         prometheus.Histogram
	itemOutcomesTotal   *prometheus.CounterVec

	// Notifier metrics
	deliveryAttemptsTotal *prometheus.CounterVec
	deliveryOutcomesTotal *prometheus.CounterVec
	webhookDuration       prometheus.Histogram
	retryAttemptsTotal    *prometheus.CounterVec
	eventsInFlight        prometheus.Gauge

	// EventBus metrics
	bufferSize       prometheus.Gauge
	bufferCapacity   prometheus.Gauge
	bufferSaturation prometheus.Gauge
	emitErrorsTotal  prometheus.Counter

	// Alert gate metrics
	alertsSuppressedTotal prometheus.Counter

	// Reconciler metrics
	stalePending prometheus.Gauge

	// Run lock metrics
	runLockAcquiredTotal  prometheus.Counter
	runLockContendedTotal prometheus.Counter
}

// NewPrometheusSink creates a new Prometheus metrics sink.
// If registration fails, it logs a warning and returns a functional sink.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{}
	s.initExecutorMetrics(reg)
	s.initNotifierMetrics(reg)
	s.initEventBusMetrics(reg)
	s.initAlertMetrics(reg)
	s.initReconcilerMetrics(reg)
	s.initRunLockMetrics(reg)
	return s
}

func (s *PrometheusSink) initExecutorMetrics(reg prometheus.Registerer) {
	s.runsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "finbeat_executor_runs_total",
		Help: "Total number of pending-execution runs started.",
	})
	s.runErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "finbeat_executor_run_errors_total",
		Help: "Total number of runs that failed to fetch the due batch.",
	})
	s.transactionsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "finbeat_executor_transactions_created_total",
		Help: "Total number of transactions created from scheduled items.",
	})
	s.runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "finbeat_executor_run_duration_seconds",
		Help:    "Duration of each pending-execution run in seconds.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	})
	s.itemOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "finbeat_executor_item_outcomes_total",
		Help: "Per-item outcomes of pending-execution runs.",
	}, []string{"outcome"})

	s.register(reg, s.runsTotal, "finbeat_executor_runs_total")
	s.register(reg, s.runErrorsTotal, "finbeat_executor_run_errors_total")
	s.register(reg, s.transactionsCreated, "finbeat_executor_transactions_created_total")
	s.register(reg, s.runDuration, "finbeat_executor_run_duration_seconds")
	s.register(reg, s.itemOutcomesTotal, "finbeat_executor_item_outcomes_total")
}

func (s *PrometheusSink) initNotifierMetrics(reg prometheus.Registerer) {
	s.deliveryAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "finbeat_notifier_delivery_attempts_total",
		Help: "Total number of webhook delivery attempts.",
	}, []string{"attempt", "status_class"})

	s.deliveryOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "finbeat_notifier_delivery_outcomes_total",
		Help: "Total number of final delivery outcomes per notification.",
	}, []string{"outcome"})

	s.webhookDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "finbeat_notifier_webhook_duration_seconds",
		Help:    "Webhook request latency in seconds (excludes backoff wait).",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	s.retryAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "finbeat_notifier_retry_attempts_total",
		Help: "Total number of retry attempts (excludes first attempt).",
	}, []string{"retryable"})

	s.eventsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "finbeat_notifier_events_in_flight",
		Help: "Number of notification events currently being processed.",
	})

	s.register(reg, s.deliveryAttemptsTotal, "finbeat_notifier_delivery_attempts_total")
	s.register(reg, s.deliveryOutcomesTotal, "finbeat_notifier_delivery_outcomes_total")
	s.register(reg, s.webhookDuration, "finbeat_notifier_webhook_duration_seconds")
	s.register(reg, s.retryAttemptsTotal, "finbeat_notifier_retry_attempts_total")
	s.register(reg, s.eventsInFlight, "finbeat_notifier_events_in_flight")
}

func (s *PrometheusSink) initEventBusMetrics(reg prometheus.Registerer) {
	s.bufferSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "finbeat_eventbus_buffer_size",
		Help: "Current number of events in the event bus buffer.",
	})
	s.bufferCapacity = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "finbeat_eventbus_buffer_capacity",
		Help: "Configured capacity of the event bus buffer.",
	})
	s.bufferSaturation = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "finbeat_eventbus_buffer_saturation",
		Help: "Event bus buffer fill ratio (size / capacity).",
	})
	s.emitErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "finbeat_eventbus_emit_errors_total",
		Help: "Total number of emit errors (buffer full).",
	})

	s.register(reg, s.bufferSize, "finbeat_eventbus_buffer_size")
	s.register(reg, s.bufferCapacity, "finbeat_eventbus_buffer_capacity")
	s.register(reg, s.bufferSaturation, "finbeat_eventbus_buffer_saturation")
	s.register(reg, s.emitErrorsTotal, "finbeat_eventbus_emit_errors_total")
}

func (s *PrometheusSink) initAlertMetrics(reg prometheus.Registerer) {
	s.alertsSuppressedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "finbeat_alerts_suppressed_total",
		Help: "Total number of alerts suppressed by the cooldown gate.",
	})

	s.register(reg, s.alertsSuppressedTotal, "finbeat_alerts_suppressed_total")
}

func (s *PrometheusSink) initReconcilerMetrics(reg prometheus.Registerer) {
	s.stalePending = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "finbeat_reconciler_stale_pending",
		Help: "Stale pending notifications found in the last reconcile cycle.",
	})

	s.register(reg, s.stalePending, "finbeat_reconciler_stale_pending")
}

func (s *PrometheusSink) initRunLockMetrics(reg prometheus.Registerer) {
	s.runLockAcquiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "finbeat_runlock_acquired_total",
		Help: "Total number of successful run lock acquisitions.",
	})
	s.runLockContendedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "finbeat_runlock_contended_total",
		Help: "Total number of run attempts rejected because the lock was held.",
	})

	s.register(reg, s.runLockAcquiredTotal, "finbeat_runlock_acquired_total")
	s.register(reg, s.runLockContendedTotal, "finbeat_runlock_contended_total")
}

// register attempts to register a collector, logging any errors without propagating them.
func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		log.Printf("metrics: failed to register %s: %v", name, err)
	}
}

// Executor metrics implementation

func (s *PrometheusSink) RunStarted() {
	s.runsTotal.Inc()
}

func (s *PrometheusSink) RunCompleted(duration time.Duration, executed int, err error) {
	s.runDuration.Observe(duration.Seconds())
	s.transactionsCreated.Add(float64(executed))
	if err != nil {
		s.runErrorsTotal.Inc()
	}
}

func (s *PrometheusSink) ItemOutcome(outcome string) {
	s.itemOutcomesTotal.WithLabelValues(outcome).Inc()
}

// Notifier metrics implementation

func (s *PrometheusSink) DeliveryAttemptCompleted(attempt int, statusClass string, duration time.Duration) {
	s.deliveryAttemptsTotal.WithLabelValues(strconv.Itoa(attempt), statusClass).Inc()
	s.webhookDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) DeliveryOutcome(outcome string) {
	s.deliveryOutcomesTotal.WithLabelValues(outcome).Inc()
}

func (s *PrometheusSink) RetryAttempt(retryable bool) {
	label := "false"
	if retryable {
		label = "true"
	}
	s.retryAttemptsTotal.WithLabelValues(label).Inc()
}

func (s *PrometheusSink) EventsInFlightIncr() {
	s.eventsInFlight.Inc()
}

func (s *PrometheusSink) EventsInFlightDecr() {
	s.eventsInFlight.Dec()
}

// EventBus metrics implementation

func (s *PrometheusSink) BufferSizeUpdate(size int) {
	s.bufferSize.Set(float64(size))
}

func (s *PrometheusSink) BufferCapacitySet(capacity int) {
	s.bufferCapacity.Set(float64(capacity))
}

func (s *PrometheusSink) BufferSaturationUpdate(saturation float64) {
	s.bufferSaturation.Set(saturation)
}

func (s *PrometheusSink) EmitError() {
	s.emitErrorsTotal.Inc()
}

// Alert gate metrics implementation

func (s *PrometheusSink) AlertSuppressed() {
	s.alertsSuppressedTotal.Inc()
}

// Reconciler metrics implementation

func (s *PrometheusSink) StalePendingUpdate(count int) {
	s.stalePending.Set(float64(count))
}

// Run lock metrics implementation

func (s *PrometheusSink) RunLockAcquired() {
	s.runLockAcquiredTotal.Inc()
}

func (s *PrometheusSink) RunLockContended() {
	s.runLockContendedTotal.Inc()
}
