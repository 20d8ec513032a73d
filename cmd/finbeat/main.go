package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/finbeat/finbeat/internal/alerts"
	"github.com/finbeat/finbeat/internal/analytics"
	"github.com/finbeat/finbeat/internal/api"
	"github.com/finbeat/finbeat/internal/circuitbreaker"
	"github.com/finbeat/finbeat/internal/config"
	"github.com/finbeat/finbeat/internal/domain"
	"github.com/finbeat/finbeat/internal/logging"
	"github.com/finbeat/finbeat/internal/metrics"
	"github.com/finbeat/finbeat/internal/notifier"
	"github.com/finbeat/finbeat/internal/reconciler"
	"github.com/finbeat/finbeat/internal/recurrence"
	"github.com/finbeat/finbeat/internal/runlock"
	"github.com/finbeat/finbeat/internal/store/postgres"
	"github.com/finbeat/finbeat/internal/transport/channel"
	"github.com/finbeat/finbeat/internal/trigger"

	_ "github.com/lib/pq"
)

// Build-time variables set via -ldflags
var (
	version = "dev"
	commit  = "unknown"
)

const (
	exitSuccess       = 0
	exitRuntimeError  = 1
	exitInvalidConfig = 2
)

// defaultOwnerID scopes all API operations; single-user deployment for now.
const defaultOwnerID int64 = 1

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitRuntimeError)
	}

	cmd := os.Args[1]

	switch cmd {
	case "serve":
		os.Exit(runServe())
	case "validate":
		os.Exit(runValidate())
	case "config":
		os.Exit(runConfig())
	case "version":
		os.Exit(runVersion())
	case "--help", "-h", "help":
		printUsage()
		os.Exit(exitSuccess)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(exitRuntimeError)
	}
}

func printUsage() {
	fmt.Println(`finbeat - recurring transaction executor and alerting service

Usage:
  finbeat <command>

Commands:
  serve      Start the executor, watchers and HTTP API
  validate   Validate configuration (no connections made)
  config     Print effective configuration as JSON (secrets masked)
  version    Print version information

Environment Variables:
  DATABASE_URL              PostgreSQL connection string (required)
  REDIS_ADDR                Redis address for analytics (optional)
  HTTP_ADDR                 HTTP server address (default: ":8080")
  RUN_SCHEDULE              Cron spec for execution runs (default: "5 0 * * *")
  DEBT_SCAN_SCHEDULE        Cron spec for debt reminders (default: "0 8 * * *")

  DB_OP_TIMEOUT             Database operation timeout (default: "5s")
  DB_MAX_OPEN_CONNS         Max open database connections (default: "25")
  DB_MAX_IDLE_CONNS         Max idle database connections (default: "5")
  DB_CONN_MAX_LIFETIME      Max connection lifetime (default: "30m")
  DB_CONN_MAX_IDLE_TIME     Max connection idle time (default: "5m")

  HTTP_SHUTDOWN_TIMEOUT     Graceful HTTP shutdown timeout (default: "10s")
  NOTIFIER_DRAIN_TIMEOUT    Notifier event drain timeout (default: "30s")

  NOTIFY_WEBHOOK_URL        Webhook destination for alerts (optional)
  NOTIFY_WEBHOOK_SECRET     HMAC signing secret (required with URL)
  NOTIFY_TIMEOUT            Webhook request timeout (default: "30s")
  ALERT_COOLDOWN            Repeat-alert suppression window (default: "24h")

  CIRCUIT_BREAKER_THRESHOLD Consecutive failures before opening (default: "5", 0 disables)
  CIRCUIT_BREAKER_COOLDOWN  Open-state cooldown (default: "2m")

  RUN_LOCK_KEY              Advisory lock key for run serialization (default: "651042")
  EVENTBUS_BUFFER_SIZE      Notification event buffer (default: "100")

  METRICS_ENABLED           Enable Prometheus metrics (default: "false")
  METRICS_PATH              Metrics endpoint path (default: "/metrics")

  RECONCILE_ENABLED         Enable stale notification reconciler (default: "false")
  RECONCILE_INTERVAL        How often to scan for stale rows (default: "5m")
  RECONCILE_THRESHOLD       Age before a pending row is stale (default: "20m")
  RECONCILE_BATCH_SIZE      Max stale rows per cycle (default: "100")

  ANALYTICS_ENABLED         Enable Redis per-owner counters (default: "false")
  ANALYTICS_RETENTION       Counter TTL (default: "720h")

  LOG_LEVEL                 Log level (default: "info")
  ENVIRONMENT               Environment name, controls log format (default: "development")`)
}

// analyticsEmitter wraps the event bus and mirrors every emitted alert into
// the Redis counters. Counting happens after a successful emit so dropped
// events are not counted as alerts.
type analyticsEmitter struct {
	bus  *channel.EventBus
	sink *analytics.RedisSink
}

func (e *analyticsEmitter) Emit(ctx context.Context, event domain.NotificationEvent) error {
	if err := e.bus.Emit(ctx, event); err != nil {
		return err
	}
	e.sink.RecordAlert(ctx, event)
	return nil
}

func runServe() int {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}

	logging.Init(cfg.LogLevel, cfg.Environment)
	logConfigWarnings(&cfg)

	// Connect to PostgreSQL
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		return exitRuntimeError
	}
	defer db.Close()

	// Configure connection pool
	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.DBConnMaxIdleTime)

	log.Printf("finbeat: db pool configured (max_open=%d, max_idle=%d, max_lifetime=%s, max_idle_time=%s)",
		cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)

	if err := db.Ping(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to database: %v\n", err)
		return exitRuntimeError
	}

	store := postgres.New(db, cfg.DBOpTimeout)

	// Initialize metrics sink (optional)
	var metricsSink *metrics.PrometheusSink
	if cfg.MetricsEnabled {
		metricsSink = metrics.NewPrometheusSink(prometheus.DefaultRegisterer)
		log.Printf("finbeat: metrics enabled (path=%s)", cfg.MetricsPath)
	} else {
		log.Println("finbeat: METRICS_ENABLED not set; metrics disabled")
	}

	// Create event bus with optional metrics
	var busOpts []channel.Option
	if metricsSink != nil {
		busOpts = append(busOpts, channel.WithMetrics(metricsSink))
	}
	bus := channel.NewEventBus(cfg.EventBusBufferSize, busOpts...)

	// Notifier dispatcher delivers alerts to the configured webhook.
	disp := notifier.New(notifier.Config{
		WebhookURL: cfg.NotifyWebhookURL,
		Secret:     cfg.NotifyWebhookSecret,
		Timeout:    cfg.NotifyTimeout,
	}, store, notifier.NewHTTPWebhookSender()).
		WithDrainTimeout(cfg.NotifierDrainTimeout)
	if metricsSink != nil {
		disp = disp.WithMetrics(metricsSink)
	}
	if cfg.CircuitBreakerThreshold > 0 {
		disp = disp.WithBreaker(circuitbreaker.New(cfg.CircuitBreakerThreshold, cfg.CircuitBreakerCooldown))
		log.Printf("finbeat: circuit breaker enabled (threshold=%d, cooldown=%s)",
			cfg.CircuitBreakerThreshold, cfg.CircuitBreakerCooldown)
	}

	// Wire analytics if Redis is configured
	var analyticsSink *analytics.RedisSink
	if cfg.AnalyticsEnabled && cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})
		analyticsSink = analytics.NewRedisSink(redisClient, domain.AnalyticsConfig{
			Enabled:   true,
			Retention: cfg.AnalyticsRetention,
		})
		log.Printf("finbeat: analytics enabled (redis=%s, retention=%s)", cfg.RedisAddr, cfg.AnalyticsRetention)
	} else {
		log.Println("finbeat: analytics disabled")
	}

	// Watchers share one cooldown gate; the alert kind keys repeats apart.
	var emitter alerts.EventEmitter = bus
	if analyticsSink != nil {
		emitter = &analyticsEmitter{bus: bus, sink: analyticsSink}
	}
	gate := alerts.NewGate(cfg.AlertCooldown)
	if metricsSink != nil {
		gate = gate.WithMetrics(metricsSink)
	}
	budgetWatcher := alerts.NewBudgetWatcher(store, gate, emitter)
	debtWatcher := alerts.NewDebtWatcher(store, gate, emitter)

	executor := recurrence.NewExecutor(store, store).WithObserver(budgetWatcher)
	if analyticsSink != nil {
		executor = executor.WithObserver(analyticsSink)
	}
	if metricsSink != nil {
		executor = executor.WithMetrics(metricsSink)
	}

	guard := runlock.New(db, cfg.RunLockKey)
	if metricsSink != nil {
		guard = guard.WithMetrics(metricsSink)
	}

	trig := trigger.New(trigger.Config{
		RunSchedule:      cfg.RunSchedule,
		DebtScanSchedule: cfg.DebtScanSchedule,
	}, executor, guard).WithDebtScanner(debtWatcher)

	// Create API handler with the same store and run guard
	apiHandler := api.NewHandler(store, executor, guard, defaultOwnerID).WithHealthChecker(db)

	mux := http.NewServeMux()
	if cfg.MetricsEnabled {
		mux.Handle(cfg.MetricsPath, promhttp.Handler())
	}
	mux.Handle("/", apiHandler)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	go func() {
		log.Printf("finbeat: http server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("finbeat: http server error: %v", err)
		}
	}()

	// Separate contexts for the notifier and reconciler enable ordered shutdown.
	notifierCtx, cancelNotifier := context.WithCancel(context.Background())

	var notifierWg sync.WaitGroup
	var reconcilerWg sync.WaitGroup
	var cancelReconciler context.CancelFunc

	notifierWg.Add(1)
	go func() {
		defer notifierWg.Done()
		disp.Run(notifierCtx, bus.Channel())
	}()

	// Start reconciler if enabled
	if cfg.ReconcileEnabled {
		var reconcilerCtx context.Context
		reconcilerCtx, cancelReconciler = context.WithCancel(context.Background())
		recon := reconciler.New(
			reconciler.Config{
				Interval:  cfg.ReconcileInterval,
				Threshold: cfg.ReconcileThreshold,
				BatchSize: cfg.ReconcileBatchSize,
			},
			store,
			bus,
		)
		if metricsSink != nil {
			recon = recon.WithMetrics(metricsSink)
		}
		reconcilerWg.Add(1)
		go func() {
			defer reconcilerWg.Done()
			recon.Run(reconcilerCtx)
		}()
		log.Printf("finbeat: reconciler enabled (interval=%s, threshold=%s, batch=%d)",
			cfg.ReconcileInterval, cfg.ReconcileThreshold, cfg.ReconcileBatchSize)
	} else {
		log.Println("finbeat: RECONCILE_ENABLED not set; reconciler disabled")
	}

	if err := trig.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start trigger engine: %v\n", err)
		if cancelReconciler != nil {
			cancelReconciler()
			reconcilerWg.Wait()
		}
		cancelNotifier()
		notifierWg.Wait()
		return exitRuntimeError
	}

	log.Printf("finbeat: started (run_schedule=%q, debt_scan=%q, http=%s)",
		cfg.RunSchedule, cfg.DebtScanSchedule, cfg.HTTPAddr)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig

	log.Printf("finbeat: received signal %v, shutting down", received)

	// Phase 1: Stop the trigger engine (no new runs or scans)
	log.Println("finbeat: stopping trigger engine...")
	trig.Stop()

	// Phase 2: Stop reconciler (no new re-emits)
	if cancelReconciler != nil {
		log.Println("finbeat: stopping reconciler...")
		cancelReconciler()
		reconcilerWg.Wait()
		log.Println("finbeat: reconciler stopped")
	}

	// Phase 3: Stop notifier (drains buffered events before returning)
	log.Println("finbeat: stopping notifier (draining events)...")
	cancelNotifier()
	notifierWg.Wait()
	log.Println("finbeat: notifier stopped")

	// Phase 4: Stop HTTP server with graceful shutdown
	log.Println("finbeat: stopping http server...")
	httpShutdownCtx, httpShutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer httpShutdownCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		log.Printf("finbeat: http server shutdown error: %v", err)
	}
	log.Println("finbeat: http server stopped")

	log.Println("finbeat: stopped")
	return exitSuccess
}

func runValidate() int {
	_ = godotenv.Load()
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitInvalidConfig
	}

	fmt.Println("configuration valid")
	return exitSuccess
}

func runConfig() int {
	_ = godotenv.Load()
	cfg := config.Load()

	data, err := cfg.MaskedJSON()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal config: %v\n", err)
		return exitRuntimeError
	}

	fmt.Println(string(data))
	return exitSuccess
}

func runVersion() int {
	fmt.Printf("finbeat version %s (commit: %s)\n", version, commit)
	return exitSuccess
}
