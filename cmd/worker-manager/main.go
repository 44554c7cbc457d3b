// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	awsclients "psychosocial-workers/internal/common/aws"
	"psychosocial-workers/internal/common/camunda"
	"psychosocial-workers/internal/common/config"
	"psychosocial-workers/internal/common/database"
	"psychosocial-workers/internal/common/logger"
	"psychosocial-workers/internal/common/observability"
	"psychosocial-workers/internal/notification"
	"psychosocial-workers/internal/processing"
	"psychosocial-workers/internal/risk/actionplan"
	"psychosocial-workers/internal/risk/automation"
	"psychosocial-workers/internal/risk/calculation"
	"psychosocial-workers/internal/store"

	// Assessment intake workers
	capr "psychosocial-workers/internal/workers/assessment/check-action-plan-requirement"
	eap "psychosocial-workers/internal/workers/assessment/enqueue-assessment-processing"
	gap "psychosocial-workers/internal/workers/assessment/generate-action-plan"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	bootLog := logger.New("info", "console")

	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("app", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs, err := observability.New(context.Background(), cfg.App.Name, cfg.Observability.Tracing)
	if err != nil {
		zapLog.Warn("observability init incomplete, continuing with what started", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch with retry (optional projection) ---
	var esClient *database.ElasticsearchClient
	if cfg.Database.Elasticsearch.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Warn("elasticsearch unavailable, analysis projection disabled", zap.Error(err))
			esClient = nil
		} else {
			zapLog.Info("Elasticsearch connected successfully")
		}
	}

	// --- Init Zeebe Client with retry ---
	var zeebe *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      10 * time.Second,
			RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
		})
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	defer zeebe.Close()
	zapLog.Info("Zeebe client connected successfully")

	// --- Notification channels ---
	// Interfaces stay nil when a channel is off so the service skips it.
	awsClients, err := awsclients.NewClients(ctx, cfg.Notifications)
	if err != nil {
		zapLog.Fatal("failed to create AWS clients", zap.Error(err))
	}
	var sesClient notification.SESService
	var snsClient notification.SNSService
	if awsClients.SES != nil {
		sesClient = awsClients.SES
	}
	if awsClients.SNS != nil {
		snsClient = awsClients.SNS
	}

	// --- Risk core ---
	pgStore := store.NewPostgres(pg.DB, log)
	if err := pgStore.Migrate(ctx); err != nil {
		zapLog.Fatal("schema migration failed", zap.Error(err))
	}

	criteriaProvider := store.NewCachedCriteria(
		pgStore,
		rdb.Client,
		time.Duration(cfg.Cache.CriteriaTTL)*time.Second,
		log,
	)
	engine := calculation.NewEngine(criteriaProvider, pgStore, log)
	generator := actionplan.NewGenerator(pgStore, log)

	notifier := notification.NewService(notification.Config{
		EmailEnabled: cfg.Notifications.Email.Enabled,
		FromEmail:    cfg.Notifications.Email.FromEmail,
		SMSEnabled:   cfg.Notifications.SMS.Enabled,
		SenderID:     cfg.Notifications.SMS.SenderID,
	}, pgStore, sesClient, snsClient, log)

	opts := []automation.Option{automation.WithNotifier(notifier)}
	if esClient != nil {
		opts = append(opts, automation.WithIndexer(
			store.NewAnalysisIndex(esClient.Client, cfg.Database.Elasticsearch.AnalysisIndex, log),
		))
	}
	pipeline := automation.NewPipeline(pgStore, engine, generator, log, opts...)
	gate := automation.NewGate(pipeline, log)

	scheduler := processing.NewScheduler(pgStore, pipeline, processing.OptionsFromConfig(cfg.Scheduler), log, obs)
	if cfg.Scheduler.Enabled {
		if err := scheduler.Start(ctx); err != nil {
			zapLog.Fatal("scheduler start failed", zap.Error(err))
		}
	} else {
		zapLog.Info("background scheduler disabled by config")
	}

	// --- Register Zeebe workers ---
	var workers []*camunda.JobWorker

	if config.IsWorkerEnabled(cfg, eap.TaskType) {
		wcfg := config.GetWorkerConfig(cfg, eap.TaskType)
		handler := eap.NewHandler(eap.LoadConfig(wcfg), scheduler, log)
		workers = append(workers, camunda.StartWorker(zeebe.GetClient(), eap.TaskType, wcfg, handler, log))
	}

	if config.IsWorkerEnabled(cfg, gap.TaskType) {
		wcfg := config.GetWorkerConfig(cfg, gap.TaskType)
		handler := gap.NewHandler(gap.LoadConfig(wcfg), gate, log)
		workers = append(workers, camunda.StartWorker(zeebe.GetClient(), gap.TaskType, wcfg, handler, log))
	}

	if config.IsWorkerEnabled(cfg, capr.TaskType) {
		wcfg := config.GetWorkerConfig(cfg, capr.TaskType)
		handler := capr.NewHandler(capr.LoadConfig(wcfg), gate, log)
		workers = append(workers, camunda.StartWorker(zeebe.GetClient(), capr.TaskType, wcfg, handler, log))
	}

	zapLog.Info("workers registered", zap.Int("count", len(workers)))

	// --- Health, Metrics & Operator Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		checkCtx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		checks := map[string]string{}
		ready := true
		for name, ping := range map[string]func(context.Context) error{
			"postgres": pgStore.Ping,
			"redis":    rdb.Ping,
			"zeebe":    zeebe.HealthCheck,
		} {
			if err := ping(checkCtx); err != nil {
				checks[name] = err.Error()
				ready = false
				continue
			}
			checks[name] = "ok"
		}

		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, map[string]interface{}{
			"ready":  ready,
			"checks": checks,
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/scheduler/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, scheduler.Status())
	})
	mux.HandleFunc("/scheduler/pause", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		scheduler.Pause()
		writeJSON(w, http.StatusOK, scheduler.Status())
	})
	mux.HandleFunc("/scheduler/resume", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		scheduler.Resume()
		writeJSON(w, http.StatusOK, scheduler.Status())
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("http server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	zapLog.Info("Shutting down worker manager...")

	for _, w := range workers {
		w.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := scheduler.Stop(shutdownCtx); err != nil && !errors.Is(err, processing.ErrNotRunning) {
		zapLog.Warn("scheduler stop incomplete", zap.Error(err))
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Warn("http server shutdown failed", zap.Error(err))
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		zapLog.Warn("observability shutdown failed", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped")
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
