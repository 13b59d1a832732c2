// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"jobmatch-workers/internal/catalog"
	commonaws "jobmatch-workers/internal/common/aws"
	"jobmatch-workers/internal/common/camunda"
	"jobmatch-workers/internal/common/config"
	"jobmatch-workers/internal/common/database"
	"jobmatch-workers/internal/common/logger"
	"jobmatch-workers/internal/common/observability"
	"jobmatch-workers/internal/lifecycle"
	"jobmatch-workers/internal/orchestrator"
	"jobmatch-workers/internal/outreach"
	"jobmatch-workers/internal/profile"
	"jobmatch-workers/internal/scoring"
	"jobmatch-workers/pkg/registry"

	// Recommendation workers
	rj "jobmatch-workers/internal/workers/recommendation/rank-jobs"

	// Application lifecycle workers
	atj "jobmatch-workers/internal/workers/application/apply-to-job"
	ns "jobmatch-workers/internal/workers/application/notify-status"
	sr "jobmatch-workers/internal/workers/application/submission-result"
	wa "jobmatch-workers/internal/workers/application/withdraw-application"

	// Outreach workers
	ch "jobmatch-workers/internal/workers/outreach/contact-hr"
	orr "jobmatch-workers/internal/workers/outreach/outreach-result"
	so "jobmatch-workers/internal/workers/outreach/send-outreach"
)

const defaultRegistryPath = "configs/activity-registry.json"

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
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("worker-manager")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init Zeebe client with retry ---
	var camundaClient *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		camundaClient, err = camunda.NewClient(cfg.Camunda.BrokerAddress)
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zeebeClient := camundaClient.GetClient()
	zapLog.Info("Zeebe client connected successfully")

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

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init AWS delivery clients ---
	var sesClient *commonaws.SESClient
	if cfg.Integrations.AWS.SES.Enabled {
		sesClient, err = commonaws.NewSESClient(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			zapLog.Fatal("ses client failed", zap.Error(err))
		}
	}
	var snsClient *commonaws.SNSClient
	if cfg.Integrations.AWS.SNS.Enabled {
		snsClient, err = commonaws.NewSNSClient(ctx, cfg.Integrations.AWS.Region, cfg.Integrations.AWS.SNS.DefaultSMSSenderID)
		if err != nil {
			zapLog.Fatal("sns client failed", zap.Error(err))
		}
	}

	// --- Activity registry ---
	registryPath := os.Getenv("ACTIVITY_REGISTRY_PATH")
	if registryPath == "" {
		registryPath = defaultRegistryPath
	}
	activities, err := registry.LoadRegistry(registryPath)
	if err != nil {
		activities = nil
		zapLog.Warn("activity registry not loaded, job inputs will not be schema-checked",
			zap.String("path", registryPath), zap.Error(err))
	} else {
		zapLog.Info("activity registry loaded",
			zap.String("version", activities.Version),
			zap.Int("activities", len(activities.Activities)),
		)
	}

	// --- Domain services ---
	engine, err := scoring.NewEngine(scoring.WeightsFromConfig(cfg.Scoring))
	if err != nil {
		zapLog.Fatal("invalid scoring weights", zap.Error(err))
	}

	profileStore := profile.NewPostgresStore(
		pg.DB, redis.Client,
		time.Duration(cfg.Scoring.RankCacheTTLSec)*time.Second,
		log,
	)
	postingCatalog := catalog.NewSearchCatalog(
		esClient.Client, esClient.Index,
		catalog.NewPostgresCatalog(pg.DB, log),
		log,
	)
	recordStore := lifecycle.NewPostgresRecordStore(pg.DB, log)
	taskOrchestrator := orchestrator.NewZeebeOrchestrator(camundaClient, log)

	machine := lifecycle.NewMachine(
		recordStore, profileStore, postingCatalog, taskOrchestrator,
		lifecycle.Policy{
			MaxAttempts:        cfg.Lifecycle.MaxSubmissionAttempts,
			RetryBaseDelay:     time.Duration(cfg.Lifecycle.RetryBaseDelaySec) * time.Second,
			SubmissionDeadline: time.Duration(cfg.Lifecycle.SubmissionDeadlineMin) * time.Minute,
		},
		log,
	)

	coordinator := outreach.NewCoordinator(
		recordStore, postingCatalog, taskOrchestrator, machine.Locks(),
		outreach.Policy{
			Cooldown:    time.Duration(cfg.Outreach.CooldownHours) * time.Hour,
			MaxAttempts: cfg.Outreach.MaxAttempts,
		},
		log,
	)

	// --- Register workers ---
	var workers []*camunda.CamundaWorker
	register := func(taskType string, handler camunda.JobHandler) {
		wcfg := config.GetWorkerConfig(cfg, taskType)
		if !wcfg.Enabled {
			zapLog.Info("worker disabled", zap.String("taskType", taskType))
			return
		}
		if activities != nil {
			if _, ok := activities.FindByTaskType(taskType); ok {
				handler = camunda.NewValidatedHandler(taskType, activities, handler, zapLog)
			} else {
				zapLog.Warn("task type missing from activity registry", zap.String("taskType", taskType))
			}
		}
		w := camunda.NewWorker(zeebeClient, taskType, wcfg.MaxJobsActive, handler, zapLog)
		w.Start()
		workers = append(workers, w)
	}

	register(rj.TaskType, rj.NewHandler(
		&rj.Config{
			Timeout:      config.GetDuration(config.GetWorkerConfig(cfg, rj.TaskType).Timeout),
			RankCacheTTL: time.Duration(cfg.Scoring.RankCacheTTLSec) * time.Second,
		},
		engine, profileStore, postingCatalog, redis.Client, log,
	))

	register(atj.TaskType, atj.NewHandler(
		&atj.Config{Timeout: config.GetDuration(config.GetWorkerConfig(cfg, atj.TaskType).Timeout)},
		machine, log,
	))

	register(wa.TaskType, wa.NewHandler(
		&wa.Config{Timeout: config.GetDuration(config.GetWorkerConfig(cfg, wa.TaskType).Timeout)},
		machine, log,
	))

	register(sr.TaskType, sr.NewHandler(
		&sr.Config{Timeout: config.GetDuration(config.GetWorkerConfig(cfg, sr.TaskType).Timeout)},
		machine, log,
	))

	var statusEmail ns.EmailSender
	if sesClient != nil && cfg.Notifications.Email.Enabled {
		statusEmail = sesClient
	}
	var statusSMS ns.SMSSender
	if snsClient != nil && cfg.Notifications.SMS.Enabled {
		statusSMS = snsClient
	}
	register(ns.TaskType, ns.NewHandler(
		&ns.Config{
			Timeout:   config.GetDuration(config.GetWorkerConfig(cfg, ns.TaskType).Timeout),
			FromEmail: cfg.Notifications.Email.FromEmail,
		},
		statusEmail, statusSMS, log,
	))

	register(ch.TaskType, ch.NewHandler(
		&ch.Config{Timeout: config.GetDuration(config.GetWorkerConfig(cfg, ch.TaskType).Timeout)},
		coordinator, log,
	))

	register(orr.TaskType, orr.NewHandler(
		&orr.Config{Timeout: config.GetDuration(config.GetWorkerConfig(cfg, orr.TaskType).Timeout)},
		coordinator, log,
	))

	outreachConfig := &so.Config{
		Timeout:      config.GetDuration(config.GetWorkerConfig(cfg, so.TaskType).Timeout),
		FromEmail:    cfg.Outreach.FromEmail,
		SMTPHost:     cfg.Integrations.SMTP.Host,
		SMTPPort:     cfg.Integrations.SMTP.Port,
		SMTPUsername: cfg.Integrations.SMTP.Username,
		SMTPPassword: cfg.Integrations.SMTP.Password,
		UseTLS:       cfg.Integrations.SMTP.UseTLS,
	}
	var outreachSender so.EmailSender
	if sesClient != nil {
		outreachSender = so.NewSESSender(sesClient)
	} else {
		outreachSender = so.NewSMTPSender(outreachConfig)
	}
	register(so.TaskType, so.NewHandler(outreachConfig, outreachSender, log))

	zapLog.Info("All workers registered", zap.Int("count", len(workers)))

	// --- Lifecycle sweeper ---
	sweepInterval := time.Duration(cfg.Lifecycle.SweepIntervalSec) * time.Second
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}
	sweepStop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				machine.Sweep(ctx, time.Now().UTC())
			case <-sweepStop:
				return
			}
		}
	}()
	zapLog.Info("Lifecycle sweeper started", zap.Duration("interval", sweepInterval))

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if err := camundaClient.HealthCheck(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{
					"status": "not ready",
					"error":  err.Error(),
				})
				return
			}
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "ready",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening on :8080")
		if err := http.ListenAndServe(":8080", nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	close(sweepStop)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, w := range workers {
		w.Stop(shutdownCtx)
	}

	if err := camundaClient.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}
