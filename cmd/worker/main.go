package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/app"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/appointments"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/audit"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/inventory"
	jobmetrics "github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/jobs"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/notify"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/notify/redisbus"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/observability"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/platform/cache"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/platform/db"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/prescriptions"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/shared"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/users"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/jobs"
)

// cronEntries maps each scheduled task to its UTC cron spec.
var cronEntries = []struct {
	spec string
	task string
}{
	{spec: "0 8 * * *", task: jobs.TaskAppointmentReminders},
	{spec: "30 8 * * *", task: jobs.TaskPrescriptionExpiry},
	{spec: "0 * * * *", task: jobs.TaskLowStockScan},
	{spec: "15 3 * * *", task: jobs.TaskIdempotencyCleanup},
}

func main() {
	trigger := flag.String("trigger", "", "enqueue one task by type name and exit")
	flag.Parse()

	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg).With(slog.String("component", "worker"))
	redisOpts, err := cache.QueueOptions(cfg.RedisAddr)
	if err != nil {
		logger.Error("redis options", slog.Any("error", err))
		os.Exit(1)
	}

	if *trigger != "" {
		if err := enqueue(ctx, redisOpts, *trigger, logger); err != nil {
			logger.Error("trigger task", slog.String("task", *trigger), slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	recorder := audit.NewRecorder(shared.NewAuditLogger(pool), cfg.AuditBuffer, logger)
	recorderCtx, stopRecorder := context.WithCancel(context.Background())
	recorderDone := make(chan struct{})
	go func() {
		defer close(recorderDone)
		_ = recorder.Run(recorderCtx)
	}()
	defer func() {
		stopRecorder()
		<-recorderDone
	}()

	metrics := observability.NewMetrics()
	notifier := notify.NewNotifier(
		users.NewRepository(pool),
		redisbus.NewPublisher(redisClient, cfg.RelayChannelPrefix),
		recorder,
		notify.NewMetrics(metrics.Registerer()),
		logger,
	)
	jobMetrics := jobmetrics.NewMetrics(metrics.Registerer())
	notifyJobs := jobs.NewNotifyJobs(
		appointments.NewRepository(pool),
		prescriptions.NewRepository(pool),
		inventory.NewRepository(pool),
		notifier,
		logger,
		jobMetrics,
	)
	maintenance := &jobs.MaintenanceJobs{Keys: shared.NewIdempotencyStore(pool), Logger: logger, Metrics: jobMetrics}

	cron := make([]jobs.CronRegistration, 0, len(cronEntries))
	for _, entry := range cronEntries {
		task, err := jobs.NewTask(entry.task)
		if err != nil {
			logger.Error("build task", slog.String("task", entry.task), slog.Any("error", err))
			os.Exit(1)
		}
		cron = append(cron, jobs.CronRegistration{Spec: entry.spec, Task: task, Options: []asynq.Option{asynq.MaxRetry(3)}})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   redisOpts,
		Logger:      logger,
		Handlers:    append(notifyJobs.Handlers(), maintenance.Handlers()...),
		Cron:        cron,
		Concurrency: cfg.WorkerConcurrency,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: metrics.Handler(), ReadHeaderTimeout: cfg.AppReadTimeout}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("worker metrics server", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

func enqueue(ctx context.Context, opts asynq.RedisClientOpt, name string, logger *slog.Logger) error {
	client, err := jobs.NewClient(opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Warn("client close", slog.Any("error", err))
		}
	}()
	info, err := client.Trigger(ctx, name)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", name, err)
	}
	logger.Info("task enqueued", slog.String("task", info.Type), slog.String("id", info.ID), slog.String("queue", info.Queue))
	return nil
}
