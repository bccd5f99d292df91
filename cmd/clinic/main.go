package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/app"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/appointments"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/audit"
	audithttp "github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/audit/http"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/auth"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/inventory"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/masterdata/branches"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/masterdata/products"
	mdshared "github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/masterdata/shared"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/notify"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/notify/redisbus"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/observability"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/platform/cache"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/platform/db"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/policy"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/prescriptions"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/rbac"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/shared"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/transactions"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/users"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
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

	metrics := observability.NewMetrics()

	recorder := audit.NewRecorder(shared.NewAuditLogger(pool), cfg.AuditBuffer, logger)
	recorderCtx, stopRecorder := context.WithCancel(context.Background())
	recorderDone := make(chan struct{})
	go func() {
		defer close(recorderDone)
		_ = recorder.Run(recorderCtx)
	}()

	enforcer := policy.NewEnforcer(recorder, logger)
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL)

	usersRepo := users.NewRepository(pool)
	notifier := notify.NewNotifier(
		usersRepo,
		redisbus.NewPublisher(redisClient, cfg.RelayChannelPrefix),
		recorder,
		notify.NewMetrics(metrics.Registerer()),
		logger,
	)
	dispatcher := notify.NewDispatcher(notifier, cfg.NotifyTimeout, cfg.NotifyMaxInFlight, logger)

	authService := auth.NewService(auth.NewRepository(pool), tokens, recorder, logger)
	usersService := users.NewService(usersRepo, enforcer, dispatcher, logger)
	prescriptionService := prescriptions.NewService(prescriptions.NewRepository(pool), enforcer, dispatcher, logger)
	transactionService := transactions.NewService(transactions.NewRepository(pool), enforcer, recorder, dispatcher, logger)
	appointmentService := appointments.NewService(appointments.NewRepository(pool), enforcer, dispatcher, logger)

	productService := products.NewService(products.NewRepository(pool),
		mdshared.NewSummaryCache[notify.Product](redisClient, "cache:product:", mdshared.DefaultSummaryTTL), logger)
	branchService := branches.NewService(branches.NewRepository(pool),
		mdshared.NewSummaryCache[notify.Branch](redisClient, "cache:branch:", mdshared.DefaultSummaryTTL), logger)
	inventoryService := inventory.NewService(
		inventory.NewRepository(pool),
		enforcer,
		recorder,
		shared.NewIdempotencyStore(pool),
		app.Catalog{Products: productService, Branches: branchService},
		dispatcher,
		inventory.ServiceConfig{DefaultThreshold: cfg.LowStockDefaultThreshold},
		logger,
	)

	queueOpts, err := cache.QueueOptions(cfg.RedisAddr)
	if err != nil {
		logger.Error("redis options", slog.Any("error", err))
		os.Exit(1)
	}
	inspector := asynq.NewInspector(queueOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		Tokens:              tokens,
		AuthHandler:         auth.NewHandler(logger, authService),
		UsersHandler:        users.NewHandler(logger, usersService),
		PrescriptionHandler: prescriptions.NewHandler(logger, prescriptionService),
		TransactionHandler:  transactions.NewHandler(logger, transactionService),
		AppointmentHandler:  appointments.NewHandler(logger, appointmentService),
		InventoryHandler:    inventory.NewHandler(logger, inventoryService),
		BranchHandler:       branches.NewHandler(logger, branchService),
		ProductHandler:      products.NewHandler(logger, productService),
		AuditHandler:        audithttp.NewHandler(logger, audit.NewService(audit.NewRepository(pool))),
		JobHandler:          jobs.NewHandler(inspector, logger),
		RBACMiddleware:      rbac.Middleware{Logger: logger},
		Metrics:             metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	runErr := g.Wait()

	// In-flight fan-out may still record failures, so the recorder stops last.
	dispatcher.Wait()
	stopRecorder()
	<-recorderDone

	if runErr != nil {
		logger.Error("http server", slog.Any("error", runErr))
		os.Exit(1)
	}
}
