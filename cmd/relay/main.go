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

	"golang.org/x/sync/errgroup"

	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/app"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/auth"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/notify/redisbus"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/observability"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/platform/cache"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/relay"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping relay startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg).With(slog.String("component", "relay"))

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
	hub := relay.NewHub(logger, relay.NewMetrics(metrics.Registerer()))
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL)
	relayServer := relay.NewServer(hub, tokens, relay.ServerConfig{
		AllowedOrigins: cfg.RelayAllowedOrigins,
		SendBuffer:     cfg.RelaySendBuffer,
	}, logger)

	routes := relayServer.Routes()
	routes.Method(http.MethodGet, "/metrics", metrics.Handler())

	server := &http.Server{
		Addr:              cfg.RelayAddr,
		Handler:           routes,
		ReadHeaderTimeout: cfg.AppReadTimeout,
	}
	subscriber := redisbus.NewSubscriber(redisClient, cfg.RelayChannelPrefix, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		err := relay.Bridge(gctx, subscriber, hub)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("starting relay", slog.String("addr", cfg.RelayAddr), slog.String("prefix", cfg.RelayChannelPrefix))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("relay stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
