package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/zoobzio/clockz"

	"crashanalytix-console/internal/auth"
	"crashanalytix-console/internal/config"
	"crashanalytix-console/internal/db"
	"crashanalytix-console/internal/detector"
	"crashanalytix-console/internal/history"
	httphandler "crashanalytix-console/internal/http"
	"crashanalytix-console/internal/http/middleware"
	"crashanalytix-console/internal/logger"
	"crashanalytix-console/internal/metrics"
	"crashanalytix-console/internal/preview"
	"crashanalytix-console/internal/repository"
	"crashanalytix-console/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.Environment, cfg.LogLevel)

	database, err := db.New(cfg, appLogger)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("failed to connect database")
	}

	store, err := preview.NewStore(afero.NewOsFs(), cfg.Upload.PreviewDir, cfg.Upload.MaxBytes)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("failed to prepare preview store")
	}

	clock := clockz.RealClock
	appMetrics := metrics.New()
	detectorClient := detector.NewClient(cfg.Detector.BaseURL, cfg.Detector.Timeout, appLogger)
	runRepo := repository.NewRunRepository(database)

	consoleService := service.NewConsoleService(detectorClient, store, service.Options{
		Clock:      clock,
		Logger:     appLogger,
		Metrics:    appMetrics,
		Runs:       runRepo,
		SessionTTL: cfg.Upload.SessionTTL,
	})
	historyService := history.NewService(detectorClient, appMetrics, clock, appLogger)

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)
	if !tokenParser.Enabled() {
		appLogger.Warn().Msg("JWT_ACCESS_SECRET not set, API is unauthenticated")
	}

	handler := httphandler.NewHandler(consoleService, historyService, clock, appLogger)
	router := httphandler.NewRouter(httphandler.RouterDeps{
		Handler:        handler,
		AuthMiddleware: middleware.Auth(tokenParser),
		Metrics:        appMetrics.Handler(),
		Logger:         appLogger,
	}, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go consoleService.RunSweeper(ctx, time.Minute)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.Info().Str("addr", addr).Str("detector", detectorClient.BaseURL()).Msg("starting crashanalytix console")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error().Err(err).Msg("failed to start server")
			stop()
		}
	}()

	<-ctx.Done()
	appLogger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error().Err(err).Msg("http shutdown failed")
	}
	if err := consoleService.Shutdown(); err != nil {
		appLogger.Error().Err(err).Msg("session teardown failed")
	}
	if database != nil {
		if sqlDB, err := database.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
