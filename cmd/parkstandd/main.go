package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"parkstand-backend/config"
	"parkstand-backend/internal/api"
	"parkstand-backend/internal/db"
	"parkstand-backend/internal/logging"
	"parkstand-backend/internal/model"
	"parkstand-backend/internal/pricing"
	"parkstand-backend/internal/reconcile"
	"parkstand-backend/internal/session"
	"parkstand-backend/internal/store"
	"parkstand-backend/internal/token"
)

func main() {
	logger, err := logging.New()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.String("path", configPath), zap.Error(err))
	}
	logger.Info("configuration loaded", zap.String("path", configPath))

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	logger.Info("database initialized")

	appStore := store.NewGormStore(gormDB, logger)

	tariff := pricing.DefaultTariff()
	for name, mult := range cfg.Pricing.Multipliers {
		class, err := model.ParseVehicleClass(name)
		if err != nil {
			logger.Fatal("invalid pricing.multipliers key", zap.String("class", name))
		}
		tariff.Multipliers[class] = mult
	}

	manager := session.NewManager(appStore, tariff, token.New(), logger)
	handler := api.NewHandler(manager, cfg.Server.Location(), logger)

	router := api.NewRouter(handler, api.RouterConfig{
		JWTSecret:       cfg.Auth.JWTSecret,
		RateLimitPerSec: cfg.Server.RateLimitPerSec,
		RateLimitBurst:  cfg.Server.RateLimitBurst,
		CacheTTL:        time.Duration(cfg.Server.CacheTTLSeconds) * time.Second,
	})
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	var scheduler *cron.Cron
	if cfg.Reconcile.Enabled {
		scheduler = cron.New()
		reconciler := reconcile.New(appStore, logger)
		if _, err := scheduler.AddFunc(cfg.Reconcile.CronSpec, reconciler.Run); err != nil {
			logger.Fatal("failed to schedule occupancy reconciliation", zap.Error(err))
		}
		scheduler.Start()
		logger.Info("occupancy reconciliation scheduled", zap.String("spec", cfg.Reconcile.CronSpec))
	}

	go func() {
		logger.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutdown signal received, stopping services")

	if scheduler != nil {
		scheduler.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("HTTP server shutdown failed", zap.Error(err))
	}
	logger.Info("server gracefully stopped")
}
