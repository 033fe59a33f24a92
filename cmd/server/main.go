package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/kenneth/pq-encryption-service/internal/api"
	"github.com/kenneth/pq-encryption-service/internal/audit"
	"github.com/kenneth/pq-encryption-service/internal/config"
	"github.com/kenneth/pq-encryption-service/internal/crypto"
	"github.com/kenneth/pq-encryption-service/internal/keymanager"
	"github.com/kenneth/pq-encryption-service/internal/metrics"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.WithError(err).Warn("Invalid log level, using info")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	logger.WithFields(logrus.Fields{
		"version": version,
		"commit":  commit,
		"preset":  cfg.Keys.Preset,
	}).Info("Starting PQ encryption service")

	m := metrics.NewMetrics()

	var auditLog *audit.Logger
	if cfg.Audit.Enabled {
		auditLog = audit.NewLogger(cfg.Audit.MaxEvents, logger)
	}

	manager, err := keymanager.NewManager(keymanager.Config{
		Preset:          cfg.Keys.Preset,
		StoragePath:     cfg.Keys.StoragePath,
		AllowedRoot:     cfg.Keys.AllowedRoot,
		ExpiryMonths:    cfg.Keys.ExpiryMonths,
		GracePeriod:     cfg.Rotation.GracePeriod,
		AutoGenerate:    cfg.Keys.AutoGenerate,
		BackupEnabled:   cfg.Rotation.BackupEnabled,
		BackupRetention: cfg.Rotation.BackupRetention,
	}, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create key manager")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := manager.Initialize(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to initialize key manager")
	}
	defer manager.SecurelyClearKeys()

	if status := manager.Status(); status.KeysExist {
		m.SetKeyVersion(status.Version)
	}

	engine, err := crypto.NewEngine(cfg.Keys.Preset)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create encryption engine")
	}

	scheduler := keymanager.NewScheduler(manager, cfg.Rotation.CheckInterval, logger)
	go scheduler.Run(ctx)

	reloader, err := config.NewConfigReloader(configPath, cfg, logger)
	if err != nil {
		logger.WithError(err).Warn("Config hot-reload disabled")
	} else {
		reloader.OnChange(func(updated *config.Config) {
			scheduler.SetInterval(updated.Rotation.CheckInterval)
		})
		defer reloader.Stop()
	}

	handler := api.NewHandler(manager, engine, m, auditLog, logger)
	router := api.NewRouter(handler, logger, m)

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		MaxHeaderBytes:    cfg.Server.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.ListenAddr).Info("HTTP server listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case err := <-errCh:
		logger.WithError(err).Error("HTTP server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Graceful shutdown failed")
	}
}
