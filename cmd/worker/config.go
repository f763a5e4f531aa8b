package main

import (
	"os"
	"time"

	"library-backend/internal/config"
	"library-backend/pkg/logger"
)

// Config is the worker's view of the application config
type Config struct {
	Redis           config.RedisConfig
	MinIO           config.MinIOConfig
	Jobs            config.JobConfig
	HealthAddr      string
	ShutdownTimeout time.Duration
}

// loadConfig derives the worker settings from the loaded application config
func loadConfig(app *config.Config) *Config {
	cfg := &Config{
		Redis:           app.Redis,
		MinIO:           app.MinIO,
		Jobs:            app.Jobs,
		HealthAddr:      ":9999",
		ShutdownTimeout: 30 * time.Second,
	}
	if addr := os.Getenv("WORKER_HEALTH_ADDR"); addr != "" {
		cfg.HealthAddr = addr
	}
	if cfg.Jobs.Concurrency <= 0 {
		cfg.Jobs.Concurrency = 10
	}

	logger.Info("worker config", map[string]interface{}{
		"redis":        cfg.Redis.Host,
		"minio":        cfg.MinIO.Endpoint,
		"bucket":       cfg.MinIO.Bucket,
		"concurrency":  cfg.Jobs.Concurrency,
		"overdue_cron": cfg.Jobs.OverdueScanCron,
		"report_cron":  cfg.Jobs.FinesReportCron,
	})

	return cfg
}
