package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"library-backend/internal/infrastructure/storage"
	"library-backend/pkg/container"
	"library-backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	envErr := godotenv.Load()
	logger.Init(os.Getenv("APP_ENV"))
	if envErr != nil {
		logger.Info("no .env file found, using system environment variables", nil)
	}
	gin.SetMode(gin.ReleaseMode)

	c, err := container.NewContainer()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize container")
	}
	defer c.Cleanup()

	if c.Cache == nil {
		log.Fatal().Msg("worker requires redis")
	}

	cfg := loadConfig(c.Config)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	reports, err := storage.NewMinIOStorage(ctx, cfg.MinIO)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize report storage")
	}

	health, err := startServices(context.Background(), newHealthChecker(c.Cache, c.LendingStore, reports), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("startup check failed")
	}

	handlers := initializeHandlers(c, reports)
	srv := setupAsynqServer(cfg, c.RedisClientOpt(), handlers)
	scheduler := setupScheduler(cfg, c.RedisClientOpt())

	waitForShutdown(srv, scheduler, health)
}

func waitForShutdown(srv *asynqServer, scheduler *asynqScheduler, health *http.Server) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down worker", nil)
	scheduler.Shutdown()
	srv.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := health.Shutdown(ctx); err != nil {
		logger.Error("health server shutdown failed", err)
	}
	logger.Info("worker exited", nil)
}
