package main

import (
	"context"
	"time"

	"library-backend/internal/shared"
	"library-backend/pkg/logger"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
)

// asynqServer wraps asynq.Server with a bounded shutdown
type asynqServer struct {
	*asynq.Server
	timeout time.Duration
}

// setupAsynqServer creates the server and starts it in the background
func setupAsynqServer(cfg *Config, redis asynq.RedisClientOpt, handlers *HandlerRegistry) *asynqServer {
	mux := asynq.NewServeMux()
	handlers.RegisterHandlers(mux)

	srv := asynq.NewServer(
		redis,
		asynq.Config{
			Queues: map[string]int{
				shared.QueueLending: 10,
				shared.QueueReports: 5,
			},
			Concurrency:     cfg.Jobs.Concurrency,
			ShutdownTimeout: cfg.ShutdownTimeout,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				log.Error().
					Err(err).
					Str("task_type", task.Type()).
					Int("retried", retried).
					Int("max_retry", maxRetry).
					Msg("Task failed")
			}),
		},
	)

	go func() {
		logger.Info("worker starting", nil)
		if err := srv.Run(mux); err != nil {
			log.Fatal().Err(err).Msg("worker failed")
		}
	}()

	return &asynqServer{Server: srv, timeout: cfg.ShutdownTimeout}
}

// Shutdown waits for in-flight tasks up to the configured timeout
func (s *asynqServer) Shutdown() {
	logger.Info("worker shutting down", map[string]interface{}{"timeout": s.timeout.String()})
	s.Server.Shutdown()
	logger.Info("worker stopped", nil)
}
