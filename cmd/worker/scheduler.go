package main

import (
	"library-backend/internal/infrastructure/queue"
	"library-backend/pkg/logger"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
)

// asynqScheduler wraps queue.Scheduler
type asynqScheduler struct {
	*queue.Scheduler
}

// setupScheduler registers the lending cron jobs and starts the scheduler
func setupScheduler(cfg *Config, redis asynq.RedisClientOpt) *asynqScheduler {
	scheduler := queue.NewScheduler(redis, cfg.Jobs)

	if err := scheduler.RegisterLendingJobs(); err != nil {
		log.Fatal().Err(err).Msg("failed to register lending jobs")
	}

	go func() {
		logger.Info("scheduler starting", nil)
		if err := scheduler.Start(); err != nil {
			log.Fatal().Err(err).Msg("scheduler failed")
		}
	}()

	return &asynqScheduler{Scheduler: scheduler}
}

func (s *asynqScheduler) Shutdown() {
	logger.Info("scheduler shutting down", nil)
	s.Scheduler.Shutdown()
}
