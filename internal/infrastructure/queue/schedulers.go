package queue

import (
	"time"

	"library-backend/internal/config"
	"library-backend/internal/domains/lending/model"
	"library-backend/internal/shared"
	"library-backend/pkg/logger"

	"github.com/hibiken/asynq"
)

type Scheduler struct {
	scheduler *asynq.Scheduler
	jobConfig config.JobConfig
}

func NewScheduler(redis asynq.RedisClientOpt, jobConfig config.JobConfig) *Scheduler {
	scheduler := asynq.NewScheduler(
		redis,
		&asynq.SchedulerOpts{
			Location: time.UTC,
			LogLevel: asynq.InfoLevel,
		},
	)

	return &Scheduler{
		scheduler: scheduler,
		jobConfig: jobConfig,
	}
}

func (s *Scheduler) RegisterLendingJobs() error {
	if err := s.registerOverdueScanJob(); err != nil {
		return err
	}

	if err := s.registerFinesReportJob(); err != nil {
		return err
	}

	return nil
}

// ================================================
// JOB 1: Overdue Scan (daily, JOB_OVERDUE_SCAN_CRON)
// ================================================
func (s *Scheduler) registerOverdueScanJob() error {
	// Empty as_of: the handler evaluates against the day it runs
	payload, err := json.Marshal(model.OverdueScanPayload{})
	if err != nil {
		return err
	}

	task := asynq.NewTask(shared.TypeOverdueScan, payload)

	_, err = s.scheduler.Register(
		s.jobConfig.OverdueScanCron,
		task,
		asynq.Queue(shared.QueueLending),
		asynq.MaxRetry(2),
		asynq.Timeout(5*time.Minute),
	)
	if err != nil {
		logger.Error("Failed to register OverdueScan job", err)
		return err
	}

	logger.Info("Registered OverdueScan", map[string]interface{}{
		"cron": s.jobConfig.OverdueScanCron,
	})
	return nil
}

// ================================================
// JOB 2: Pending Fines Report (daily, JOB_FINES_REPORT_CRON)
// ================================================
func (s *Scheduler) registerFinesReportJob() error {
	payload, err := json.Marshal(model.FinesReportPayload{Status: model.FineStatusPending})
	if err != nil {
		return err
	}

	task := asynq.NewTask(shared.TypeFinesReport, payload)

	_, err = s.scheduler.Register(
		s.jobConfig.FinesReportCron,
		task,
		asynq.Queue(shared.QueueReports),
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
	)
	if err != nil {
		logger.Error("Failed to register FinesReport job", err)
		return err
	}

	logger.Info("Registered FinesReport", map[string]interface{}{
		"cron": s.jobConfig.FinesReportCron,
	})
	return nil
}

func (s *Scheduler) Start() error {
	return s.scheduler.Run()
}

func (s *Scheduler) Shutdown() {
	s.scheduler.Shutdown()
}
