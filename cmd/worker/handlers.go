package main

import (
	"time"

	lendingJob "library-backend/internal/domains/lending/job"
	"library-backend/internal/shared"
	"library-backend/pkg/container"

	"github.com/hibiken/asynq"
)

// HandlerRegistry holds all job handlers
type HandlerRegistry struct {
	// Event consumers
	events *lendingJob.EventHandler

	// Scheduled jobs
	overdueScan *lendingJob.OverdueScanHandler
	finesReport *lendingJob.FinesReportHandler
}

// initializeHandlers creates all job handlers with their dependencies
func initializeHandlers(c *container.Container, reports lendingJob.ObjectStore) *HandlerRegistry {
	return &HandlerRegistry{
		events:      lendingJob.NewEventHandler(c.DashboardService),
		overdueScan: lendingJob.NewOverdueScanHandler(c.DashboardService),
		finesReport: lendingJob.NewFinesReportHandler(c.FineService, reports, time.Now),
	}
}

// RegisterHandlers registers all handlers with the mux
func (h *HandlerRegistry) RegisterHandlers(mux *asynq.ServeMux) {
	// Lending events
	mux.HandleFunc(shared.TypeLoanIssued, h.events.ProcessTask)
	mux.HandleFunc(shared.TypeLoanReturned, h.events.ProcessTask)
	mux.HandleFunc(shared.TypeFineAssessed, h.events.ProcessTask)
	mux.HandleFunc(shared.TypeFinePaid, h.events.ProcessTask)

	// Scheduled
	mux.HandleFunc(shared.TypeOverdueScan, h.overdueScan.ProcessTask)
	mux.HandleFunc(shared.TypeFinesReport, h.finesReport.ProcessTask)
}
