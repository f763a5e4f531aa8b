package job

import (
	"context"
	"fmt"
	"time"

	"library-backend/internal/domains/lending/model"
	"library-backend/internal/domains/lending/service"

	"github.com/hibiken/asynq"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// OverdueScanHandler evaluates every active loan and caches the overdue summary
type OverdueScanHandler struct {
	dashboard service.DashboardService
}

func NewOverdueScanHandler(dashboard service.DashboardService) *OverdueScanHandler {
	return &OverdueScanHandler{dashboard: dashboard}
}

func (h *OverdueScanHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var payload model.OverdueScanPayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			log.Error().Err(err).Msg("Failed to unmarshal OverdueScan payload")
			return fmt.Errorf("%w: unmarshal payload: %v", asynq.SkipRetry, err)
		}
	}

	var asOf time.Time
	if payload.AsOf != "" {
		d, err := model.ParseDate(payload.AsOf)
		if err != nil {
			return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
		}
		asOf = d
	}

	summary, err := h.dashboard.OverdueScan(ctx, asOf)
	if err != nil {
		log.Error().Err(err).Msg("Overdue scan failed")
		return fmt.Errorf("overdue scan: %w", err)
	}

	// Refresh the counters as well so overdue_loans moves at day rollover
	if _, err := h.dashboard.Refresh(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to refresh dashboard stats after overdue scan")
		return fmt.Errorf("refresh dashboard: %w", err)
	}

	log.Info().
		Str("as_of", model.FormatDate(summary.AsOf)).
		Int("active_loans", summary.ActiveLoans).
		Int("overdue_loans", summary.OverdueLoans).
		Msg("Overdue scan finished")

	return nil
}
