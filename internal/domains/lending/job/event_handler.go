package job

import (
	"context"
	"fmt"

	"library-backend/internal/domains/lending/service"
	"library-backend/internal/infrastructure/queue"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
)

// EventHandler consumes committed lending events. It writes the audit line,
// drops the cached read models the event has made stale and recomputes the stats.
type EventHandler struct {
	dashboard service.DashboardService
}

func NewEventHandler(dashboard service.DashboardService) *EventHandler {
	return &EventHandler{dashboard: dashboard}
}

// ProcessTask handles every lending:<event> task type
func (h *EventHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	event, err := queue.DecodeEvent(task)
	if err != nil {
		log.Error().Err(err).Str("task_type", task.Type()).Msg("Failed to decode lending event")
		// Malformed payloads are not retried
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	entry := log.Info().
		Str("event", string(event.Type)).
		Str("loan_id", event.LoanID.String()).
		Str("reader_id", event.ReaderID.String()).
		Str("book_id", event.BookID.String()).
		Time("occurred_at", event.OccurredAt)
	if event.FineID != nil {
		entry = entry.Str("fine_id", event.FineID.String())
	}
	if event.Amount != nil {
		entry = entry.Str("amount", event.Amount.StringFixed(2))
	}
	if event.ActorID != nil {
		entry = entry.Str("actor_id", event.ActorID.String())
	}
	entry.Msg("Lending event")

	if err := h.dashboard.Invalidate(ctx); err != nil {
		log.Error().Err(err).Str("event", string(event.Type)).Msg("Failed to invalidate dashboard cache")
		return fmt.Errorf("invalidate dashboard: %w", err)
	}
	if _, err := h.dashboard.Refresh(ctx); err != nil {
		log.Error().Err(err).Str("event", string(event.Type)).Msg("Failed to refresh dashboard stats")
		return fmt.Errorf("refresh dashboard: %w", err)
	}

	return nil
}
