package job

import (
	"context"
	"fmt"
	"time"

	"library-backend/internal/domains/lending/model"
	"library-backend/internal/domains/lending/service"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ObjectStore is the part of the report archive the job needs
type ObjectStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// FinesReportHandler renders the fines workbook and archives it in object storage
type FinesReportHandler struct {
	fines   service.FineService
	storage ObjectStore
	now     service.Clock
}

func NewFinesReportHandler(fines service.FineService, storage ObjectStore, now service.Clock) *FinesReportHandler {
	if now == nil {
		now = time.Now
	}
	return &FinesReportHandler{fines: fines, storage: storage, now: now}
}

// ReportKey is the object key of the report for a day
func ReportKey(date time.Time) string {
	return fmt.Sprintf("reports/fines/%s.xlsx", model.FormatDate(date))
}

func (h *FinesReportHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var payload model.FinesReportPayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			log.Error().Err(err).Msg("Failed to unmarshal FinesReport payload")
			return fmt.Errorf("%w: unmarshal payload: %v", asynq.SkipRetry, err)
		}
	}

	date := model.NormalizeDate(h.now())
	if payload.Date != "" {
		d, err := model.ParseDate(payload.Date)
		if err != nil {
			return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
		}
		date = d
	}

	filter := model.FineFilter{}
	if payload.Status != "" {
		status := payload.Status
		filter.Status = &status
	}

	data, err := h.fines.ExportFines(ctx, filter)
	if err != nil {
		log.Error().Err(err).Msg("Failed to build fines report")
		return fmt.Errorf("export fines: %w", err)
	}

	key := ReportKey(date)
	url, err := h.storage.Upload(ctx, key, data, xlsxContentType)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to upload fines report")
		return fmt.Errorf("upload report: %w", err)
	}

	log.Info().
		Str("key", key).
		Str("url", url).
		Int("bytes", len(data)).
		Msg("Fines report archived")

	return nil
}
