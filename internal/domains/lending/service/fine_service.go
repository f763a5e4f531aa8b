package service

import (
	"context"
	"fmt"
	"time"

	"library-backend/internal/domains/lending/model"
	"library-backend/internal/domains/lending/repository"
	"library-backend/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// maxExportRows caps a single workbook
const maxExportRows = 10000

type fineService struct {
	store     repository.Store
	publisher EventPublisher
	now       Clock
}

func NewFineService(store repository.Store, publisher EventPublisher, now Clock) FineService {
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	if now == nil {
		now = time.Now
	}
	return &fineService{store: store, publisher: publisher, now: now}
}

// Pay implements FineService.Pay
func (s *fineService) Pay(ctx context.Context, cmd model.PayFineCommand) (*model.Fine, error) {
	if cmd.FineID == uuid.Nil {
		return nil, model.ErrInvalidID
	}

	now := s.now().UTC()
	fine, err := s.store.MarkFinePaid(ctx, cmd.FineID, cmd.CollectedBy, now)
	if err != nil {
		return nil, err
	}

	logger.Info("fine paid", map[string]interface{}{
		"fine_id":   fine.ID,
		"reader_id": fine.ReaderID,
		"amount":    fine.Amount.StringFixed(2),
	})
	if err := s.publisher.Publish(ctx, model.FinePaidEvent(fine, now)); err != nil {
		logger.Error(fmt.Sprintf("failed to publish %s", model.EventFinePaid), err)
	}

	return fine, nil
}

// OutstandingBalance implements FineService.OutstandingBalance
func (s *fineService) OutstandingBalance(ctx context.Context, readerID uuid.UUID) (decimal.Decimal, error) {
	if readerID == uuid.Nil {
		return decimal.Zero, model.ErrInvalidID
	}
	if _, err := s.store.GetReader(ctx, readerID); err != nil {
		return decimal.Zero, err
	}

	balance, err := s.store.PendingBalance(ctx, readerID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("load pending balance: %w", err)
	}
	return balance.Round(2), nil
}

func (s *fineService) GetFine(ctx context.Context, id uuid.UUID) (*model.Fine, error) {
	return s.store.GetFine(ctx, id)
}

func (s *fineService) ListFines(ctx context.Context, filter model.FineFilter) (*model.ListFinesResponse, error) {
	fines, total, err := s.store.ListFines(ctx, filter)
	if err != nil {
		return nil, err
	}
	if fines == nil {
		fines = []*model.Fine{}
	}
	return &model.ListFinesResponse{Items: fines, Total: total}, nil
}

// ExportFines implements FineService.ExportFines
func (s *fineService) ExportFines(ctx context.Context, filter model.FineFilter) ([]byte, error) {
	filter.Offset = 0
	if filter.Limit <= 0 || filter.Limit > maxExportRows {
		filter.Limit = maxExportRows
	}

	fines, _, err := s.store.ListFines(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list fines: %w", err)
	}

	f, err := BuildFinesWorkbook(fines, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to build excel file: %w", err)
	}
	defer f.Close()

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write excel file: %w", err)
	}
	return buf.Bytes(), nil
}
