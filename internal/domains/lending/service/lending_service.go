package service

import (
	"context"
	"fmt"
	"time"

	"library-backend/internal/domains/lending/model"
	"library-backend/internal/domains/lending/repository"
	"library-backend/pkg/logger"
	"library-backend/pkg/retry"

	"github.com/google/uuid"
)

type lendingService struct {
	store      repository.Store
	gate       *EligibilityGate
	calculator *FineCalculator
	publisher  EventPublisher
	policy     model.Policy
	now        Clock
}

// NewLendingService wires the gate, calculator and ledgers around one store
func NewLendingService(
	store repository.Store,
	gate *EligibilityGate,
	calculator *FineCalculator,
	publisher EventPublisher,
	policy model.Policy,
	now Clock,
) LendingService {
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	if now == nil {
		now = time.Now
	}
	return &lendingService{
		store:      store,
		gate:       gate,
		calculator: calculator,
		publisher:  publisher,
		policy:     policy,
		now:        now,
	}
}

// CanIssue implements LendingService.CanIssue
func (s *lendingService) CanIssue(ctx context.Context, readerID, bookID uuid.UUID) (*model.Decision, error) {
	if readerID == uuid.Nil || bookID == uuid.Nil {
		return nil, model.ErrInvalidID
	}
	return s.gate.CanIssue(ctx, readerID, bookID)
}

// IssueLoan implements LendingService.IssueLoan
func (s *lendingService) IssueLoan(ctx context.Context, cmd model.IssueLoanCommand) (*model.Loan, error) {
	if cmd.ReaderID == uuid.Nil || cmd.BookID == uuid.Nil {
		return nil, model.ErrInvalidID
	}
	if cmd.IssueDate.IsZero() {
		return nil, model.ErrInvalidIssueDate
	}

	var loan *model.Loan
	err := s.withConflictRetry(ctx, "issue_loan", func(ctx context.Context) error {
		return s.store.WithinTx(ctx, func(tx repository.Tx) error {
			// Serialize with other transactions for the same reader so the
			// loan cap and fine checks see a stable picture
			if err := tx.LockReader(ctx, cmd.ReaderID); err != nil {
				return err
			}

			decision, book, err := s.gate.evaluate(ctx, tx, cmd.ReaderID, cmd.BookID)
			if err != nil {
				return err
			}
			if !decision.Allowed {
				return decision.Err()
			}

			l := model.NewLoan(cmd.BookID, cmd.ReaderID, cmd.IssueDate, s.policy.LoanPeriodDays, cmd.IssuedBy, s.now().UTC())
			if err := tx.CreateLoan(ctx, l); err != nil {
				return fmt.Errorf("create loan: %w", err)
			}
			if _, err := tx.AdjustAvailability(ctx, book.ID, book.Version, -1); err != nil {
				return err
			}

			loan = l
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info("loan issued", map[string]interface{}{
		"loan_id":   loan.ID,
		"reader_id": loan.ReaderID,
		"book_id":   loan.BookID,
		"due_date":  model.FormatDate(loan.DueDate),
	})
	s.publish(ctx, model.LoanIssuedEvent(loan, s.now().UTC()))

	return loan, nil
}

// ReturnLoan implements LendingService.ReturnLoan
func (s *lendingService) ReturnLoan(ctx context.Context, cmd model.ReturnLoanCommand) (*model.ReturnResult, error) {
	if cmd.LoanID == uuid.Nil {
		return nil, model.ErrInvalidID
	}
	if cmd.ReturnDate.IsZero() {
		return nil, model.ErrInvalidReturnDate
	}

	var result *model.ReturnResult
	err := s.withConflictRetry(ctx, "return_loan", func(ctx context.Context) error {
		return s.store.WithinTx(ctx, func(tx repository.Tx) error {
			loan, err := tx.GetLoanForUpdate(ctx, cmd.LoanID)
			if err != nil {
				return err
			}
			if err := tx.LockReader(ctx, loan.ReaderID); err != nil {
				return err
			}

			now := s.now().UTC()
			if err := loan.MarkReturned(cmd.ReturnDate, cmd.ReturnedBy, now); err != nil {
				return err
			}
			if err := tx.CloseLoan(ctx, loan); err != nil {
				return err
			}

			book, err := tx.GetBook(ctx, loan.BookID)
			if err != nil {
				return fmt.Errorf("load book: %w", err)
			}
			if _, err := tx.AdjustAvailability(ctx, book.ID, book.Version, +1); err != nil {
				return err
			}

			assessment := s.calculator.AssessWithBreakdown(loan.DueDate, *loan.ReturnDate)
			res := &model.ReturnResult{
				Loan:       loan,
				Overdue:    model.OverdueStatus(loan, *loan.ReturnDate),
				Assessment: assessment,
			}
			if assessment.Owed() {
				fine := model.NewFine(loan, assessment, now)
				if err := tx.CreateFine(ctx, fine); err != nil {
					return fmt.Errorf("create fine: %w", err)
				}
				res.Fine = fine
			}

			result = res
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{
		"loan_id":      result.Loan.ID,
		"reader_id":    result.Loan.ReaderID,
		"book_id":      result.Loan.BookID,
		"overdue_days": result.Assessment.OverdueDays,
	}
	if result.Fine != nil {
		fields["fine_id"] = result.Fine.ID
		fields["fine_amount"] = result.Fine.Amount.StringFixed(2)
	}
	logger.Info("loan returned", fields)

	now := s.now().UTC()
	s.publish(ctx, model.LoanReturnedEvent(result.Loan, now))
	if result.Fine != nil {
		s.publish(ctx, model.FineAssessedEvent(result.Fine, now))
	}

	return result, nil
}

func (s *lendingService) GetLoan(ctx context.Context, id uuid.UUID) (*model.LoanResponse, error) {
	loan, err := s.store.GetLoan(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := loan.ToResponse(s.now())
	return &resp, nil
}

func (s *lendingService) ListLoans(ctx context.Context, filter model.LoanFilter) (*model.ListLoansResponse, error) {
	loans, total, err := s.store.ListLoans(ctx, filter)
	if err != nil {
		return nil, err
	}
	return s.toListResponse(loans, total), nil
}

func (s *lendingService) ListActiveLoans(ctx context.Context) (*model.ListLoansResponse, error) {
	active := model.LoanStatusActive
	loans, total, err := s.store.ListLoans(ctx, model.LoanFilter{Status: &active})
	if err != nil {
		return nil, err
	}
	return s.toListResponse(loans, total), nil
}

func (s *lendingService) ListAvailableBooks(ctx context.Context, limit, offset int) ([]*model.Book, int, error) {
	return s.store.ListAvailableBooks(ctx, limit, offset)
}

func (s *lendingService) toListResponse(loans []*model.Loan, total int) *model.ListLoansResponse {
	asOf := s.now()
	items := make([]model.LoanResponse, 0, len(loans))
	for _, l := range loans {
		items = append(items, l.ToResponse(asOf))
	}
	return &model.ListLoansResponse{Items: items, Total: total}
}

// withConflictRetry reruns fn from fresh reads while it loses optimistic races
func (s *lendingService) withConflictRetry(ctx context.Context, op string, fn retry.Func) error {
	meta, err := retry.Do(ctx, model.IsConflictError, fn,
		retry.WithMaxAttempts(s.policy.ConflictRetries),
		retry.WithBaseDelay(s.policy.ConflictBaseDelay),
		retry.OnRetry(func(attempt int, err error) {
			logger.Info("retrying after conflict", map[string]interface{}{
				"operation": op,
				"attempt":   attempt,
				"error":     err.Error(),
			})
		}),
	)
	if err != nil && model.IsConflictError(err) {
		logger.Error(fmt.Sprintf("%s gave up after %d attempts", op, meta.Attempts), err)
	}
	return err
}

// publish never fails the caller; the transaction has already committed
func (s *lendingService) publish(ctx context.Context, event model.LendingEvent) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		logger.Error(fmt.Sprintf("failed to publish %s", event.Type), err)
	}
}
