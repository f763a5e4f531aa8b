package service

import (
	"context"
	"time"

	"library-backend/internal/domains/lending/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LendingService is the issue/return side of the engine
type LendingService interface {
	// CanIssue is advisory and read-only. IssueLoan re-checks inside its transaction.
	CanIssue(ctx context.Context, readerID, bookID uuid.UUID) (*model.Decision, error)

	// IssueLoan admits a loan and takes one copy off the shelf atomically.
	// Returns *model.EligibilityError on rejection, ErrConflict when retries run out.
	IssueLoan(ctx context.Context, cmd model.IssueLoanCommand) (*model.Loan, error)

	// ReturnLoan closes a loan, puts the copy back and assesses a fine when overdue.
	// Returns ErrLoanNotFound, ErrAlreadyReturned or ErrInvalidReturnDate.
	ReturnLoan(ctx context.Context, cmd model.ReturnLoanCommand) (*model.ReturnResult, error)

	GetLoan(ctx context.Context, id uuid.UUID) (*model.LoanResponse, error)
	ListLoans(ctx context.Context, filter model.LoanFilter) (*model.ListLoansResponse, error)

	// ListActiveLoans returns every active loan with its overdue status as of today
	ListActiveLoans(ctx context.Context) (*model.ListLoansResponse, error)

	ListAvailableBooks(ctx context.Context, limit, offset int) ([]*model.Book, int, error)
}

// FineService is the payment side of the engine
type FineService interface {
	// Pay moves a pending fine to paid. A repeated call returns ErrAlreadyPaid.
	Pay(ctx context.Context, cmd model.PayFineCommand) (*model.Fine, error)

	// OutstandingBalance sums the reader's pending fines
	OutstandingBalance(ctx context.Context, readerID uuid.UUID) (decimal.Decimal, error)

	GetFine(ctx context.Context, id uuid.UUID) (*model.Fine, error)
	ListFines(ctx context.Context, filter model.FineFilter) (*model.ListFinesResponse, error)

	// ExportFines renders the matching fines as an xlsx workbook
	ExportFines(ctx context.Context, filter model.FineFilter) ([]byte, error)
}

// DashboardService serves aggregated counters
type DashboardService interface {
	// Stats is served from cache when fresh
	Stats(ctx context.Context) (*model.DashboardStats, error)

	// Refresh recomputes and caches the stats
	Refresh(ctx context.Context) (*model.DashboardStats, error)

	// OverdueScan evaluates every active loan as of a date and caches the summary
	OverdueScan(ctx context.Context, asOf time.Time) (*model.OverdueSummary, error)

	// OverdueSummary is today's overdue scan, served from cache when present
	OverdueSummary(ctx context.Context) (*model.OverdueSummary, error)

	// Invalidate drops every cached counter so the next read recomputes
	Invalidate(ctx context.Context) error
}

// EventPublisher delivers committed lending events. Failures never undo the commit.
type EventPublisher interface {
	Publish(ctx context.Context, event model.LendingEvent) error
}

// Clock returns the current time; tests pin it
type Clock func() time.Time

// NoopPublisher drops every event
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, model.LendingEvent) error { return nil }
