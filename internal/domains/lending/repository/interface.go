package repository

import (
	"context"
	"time"

	"library-backend/internal/domains/lending/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Catalog is the narrow view of the book catalog the engine needs.
// The engine never writes book data beyond AdjustAvailability.
type Catalog interface {
	// GetBook returns ErrBookNotFound when the id is unknown
	GetBook(ctx context.Context, id uuid.UUID) (*model.Book, error)

	// AdjustAvailability changes AvailableCopies by delta when the stored
	// version equals expectedVersion and the result stays in [0, TotalCopies].
	// Returns ErrConflict otherwise. The returned book carries the new version.
	AdjustAvailability(ctx context.Context, bookID uuid.UUID, expectedVersion int, delta int) (*model.Book, error)

	// ListAvailableBooks lists books with at least one copy on the shelf
	ListAvailableBooks(ctx context.Context, limit, offset int) ([]*model.Book, int, error)
}

// Roster is the narrow view of the reader roster.
type Roster interface {
	// GetReader returns ErrReaderNotFound when the id is unknown
	GetReader(ctx context.Context, id uuid.UUID) (*model.Reader, error)

	// IsActiveReader is false for unknown readers
	IsActiveReader(ctx context.Context, id uuid.UUID) (bool, error)
}

// LoanLedger stores loans. Loans are never deleted.
type LoanLedger interface {
	CreateLoan(ctx context.Context, loan *model.Loan) error

	// GetLoan returns ErrLoanNotFound when the id is unknown
	GetLoan(ctx context.Context, id uuid.UUID) (*model.Loan, error)

	// GetLoanForUpdate reads a loan and holds its row until the transaction ends
	GetLoanForUpdate(ctx context.Context, id uuid.UUID) (*model.Loan, error)

	// CloseLoan persists the returned state of an active loan.
	// Returns ErrAlreadyReturned when the stored loan is not active.
	CloseLoan(ctx context.Context, loan *model.Loan) error

	CountActiveLoans(ctx context.Context, readerID uuid.UUID) (int, error)

	// ListLoans is ordered by issue date, newest first
	ListLoans(ctx context.Context, filter model.LoanFilter) ([]*model.Loan, int, error)
}

// FineLedger stores fines.
type FineLedger interface {
	// CreateFine fails when the loan already has a fine
	CreateFine(ctx context.Context, fine *model.Fine) error

	// GetFine returns ErrFineNotFound when the id is unknown
	GetFine(ctx context.Context, id uuid.UUID) (*model.Fine, error)

	// MarkFinePaid moves a pending fine to paid with a conditional update.
	// Returns ErrAlreadyPaid when it is no longer pending, ErrFineNotFound when missing.
	MarkFinePaid(ctx context.Context, fineID uuid.UUID, collectedBy *uuid.UUID, paidAt time.Time) (*model.Fine, error)

	// PendingBalance sums the reader's pending fines
	PendingBalance(ctx context.Context, readerID uuid.UUID) (decimal.Decimal, error)

	ListFines(ctx context.Context, filter model.FineFilter) ([]*model.Fine, int, error)
}

// Tx is the unit of work for one lending operation.
type Tx interface {
	Catalog
	Roster
	LoanLedger
	FineLedger

	// LockReader serializes transactions touching the same reader until commit
	LockReader(ctx context.Context, readerID uuid.UUID) error
}

// Store gives non-transactional reads plus scoped transactions.
type Store interface {
	Tx

	// WithinTx runs fn in one transaction. Commits when fn returns nil,
	// rolls back on error or panic.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	// DashboardStats aggregates catalog, roster and ledger counters as of a date
	DashboardStats(ctx context.Context, asOf time.Time) (*model.DashboardStats, error)

	Ping(ctx context.Context) error
}
