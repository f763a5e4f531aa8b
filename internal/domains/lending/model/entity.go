package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =====================================================
// LOAN STATUS
// =====================================================
type LoanStatus string

const (
	LoanStatusActive   LoanStatus = "active"
	LoanStatusReturned LoanStatus = "returned"
)

// =====================================================
// FINE STATUS
// =====================================================
type FineStatus string

const (
	FineStatusPending FineStatus = "pending"
	FineStatusPaid    FineStatus = "paid"
)

// =====================================================
// READER STATUS (owned by the roster)
// =====================================================
type ReaderStatus string

const (
	ReaderStatusActive    ReaderStatus = "active"
	ReaderStatusInactive  ReaderStatus = "inactive"
	ReaderStatusSuspended ReaderStatus = "suspended"
)

// =====================================================
// ENTITY: Book (catalog reference)
// =====================================================
type Book struct {
	ID              uuid.UUID `json:"id" db:"id"`
	ISBN            string    `json:"isbn" db:"isbn"`
	Title           string    `json:"title" db:"title"`
	TotalCopies     int       `json:"total_copies" db:"total_copies"`
	AvailableCopies int       `json:"available_copies" db:"available_copies"`

	// Optimistic locking
	Version int `json:"version" db:"version"`
}

// HasAvailableCopy reports whether at least one copy can be issued.
func (b *Book) HasAvailableCopy() bool {
	return b.AvailableCopies > 0
}

// CanAdjust reports whether availability stays within [0, TotalCopies] after delta.
func (b *Book) CanAdjust(delta int) bool {
	next := b.AvailableCopies + delta
	return next >= 0 && next <= b.TotalCopies
}

// =====================================================
// ENTITY: Reader (roster reference)
// =====================================================
type Reader struct {
	ID       uuid.UUID    `json:"id" db:"id"`
	FullName string       `json:"full_name" db:"full_name"`
	Status   ReaderStatus `json:"status" db:"status"`
}

// IsActive reports whether the reader may borrow at all.
func (r *Reader) IsActive() bool {
	return r.Status == ReaderStatusActive
}

// =====================================================
// ENTITY: Loan
// =====================================================
type Loan struct {
	ID       uuid.UUID `json:"id" db:"id"`
	BookID   uuid.UUID `json:"book_id" db:"book_id"`
	ReaderID uuid.UUID `json:"reader_id" db:"reader_id"`

	// Calendar dates, midnight UTC
	IssueDate  time.Time  `json:"issue_date" db:"issue_date"`
	DueDate    time.Time  `json:"due_date" db:"due_date"`
	ReturnDate *time.Time `json:"return_date,omitempty" db:"return_date"`

	Status LoanStatus `json:"status" db:"status"`

	// Audit
	IssuedBy   *uuid.UUID `json:"issued_by,omitempty" db:"issued_by"`
	ReturnedBy *uuid.UUID `json:"returned_by,omitempty" db:"returned_by"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
}

// NewLoan builds an active loan whose due date is issueDate + loanPeriodDays.
func NewLoan(bookID, readerID uuid.UUID, issueDate time.Time, loanPeriodDays int, issuedBy *uuid.UUID, now time.Time) *Loan {
	issue := NormalizeDate(issueDate)
	return &Loan{
		ID:        uuid.New(),
		BookID:    bookID,
		ReaderID:  readerID,
		IssueDate: issue,
		DueDate:   DueDate(issue, loanPeriodDays),
		Status:    LoanStatusActive,
		IssuedBy:  issuedBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsActive reports whether the loan still holds a copy.
func (l *Loan) IsActive() bool {
	return l.Status == LoanStatusActive
}

// MarkReturned closes the loan. The return date is set exactly once.
func (l *Loan) MarkReturned(returnDate time.Time, returnedBy *uuid.UUID, now time.Time) error {
	if !l.IsActive() {
		return NewAlreadyReturnedError(l.ID)
	}

	ret := NormalizeDate(returnDate)
	if ret.Before(l.IssueDate) {
		return NewInvalidReturnDateError(l.IssueDate, ret)
	}

	l.ReturnDate = &ret
	l.Status = LoanStatusReturned
	l.ReturnedBy = returnedBy
	l.UpdatedAt = now
	return nil
}

// =====================================================
// ENTITY: Fine
// =====================================================
type Fine struct {
	ID       uuid.UUID `json:"id" db:"id"`
	LoanID   uuid.UUID `json:"loan_id" db:"loan_id"`
	ReaderID uuid.UUID `json:"reader_id" db:"reader_id"`
	BookID   uuid.UUID `json:"book_id" db:"book_id"`

	// Immutable once assessed
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	OverdueDays int             `json:"overdue_days" db:"overdue_days"`

	Status      FineStatus `json:"status" db:"status"`
	AssessedAt  time.Time  `json:"assessed_at" db:"assessed_at"`
	PaidAt      *time.Time `json:"paid_at,omitempty" db:"paid_at"`
	CollectedBy *uuid.UUID `json:"collected_by,omitempty" db:"collected_by"`
}

// NewFine creates a pending fine for a returned loan.
func NewFine(loan *Loan, assessment FineAssessment, now time.Time) *Fine {
	return &Fine{
		ID:          uuid.New(),
		LoanID:      loan.ID,
		ReaderID:    loan.ReaderID,
		BookID:      loan.BookID,
		Amount:      assessment.Amount,
		OverdueDays: assessment.OverdueDays,
		Status:      FineStatusPending,
		AssessedAt:  now,
	}
}

// IsPending reports whether the fine still counts toward the reader's balance.
func (f *Fine) IsPending() bool {
	return f.Status == FineStatusPending
}

// MarkPaid moves the fine from pending to paid. Never reversed.
func (f *Fine) MarkPaid(collectedBy *uuid.UUID, now time.Time) error {
	if !f.IsPending() {
		return NewAlreadyPaidError(f.ID)
	}
	f.Status = FineStatusPaid
	f.PaidAt = &now
	f.CollectedBy = collectedBy
	return nil
}

// =====================================================
// VALUE: FineAssessment
// =====================================================

// FineAssessment is the calculator output for one return.
type FineAssessment struct {
	DueDate     time.Time       `json:"due_date"`
	ReturnDate  time.Time       `json:"return_date"`
	OverdueDays int             `json:"overdue_days"`
	PerDayRate  decimal.Decimal `json:"per_day_rate"`
	Amount      decimal.Decimal `json:"amount"`
}

// Owed reports whether the assessment produces a fine record.
func (a FineAssessment) Owed() bool {
	return a.Amount.GreaterThan(decimal.Zero)
}

// =====================================================
// VALUE: ReturnResult
// =====================================================
type ReturnResult struct {
	Loan       *Loan          `json:"loan"`
	Fine       *Fine          `json:"fine,omitempty"`
	Overdue    OverdueState   `json:"overdue"`
	Assessment FineAssessment `json:"assessment"`
}

// =====================================================
// DASHBOARD
// =====================================================
type DashboardStats struct {
	TotalBooks         int             `json:"total_books"`
	TotalCopies        int             `json:"total_copies"`
	AvailableCopies    int             `json:"available_copies"`
	TotalReaders       int             `json:"total_readers"`
	ActiveLoans        int             `json:"active_loans"`
	OverdueLoans       int             `json:"overdue_loans"`
	PendingFines       int             `json:"pending_fines"`
	PendingFinesAmount decimal.Decimal `json:"pending_fines_amount"`
	AsOf               time.Time       `json:"as_of"`
}
