package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ===================================
// ERROR CODES (response envelope)
// ===================================

const (
	CodeInvalidInput      = "INVALID_INPUT"
	CodeInvalidIssueDate  = "INVALID_ISSUE_DATE"
	CodeInvalidReturnDate = "INVALID_RETURN_DATE"
	CodeReaderIneligible  = "READER_INELIGIBLE"
	CodeOutstandingFines  = "OUTSTANDING_FINES"
	CodeLoanLimitExceeded = "LOAN_LIMIT_EXCEEDED"
	CodeBookUnavailable   = "BOOK_UNAVAILABLE"
	CodeConflict          = "CONFLICT"
	CodeLoanNotFound      = "LOAN_NOT_FOUND"
	CodeFineNotFound      = "FINE_NOT_FOUND"
	CodeReaderNotFound    = "READER_NOT_FOUND"
	CodeBookNotFound      = "BOOK_NOT_FOUND"
	CodeAlreadyReturned   = "ALREADY_RETURNED"
	CodeAlreadyPaid       = "ALREADY_PAID"
)

// ===================================
// DOMAIN ERRORS
// ===================================

var (
	// Validation
	ErrInvalidIssueDate  = errors.New("invalid issue date")
	ErrInvalidReturnDate = errors.New("return date is before issue date")
	ErrInvalidID         = errors.New("invalid id")

	// Eligibility
	ErrReaderIneligible  = errors.New("reader is not eligible to borrow")
	ErrOutstandingFines  = errors.New("reader has pending fines")
	ErrLoanLimitExceeded = errors.New("reader has reached the active loan limit")
	ErrBookUnavailable   = errors.New("no copy of the book is available")

	// ErrConflict is returned when a concurrent writer changed the data first
	ErrConflict = errors.New("concurrent modification conflict")

	// Not found
	ErrLoanNotFound   = errors.New("loan not found")
	ErrFineNotFound   = errors.New("fine not found")
	ErrReaderNotFound = errors.New("reader not found")
	ErrBookNotFound   = errors.New("book not found")

	// Already done
	ErrAlreadyReturned = errors.New("loan already returned")
	ErrAlreadyPaid     = errors.New("fine already paid")
)

// ===================================
// ELIGIBILITY ERROR
// ===================================

// EligibilityError carries the rejection kind of an issue attempt.
type EligibilityError struct {
	Kind     RejectionKind
	ReaderID uuid.UUID
	BookID   uuid.UUID
}

func (e *EligibilityError) Error() string {
	reason := "issue rejected"
	if err := e.Unwrap(); err != nil {
		reason = err.Error()
	}
	return fmt.Sprintf("%s: reader_id=%s, book_id=%s", reason, e.ReaderID, e.BookID)
}

// Unwrap returns the sentinel matching Kind so errors.Is works on the kind.
func (e *EligibilityError) Unwrap() error {
	return e.Kind.Err()
}

// NewEligibilityError wraps a rejection as an error.
func NewEligibilityError(kind RejectionKind, readerID, bookID uuid.UUID) error {
	return &EligibilityError{Kind: kind, ReaderID: readerID, BookID: bookID}
}

// ===================================
// ERROR HELPERS
// ===================================

func NewLoanNotFoundError(id uuid.UUID) error {
	return fmt.Errorf("%w: id=%s", ErrLoanNotFound, id)
}

func NewFineNotFoundError(id uuid.UUID) error {
	return fmt.Errorf("%w: id=%s", ErrFineNotFound, id)
}

func NewReaderNotFoundError(id uuid.UUID) error {
	return fmt.Errorf("%w: id=%s", ErrReaderNotFound, id)
}

func NewBookNotFoundError(id uuid.UUID) error {
	return fmt.Errorf("%w: id=%s", ErrBookNotFound, id)
}

func NewAlreadyReturnedError(id uuid.UUID) error {
	return fmt.Errorf("%w: loan_id=%s", ErrAlreadyReturned, id)
}

func NewAlreadyPaidError(id uuid.UUID) error {
	return fmt.Errorf("%w: fine_id=%s", ErrAlreadyPaid, id)
}

// NewInvalidReturnDateError reports a return date earlier than the issue date
func NewInvalidReturnDateError(issueDate, returnDate time.Time) error {
	return fmt.Errorf("%w: issue_date=%s, return_date=%s",
		ErrInvalidReturnDate, FormatDate(issueDate), FormatDate(returnDate))
}

// NewConflictError creates a conflict error with version details
func NewConflictError(bookID uuid.UUID, expectedVersion int) error {
	return fmt.Errorf("%w: book_id=%s, expected_version=%d", ErrConflict, bookID, expectedVersion)
}

// IsValidationError checks if error is a client input error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidIssueDate) ||
		errors.Is(err, ErrInvalidReturnDate) ||
		errors.Is(err, ErrInvalidID)
}

// IsEligibilityError checks if error is an eligibility rejection
func IsEligibilityError(err error) bool {
	var e *EligibilityError
	return errors.As(err, &e)
}

// IsConflictError checks if error is a lost optimistic race
func IsConflictError(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsNotFoundError checks if error is any not found error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrLoanNotFound) ||
		errors.Is(err, ErrFineNotFound) ||
		errors.Is(err, ErrReaderNotFound) ||
		errors.Is(err, ErrBookNotFound)
}

// IsAlreadyDoneError checks if error reports a repeated state transition
func IsAlreadyDoneError(err error) bool {
	return errors.Is(err, ErrAlreadyReturned) || errors.Is(err, ErrAlreadyPaid)
}

// ErrorCode maps a domain error to its response code. Empty for unknown errors.
func ErrorCode(err error) string {
	var e *EligibilityError
	if errors.As(err, &e) {
		return e.Kind.Code()
	}

	switch {
	case errors.Is(err, ErrInvalidIssueDate):
		return CodeInvalidIssueDate
	case errors.Is(err, ErrInvalidReturnDate):
		return CodeInvalidReturnDate
	case errors.Is(err, ErrInvalidID):
		return CodeInvalidInput
	case errors.Is(err, ErrConflict):
		return CodeConflict
	case errors.Is(err, ErrLoanNotFound):
		return CodeLoanNotFound
	case errors.Is(err, ErrFineNotFound):
		return CodeFineNotFound
	case errors.Is(err, ErrReaderNotFound):
		return CodeReaderNotFound
	case errors.Is(err, ErrBookNotFound):
		return CodeBookNotFound
	case errors.Is(err, ErrAlreadyReturned):
		return CodeAlreadyReturned
	case errors.Is(err, ErrAlreadyPaid):
		return CodeAlreadyPaid
	}
	return ""
}
