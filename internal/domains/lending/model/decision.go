package model

import "github.com/google/uuid"

// RejectionKind names why an issue was refused.
type RejectionKind string

const (
	RejectionNone              RejectionKind = ""
	RejectionReaderIneligible  RejectionKind = "reader_ineligible"
	RejectionOutstandingFines  RejectionKind = "outstanding_fines"
	RejectionLoanLimitExceeded RejectionKind = "loan_limit_exceeded"
	RejectionBookUnavailable   RejectionKind = "book_unavailable"
)

// Err returns the sentinel error for the kind.
func (k RejectionKind) Err() error {
	switch k {
	case RejectionReaderIneligible:
		return ErrReaderIneligible
	case RejectionOutstandingFines:
		return ErrOutstandingFines
	case RejectionLoanLimitExceeded:
		return ErrLoanLimitExceeded
	case RejectionBookUnavailable:
		return ErrBookUnavailable
	}
	return nil
}

// Code returns the response code for the kind.
func (k RejectionKind) Code() string {
	switch k {
	case RejectionReaderIneligible:
		return CodeReaderIneligible
	case RejectionOutstandingFines:
		return CodeOutstandingFines
	case RejectionLoanLimitExceeded:
		return CodeLoanLimitExceeded
	case RejectionBookUnavailable:
		return CodeBookUnavailable
	}
	return ""
}

// Decision is the outcome of an eligibility check.
type Decision struct {
	Allowed   bool          `json:"allowed"`
	Rejection RejectionKind `json:"rejection,omitempty"`
	ReaderID  uuid.UUID     `json:"reader_id"`
	BookID    uuid.UUID     `json:"book_id"`
}

func Allow(readerID, bookID uuid.UUID) *Decision {
	return &Decision{Allowed: true, ReaderID: readerID, BookID: bookID}
}

func Reject(kind RejectionKind, readerID, bookID uuid.UUID) *Decision {
	return &Decision{Allowed: false, Rejection: kind, ReaderID: readerID, BookID: bookID}
}

// Err converts a refusal into an *EligibilityError. Nil when allowed.
func (d *Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return NewEligibilityError(d.Rejection, d.ReaderID, d.BookID)
}
