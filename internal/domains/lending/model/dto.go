package model

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ===================================
// COMMANDS (service input)
// ===================================

type IssueLoanCommand struct {
	ReaderID  uuid.UUID
	BookID    uuid.UUID
	IssueDate time.Time
	IssuedBy  *uuid.UUID
}

type ReturnLoanCommand struct {
	LoanID     uuid.UUID
	ReturnDate time.Time
	ReturnedBy *uuid.UUID
}

type PayFineCommand struct {
	FineID      uuid.UUID
	CollectedBy *uuid.UUID
}

// ===================================
// FILTERS
// ===================================

type LoanFilter struct {
	Status   *LoanStatus
	ReaderID *uuid.UUID
	BookID   *uuid.UUID
	// OverdueAsOf keeps only active loans whose due date is before this date
	OverdueAsOf *time.Time
	Limit       int
	Offset      int
}

type FineFilter struct {
	Status   *FineStatus
	ReaderID *uuid.UUID
	Limit    int
	Offset   int
}

// ===================================
// REQUEST DTOs
// ===================================

// EligibilityQuery is GET /eligibility?reader_id=&book_id=
type EligibilityQuery struct {
	ReaderID string `form:"reader_id"`
	BookID   string `form:"book_id"`
}

func (q EligibilityQuery) Validate() error {
	return validation.ValidateStruct(&q,
		validation.Field(&q.ReaderID, validation.Required.Error("reader_id is required"), is.UUID),
		validation.Field(&q.BookID, validation.Required.Error("book_id is required"), is.UUID),
	)
}

// IssueLoanRequest is POST /loans
type IssueLoanRequest struct {
	ReaderID  string `json:"reader_id" binding:"required"`
	BookID    string `json:"book_id" binding:"required"`
	IssueDate string `json:"issue_date,omitempty"` // YYYY-MM-DD, today when empty
}

func (r IssueLoanRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ReaderID, validation.Required.Error("reader_id is required"), is.UUID),
		validation.Field(&r.BookID, validation.Required.Error("book_id is required"), is.UUID),
		validation.Field(&r.IssueDate, validation.Date(DateLayout).Error("issue_date must be YYYY-MM-DD")),
	)
}

// ToCommand converts a validated request. today is used when IssueDate is empty.
func (r IssueLoanRequest) ToCommand(issuedBy *uuid.UUID, today time.Time) (IssueLoanCommand, error) {
	readerID, err := uuid.Parse(r.ReaderID)
	if err != nil {
		return IssueLoanCommand{}, fmt.Errorf("%w: reader_id", ErrInvalidID)
	}
	bookID, err := uuid.Parse(r.BookID)
	if err != nil {
		return IssueLoanCommand{}, fmt.Errorf("%w: book_id", ErrInvalidID)
	}

	issueDate := today
	if r.IssueDate != "" {
		if issueDate, err = ParseDate(r.IssueDate); err != nil {
			return IssueLoanCommand{}, fmt.Errorf("%w: %v", ErrInvalidIssueDate, err)
		}
	}

	return IssueLoanCommand{
		ReaderID:  readerID,
		BookID:    bookID,
		IssueDate: issueDate,
		IssuedBy:  issuedBy,
	}, nil
}

// ReturnLoanRequest is POST /loans/:id/return
type ReturnLoanRequest struct {
	ReturnDate string `json:"return_date,omitempty"` // YYYY-MM-DD, today when empty
}

func (r ReturnLoanRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ReturnDate, validation.Date(DateLayout).Error("return_date must be YYYY-MM-DD")),
	)
}

func (r ReturnLoanRequest) ToCommand(loanID uuid.UUID, returnedBy *uuid.UUID, today time.Time) (ReturnLoanCommand, error) {
	returnDate := today
	if r.ReturnDate != "" {
		var err error
		if returnDate, err = ParseDate(r.ReturnDate); err != nil {
			return ReturnLoanCommand{}, fmt.Errorf("%w: %v", ErrInvalidReturnDate, err)
		}
	}
	return ReturnLoanCommand{LoanID: loanID, ReturnDate: returnDate, ReturnedBy: returnedBy}, nil
}

// ListLoansRequest is GET /loans
type ListLoansRequest struct {
	Status   string `form:"status"`
	ReaderID string `form:"reader_id"`
	BookID   string `form:"book_id"`
	Overdue  bool   `form:"overdue"`
	Page     int    `form:"page"`
	Limit    int    `form:"limit"`
}

func (r ListLoansRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Status, validation.In(string(LoanStatusActive), string(LoanStatusReturned))),
		validation.Field(&r.ReaderID, is.UUID),
		validation.Field(&r.BookID, is.UUID),
		validation.Field(&r.Page, validation.Min(0)),
		validation.Field(&r.Limit, validation.Min(0), validation.Max(100)),
	)
}

// ToFilter converts a validated request into a ledger filter.
func (r ListLoansRequest) ToFilter(today time.Time) LoanFilter {
	page, limit := normalizePage(r.Page, r.Limit)
	f := LoanFilter{Limit: limit, Offset: (page - 1) * limit}
	if r.Status != "" {
		s := LoanStatus(r.Status)
		f.Status = &s
	}
	if id, err := uuid.Parse(r.ReaderID); err == nil {
		f.ReaderID = &id
	}
	if id, err := uuid.Parse(r.BookID); err == nil {
		f.BookID = &id
	}
	if r.Overdue {
		asOf := NormalizeDate(today)
		f.OverdueAsOf = &asOf
	}
	return f
}

// ListFinesRequest is GET /fines and GET /fines/export
type ListFinesRequest struct {
	Status   string `form:"status"`
	ReaderID string `form:"reader_id"`
	Page     int    `form:"page"`
	Limit    int    `form:"limit"`
}

func (r ListFinesRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Status, validation.In(string(FineStatusPending), string(FineStatusPaid))),
		validation.Field(&r.ReaderID, is.UUID),
		validation.Field(&r.Page, validation.Min(0)),
		validation.Field(&r.Limit, validation.Min(0), validation.Max(100)),
	)
}

func (r ListFinesRequest) ToFilter() FineFilter {
	page, limit := normalizePage(r.Page, r.Limit)
	f := FineFilter{Limit: limit, Offset: (page - 1) * limit}
	if r.Status != "" {
		s := FineStatus(r.Status)
		f.Status = &s
	}
	if id, err := uuid.Parse(r.ReaderID); err == nil {
		f.ReaderID = &id
	}
	return f
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	return page, limit
}

// ===================================
// RESPONSE DTOs
// ===================================

// LoanResponse is a loan with its overdue view at the time of the request
type LoanResponse struct {
	*Loan
	Overdue OverdueState `json:"overdue"`
}

func (l *Loan) ToResponse(asOf time.Time) LoanResponse {
	return LoanResponse{Loan: l, Overdue: OverdueStatus(l, asOf)}
}

type ListLoansResponse struct {
	Items []LoanResponse `json:"items"`
	Total int            `json:"total"`
}

type ListFinesResponse struct {
	Items []*Fine `json:"items"`
	Total int     `json:"total"`
}

type BalanceResponse struct {
	ReaderID uuid.UUID       `json:"reader_id"`
	Balance  decimal.Decimal `json:"balance"`
}
