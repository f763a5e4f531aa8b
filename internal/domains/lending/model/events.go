package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType identifies a committed lending fact.
type EventType string

const (
	EventLoanIssued   EventType = "loan.issued"
	EventLoanReturned EventType = "loan.returned"
	EventFineAssessed EventType = "fine.assessed"
	EventFinePaid     EventType = "fine.paid"
)

// LendingEvent is published after a lending transaction commits.
type LendingEvent struct {
	Type       EventType        `json:"type"`
	LoanID     uuid.UUID        `json:"loan_id"`
	ReaderID   uuid.UUID        `json:"reader_id"`
	BookID     uuid.UUID        `json:"book_id"`
	FineID     *uuid.UUID       `json:"fine_id,omitempty"`
	Amount     *decimal.Decimal `json:"amount,omitempty"`
	ActorID    *uuid.UUID       `json:"actor_id,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}

func LoanIssuedEvent(loan *Loan, now time.Time) LendingEvent {
	return LendingEvent{
		Type:       EventLoanIssued,
		LoanID:     loan.ID,
		ReaderID:   loan.ReaderID,
		BookID:     loan.BookID,
		ActorID:    loan.IssuedBy,
		OccurredAt: now,
	}
}

func LoanReturnedEvent(loan *Loan, now time.Time) LendingEvent {
	return LendingEvent{
		Type:       EventLoanReturned,
		LoanID:     loan.ID,
		ReaderID:   loan.ReaderID,
		BookID:     loan.BookID,
		ActorID:    loan.ReturnedBy,
		OccurredAt: now,
	}
}

func FineAssessedEvent(fine *Fine, now time.Time) LendingEvent {
	return fineEvent(EventFineAssessed, fine, nil, now)
}

func FinePaidEvent(fine *Fine, now time.Time) LendingEvent {
	return fineEvent(EventFinePaid, fine, fine.CollectedBy, now)
}

func fineEvent(t EventType, fine *Fine, actor *uuid.UUID, now time.Time) LendingEvent {
	id := fine.ID
	amount := fine.Amount
	return LendingEvent{
		Type:       t,
		LoanID:     fine.LoanID,
		ReaderID:   fine.ReaderID,
		BookID:     fine.BookID,
		FineID:     &id,
		Amount:     &amount,
		ActorID:    actor,
		OccurredAt: now,
	}
}

// ===================================
// JOB PAYLOADS
// ===================================

// OverdueScanPayload triggers an overdue scan as of a date (today when empty)
type OverdueScanPayload struct {
	AsOf string `json:"as_of,omitempty"`
}

// FinesReportPayload triggers the pending fines report for a date
type FinesReportPayload struct {
	Date   string     `json:"date,omitempty"`
	Status FineStatus `json:"status,omitempty"`
}

// OverdueSummary is cached by the overdue scan
type OverdueSummary struct {
	AsOf         time.Time      `json:"as_of"`
	ActiveLoans  int            `json:"active_loans"`
	OverdueLoans int            `json:"overdue_loans"`
	Items        []OverdueState `json:"items"`
}
