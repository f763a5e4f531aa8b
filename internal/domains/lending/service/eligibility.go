package service

import (
	"context"
	"errors"
	"fmt"

	"library-backend/internal/domains/lending/model"
	"library-backend/internal/domains/lending/repository"

	"github.com/google/uuid"
)

// eligibilityView is the read side the gate needs; both Store and Tx satisfy it
type eligibilityView interface {
	repository.Catalog
	repository.Roster
	repository.LoanLedger
	repository.FineLedger
}

// EligibilityGate decides whether a reader may borrow a book
type EligibilityGate struct {
	store          repository.Store
	maxActiveLoans int
}

func NewEligibilityGate(store repository.Store, maxActiveLoans int) *EligibilityGate {
	return &EligibilityGate{store: store, maxActiveLoans: maxActiveLoans}
}

// CanIssue evaluates against committed state. Read-only.
func (g *EligibilityGate) CanIssue(ctx context.Context, readerID, bookID uuid.UUID) (*model.Decision, error) {
	decision, _, err := g.evaluate(ctx, g.store, readerID, bookID)
	return decision, err
}

// evaluate checks, in order: reader active, no pending fines, under the loan
// cap, a copy available. Stops at the first failure. The book is returned so
// the caller can compare-and-swap on its version.
func (g *EligibilityGate) evaluate(ctx context.Context, view eligibilityView, readerID, bookID uuid.UUID) (*model.Decision, *model.Book, error) {
	// 1. Reader exists and is active
	reader, err := view.GetReader(ctx, readerID)
	if err != nil {
		if errors.Is(err, model.ErrReaderNotFound) {
			return model.Reject(model.RejectionReaderIneligible, readerID, bookID), nil, nil
		}
		return nil, nil, fmt.Errorf("load reader: %w", err)
	}
	if !reader.IsActive() {
		return model.Reject(model.RejectionReaderIneligible, readerID, bookID), nil, nil
	}

	// 2. No pending fines
	balance, err := view.PendingBalance(ctx, readerID)
	if err != nil {
		return nil, nil, fmt.Errorf("load pending balance: %w", err)
	}
	if balance.IsPositive() {
		return model.Reject(model.RejectionOutstandingFines, readerID, bookID), nil, nil
	}

	// 3. Under the active loan cap
	active, err := view.CountActiveLoans(ctx, readerID)
	if err != nil {
		return nil, nil, fmt.Errorf("count active loans: %w", err)
	}
	if active >= g.maxActiveLoans {
		return model.Reject(model.RejectionLoanLimitExceeded, readerID, bookID), nil, nil
	}

	// 4. A copy is on the shelf
	book, err := view.GetBook(ctx, bookID)
	if err != nil {
		if errors.Is(err, model.ErrBookNotFound) {
			return model.Reject(model.RejectionBookUnavailable, readerID, bookID), nil, nil
		}
		return nil, nil, fmt.Errorf("load book: %w", err)
	}
	if !book.HasAvailableCopy() {
		return model.Reject(model.RejectionBookUnavailable, readerID, bookID), book, nil
	}

	return model.Allow(readerID, bookID), book, nil
}
