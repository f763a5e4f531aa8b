package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultLoanPeriodDays    = 14
	DefaultMaxActiveLoans    = 3
	DefaultConflictRetries   = 3
	DefaultConflictBaseDelay = 10 * time.Millisecond
)

// DefaultFinePerDay is the per-day overdue rate when none is configured.
var DefaultFinePerDay = decimal.RequireFromString("0.50")

// Policy holds the lending rules shared by the gate, ledger and calculator.
type Policy struct {
	LoanPeriodDays    int
	MaxActiveLoans    int
	FinePerDay        decimal.Decimal
	ConflictRetries   int
	ConflictBaseDelay time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		LoanPeriodDays:    DefaultLoanPeriodDays,
		MaxActiveLoans:    DefaultMaxActiveLoans,
		FinePerDay:        DefaultFinePerDay,
		ConflictRetries:   DefaultConflictRetries,
		ConflictBaseDelay: DefaultConflictBaseDelay,
	}
}

func (p Policy) Validate() error {
	if p.LoanPeriodDays <= 0 {
		return errors.New("loan period must be positive")
	}
	if p.MaxActiveLoans <= 0 {
		return errors.New("max active loans must be positive")
	}
	if p.FinePerDay.IsNegative() {
		return errors.New("fine per day cannot be negative")
	}
	// Fines are rounded to cents
	if !p.FinePerDay.Equal(p.FinePerDay.Round(2)) {
		return errors.New("fine per day must be a whole number of cents")
	}
	if p.ConflictRetries <= 0 {
		return errors.New("conflict retries must be positive")
	}
	return nil
}
