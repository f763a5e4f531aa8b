package service

import (
	"time"

	"library-backend/internal/domains/lending/model"

	"github.com/shopspring/decimal"
)

// FineCalculator prices an overdue return. Pure: no I/O, no clock.
type FineCalculator struct {
	perDayRate decimal.Decimal
}

func NewFineCalculator(perDayRate decimal.Decimal) *FineCalculator {
	return &FineCalculator{perDayRate: perDayRate}
}

// PerDayRate is the configured rate
func (c *FineCalculator) PerDayRate() decimal.Decimal {
	return c.perDayRate
}

// Assess returns overdueDays(due, returned) * perDayRate, rounded to cents.
// Zero when returned on or before the due date.
func (c *FineCalculator) Assess(dueDate, returnDate time.Time) decimal.Decimal {
	return c.AssessWithBreakdown(dueDate, returnDate).Amount
}

// AssessWithBreakdown returns the amount with the inputs that produced it
func (c *FineCalculator) AssessWithBreakdown(dueDate, returnDate time.Time) model.FineAssessment {
	days := model.OverdueDays(dueDate, returnDate)
	return model.FineAssessment{
		DueDate:     model.NormalizeDate(dueDate),
		ReturnDate:  model.NormalizeDate(returnDate),
		OverdueDays: days,
		PerDayRate:  c.perDayRate,
		Amount:      c.perDayRate.Mul(decimal.NewFromInt(int64(days))).Round(2),
	}
}
