package model

import "time"

// OverdueState is the overdue view of a loan at a reference date.
type OverdueState struct {
	LoanID        string    `json:"loan_id"`
	DueDate       time.Time `json:"due_date"`
	ReferenceDate time.Time `json:"reference_date"`
	IsOverdue     bool      `json:"is_overdue"`
	OverdueDays   int       `json:"overdue_days"`
}

// OverdueDays is max(0, days from due to ref).
func OverdueDays(dueDate, ref time.Time) int {
	days := DaysBetween(dueDate, ref)
	if days < 0 {
		return 0
	}
	return days
}

// OverdueStatus evaluates a loan against its return date when returned,
// otherwise against asOf.
func OverdueStatus(loan *Loan, asOf time.Time) OverdueState {
	ref := NormalizeDate(asOf)
	if loan.ReturnDate != nil {
		ref = NormalizeDate(*loan.ReturnDate)
	}

	days := OverdueDays(loan.DueDate, ref)
	return OverdueState{
		LoanID:        loan.ID.String(),
		DueDate:       loan.DueDate,
		ReferenceDate: ref,
		IsOverdue:     days > 0,
		OverdueDays:   days,
	}
}
