package model

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(s string) time.Time {
	t, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestNormalizeDate(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	in := time.Date(2024, 3, 2, 1, 30, 0, 0, loc) // 2024-03-01 18:30 UTC

	got := NormalizeDate(in)
	assert.Equal(t, date("2024-03-01"), got)
	assert.Equal(t, time.UTC, got.Location())
}

func TestDaysBetween(t *testing.T) {
	tests := []struct {
		name     string
		from, to string
		want     int
	}{
		{"same day", "2024-01-01", "2024-01-01", 0},
		{"one day", "2024-01-01", "2024-01-02", 1},
		{"backwards", "2024-01-05", "2024-01-01", -4},
		{"leap year", "2024-02-28", "2024-03-01", 2},
		{"across year", "2023-12-31", "2024-01-01", 1},
		{"three centuries", "1700-01-01", "2024-01-01", 118338},
		{"three centuries backwards", "2024-01-01", "1700-01-01", -118338},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysBetween(date(tt.from), date(tt.to)))
		})
	}
}

func TestNewLoan_DueDate(t *testing.T) {
	now := time.Now()
	loan := NewLoan(uuid.New(), uuid.New(), date("2024-01-01"), 14, nil, now)

	assert.Equal(t, date("2024-01-15"), loan.DueDate)
	assert.Equal(t, LoanStatusActive, loan.Status)
	assert.Nil(t, loan.ReturnDate)
}

func TestOverdueStatus(t *testing.T) {
	loan := NewLoan(uuid.New(), uuid.New(), date("2024-01-01"), 14, nil, time.Now())

	tests := []struct {
		name        string
		asOf        string
		wantOverdue bool
		wantDays    int
	}{
		{"before due", "2024-01-10", false, 0},
		{"on due date", "2024-01-15", false, 0},
		{"one day late", "2024-01-16", true, 1},
		{"five days late", "2024-01-20", true, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := OverdueStatus(loan, date(tt.asOf))
			assert.Equal(t, tt.wantOverdue, st.IsOverdue)
			assert.Equal(t, tt.wantDays, st.OverdueDays)
		})
	}
}

func TestOverdueStatus_UsesReturnDateWhenReturned(t *testing.T) {
	loan := NewLoan(uuid.New(), uuid.New(), date("2024-01-01"), 14, nil, time.Now())
	require.NoError(t, loan.MarkReturned(date("2024-01-17"), nil, time.Now()))

	st := OverdueStatus(loan, date("2024-06-01"))
	assert.Equal(t, 2, st.OverdueDays)
	assert.Equal(t, date("2024-01-17"), st.ReferenceDate)
}

func TestLoan_MarkReturned(t *testing.T) {
	t.Run("sets return date once", func(t *testing.T) {
		loan := NewLoan(uuid.New(), uuid.New(), date("2024-01-01"), 14, nil, time.Now())
		require.NoError(t, loan.MarkReturned(date("2024-01-05"), nil, time.Now()))
		assert.Equal(t, LoanStatusReturned, loan.Status)
		require.NotNil(t, loan.ReturnDate)

		err := loan.MarkReturned(date("2024-01-06"), nil, time.Now())
		assert.ErrorIs(t, err, ErrAlreadyReturned)
		assert.Equal(t, date("2024-01-05"), *loan.ReturnDate)
	})

	t.Run("rejects return before issue", func(t *testing.T) {
		loan := NewLoan(uuid.New(), uuid.New(), date("2024-01-10"), 14, nil, time.Now())
		err := loan.MarkReturned(date("2024-01-09"), nil, time.Now())
		assert.ErrorIs(t, err, ErrInvalidReturnDate)
		assert.True(t, loan.IsActive())
	})

	t.Run("same day return is allowed", func(t *testing.T) {
		loan := NewLoan(uuid.New(), uuid.New(), date("2024-01-10"), 14, nil, time.Now())
		assert.NoError(t, loan.MarkReturned(date("2024-01-10"), nil, time.Now()))
	})
}

func TestFine_MarkPaid(t *testing.T) {
	loan := NewLoan(uuid.New(), uuid.New(), date("2024-01-01"), 14, nil, time.Now())
	fine := NewFine(loan, FineAssessment{OverdueDays: 2, Amount: DefaultFinePerDay.Mul(DefaultFinePerDay)}, time.Now())
	collector := uuid.New()

	require.NoError(t, fine.MarkPaid(&collector, time.Now()))
	assert.Equal(t, FineStatusPaid, fine.Status)
	assert.NotNil(t, fine.PaidAt)

	assert.ErrorIs(t, fine.MarkPaid(&collector, time.Now()), ErrAlreadyPaid)
}

func TestEligibilityError(t *testing.T) {
	err := Reject(RejectionOutstandingFines, uuid.New(), uuid.New()).Err()

	assert.ErrorIs(t, err, ErrOutstandingFines)
	assert.False(t, errors.Is(err, ErrBookUnavailable))
	assert.True(t, IsEligibilityError(err))
	assert.Equal(t, CodeOutstandingFines, ErrorCode(err))

	assert.NoError(t, Allow(uuid.New(), uuid.New()).Err())
}

func TestEligibilityError_WithoutKind(t *testing.T) {
	err := NewEligibilityError(RejectionNone, uuid.New(), uuid.New())

	assert.NotPanics(t, func() { _ = err.Error() })
	assert.Contains(t, err.Error(), "issue rejected")
	assert.True(t, IsEligibilityError(err))
}

func TestErrorCode(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, CodeLoanNotFound, ErrorCode(NewLoanNotFoundError(id)))
	assert.Equal(t, CodeAlreadyPaid, ErrorCode(NewAlreadyPaidError(id)))
	assert.Equal(t, CodeConflict, ErrorCode(NewConflictError(id, 3)))
	assert.Equal(t, "", ErrorCode(errors.New("boom")))
	assert.True(t, IsNotFoundError(NewFineNotFoundError(id)))
	assert.True(t, IsAlreadyDoneError(NewAlreadyReturnedError(id)))
}

func TestIssueLoanRequest(t *testing.T) {
	today := date("2024-05-01")

	t.Run("valid with default date", func(t *testing.T) {
		req := IssueLoanRequest{ReaderID: uuid.NewString(), BookID: uuid.NewString()}
		require.NoError(t, req.Validate())

		cmd, err := req.ToCommand(nil, today)
		require.NoError(t, err)
		assert.Equal(t, today, cmd.IssueDate)
	})

	t.Run("invalid ids and date", func(t *testing.T) {
		req := IssueLoanRequest{ReaderID: "abc", BookID: uuid.NewString(), IssueDate: "01/02/2024"}
		assert.Error(t, req.Validate())
	})
}

func TestListLoansRequest_ToFilter(t *testing.T) {
	readerID := uuid.New()
	req := ListLoansRequest{Status: "active", ReaderID: readerID.String(), Overdue: true, Page: 2, Limit: 10}
	require.NoError(t, req.Validate())

	f := req.ToFilter(date("2024-05-01"))
	require.NotNil(t, f.Status)
	assert.Equal(t, LoanStatusActive, *f.Status)
	assert.Equal(t, readerID, *f.ReaderID)
	assert.Nil(t, f.BookID)
	assert.Equal(t, 10, f.Offset)
	require.NotNil(t, f.OverdueAsOf)

	assert.Error(t, ListLoansRequest{Status: "lost"}.Validate())
}

func TestPolicy_Validate(t *testing.T) {
	assert.NoError(t, DefaultPolicy().Validate())

	p := DefaultPolicy()
	p.MaxActiveLoans = 0
	assert.Error(t, p.Validate())

	rates := []struct {
		rate  string
		valid bool
	}{
		{"0", true},
		{"0.01", true},
		{"1.25", true},
		{"2.500", true},
		{"0.004", false},
		{"0.015", false},
		{"-0.50", false},
	}
	for _, tt := range rates {
		t.Run("fine per day "+tt.rate, func(t *testing.T) {
			p := DefaultPolicy()
			p.FinePerDay = decimal.RequireFromString(tt.rate)
			if tt.valid {
				assert.NoError(t, p.Validate())
			} else {
				assert.Error(t, p.Validate())
			}
		})
	}
}
