package service

import (
	"bytes"
	"context"
	"testing"

	"library-backend/internal/domains/lending/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// overdueFine issues and late-returns one loan, leaving a pending fine
func overdueFine(t *testing.T, f *fixture, readerID uuid.UUID, returnDate string) *model.Fine {
	t.Helper()
	ctx := context.Background()
	loan, err := f.issue(ctx, readerID, f.book(1).ID, "2024-01-01")
	require.NoError(t, err)
	result, err := f.giveBack(ctx, loan.ID, returnDate)
	require.NoError(t, err)
	require.NotNil(t, result.Fine)
	return result.Fine
}

func TestPay_OnlyOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture("2024-02-01")
	reader := f.reader(model.ReaderStatusActive)
	fine := overdueFine(t, f, reader.ID, "2024-01-25")
	collector := uuid.New()

	paid, err := f.fines.Pay(ctx, model.PayFineCommand{FineID: fine.ID, CollectedBy: &collector})
	require.NoError(t, err)
	assert.Equal(t, model.FineStatusPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)
	assert.Equal(t, &collector, paid.CollectedBy)
	assert.True(t, fine.Amount.Equal(paid.Amount), "amount never changes")

	_, err = f.fines.Pay(ctx, model.PayFineCommand{FineID: fine.ID})
	assert.ErrorIs(t, err, model.ErrAlreadyPaid)
	assert.True(t, model.IsAlreadyDoneError(err))

	_, err = f.fines.Pay(ctx, model.PayFineCommand{FineID: uuid.New()})
	assert.ErrorIs(t, err, model.ErrFineNotFound)

	balance, err := f.fines.OutstandingBalance(ctx, reader.ID)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())

	assert.Equal(t, model.EventFinePaid, f.publisher.types()[len(f.publisher.types())-1])
}

func TestOutstandingBalance_SumsPendingOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture("2024-03-01")
	reader := f.reader(model.ReaderStatusActive)
	other := f.reader(model.ReaderStatusActive)

	// A pending fine blocks the next loan, so pay the first before the second
	first := overdueFine(t, f, reader.ID, "2024-01-18") // 3 days
	_, err := f.fines.Pay(ctx, model.PayFineCommand{FineID: first.ID})
	require.NoError(t, err)
	second := overdueFine(t, f, reader.ID, "2024-01-22") // 7 days
	overdueFine(t, f, other.ID, "2024-01-25")

	balance, err := f.fines.OutstandingBalance(ctx, reader.ID)
	require.NoError(t, err)
	assert.True(t, second.Amount.Equal(balance))
	assert.Equal(t, "3.50", balance.StringFixed(2))

	_, err = f.fines.OutstandingBalance(ctx, uuid.New())
	assert.ErrorIs(t, err, model.ErrReaderNotFound)

	_, err = f.fines.OutstandingBalance(ctx, uuid.Nil)
	assert.ErrorIs(t, err, model.ErrInvalidID)
}

func TestListFines_Filters(t *testing.T) {
	ctx := context.Background()
	f := newFixture("2024-03-01")
	reader := f.reader(model.ReaderStatusActive)
	other := f.reader(model.ReaderStatusActive)

	paid := overdueFine(t, f, reader.ID, "2024-01-18")
	_, err := f.fines.Pay(ctx, model.PayFineCommand{FineID: paid.ID})
	require.NoError(t, err)
	overdueFine(t, f, reader.ID, "2024-01-20")
	overdueFine(t, f, other.ID, "2024-01-20")

	pending := model.FineStatusPending
	resp, err := f.fines.ListFines(ctx, model.FineFilter{Status: &pending})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Total)

	resp, err = f.fines.ListFines(ctx, model.FineFilter{ReaderID: &reader.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Total)

	resp, err = f.fines.ListFines(ctx, model.FineFilter{ReaderID: &reader.ID, Status: &pending})
	require.NoError(t, err)
	require.Equal(t, 1, resp.Total)

	got, err := f.fines.GetFine(ctx, resp.Items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.FineStatusPending, got.Status)
}

func TestExportFines_Workbook(t *testing.T) {
	ctx := context.Background()
	f := newFixture("2024-03-01")
	reader := f.reader(model.ReaderStatusActive)
	other := f.reader(model.ReaderStatusActive)
	a := overdueFine(t, f, reader.ID, "2024-01-20") // 2.50
	b := overdueFine(t, f, other.ID, "2024-01-16")  // 0.50

	raw, err := f.fines.ExportFines(ctx, model.FineFilter{})
	require.NoError(t, err)

	wb, err := excelize.OpenReader(bytes.NewReader(raw))
	require.NoError(t, err)
	defer wb.Close()

	rows, err := wb.GetRows(finesSheetName)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 4)
	assert.Equal(t, "Fine ID", rows[0][0])

	ids := []string{rows[1][0], rows[2][0]}
	assert.ElementsMatch(t, []string{a.ID.String(), b.ID.String()}, ids)

	total, err := wb.GetCellValue(finesSheetName, "F5")
	require.NoError(t, err)
	assert.Equal(t, "3", total)
}

func TestFineCalculator_Assess(t *testing.T) {
	calc := NewFineCalculator(decimal.RequireFromString("0.50"))

	tests := []struct {
		name     string
		due      string
		returned string
		want     string
	}{
		{"early", "2024-01-15", "2024-01-10", "0.00"},
		{"on time", "2024-01-15", "2024-01-15", "0.00"},
		{"one day", "2024-01-15", "2024-01-16", "0.50"},
		{"five days", "2024-01-15", "2024-01-20", "2.50"},
		{"across month", "2024-01-31", "2024-02-02", "1.00"},
		{"leap day", "2024-02-28", "2024-03-01", "1.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, calc.Assess(day(tt.due), day(tt.returned)).StringFixed(2))
		})
	}

	zero := NewFineCalculator(decimal.Zero)
	assessment := zero.AssessWithBreakdown(day("2024-01-01"), day("2024-01-20"))
	assert.Equal(t, 19, assessment.OverdueDays)
	assert.False(t, assessment.Owed(), "a zero rate never produces a fine record")
}
