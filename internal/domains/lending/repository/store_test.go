package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"library-backend/internal/domains/lending/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seeder adds catalog and roster rows to a store under test
type seeder interface {
	book(t *testing.T, b model.Book)
	reader(t *testing.T, r model.Reader)
}

type memorySeeder struct{ s *MemoryStore }

func (m memorySeeder) book(_ *testing.T, b model.Book)     { m.s.SeedBook(b) }
func (m memorySeeder) reader(_ *testing.T, r model.Reader) { m.s.SeedReader(r) }

func day(s string) time.Time {
	t, err := model.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestMemoryStore_Contract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) (Store, seeder) {
		s := NewMemoryStore()
		return s, memorySeeder{s}
	})
}

// runStoreContract checks behaviour every Store implementation must share
func runStoreContract(t *testing.T, newStore func(t *testing.T) (Store, seeder)) {
	ctx := context.Background()

	t.Run("adjust availability enforces version and bounds", func(t *testing.T) {
		store, seed := newStore(t)
		book := model.Book{ID: uuid.New(), ISBN: uuid.NewString()[:13], Title: "Dune", TotalCopies: 1, AvailableCopies: 1, Version: 1}
		seed.book(t, book)

		updated, err := store.AdjustAvailability(ctx, book.ID, 1, -1)
		require.NoError(t, err)
		assert.Equal(t, 0, updated.AvailableCopies)
		assert.Equal(t, 2, updated.Version)

		_, err = store.AdjustAvailability(ctx, book.ID, 1, 1)
		assert.ErrorIs(t, err, model.ErrConflict, "stale version")

		_, err = store.AdjustAvailability(ctx, book.ID, 2, -1)
		assert.ErrorIs(t, err, model.ErrConflict, "below zero")

		_, err = store.AdjustAvailability(ctx, uuid.New(), 1, -1)
		assert.ErrorIs(t, err, model.ErrBookNotFound)

		got, err := store.GetBook(ctx, book.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, got.AvailableCopies)
	})

	t.Run("transaction rolls back on error", func(t *testing.T) {
		store, seed := newStore(t)
		book := model.Book{ID: uuid.New(), ISBN: uuid.NewString()[:13], Title: "Emma", TotalCopies: 2, AvailableCopies: 2, Version: 1}
		seed.book(t, book)

		boom := errors.New("boom")
		err := store.WithinTx(ctx, func(tx Tx) error {
			if _, err := tx.AdjustAvailability(ctx, book.ID, 1, -1); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		got, err := store.GetBook(ctx, book.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.AvailableCopies)
		assert.Equal(t, 1, got.Version)
	})

	t.Run("loan lifecycle", func(t *testing.T) {
		store, seed := newStore(t)
		book := model.Book{ID: uuid.New(), ISBN: uuid.NewString()[:13], Title: "Ulysses", TotalCopies: 3, AvailableCopies: 3, Version: 1}
		reader := model.Reader{ID: uuid.New(), FullName: "Ada", Status: model.ReaderStatusActive}
		seed.book(t, book)
		seed.reader(t, reader)

		now := time.Now().UTC().Truncate(time.Microsecond)
		loan := model.NewLoan(book.ID, reader.ID, day("2024-01-01"), 14, nil, now)
		require.NoError(t, store.WithinTx(ctx, func(tx Tx) error {
			require.NoError(t, tx.LockReader(ctx, reader.ID))
			return tx.CreateLoan(ctx, loan)
		}))

		n, err := store.CountActiveLoans(ctx, reader.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		got, err := store.GetLoan(ctx, loan.ID)
		require.NoError(t, err)
		assert.Equal(t, day("2024-01-15"), got.DueDate)
		assert.Equal(t, model.LoanStatusActive, got.Status)

		require.NoError(t, got.MarkReturned(day("2024-01-20"), nil, now))
		require.NoError(t, store.WithinTx(ctx, func(tx Tx) error {
			if _, err := tx.GetLoanForUpdate(ctx, loan.ID); err != nil {
				return err
			}
			return tx.CloseLoan(ctx, got)
		}))

		err = store.WithinTx(ctx, func(tx Tx) error { return tx.CloseLoan(ctx, got) })
		assert.ErrorIs(t, err, model.ErrAlreadyReturned)

		_, err = store.GetLoan(ctx, uuid.New())
		assert.ErrorIs(t, err, model.ErrLoanNotFound)

		active := model.LoanStatusActive
		loans, total, err := store.ListLoans(ctx, model.LoanFilter{Status: &active})
		require.NoError(t, err)
		assert.Equal(t, 0, total)
		assert.Empty(t, loans)

		loans, total, err = store.ListLoans(ctx, model.LoanFilter{ReaderID: &reader.ID})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, loans, 1)
		require.NotNil(t, loans[0].ReturnDate)
		assert.Equal(t, day("2024-01-20"), *loans[0].ReturnDate)
	})

	t.Run("overdue filter", func(t *testing.T) {
		store, seed := newStore(t)
		book := model.Book{ID: uuid.New(), ISBN: uuid.NewString()[:13], Title: "Beloved", TotalCopies: 5, AvailableCopies: 5, Version: 1}
		reader := model.Reader{ID: uuid.New(), FullName: "Grace", Status: model.ReaderStatusActive}
		seed.book(t, book)
		seed.reader(t, reader)

		now := time.Now().UTC()
		late := model.NewLoan(book.ID, reader.ID, day("2024-01-01"), 14, nil, now)
		onTime := model.NewLoan(book.ID, reader.ID, day("2024-01-10"), 14, nil, now)
		require.NoError(t, store.WithinTx(ctx, func(tx Tx) error {
			if err := tx.CreateLoan(ctx, late); err != nil {
				return err
			}
			return tx.CreateLoan(ctx, onTime)
		}))

		asOf := day("2024-01-20")
		loans, total, err := store.ListLoans(ctx, model.LoanFilter{OverdueAsOf: &asOf})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, loans, 1)
		assert.Equal(t, late.ID, loans[0].ID)

		loans, total, err = store.ListLoans(ctx, model.LoanFilter{Limit: 1})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		require.Len(t, loans, 1)
		assert.Equal(t, onTime.ID, loans[0].ID, "newest issue date first")
	})

	t.Run("fine lifecycle", func(t *testing.T) {
		store, seed := newStore(t)
		book := model.Book{ID: uuid.New(), ISBN: uuid.NewString()[:13], Title: "Middlemarch", TotalCopies: 1, AvailableCopies: 1, Version: 1}
		reader := model.Reader{ID: uuid.New(), FullName: "Mary", Status: model.ReaderStatusActive}
		seed.book(t, book)
		seed.reader(t, reader)

		now := time.Now().UTC().Truncate(time.Microsecond)
		loan := model.NewLoan(book.ID, reader.ID, day("2024-01-01"), 14, nil, now)
		require.NoError(t, loan.MarkReturned(day("2024-01-18"), nil, now))
		fine := model.NewFine(loan, model.FineAssessment{OverdueDays: 3, Amount: decimal.RequireFromString("1.50")}, now)

		require.NoError(t, store.WithinTx(ctx, func(tx Tx) error {
			if err := tx.CreateLoan(ctx, loan); err != nil {
				return err
			}
			return tx.CreateFine(ctx, fine)
		}))

		balance, err := store.PendingBalance(ctx, reader.ID)
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("1.50").Equal(balance), "balance %s", balance)

		err = store.WithinTx(ctx, func(tx Tx) error {
			dup := model.NewFine(loan, model.FineAssessment{OverdueDays: 3, Amount: decimal.RequireFromString("1.50")}, now)
			return tx.CreateFine(ctx, dup)
		})
		assert.Error(t, err, "one fine per loan")

		collector := uuid.New()
		paid, err := store.MarkFinePaid(ctx, fine.ID, &collector, now)
		require.NoError(t, err)
		assert.Equal(t, model.FineStatusPaid, paid.Status)
		require.NotNil(t, paid.CollectedBy)
		assert.Equal(t, collector, *paid.CollectedBy)

		_, err = store.MarkFinePaid(ctx, fine.ID, &collector, now)
		assert.ErrorIs(t, err, model.ErrAlreadyPaid)

		_, err = store.MarkFinePaid(ctx, uuid.New(), &collector, now)
		assert.ErrorIs(t, err, model.ErrFineNotFound)

		balance, err = store.PendingBalance(ctx, reader.ID)
		require.NoError(t, err)
		assert.True(t, balance.IsZero())

		paidStatus := model.FineStatusPaid
		fines, total, err := store.ListFines(ctx, model.FineFilter{Status: &paidStatus})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, fines, 1)
		assert.True(t, decimal.RequireFromString("1.50").Equal(fines[0].Amount))
	})

	t.Run("roster and available books", func(t *testing.T) {
		store, seed := newStore(t)
		active := model.Reader{ID: uuid.New(), FullName: "Alan", Status: model.ReaderStatusActive}
		suspended := model.Reader{ID: uuid.New(), FullName: "Bob", Status: model.ReaderStatusSuspended}
		seed.reader(t, active)
		seed.reader(t, suspended)
		seed.book(t, model.Book{ID: uuid.New(), ISBN: uuid.NewString()[:13], Title: "A", TotalCopies: 1, AvailableCopies: 1, Version: 1})
		seed.book(t, model.Book{ID: uuid.New(), ISBN: uuid.NewString()[:13], Title: "B", TotalCopies: 1, AvailableCopies: 0, Version: 1})

		ok, err := store.IsActiveReader(ctx, active.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.IsActiveReader(ctx, suspended.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = store.IsActiveReader(ctx, uuid.New())
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = store.GetReader(ctx, uuid.New())
		assert.ErrorIs(t, err, model.ErrReaderNotFound)

		books, total, err := store.ListAvailableBooks(ctx, 10, 0)
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, books, 1)
		assert.Equal(t, "A", books[0].Title)

		stats, err := store.DashboardStats(ctx, day("2024-01-01"))
		require.NoError(t, err)
		assert.Equal(t, 2, stats.TotalBooks)
		assert.Equal(t, 2, stats.TotalCopies)
		assert.Equal(t, 1, stats.AvailableCopies)
		assert.Equal(t, 2, stats.TotalReaders)
	})
}

func TestMemoryStore_LoadSeedFile(t *testing.T) {
	path := t.TempDir() + "/seed.json"
	bookID := uuid.New()
	readerID := uuid.New()
	data := `{"books":[{"id":"` + bookID.String() + `","isbn":"9780000000001","title":"Seeded","total_copies":2,"available_copies":2}],
"readers":[{"id":"` + readerID.String() + `","full_name":"Seed Reader","status":"active"}]}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	s := NewMemoryStore()
	require.NoError(t, s.LoadSeedFile(path))

	book, err := s.GetBook(context.Background(), bookID)
	require.NoError(t, err)
	assert.Equal(t, 1, book.Version)
	assert.Equal(t, 2, book.AvailableCopies)

	ok, err := s.IsActiveReader(context.Background(), readerID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryStore_LoadSeedFile_RejectsBadAvailability(t *testing.T) {
	path := t.TempDir() + "/seed.json"
	data := `{"books":[{"id":"` + uuid.NewString() + `","isbn":"1","title":"Bad","total_copies":1,"available_copies":2}]}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	assert.Error(t, NewMemoryStore().LoadSeedFile(path))
}

func TestMemoryStore_TxIsolation(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	reader := model.Reader{ID: uuid.New(), FullName: "Iso", Status: model.ReaderStatusActive}
	book := model.Book{ID: uuid.New(), Title: "Iso", TotalCopies: 1, AvailableCopies: 1, Version: 1}
	s.SeedReader(reader)
	s.SeedBook(book)

	loan := model.NewLoan(book.ID, reader.ID, day("2024-01-01"), 14, nil, time.Now())
	require.NoError(t, s.WithinTx(ctx, func(tx Tx) error { return tx.CreateLoan(ctx, loan) }))

	// Mutating a returned copy must not leak into the store
	got, err := s.GetLoan(ctx, loan.ID)
	require.NoError(t, err)
	got.Status = model.LoanStatusReturned

	again, err := s.GetLoan(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LoanStatusActive, again.Status)
}
