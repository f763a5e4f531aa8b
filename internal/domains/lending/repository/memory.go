package repository

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"library-backend/internal/domains/lending/model"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// memoryState is copied at the start of every transaction and swapped in on commit
type memoryState struct {
	books   map[uuid.UUID]model.Book
	readers map[uuid.UUID]model.Reader
	loans   map[uuid.UUID]model.Loan
	fines   map[uuid.UUID]model.Fine
}

func newMemoryState() memoryState {
	return memoryState{
		books:   map[uuid.UUID]model.Book{},
		readers: map[uuid.UUID]model.Reader{},
		loans:   map[uuid.UUID]model.Loan{},
		fines:   map[uuid.UUID]model.Fine{},
	}
}

// clone copies maps; entity values are copied with their pointer fields detached
func (s memoryState) clone() memoryState {
	out := newMemoryState()
	for k, v := range s.books {
		out.books[k] = v
	}
	for k, v := range s.readers {
		out.readers[k] = v
	}
	for k, v := range s.loans {
		out.loans[k] = cloneLoan(v)
	}
	for k, v := range s.fines {
		out.fines[k] = cloneFine(v)
	}
	return out
}

func cloneLoan(l model.Loan) model.Loan {
	l.ReturnDate = cloneTime(l.ReturnDate)
	l.IssuedBy = cloneID(l.IssuedBy)
	l.ReturnedBy = cloneID(l.ReturnedBy)
	return l
}

func cloneFine(f model.Fine) model.Fine {
	f.PaidAt = cloneTime(f.PaidAt)
	f.CollectedBy = cloneID(f.CollectedBy)
	return f
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

// MemoryStore is an in-process Store. Transactions are serialized by one mutex
// and run against a private copy of the state. Store level calls made from
// inside a WithinTx callback would deadlock; use the Tx passed to it.
type MemoryStore struct {
	*memoryTx
	mu    sync.Mutex
	state memoryState
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{state: newMemoryState()}
	s.memoryTx = &memoryTx{view: s.view}
	return s
}

// view runs fn on the committed state under the store lock
func (s *MemoryStore) view(fn func(st *memoryState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&s.state)
}

// WithinTx implements Store.WithinTx
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.state.clone()
	tx := &memoryTx{view: func(f func(*memoryState) error) error { return f(&st) }}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = st
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// DashboardStats implements Store.DashboardStats
func (s *MemoryStore) DashboardStats(_ context.Context, asOf time.Time) (*model.DashboardStats, error) {
	stats := &model.DashboardStats{AsOf: model.NormalizeDate(asOf), PendingFinesAmount: decimal.Zero}
	err := s.view(func(st *memoryState) error {
		stats.TotalBooks = len(st.books)
		for _, b := range st.books {
			stats.TotalCopies += b.TotalCopies
			stats.AvailableCopies += b.AvailableCopies
		}
		stats.TotalReaders = len(st.readers)
		for _, l := range st.loans {
			if !l.IsActive() {
				continue
			}
			stats.ActiveLoans++
			if model.OverdueStatus(&l, asOf).IsOverdue {
				stats.OverdueLoans++
			}
		}
		for _, f := range st.fines {
			if f.IsPending() {
				stats.PendingFines++
				stats.PendingFinesAmount = stats.PendingFinesAmount.Add(f.Amount)
			}
		}
		return nil
	})
	return stats, err
}

// ========================================
// SEEDING
// ========================================

// SeedBook inserts or replaces a catalog entry
func (s *MemoryStore) SeedBook(b model.Book) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.Version == 0 {
		b.Version = 1
	}
	s.state.books[b.ID] = b
}

// SeedReader inserts or replaces a roster entry
func (s *MemoryStore) SeedReader(r model.Reader) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.readers[r.ID] = r
}

// Seed is the JSON layout of a seed file
type Seed struct {
	Books   []model.Book   `json:"books"`
	Readers []model.Reader `json:"readers"`
}

// LoadSeedFile reads books and readers from a JSON file
func (s *MemoryStore) LoadSeedFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read seed file: %w", err)
	}

	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("failed to parse seed file: %w", err)
	}

	for _, b := range seed.Books {
		if b.AvailableCopies < 0 || b.AvailableCopies > b.TotalCopies {
			return fmt.Errorf("seed book %s: available copies out of range", b.ID)
		}
		s.SeedBook(b)
	}
	for _, r := range seed.Readers {
		s.SeedReader(r)
	}
	return nil
}

// ========================================
// TRANSACTION VIEW
// ========================================

// memoryTx implements Tx over whatever state view returns
type memoryTx struct {
	view func(fn func(st *memoryState) error) error
}

// LockReader is a no-op; WithinTx already holds the store lock
func (t *memoryTx) LockReader(_ context.Context, _ uuid.UUID) error {
	return nil
}

func (t *memoryTx) GetBook(_ context.Context, id uuid.UUID) (*model.Book, error) {
	var out *model.Book
	err := t.view(func(st *memoryState) error {
		b, ok := st.books[id]
		if !ok {
			return model.NewBookNotFoundError(id)
		}
		out = &b
		return nil
	})
	return out, err
}

func (t *memoryTx) AdjustAvailability(_ context.Context, bookID uuid.UUID, expectedVersion int, delta int) (*model.Book, error) {
	var out *model.Book
	err := t.view(func(st *memoryState) error {
		b, ok := st.books[bookID]
		if !ok {
			return model.NewBookNotFoundError(bookID)
		}
		if b.Version != expectedVersion || !b.CanAdjust(delta) {
			return model.NewConflictError(bookID, expectedVersion)
		}
		b.AvailableCopies += delta
		b.Version++
		st.books[bookID] = b
		out = &b
		return nil
	})
	return out, err
}

func (t *memoryTx) ListAvailableBooks(_ context.Context, limit, offset int) ([]*model.Book, int, error) {
	var out []*model.Book
	err := t.view(func(st *memoryState) error {
		for _, b := range st.books {
			if b.HasAvailableCopy() {
				b := b
				out = append(out, &b)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	total := len(out)
	return page(out, limit, offset), total, err
}

func (t *memoryTx) GetReader(_ context.Context, id uuid.UUID) (*model.Reader, error) {
	var out *model.Reader
	err := t.view(func(st *memoryState) error {
		r, ok := st.readers[id]
		if !ok {
			return model.NewReaderNotFoundError(id)
		}
		out = &r
		return nil
	})
	return out, err
}

func (t *memoryTx) IsActiveReader(_ context.Context, id uuid.UUID) (bool, error) {
	var active bool
	err := t.view(func(st *memoryState) error {
		r, ok := st.readers[id]
		active = ok && r.IsActive()
		return nil
	})
	return active, err
}

func (t *memoryTx) CreateLoan(_ context.Context, loan *model.Loan) error {
	return t.view(func(st *memoryState) error {
		if _, ok := st.books[loan.BookID]; !ok {
			return model.NewBookNotFoundError(loan.BookID)
		}
		if _, ok := st.readers[loan.ReaderID]; !ok {
			return model.NewReaderNotFoundError(loan.ReaderID)
		}
		if _, ok := st.loans[loan.ID]; ok {
			return fmt.Errorf("loan %s already exists: %w", loan.ID, model.ErrConflict)
		}
		st.loans[loan.ID] = cloneLoan(*loan)
		return nil
	})
}

func (t *memoryTx) GetLoan(_ context.Context, id uuid.UUID) (*model.Loan, error) {
	var out *model.Loan
	err := t.view(func(st *memoryState) error {
		l, ok := st.loans[id]
		if !ok {
			return model.NewLoanNotFoundError(id)
		}
		l = cloneLoan(l)
		out = &l
		return nil
	})
	return out, err
}

func (t *memoryTx) GetLoanForUpdate(ctx context.Context, id uuid.UUID) (*model.Loan, error) {
	return t.GetLoan(ctx, id)
}

func (t *memoryTx) CloseLoan(_ context.Context, loan *model.Loan) error {
	return t.view(func(st *memoryState) error {
		stored, ok := st.loans[loan.ID]
		if !ok {
			return model.NewLoanNotFoundError(loan.ID)
		}
		if !stored.IsActive() {
			return model.NewAlreadyReturnedError(loan.ID)
		}
		if loan.ReturnDate == nil || loan.ReturnDate.Before(stored.IssueDate) {
			return fmt.Errorf("close loan %s: %w", loan.ID, model.ErrInvalidReturnDate)
		}
		stored.ReturnDate = cloneTime(loan.ReturnDate)
		stored.Status = loan.Status
		stored.ReturnedBy = cloneID(loan.ReturnedBy)
		stored.UpdatedAt = loan.UpdatedAt
		st.loans[loan.ID] = stored
		return nil
	})
}

func (t *memoryTx) CountActiveLoans(_ context.Context, readerID uuid.UUID) (int, error) {
	n := 0
	err := t.view(func(st *memoryState) error {
		for _, l := range st.loans {
			if l.ReaderID == readerID && l.IsActive() {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (t *memoryTx) ListLoans(_ context.Context, filter model.LoanFilter) ([]*model.Loan, int, error) {
	var out []*model.Loan
	err := t.view(func(st *memoryState) error {
		for _, l := range st.loans {
			if matchLoan(&l, filter) {
				l := cloneLoan(l)
				out = append(out, &l)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].IssueDate.Equal(out[j].IssueDate) {
			return out[i].IssueDate.After(out[j].IssueDate)
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	total := len(out)
	return page(out, filter.Limit, filter.Offset), total, err
}

func matchLoan(l *model.Loan, f model.LoanFilter) bool {
	if f.Status != nil && l.Status != *f.Status {
		return false
	}
	if f.ReaderID != nil && l.ReaderID != *f.ReaderID {
		return false
	}
	if f.BookID != nil && l.BookID != *f.BookID {
		return false
	}
	if f.OverdueAsOf != nil && (!l.IsActive() || !l.DueDate.Before(model.NormalizeDate(*f.OverdueAsOf))) {
		return false
	}
	return true
}

func (t *memoryTx) CreateFine(_ context.Context, fine *model.Fine) error {
	return t.view(func(st *memoryState) error {
		for _, f := range st.fines {
			if f.LoanID == fine.LoanID {
				return fmt.Errorf("fine for loan %s already exists: %w", fine.LoanID, model.ErrConflict)
			}
		}
		st.fines[fine.ID] = cloneFine(*fine)
		return nil
	})
}

func (t *memoryTx) GetFine(_ context.Context, id uuid.UUID) (*model.Fine, error) {
	var out *model.Fine
	err := t.view(func(st *memoryState) error {
		f, ok := st.fines[id]
		if !ok {
			return model.NewFineNotFoundError(id)
		}
		f = cloneFine(f)
		out = &f
		return nil
	})
	return out, err
}

func (t *memoryTx) MarkFinePaid(_ context.Context, fineID uuid.UUID, collectedBy *uuid.UUID, paidAt time.Time) (*model.Fine, error) {
	var out *model.Fine
	err := t.view(func(st *memoryState) error {
		f, ok := st.fines[fineID]
		if !ok {
			return model.NewFineNotFoundError(fineID)
		}
		if err := f.MarkPaid(cloneID(collectedBy), paidAt); err != nil {
			return err
		}
		st.fines[fineID] = f
		f = cloneFine(f)
		out = &f
		return nil
	})
	return out, err
}

func (t *memoryTx) PendingBalance(_ context.Context, readerID uuid.UUID) (decimal.Decimal, error) {
	sum := decimal.Zero
	err := t.view(func(st *memoryState) error {
		for _, f := range st.fines {
			if f.ReaderID == readerID && f.IsPending() {
				sum = sum.Add(f.Amount)
			}
		}
		return nil
	})
	return sum, err
}

func (t *memoryTx) ListFines(_ context.Context, filter model.FineFilter) ([]*model.Fine, int, error) {
	var out []*model.Fine
	err := t.view(func(st *memoryState) error {
		for _, f := range st.fines {
			if filter.Status != nil && f.Status != *filter.Status {
				continue
			}
			if filter.ReaderID != nil && f.ReaderID != *filter.ReaderID {
				continue
			}
			f := cloneFine(f)
			out = append(out, &f)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AssessedAt.Equal(out[j].AssessedAt) {
			return out[i].AssessedAt.After(out[j].AssessedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	total := len(out)
	return page(out, filter.Limit, filter.Offset), total, err
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
