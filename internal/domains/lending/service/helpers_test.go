package service

import (
	"context"
	"errors"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"library-backend/internal/domains/lending/model"
	"library-backend/internal/domains/lending/repository"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
)

func day(s string) time.Time {
	t, err := model.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func fixedClock(s string) Clock {
	t := day(s).Add(9 * time.Hour)
	return func() time.Time { return t }
}

func testPolicy() model.Policy {
	p := model.DefaultPolicy()
	p.FinePerDay = decimal.RequireFromString("0.50")
	p.ConflictBaseDelay = time.Millisecond
	return p
}

type fixture struct {
	store     *repository.MemoryStore
	lending   LendingService
	fines     FineService
	publisher *recordingPublisher
	policy    model.Policy
}

func newFixture(clock string) *fixture {
	return newFixtureWithStore(repository.NewMemoryStore(), clock, nil)
}

// newFixtureWithStore runs the services against wrap(store) when wrap is set
func newFixtureWithStore(store *repository.MemoryStore, clock string, wrap func(repository.Store) repository.Store) *fixture {
	var s repository.Store = store
	if wrap != nil {
		s = wrap(store)
	}
	policy := testPolicy()
	pub := &recordingPublisher{}
	now := fixedClock(clock)
	return &fixture{
		store:     store,
		lending:   NewLendingService(s, NewEligibilityGate(s, policy.MaxActiveLoans), NewFineCalculator(policy.FinePerDay), pub, policy, now),
		fines:     NewFineService(s, pub, now),
		publisher: pub,
		policy:    policy,
	}
}

func (f *fixture) book(copies int) model.Book {
	b := model.Book{
		ID:              uuid.New(),
		ISBN:            uuid.NewString()[:13],
		Title:           "The Left Hand of Darkness",
		TotalCopies:     copies,
		AvailableCopies: copies,
		Version:         1,
	}
	f.store.SeedBook(b)
	return b
}

func (f *fixture) reader(status model.ReaderStatus) model.Reader {
	r := model.Reader{ID: uuid.New(), FullName: "Genly Ai", Status: status}
	f.store.SeedReader(r)
	return r
}

func (f *fixture) issue(ctx context.Context, readerID, bookID uuid.UUID, issueDate string) (*model.Loan, error) {
	return f.lending.IssueLoan(ctx, model.IssueLoanCommand{ReaderID: readerID, BookID: bookID, IssueDate: day(issueDate)})
}

func (f *fixture) giveBack(ctx context.Context, loanID uuid.UUID, returnDate string) (*model.ReturnResult, error) {
	return f.lending.ReturnLoan(ctx, model.ReturnLoanCommand{LoanID: loanID, ReturnDate: day(returnDate)})
}

// recordingPublisher keeps every published event
type recordingPublisher struct {
	mu     sync.Mutex
	events []model.LendingEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e model.LendingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) types() []model.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// conflictingStore makes the first n AdjustAvailability calls lose the race
type conflictingStore struct {
	repository.Store
	remaining int32
	attempts  int32
}

func (s *conflictingStore) WithinTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	return s.Store.WithinTx(ctx, func(tx repository.Tx) error {
		return fn(&conflictingTx{Tx: tx, parent: s})
	})
}

type conflictingTx struct {
	repository.Tx
	parent *conflictingStore
}

func (t *conflictingTx) AdjustAvailability(ctx context.Context, bookID uuid.UUID, expectedVersion int, delta int) (*model.Book, error) {
	atomic.AddInt32(&t.parent.attempts, 1)
	if atomic.AddInt32(&t.parent.remaining, -1) >= 0 {
		return nil, model.NewConflictError(bookID, expectedVersion)
	}
	return t.Tx.AdjustAvailability(ctx, bookID, expectedVersion, delta)
}

// failingStore fails every transaction with err
type failingStore struct {
	repository.Store
	err error
}

func (s *failingStore) WithinTx(context.Context, func(tx repository.Tx) error) error {
	return s.err
}

var errStoreDown = errors.New("store down")

// memoryCache is a map backed cache.Cache
type memoryCache struct {
	mu     sync.Mutex
	values map[string][]byte
	sets   int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: map[string][]byte{}}
}

func (c *memoryCache) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.values[key]
	if !ok {
		return false, nil
	}
	return true, jsoniter.Unmarshal(raw, dest)
}

func (c *memoryCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := jsoniter.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = raw
	c.sets++
	return nil
}

func (c *memoryCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.values, k)
	}
	return nil
}

func (c *memoryCache) DeletePattern(_ context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.values {
		if ok, _ := path.Match(pattern, k); ok {
			delete(c.values, k)
		}
	}
	return nil
}

func (c *memoryCache) Ping(context.Context) error { return nil }
