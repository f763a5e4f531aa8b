package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"library-backend/internal/domains/lending/model"
	"library-backend/pkg/database"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const (
	dialectPostgres = "postgres"

	tableBooks   = "books"
	tableReaders = "readers"
	tableLoans   = "loans"
	tableFines   = "fines"

	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

var (
	loanColumns = []interface{}{
		"id", "book_id", "reader_id", "issue_date", "due_date", "return_date",
		"status", "issued_by", "returned_by", "created_at", "updated_at",
	}
	fineColumns = []interface{}{
		"id", "loan_id", "reader_id", "book_id", "amount", "overdue_days",
		"status", "assessed_at", "paid_at", "collected_by",
	}
	bookColumns = []interface{}{
		"id", "isbn", "title", "total_copies", "available_copies", "version",
	}
)

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// postgresStore implements Store on pgx
type postgresStore struct {
	*queries
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Store backed by PostgreSQL
func NewPostgresStore(pool *pgxpool.Pool) Store {
	return &postgresStore{
		queries: &queries{db: pool},
		pool:    pool,
	}
}

// WithinTx implements Store.WithinTx using database.WithTransaction
func (s *postgresStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	return database.WithTransaction(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&queries{db: tx})
	})
}

func (s *postgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// DashboardStats implements Store.DashboardStats
func (s *postgresStore) DashboardStats(ctx context.Context, asOf time.Time) (*model.DashboardStats, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM books),
			(SELECT COALESCE(SUM(total_copies), 0) FROM books),
			(SELECT COALESCE(SUM(available_copies), 0) FROM books),
			(SELECT COUNT(*) FROM readers),
			(SELECT COUNT(*) FROM loans WHERE status = 'active'),
			(SELECT COUNT(*) FROM loans WHERE status = 'active' AND due_date < $1::date),
			(SELECT COUNT(*) FROM fines WHERE status = 'pending'),
			(SELECT COALESCE(SUM(amount), 0) FROM fines WHERE status = 'pending')
	`

	stats := &model.DashboardStats{AsOf: model.NormalizeDate(asOf)}
	err := s.pool.QueryRow(ctx, query, model.FormatDate(asOf)).Scan(
		&stats.TotalBooks,
		&stats.TotalCopies,
		&stats.AvailableCopies,
		&stats.TotalReaders,
		&stats.ActiveLoans,
		&stats.OverdueLoans,
		&stats.PendingFines,
		&stats.PendingFinesAmount,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load dashboard stats: %w", err)
	}
	return stats, nil
}

// queries holds every statement; it runs on the pool or inside a transaction
type queries struct {
	db dbtx
}

// ========================================
// LOCKING
// ========================================

// LockReader takes a transaction scoped advisory lock keyed on the reader id
func (q *queries) LockReader(ctx context.Context, readerID uuid.UUID) error {
	if _, err := q.db.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", readerID.String()); err != nil {
		return fmt.Errorf("failed to lock reader %s: %w", readerID, err)
	}
	return nil
}

// ========================================
// CATALOG
// ========================================

func (q *queries) GetBook(ctx context.Context, id uuid.UUID) (*model.Book, error) {
	query := `
		SELECT id, isbn, title, total_copies, available_copies, version
		FROM books
		WHERE id = $1
	`
	book, err := scanBook(q.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.NewBookNotFoundError(id)
		}
		return nil, fmt.Errorf("failed to get book: %w", err)
	}
	return book, nil
}

// AdjustAvailability implements Catalog.AdjustAvailability with optimistic locking
func (q *queries) AdjustAvailability(ctx context.Context, bookID uuid.UUID, expectedVersion int, delta int) (*model.Book, error) {
	query := `
		UPDATE books
		SET
			available_copies = available_copies + $3,
			version = version + 1,  -- Increment version atomically
			updated_at = NOW()
		WHERE id = $1
			AND version = $2
			AND available_copies + $3 BETWEEN 0 AND total_copies
		RETURNING id, isbn, title, total_copies, available_copies, version
	`

	book, err := scanBook(q.db.QueryRow(ctx, query, bookID, expectedVersion, delta))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Either the row is gone, the version moved, or the bound would break
			var exists bool
			checkErr := q.db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM books WHERE id = $1)", bookID).Scan(&exists)
			if checkErr != nil {
				return nil, fmt.Errorf("failed to check book existence: %w", checkErr)
			}
			if !exists {
				return nil, model.NewBookNotFoundError(bookID)
			}
			return nil, model.NewConflictError(bookID, expectedVersion)
		}
		return nil, fmt.Errorf("failed to adjust availability: %w", err)
	}
	return book, nil
}

func (q *queries) ListAvailableBooks(ctx context.Context, limit, offset int) ([]*model.Book, int, error) {
	ds := goqu.Dialect(dialectPostgres).
		From(tableBooks).
		Where(goqu.C("available_copies").Gt(0))

	total, err := q.count(ctx, ds)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count available books: %w", err)
	}

	ds = paginate(ds.Select(bookColumns...).Order(goqu.I("title").Asc(), goqu.I("id").Asc()), limit, offset)
	rows, err := q.query(ctx, ds)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list available books: %w", err)
	}
	defer rows.Close()

	books := make([]*model.Book, 0)
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan book row: %w", err)
		}
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating book rows: %w", err)
	}
	return books, total, nil
}

// ========================================
// ROSTER
// ========================================

func (q *queries) GetReader(ctx context.Context, id uuid.UUID) (*model.Reader, error) {
	var r model.Reader
	err := q.db.QueryRow(ctx, "SELECT id, full_name, status FROM readers WHERE id = $1", id).
		Scan(&r.ID, &r.FullName, &r.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.NewReaderNotFoundError(id)
		}
		return nil, fmt.Errorf("failed to get reader: %w", err)
	}
	return &r, nil
}

func (q *queries) IsActiveReader(ctx context.Context, id uuid.UUID) (bool, error) {
	var active bool
	err := q.db.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM readers WHERE id = $1 AND status = 'active')", id,
	).Scan(&active)
	if err != nil {
		return false, fmt.Errorf("failed to check reader status: %w", err)
	}
	return active, nil
}

// ========================================
// LOAN LEDGER
// ========================================

func (q *queries) CreateLoan(ctx context.Context, loan *model.Loan) error {
	query := `
		INSERT INTO loans (
			id, book_id, reader_id, issue_date, due_date, return_date,
			status, issued_by, returned_by, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4::date, $5::date, $6::date, $7, $8, $9, $10, $11
		)
	`
	_, err := q.db.Exec(ctx, query,
		loan.ID,
		loan.BookID,
		loan.ReaderID,
		model.FormatDate(loan.IssueDate),
		model.FormatDate(loan.DueDate),
		nullableDate(loan.ReturnDate),
		loan.Status,
		loan.IssuedBy,
		loan.ReturnedBy,
		loan.CreatedAt,
		loan.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			if pgErr.ConstraintName == "loans_reader_id_fkey" {
				return model.NewReaderNotFoundError(loan.ReaderID)
			}
			return model.NewBookNotFoundError(loan.BookID)
		}
		return fmt.Errorf("failed to insert loan: %w", err)
	}
	return nil
}

func (q *queries) GetLoan(ctx context.Context, id uuid.UUID) (*model.Loan, error) {
	return q.getLoan(ctx, id, "")
}

func (q *queries) GetLoanForUpdate(ctx context.Context, id uuid.UUID) (*model.Loan, error) {
	return q.getLoan(ctx, id, " FOR UPDATE")
}

func (q *queries) getLoan(ctx context.Context, id uuid.UUID, lock string) (*model.Loan, error) {
	query := `
		SELECT id, book_id, reader_id, issue_date, due_date, return_date,
			status, issued_by, returned_by, created_at, updated_at
		FROM loans
		WHERE id = $1` + lock

	loan, err := scanLoan(q.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.NewLoanNotFoundError(id)
		}
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	return loan, nil
}

// CloseLoan only updates a row that is still active
func (q *queries) CloseLoan(ctx context.Context, loan *model.Loan) error {
	if loan.ReturnDate == nil {
		return fmt.Errorf("close loan %s: %w", loan.ID, model.ErrInvalidReturnDate)
	}

	query := `
		UPDATE loans
		SET return_date = $2::date, status = $3, returned_by = $4, updated_at = $5
		WHERE id = $1 AND status = 'active'
	`
	tag, err := q.db.Exec(ctx, query,
		loan.ID,
		model.FormatDate(*loan.ReturnDate),
		loan.Status,
		loan.ReturnedBy,
		loan.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgCheckViolation {
			return model.NewInvalidReturnDateError(loan.IssueDate, *loan.ReturnDate)
		}
		return fmt.Errorf("failed to close loan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := q.GetLoan(ctx, loan.ID); err != nil {
			return err
		}
		return model.NewAlreadyReturnedError(loan.ID)
	}
	return nil
}

func (q *queries) CountActiveLoans(ctx context.Context, readerID uuid.UUID) (int, error) {
	var n int
	err := q.db.QueryRow(ctx,
		"SELECT COUNT(*) FROM loans WHERE reader_id = $1 AND status = 'active'", readerID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count active loans: %w", err)
	}
	return n, nil
}

func (q *queries) ListLoans(ctx context.Context, filter model.LoanFilter) ([]*model.Loan, int, error) {
	ds := goqu.Dialect(dialectPostgres).From(tableLoans).Where(loanWhere(filter)...)

	total, err := q.count(ctx, ds)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count loans: %w", err)
	}

	ds = ds.Select(loanColumns...).Order(goqu.I("issue_date").Desc(), goqu.I("created_at").Desc(), goqu.I("id").Asc())
	rows, err := q.query(ctx, paginate(ds, filter.Limit, filter.Offset))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list loans: %w", err)
	}
	defer rows.Close()

	loans := make([]*model.Loan, 0)
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan loan row: %w", err)
		}
		loans = append(loans, loan)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating loan rows: %w", err)
	}
	return loans, total, nil
}

func loanWhere(filter model.LoanFilter) []exp.Expression {
	where := make([]exp.Expression, 0, 4)
	if filter.Status != nil {
		where = append(where, goqu.C("status").Eq(string(*filter.Status)))
	}
	if filter.ReaderID != nil {
		where = append(where, goqu.C("reader_id").Eq(*filter.ReaderID))
	}
	if filter.BookID != nil {
		where = append(where, goqu.C("book_id").Eq(*filter.BookID))
	}
	if filter.OverdueAsOf != nil {
		where = append(where,
			goqu.C("status").Eq(string(model.LoanStatusActive)),
			goqu.L("due_date < ?::date", model.FormatDate(*filter.OverdueAsOf)),
		)
	}
	return where
}

// ========================================
// FINE LEDGER
// ========================================

func (q *queries) CreateFine(ctx context.Context, fine *model.Fine) error {
	query := `
		INSERT INTO fines (
			id, loan_id, reader_id, book_id, amount, overdue_days,
			status, assessed_at, paid_at, collected_by
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, NULL, NULL
		)
	`
	_, err := q.db.Exec(ctx, query,
		fine.ID,
		fine.LoanID,
		fine.ReaderID,
		fine.BookID,
		fine.Amount,
		fine.OverdueDays,
		fine.Status,
		fine.AssessedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("fine for loan %s already exists: %w", fine.LoanID, model.ErrConflict)
		}
		return fmt.Errorf("failed to insert fine: %w", err)
	}
	return nil
}

func (q *queries) GetFine(ctx context.Context, id uuid.UUID) (*model.Fine, error) {
	query := `
		SELECT id, loan_id, reader_id, book_id, amount, overdue_days,
			status, assessed_at, paid_at, collected_by
		FROM fines
		WHERE id = $1
	`
	fine, err := scanFine(q.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.NewFineNotFoundError(id)
		}
		return nil, fmt.Errorf("failed to get fine: %w", err)
	}
	return fine, nil
}

// MarkFinePaid implements FineLedger.MarkFinePaid with a conditional update
func (q *queries) MarkFinePaid(ctx context.Context, fineID uuid.UUID, collectedBy *uuid.UUID, paidAt time.Time) (*model.Fine, error) {
	query := `
		UPDATE fines
		SET status = 'paid', paid_at = $2, collected_by = $3
		WHERE id = $1 AND status = 'pending'
		RETURNING id, loan_id, reader_id, book_id, amount, overdue_days,
			status, assessed_at, paid_at, collected_by
	`
	fine, err := scanFine(q.db.QueryRow(ctx, query, fineID, paidAt, collectedBy))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := q.GetFine(ctx, fineID); getErr != nil {
				return nil, getErr
			}
			return nil, model.NewAlreadyPaidError(fineID)
		}
		return nil, fmt.Errorf("failed to pay fine: %w", err)
	}
	return fine, nil
}

func (q *queries) PendingBalance(ctx context.Context, readerID uuid.UUID) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := q.db.QueryRow(ctx,
		"SELECT COALESCE(SUM(amount), 0) FROM fines WHERE reader_id = $1 AND status = 'pending'", readerID,
	).Scan(&balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum pending fines: %w", err)
	}
	return balance, nil
}

func (q *queries) ListFines(ctx context.Context, filter model.FineFilter) ([]*model.Fine, int, error) {
	where := make([]exp.Expression, 0, 2)
	if filter.Status != nil {
		where = append(where, goqu.C("status").Eq(string(*filter.Status)))
	}
	if filter.ReaderID != nil {
		where = append(where, goqu.C("reader_id").Eq(*filter.ReaderID))
	}
	ds := goqu.Dialect(dialectPostgres).From(tableFines).Where(where...)

	total, err := q.count(ctx, ds)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count fines: %w", err)
	}

	ds = ds.Select(fineColumns...).Order(goqu.I("assessed_at").Desc(), goqu.I("id").Asc())
	rows, err := q.query(ctx, paginate(ds, filter.Limit, filter.Offset))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list fines: %w", err)
	}
	defer rows.Close()

	fines := make([]*model.Fine, 0)
	for rows.Next() {
		fine, err := scanFine(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan fine row: %w", err)
		}
		fines = append(fines, fine)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating fine rows: %w", err)
	}
	return fines, total, nil
}

// ========================================
// HELPERS
// ========================================

func (q *queries) count(ctx context.Context, ds *goqu.SelectDataset) (int, error) {
	sql, args, err := ds.Select(goqu.COUNT(goqu.Star())).Prepared(true).ToSQL()
	if err != nil {
		return 0, fmt.Errorf("failed to build count query: %w", err)
	}
	var n int
	if err := q.db.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (q *queries) query(ctx context.Context, ds *goqu.SelectDataset) (pgx.Rows, error) {
	sql, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	return q.db.Query(ctx, sql, args...)
}

// paginate applies limit and offset; a non-positive limit means no limit
func paginate(ds *goqu.SelectDataset, limit, offset int) *goqu.SelectDataset {
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}
	if offset > 0 {
		ds = ds.Offset(uint(offset))
	}
	return ds
}

func nullableDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := model.FormatDate(*t)
	return &s
}

func scanBook(row pgx.Row) (*model.Book, error) {
	var b model.Book
	if err := row.Scan(&b.ID, &b.ISBN, &b.Title, &b.TotalCopies, &b.AvailableCopies, &b.Version); err != nil {
		return nil, err
	}
	return &b, nil
}

func scanLoan(row pgx.Row) (*model.Loan, error) {
	var l model.Loan
	err := row.Scan(
		&l.ID,
		&l.BookID,
		&l.ReaderID,
		&l.IssueDate,
		&l.DueDate,
		&l.ReturnDate,
		&l.Status,
		&l.IssuedBy,
		&l.ReturnedBy,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	l.IssueDate = model.NormalizeDate(l.IssueDate)
	l.DueDate = model.NormalizeDate(l.DueDate)
	if l.ReturnDate != nil {
		ret := model.NormalizeDate(*l.ReturnDate)
		l.ReturnDate = &ret
	}
	return &l, nil
}

func scanFine(row pgx.Row) (*model.Fine, error) {
	var f model.Fine
	err := row.Scan(
		&f.ID,
		&f.LoanID,
		&f.ReaderID,
		&f.BookID,
		&f.Amount,
		&f.OverdueDays,
		&f.Status,
		&f.AssessedAt,
		&f.PaidAt,
		&f.CollectedBy,
	)
	if err != nil {
		return nil, err
	}
	return &f, nil
}
