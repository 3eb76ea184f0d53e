// internal/store/postgres.go
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"loandesk/internal/catalog"
	"loandesk/internal/circulation"
	"loandesk/internal/membership"
)

//go:embed schema.sql
var schema string

// ErrConflict is returned when Postgres aborts a unit of work because a
// concurrent transaction touched the same rows.
var ErrConflict = errors.New("concurrent update conflict")

// Postgres stores the collections in PostgreSQL.
type Postgres struct {
	pgQueries
	db     *sqlx.DB
	tracer trace.Tracer
}

// OpenPostgres connects to dsn and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)
	return NewPostgres(db), nil
}

func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{
		pgQueries: pgQueries{q: db},
		db:        db,
		tracer:    otel.Tracer("loandesk/store"),
	}
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

// Migrate creates the tables if they do not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Atomically runs fn inside a serializable transaction. Serialization
// failures surface as ErrConflict and are not retried.
func (p *Postgres) Atomically(ctx context.Context, fn func(circulation.Store) error) error {
	ctx, span := p.tracer.Start(ctx, "store.atomically",
		trace.WithAttributes(attribute.String("db.system", "postgresql")),
	)
	defer span.End()

	tx, err := p.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&pgQueries{q: tx}); err != nil {
		span.SetAttributes(attribute.Bool("tx.rolled_back", true))
		return mapPgError(err)
	}

	if err := tx.Commit(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("commit transaction: %w", mapPgError(err))
	}
	return nil
}

// mapPgError turns conflicts reported by Postgres into ErrConflict.
func mapPgError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "23505":
			return fmt.Errorf("%w: %s", ErrConflict, pqErr.Message)
		}
	}
	return err
}

// pgQueries runs the store queries against a pool or a transaction.
type pgQueries struct {
	q sqlx.ExtContext
}

type loanRow struct {
	ID         string       `db:"id"`
	ISBN       string       `db:"isbn"`
	MemberID   string       `db:"member_id"`
	LoanDate   time.Time    `db:"loan_date"`
	DueDate    time.Time    `db:"due_date"`
	ReturnDate sql.NullTime `db:"return_date"`
}

func (r loanRow) toLoan() circulation.Loan {
	loan := circulation.Loan{
		ID:       r.ID,
		ItemISBN: r.ISBN,
		MemberID: r.MemberID,
		LoanDate: civil.DateOf(r.LoanDate),
		DueDate:  civil.DateOf(r.DueDate),
	}
	if r.ReturnDate.Valid {
		d := civil.DateOf(r.ReturnDate.Time)
		loan.ReturnDate = &d
	}
	return loan
}

const loanColumns = `id, isbn, member_id, loan_date, due_date, return_date`

func (s *pgQueries) GetItem(ctx context.Context, isbn string) (*catalog.Item, error) {
	var item catalog.Item
	err := sqlx.GetContext(ctx, s.q, &item, `SELECT isbn, title, available FROM items WHERE isbn = $1`, isbn)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query item: %w", err)
	}
	return &item, nil
}

func (s *pgQueries) PutItem(ctx context.Context, item catalog.Item) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO items (isbn, title, available)
		VALUES ($1, $2, $3)
		ON CONFLICT (isbn) DO UPDATE
		SET title = EXCLUDED.title,
		    available = EXCLUDED.available
	`, item.ISBN, item.Title, item.Available)
	if err != nil {
		return fmt.Errorf("upsert item: %w", err)
	}
	return nil
}

func (s *pgQueries) InsertItem(ctx context.Context, item catalog.Item) (bool, error) {
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO items (isbn, title, available)
		VALUES ($1, $2, $3)
		ON CONFLICT (isbn) DO NOTHING
	`, item.ISBN, item.Title, item.Available)
	if err != nil {
		return false, fmt.Errorf("insert item: %w", err)
	}
	return affected(res)
}

func (s *pgQueries) UpdateItemTitle(ctx context.Context, isbn, title string) (bool, error) {
	res, err := s.q.ExecContext(ctx, `UPDATE items SET title = $1 WHERE isbn = $2`, title, isbn)
	if err != nil {
		return false, fmt.Errorf("update item title: %w", err)
	}
	return affected(res)
}

func (s *pgQueries) ListItems(ctx context.Context) ([]catalog.Item, error) {
	items := []catalog.Item{}
	if err := sqlx.SelectContext(ctx, s.q, &items, `SELECT isbn, title, available FROM items ORDER BY isbn`); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

func (s *pgQueries) GetMember(ctx context.Context, id string) (*membership.Member, error) {
	var member membership.Member
	err := sqlx.GetContext(ctx, s.q, &member, `SELECT id, name, active_loans FROM members WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query member: %w", err)
	}
	return &member, nil
}

func (s *pgQueries) PutMember(ctx context.Context, member membership.Member) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO members (id, name, active_loans)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    active_loans = EXCLUDED.active_loans
	`, member.ID, member.Name, member.ActiveLoans)
	if err != nil {
		return fmt.Errorf("upsert member: %w", err)
	}
	return nil
}

func (s *pgQueries) InsertMember(ctx context.Context, member membership.Member) (bool, error) {
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO members (id, name, active_loans)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING
	`, member.ID, member.Name, member.ActiveLoans)
	if err != nil {
		return false, fmt.Errorf("insert member: %w", err)
	}
	return affected(res)
}

func (s *pgQueries) ListMembers(ctx context.Context) ([]membership.Member, error) {
	members := []membership.Member{}
	if err := sqlx.SelectContext(ctx, s.q, &members, `SELECT id, name, active_loans FROM members ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}

func (s *pgQueries) GetLoan(ctx context.Context, id string) (*circulation.Loan, error) {
	var row loanRow
	err := sqlx.GetContext(ctx, s.q, &row, `SELECT `+loanColumns+` FROM loans WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query loan: %w", err)
	}
	loan := row.toLoan()
	return &loan, nil
}

func (s *pgQueries) PutLoan(ctx context.Context, loan circulation.Loan) error {
	var returnDate interface{}
	if loan.ReturnDate != nil {
		returnDate = loan.ReturnDate.String()
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO loans (id, isbn, member_id, loan_date, due_date, return_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET isbn = EXCLUDED.isbn,
		    member_id = EXCLUDED.member_id,
		    loan_date = EXCLUDED.loan_date,
		    due_date = EXCLUDED.due_date,
		    return_date = EXCLUDED.return_date
	`, loan.ID, loan.ItemISBN, loan.MemberID, loan.LoanDate.String(), loan.DueDate.String(), returnDate)
	if err != nil {
		return fmt.Errorf("upsert loan: %w", err)
	}
	return nil
}

func (s *pgQueries) ListLoans(ctx context.Context) ([]circulation.Loan, error) {
	var rows []loanRow
	if err := sqlx.SelectContext(ctx, s.q, &rows, `SELECT `+loanColumns+` FROM loans ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	loans := make([]circulation.Loan, 0, len(rows))
	for _, r := range rows {
		loans = append(loans, r.toLoan())
	}
	return loans, nil
}

func (s *pgQueries) FindActiveLoanForItem(ctx context.Context, isbn string) (*circulation.Loan, error) {
	var row loanRow
	err := sqlx.GetContext(ctx, s.q, &row,
		`SELECT `+loanColumns+` FROM loans WHERE isbn = $1 AND return_date IS NULL LIMIT 1`, isbn)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query active loan for item: %w", err)
	}
	loan := row.toLoan()
	return &loan, nil
}

func (s *pgQueries) FindActiveLoansForMember(ctx context.Context, memberID string) ([]circulation.Loan, error) {
	var rows []loanRow
	err := sqlx.SelectContext(ctx, s.q, &rows,
		`SELECT `+loanColumns+` FROM loans WHERE member_id = $1 AND return_date IS NULL ORDER BY loan_date, id`, memberID)
	if err != nil {
		return nil, fmt.Errorf("query active loans for member: %w", err)
	}
	loans := make([]circulation.Loan, 0, len(rows))
	for _, r := range rows {
		loans = append(loans, r.toLoan())
	}
	return loans, nil
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}
