package library

import (
	"context"
	"io"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // dialect registration
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var ErrBuildingQueryFailed = errors.New("building query failed")

// BookFilter narrows ListBooks. Zero values do not filter.
type BookFilter struct {
	Available *bool
	Author    string
}

// LoanFilter narrows ListLoans. Zero values do not filter.
type LoanFilter struct {
	// OverdueAt keeps loans whose due date is before this day.
	OverdueAt   *time.Time
	MemberEmail string
}

// Reports builds the listing queries. Filters are composed with goqu in
// prepared mode so every value is a bound argument.
type Reports struct {
	db      *Database
	dialect goqu.DialectWrapper
}

func NewReports(db *Database) *Reports {
	dialect := "sqlite3"
	if db.Driver() != DriverSQLite {
		dialect = "postgres"
	}
	return &Reports{db: db, dialect: goqu.Dialect(dialect)}
}

// ListBooks returns books ordered by id.
func (r *Reports) ListBooks(ctx context.Context, f BookFilter) ([]*Book, error) {
	ds := r.dialect.From("books").
		Select("book_id", "title", "author", "is_available").
		Order(goqu.C("book_id").Asc()).
		Prepared(true)

	if f.Available != nil {
		ds = ds.Where(goqu.L("is_available = ?", *f.Available))
	}
	if f.Author != "" {
		ds = ds.Where(goqu.C("author").Eq(f.Author))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, errors.Wrap(ErrBuildingQueryFailed, err.Error())
	}

	var books []*Book
	if err := r.db.Query(ctx, &books, query, args...); err != nil {
		return nil, err
	}
	return books, nil
}

// ListLoans returns open loans joined with their book and member, earliest
// due date first.
func (r *Reports) ListLoans(ctx context.Context, f LoanFilter) ([]*LoanView, error) {
	ds := r.dialect.From(goqu.T("loans").As("l")).
		Join(goqu.T("books").As("b"), goqu.On(goqu.I("b.book_id").Eq(goqu.I("l.book_id")))).
		Join(goqu.T("members").As("m"), goqu.On(goqu.I("m.member_id").Eq(goqu.I("l.member_id")))).
		Select(
			goqu.I("l.loan_id"), goqu.I("l.book_id"), goqu.I("l.member_id"),
			goqu.I("l.loan_date"), goqu.I("l.return_date"),
			goqu.I("b.title"), goqu.I("b.author"),
			goqu.I("m.name"), goqu.I("m.email"),
		).
		Order(goqu.I("l.return_date").Asc(), goqu.I("l.loan_id").Asc()).
		Prepared(true)

	if f.OverdueAt != nil {
		ds = ds.Where(goqu.I("l.return_date").Lt(truncateDay(*f.OverdueAt)))
	}
	if f.MemberEmail != "" {
		ds = ds.Where(goqu.I("m.email").Eq(f.MemberEmail))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, errors.Wrap(ErrBuildingQueryFailed, err.Error())
	}

	var loans []*LoanView
	if err := r.db.Query(ctx, &loans, query, args...); err != nil {
		return nil, err
	}
	return loans, nil
}

// WriteJSON renders v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
